package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"filehash/config"
	"filehash/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "filehash",
	Short: "Stable module names for content-hashed JavaScript bundles",
	Long: `filehash rewrites a content-hashed bundle so modules import each other by
stable logical names. An import map and a runtime lookup table injected into
every HTML document map those names to the current hashed files, and module
preloads only fetch what a chunk actually needs.

Example usage:
  filehash init                  # Write a default filehash.yaml
  filehash apply                 # Rewrite an existing build in ./dist
  filehash build                 # Build with esbuild, then apply
  filehash resolve assets/x.js   # Show the preload list for a chunk
  filehash diff                  # Compare the last two builds`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger = logging.Setup(cfg.Logging)
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./filehash.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() zerolog.Logger {
	return logger
}
