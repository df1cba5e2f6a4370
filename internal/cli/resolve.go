package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"filehash/internal/adapter/manifest"
	"filehash/internal/domain"
	"filehash/internal/usecase"
)

var (
	resolveDirect bool
	resolveNative []string
	resolveJSON   bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Show the preload list for a chunk",
	Long: `Load the build manifest and print what the preload resolver returns for a
chunk's physical path (or logical name). Entry chunks return the --native list
unchanged. --direct prints the physical files of the static closure instead.

Examples:
  filehash resolve assets/utils-def456.js
  filehash resolve utils --direct
  filehash resolve assets/main-abc123.js --native assets/utils-def456.js`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveDirect, "direct", false, "print physical paths of the static closure")
	resolveCmd.Flags().StringSliceVar(&resolveNative, "native", nil, "bundler-computed dependency list passed through for entries")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "output as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	outDir := filepath.Join(GetRootDir(), cfg.Build.OutDir)

	file, format := cfg.Manifest.Path, manifest.Format(cfg.Manifest.Format)
	if file != "" {
		file = filepath.Join(outDir, filepath.FromSlash(file))
	} else {
		var err error
		file, format, err = manifest.Detect(outDir)
		if err != nil {
			return err
		}
	}
	bundle, err := manifest.Load(file, format, cfg.Build.OutDir)
	if err != nil {
		return err
	}

	plugin := usecase.NewPlugin(usecase.PluginOptions{Global: cfg.Registry.Global}, GetLogger())
	plugin.ConfigResolved(domain.ResolvedConfig{Base: cfg.Build.Base, AssetsDir: cfg.Build.AssetsDir, OutDir: outDir})
	if _, err := plugin.GenerateBundle(bundle); err != nil {
		return err
	}
	plugin.Registry().Freeze()

	requested := args[0]
	if physical, ok := plugin.Registry().ByName(requested); ok {
		requested = physical
	}

	var deps []string
	if resolveDirect {
		deps = plugin.Resolver().Closure(requested)
	} else {
		deps = plugin.ResolveDependencies(requested, resolveNative, domain.PreloadContext{HostType: domain.HostHTML})
	}

	if resolveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(deps)
	}

	if len(deps) == 0 {
		fmt.Printf("%s: nothing to preload\n", args[0])
		return nil
	}
	fmt.Printf("%s (%d):\n  %s\n", requested, len(deps), strings.Join(deps, "\n  "))
	return nil
}
