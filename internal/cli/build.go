package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"filehash/internal/adapter/esbuild"
	"filehash/internal/port"
)

var (
	buildMinify    bool
	buildSourcemap bool
)

var buildCmd = &cobra.Command{
	Use:   "build [entry...]",
	Short: "Bundle with esbuild, then apply",
	Long: `Bundle the configured entry points with esbuild (code splitting, ESM output,
content-hashed file names under the asset directory) and apply the rewrite to
the result. Entry points given as arguments replace esbuild.entry_points.

Examples:
  filehash build                         # Use esbuild.entry_points
  filehash build src/main.ts --minify    # Build one entry, minified`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false, "minify output (overrides config)")
	buildCmd.Flags().BoolVar(&buildSourcemap, "sourcemap", false, "emit linked source maps (overrides config)")
	buildCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "build, but do not rewrite the output")
	buildCmd.Flags().BoolVar(&applyNoState, "no-state", false, "skip the rewrite cache and build snapshots")
	buildCmd.Flags().BoolVarP(&applyQuiet, "quiet", "q", false, "hide the progress bar")
}

func newBuilder(args []string) port.Bundler {
	cfg := GetConfig()
	entries := cfg.Esbuild.EntryPoints
	if len(args) > 0 {
		entries = args
	}
	return esbuild.NewBuilder(esbuild.Options{
		Root:        GetRootDir(),
		OutDir:      cfg.Build.OutDir,
		AssetsDir:   cfg.Build.AssetsDir,
		EntryPoints: entries,
		HTML:        cfg.Esbuild.HTML,
		Minify:      cfg.Esbuild.Minify || buildMinify,
		Sourcemap:   cfg.Esbuild.Sourcemap || buildSourcemap,
		Target:      cfg.Esbuild.Target,
	}, GetLogger())
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	fmt.Printf("Building %s...\n", GetRootDir())
	bundle, err := newBuilder(args).Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	fmt.Printf("  Chunks: %d\n", len(bundle.Chunks()))

	st, err := stateStore(GetRootDir(), cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	result, err := applyBuild(cmd.Context(), GetRootDir(), cfg, &bundle, st)
	if err != nil {
		return err
	}
	printApplyResult(result)
	return nil
}
