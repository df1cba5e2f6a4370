package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"filehash/config"
	"filehash/internal/domain"
	"filehash/internal/port"
	"filehash/internal/usecase"
)

var (
	applyDryRun  bool
	applyNoState bool
	applyQuiet   bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Rewrite an existing build output",
	Long: `Rewrite the chunks of an already built output directory to import each other
by logical name, and inject the import map and lookup table into its HTML.

The chunk graph is read from the bundler manifest in the output directory
(.vite/manifest.json, manifest.json, filehash-bundle.json or an esbuild
metafile.json) unless manifest.path is configured.

Examples:
  filehash apply              # Rewrite ./dist
  filehash apply --dry-run    # Report what would change`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "compute changes without writing files")
	applyCmd.Flags().BoolVar(&applyNoState, "no-state", false, "skip the rewrite cache and build snapshots")
	applyCmd.Flags().BoolVarP(&applyQuiet, "quiet", "q", false, "hide the progress bar")
}

func runApply(cmd *cobra.Command, args []string) error {
	st, err := stateStore(GetRootDir(), GetConfig())
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	result, err := applyBuild(cmd.Context(), GetRootDir(), GetConfig(), nil, st)
	if err != nil {
		return err
	}
	printApplyResult(result)
	return nil
}

// stateStore opens the persistent build state, or returns nil when state is
// disabled.
func stateStore(dir string, cfg *config.Config) (port.BuildStore, error) {
	if !cfg.State.Enabled || applyNoState {
		return nil, nil
	}
	st, err := openState(dir, cfg, true)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// applyBuild runs the apply use case with the CLI's progress handling.
// bundle is nil when the manifest should be loaded from disk; st may be nil.
func applyBuild(ctx context.Context, dir string, cfg *config.Config, bundle *domain.Bundle, st port.BuildStore) (*usecase.ApplyResult, error) {
	applyUC := usecase.NewApplyUseCase(cfg, st, GetLogger())

	result, err := applyUC.Apply(ctx, usecase.ApplyOptions{
		Dir:      dir,
		Bundle:   bundle,
		DryRun:   applyDryRun,
		Progress: newProgress(applyQuiet),
	})
	if err != nil {
		return nil, fmt.Errorf("apply failed: %w", err)
	}
	return result, nil
}

func newProgress(quiet bool) func(done, total int) {
	if quiet {
		return nil
	}

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Rewriting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Rewriting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

func printApplyResult(result *usecase.ApplyResult) {
	title := "Apply complete"
	if applyDryRun {
		title = "Dry run complete (nothing written)"
	}

	fmt.Printf("\n%s:\n", title)
	if result.Manifest != "" {
		fmt.Printf("  Manifest:          %s\n", result.Manifest)
	}
	fmt.Printf("  Chunks rewritten:  %d\n", result.ChunksRewritten)
	fmt.Printf("  Chunks cached:     %d\n", result.ChunksCached)
	fmt.Printf("  Chunks unchanged:  %d\n", result.ChunksUnchanged)
	fmt.Printf("  Documents:         %d\n", result.Documents)
	for _, a := range result.Artifacts {
		fmt.Printf("  Emitted:           %s\n", a)
	}
	if result.Snapshot != nil {
		fmt.Printf("  Logical names:     %d\n", len(result.Snapshot.Lookup))
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
