package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"filehash/internal/adapter/fs"
	"filehash/internal/adapter/memstore"
	"filehash/internal/port"
	"filehash/internal/usecase"
)

// sourcePatterns select the files that trigger a rebuild in build mode.
var sourcePatterns = []string{"**/*.{js,mjs,cjs,jsx,ts,tsx,css,html}"}

var watchBuild bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-apply whenever the build changes",
	Long: `Watch and re-run on change until interrupted.

By default the output directory is watched and apply re-runs whenever the
bundler rewrites its manifest. With --build (or when esbuild.entry_points is
configured) the project sources are watched and every change triggers an
esbuild build followed by apply. After each run the logical names whose
files changed are listed.

Examples:
  filehash watch           # Follow an external bundler's output
  filehash watch --build   # Rebuild with esbuild on source changes`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchBuild, "build", false, "rebuild with esbuild on source changes")
	watchCmd.Flags().BoolVar(&applyNoState, "no-state", false, "keep the rewrite cache and build history in memory only")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	dir := GetRootDir()
	outDir := filepath.Join(dir, cfg.Build.OutDir)
	building := watchBuild || len(cfg.Esbuild.EntryPoints) > 0

	st, err := stateStore(dir, cfg)
	if err != nil {
		return err
	}
	if st == nil {
		st = memstore.NewMemoryStore()
	}
	defer st.Close()

	var w *fs.Watcher
	if building {
		w, err = fs.NewWatcher(dir, fs.NewWalker(sourcePatterns, cfg.Rewrite.Excludes), outDir)
	} else {
		w, err = fs.NewWatcher(outDir, fs.NewWalker(manifestPatterns(cfg.Manifest.Path), nil), "")
	}
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	diffUC := usecase.NewDiffUseCase(st)
	run := func(reason string) {
		logger := GetLogger()
		logger.Info().Str("trigger", reason).Msg("running")
		if err := watchOnce(ctx, building, st); err != nil {
			logger.Error().Err(err).Msg("run failed")
			return
		}
		diff, err := diffUC.Latest()
		if err != nil {
			if !errors.Is(err, usecase.ErrNoHistory) {
				logger.Warn().Err(err).Msg("diff failed")
			}
			return
		}
		for _, r := range diff.Rehashed {
			fmt.Printf("  ~ %s: %s -> %s\n", r.Name, r.Old, r.New)
		}
		for _, name := range diff.Added {
			fmt.Printf("  + %s\n", name)
		}
		for _, name := range diff.Removed {
			fmt.Printf("  - %s\n", name)
		}
	}

	run("startup")
	fmt.Printf("Watching %s (Ctrl+C to stop)...\n", w.Root)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Stopped.")
			return nil
		case cs, ok := <-w.Changes:
			if !ok {
				return nil
			}
			run(strings.Join(cs.Files, ", "))
		}
	}
}

func watchOnce(ctx context.Context, building bool, st port.BuildStore) error {
	cfg := GetConfig()

	var result *usecase.ApplyResult
	var err error
	if building {
		bundle, berr := newBuilder(nil).Build(ctx)
		if berr != nil {
			return fmt.Errorf("build failed: %w", berr)
		}
		result, err = applyBuild(ctx, GetRootDir(), cfg, &bundle, st)
	} else {
		result, err = applyBuild(ctx, GetRootDir(), cfg, nil, st)
	}
	if err != nil {
		return err
	}
	printApplyResult(result)
	return nil
}

func manifestPatterns(configured string) []string {
	if configured != "" {
		return []string{filepath.ToSlash(configured)}
	}
	return []string{".vite/manifest.json", "manifest.json", "filehash-bundle.json", "metafile.json"}
}
