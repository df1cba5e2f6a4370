package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"filehash/config"
	"filehash/internal/adapter/fs"
	"filehash/internal/adapter/manifest"
	"filehash/internal/domain"
	"filehash/internal/port"
)

// snapshotPruner is implemented by stores that can drop old snapshots.
type snapshotPruner interface {
	PruneSnapshots(keep int) (int, error)
}

// ApplyUseCase runs the plugin hooks over a finished output directory.
type ApplyUseCase struct {
	cfg    *config.Config
	store  port.BuildStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewApplyUseCase creates an apply use case. store may be nil, which disables
// the rewrite cache and snapshots.
func NewApplyUseCase(cfg *config.Config, store port.BuildStore, logger zerolog.Logger) *ApplyUseCase {
	return &ApplyUseCase{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ApplyOptions controls one apply run.
type ApplyOptions struct {
	// Dir is the project root; the output directory is resolved against it.
	Dir string
	// Bundle skips manifest loading when the chunk graph is already known.
	Bundle *domain.Bundle
	DryRun bool
	// Progress is called after each chunk file with the number done so far.
	Progress func(done, total int)
}

// ApplyResult contains the results of an apply operation.
type ApplyResult struct {
	Manifest        string
	ChunksRewritten int
	ChunksCached    int
	ChunksUnchanged int
	Documents       int
	Artifacts       []string
	Snapshot        *domain.Snapshot
	Errors          []string
}

type chunkResult struct {
	rel     string
	changed bool
	cached  bool
	err     error
}

// Apply loads the chunk graph, rewrites every chunk file, injects the
// registry into every HTML document, and records a snapshot.
func (u *ApplyUseCase) Apply(ctx context.Context, opts ApplyOptions) (*ApplyResult, error) {
	result := &ApplyResult{}
	outDir := filepath.Join(opts.Dir, u.cfg.Build.OutDir)

	bundle, err := u.loadBundle(outDir, opts, result)
	if err != nil {
		return nil, err
	}

	plugin := NewPlugin(PluginOptions{
		Global:      u.cfg.Registry.Global,
		Externalize: u.cfg.Registry.Externalize,
	}, u.logger)
	plugin.Configure(&domain.BuildConfig{})
	plugin.ConfigResolved(domain.ResolvedConfig{
		Base:      u.cfg.Build.Base,
		AssetsDir: u.cfg.Build.AssetsDir,
		OutDir:    outDir,
	})

	artifacts, err := plugin.GenerateBundle(bundle)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if !opts.DryRun {
			if err := fs.WriteFile(filepath.Join(outDir, filepath.FromSlash(a.FileName)), a.Source); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", a.FileName, err)
			}
		}
		result.Artifacts = append(result.Artifacts, a.FileName)
	}
	plugin.Registry().Freeze()

	if err := u.rewriteChunks(ctx, plugin, bundle, outDir, opts, result); err != nil {
		return nil, err
	}
	if err := u.injectDocuments(ctx, plugin, outDir, opts, result); err != nil {
		return nil, err
	}

	lookup, importMap := plugin.Views()
	now := u.now().UTC()
	snap := domain.Snapshot{
		ID:        now.Format("20060102T150405.000000000Z"),
		CreatedAt: now,
		OutDir:    outDir,
		Lookup:    lookup,
		ImportMap: importMap,
	}
	result.Snapshot = &snap

	if u.store != nil && !opts.DryRun {
		if err := u.store.SaveSnapshot(snap); err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
		if p, ok := u.store.(snapshotPruner); ok && u.cfg.State.Keep > 0 {
			if _, err := p.PruneSnapshots(u.cfg.State.Keep); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to prune snapshots: %v", err))
			}
		}
	}

	return result, nil
}

func (u *ApplyUseCase) loadBundle(outDir string, opts ApplyOptions, result *ApplyResult) (domain.Bundle, error) {
	if opts.Bundle != nil {
		return *opts.Bundle, nil
	}

	file, format := u.cfg.Manifest.Path, manifest.Format(u.cfg.Manifest.Format)
	if file != "" {
		file = filepath.Join(outDir, filepath.FromSlash(file))
	} else {
		detected, detectedFormat, err := manifest.Detect(outDir)
		if err != nil {
			return domain.Bundle{}, err
		}
		file = detected
		if format == "" || format == manifest.FormatAuto {
			format = detectedFormat
		}
	}

	bundle, err := manifest.Load(file, format, u.cfg.Build.OutDir)
	if err != nil {
		return domain.Bundle{}, err
	}
	result.Manifest = file
	u.logger.Debug().Str("manifest", file).Str("format", string(format)).Int("entries", len(bundle.Entries)).Msg("loaded manifest")
	return bundle, nil
}

func (u *ApplyUseCase) rewriteChunks(ctx context.Context, plugin *Plugin, bundle domain.Bundle, outDir string, opts ApplyOptions, result *ApplyResult) error {
	byFile := make(map[string]domain.BundleEntry)
	for _, e := range bundle.Chunks() {
		byFile[e.FileName] = e
	}

	var walker port.FileWalker = fs.NewWalker(u.cfg.Rewrite.Includes, u.cfg.Rewrite.Excludes)
	files, err := walker.Walk(outDir)
	if err != nil {
		return fmt.Errorf("failed to walk output directory: %w", err)
	}
	var chunkFiles []port.FileInfo
	for _, f := range files {
		if _, ok := byFile[f.RelPath]; ok {
			chunkFiles = append(chunkFiles, f)
		}
	}

	useCache := u.store != nil && u.cfg.Apply.Cache
	results := make([]chunkResult, len(chunkFiles))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(u.cfg.Apply.Concurrency, 1))
	for i, f := range chunkFiles {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = u.rewriteChunk(plugin, byFile[f.RelPath], f, useCache, opts.DryRun)
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(chunkFiles))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		switch {
		case r.err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("failed to rewrite %s: %v", r.rel, r.err))
		case r.cached:
			result.ChunksCached++
		case r.changed:
			result.ChunksRewritten++
		default:
			result.ChunksUnchanged++
		}
	}
	return nil
}

func (u *ApplyUseCase) rewriteChunk(plugin *Plugin, entry domain.BundleEntry, f port.FileInfo, useCache, dryRun bool) chunkResult {
	res := chunkResult{rel: f.RelPath}

	content, err := fs.ReadFile(f.Path)
	if err != nil {
		res.err = err
		return res
	}

	var code string
	key := rewriteKey(content, entry, plugin.Registry())
	if useCache {
		cached, ok, err := u.store.GetRewrite(key)
		if err != nil {
			u.logger.Warn().Err(err).Str("chunk", f.RelPath).Msg("rewrite cache read failed")
		}
		if ok {
			code, res.cached = cached, true
		}
	}
	if !res.cached {
		code = plugin.RenderChunk(content, domain.ChunkMeta{
			Name:     entry.Name,
			FileName: entry.FileName,
			IsEntry:  entry.IsEntry,
		})
		if useCache && !dryRun {
			if err := u.store.PutRewrite(key, code); err != nil {
				u.logger.Warn().Err(err).Str("chunk", f.RelPath).Msg("rewrite cache write failed")
			}
		}
	}

	if code == content {
		return res
	}
	res.changed = true
	if !dryRun {
		res.err = fs.WriteFile(f.Path, []byte(code))
	}
	return res
}

// nameSource resolves logical names for physical paths.
type nameSource interface {
	NameForFile(file string) (string, bool)
}

// rewriteKey identifies a rewrite by the chunk content and the names its
// imports resolve to, so a cached result is reused only when both match.
func rewriteKey(content string, entry domain.BundleEntry, names nameSource) string {
	deps := make([]string, 0, len(entry.Imports)+len(entry.DynamicImports))
	deps = append(deps, entry.Imports...)
	deps = append(deps, entry.DynamicImports...)
	sort.Strings(deps)

	var b strings.Builder
	b.WriteString(content)
	for _, d := range deps {
		name, _ := names.NameForFile(d)
		b.WriteString("\x00")
		b.WriteString(d)
		b.WriteString("=")
		b.WriteString(name)
	}
	h := xxh3.HashString128(b.String())
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

func (u *ApplyUseCase) injectDocuments(ctx context.Context, plugin *Plugin, outDir string, opts ApplyOptions, result *ApplyResult) error {
	var walker port.FileWalker = fs.NewWalker(u.cfg.Rewrite.HTML, u.cfg.Rewrite.Excludes)
	docs, err := walker.Walk(outDir)
	if err != nil {
		return fmt.Errorf("failed to walk output directory: %w", err)
	}

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		html, err := fs.ReadFile(d.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", d.RelPath, err))
			continue
		}
		out, err := plugin.TransformIndexHTML(html)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to inject %s: %v", d.RelPath, err))
			continue
		}
		if out == html {
			continue
		}
		if !opts.DryRun {
			if err := fs.WriteFile(d.Path, []byte(out)); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to write %s: %v", d.RelPath, err))
				continue
			}
		}
		result.Documents++
	}
	return nil
}
