package esbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"filehash/internal/adapter/fs"
	"filehash/internal/adapter/manifest"
	"filehash/internal/domain"
)

// MetafileName is written into the output directory after every build so a
// later apply can find the chunk graph.
const MetafileName = "metafile.json"

// Options configures one esbuild run. Paths are relative to Root.
type Options struct {
	Root        string
	OutDir      string
	AssetsDir   string
	EntryPoints []string
	HTML        []string
	Minify      bool
	Sourcemap   bool
	Target      string
}

// Builder runs esbuild with code splitting and returns the resulting chunk
// graph.
type Builder struct {
	opts   Options
	logger zerolog.Logger
}

func NewBuilder(opts Options, logger zerolog.Logger) *Builder {
	return &Builder{opts: opts, logger: logger}
}

// Build bundles the entry points into OutDir. Cancelling ctx cancels the
// esbuild run.
func (b *Builder) Build(ctx context.Context) (domain.Bundle, error) {
	if len(b.opts.EntryPoints) == 0 {
		return domain.Bundle{}, errors.New("esbuild: no entry points configured")
	}

	buildOpts, err := b.buildOptions()
	if err != nil {
		return domain.Bundle{}, err
	}

	bctx, cerr := api.Context(buildOpts)
	if cerr != nil {
		return domain.Bundle{}, fmt.Errorf("esbuild: %w", joinMessages(cerr.Errors))
	}
	defer bctx.Dispose()

	done := make(chan api.BuildResult, 1)
	go func() { done <- bctx.Rebuild() }()

	var result api.BuildResult
	select {
	case <-ctx.Done():
		bctx.Cancel()
		<-done
		return domain.Bundle{}, ctx.Err()
	case result = <-done:
	}

	for _, w := range result.Warnings {
		b.logger.Warn().Str("location", location(w)).Msg(w.Text)
	}
	if len(result.Errors) > 0 {
		return domain.Bundle{}, fmt.Errorf("esbuild: %w", joinMessages(result.Errors))
	}

	outDir := filepath.Join(b.opts.Root, b.opts.OutDir)
	if err := fs.WriteFile(filepath.Join(outDir, MetafileName), []byte(result.Metafile)); err != nil {
		return domain.Bundle{}, fmt.Errorf("failed to write metafile: %w", err)
	}
	if err := b.copyHTML(outDir); err != nil {
		return domain.Bundle{}, err
	}

	bundle, err := manifest.ParseEsbuildMetafile([]byte(result.Metafile), b.opts.OutDir)
	if err != nil {
		return domain.Bundle{}, err
	}
	b.logger.Debug().Int("outputs", len(bundle.Entries)).Str("out_dir", outDir).Msg("esbuild finished")
	return bundle, nil
}

func (b *Builder) buildOptions() (api.BuildOptions, error) {
	root, err := filepath.Abs(b.opts.Root)
	if err != nil {
		return api.BuildOptions{}, err
	}
	target, err := parseTarget(b.opts.Target)
	if err != nil {
		return api.BuildOptions{}, err
	}

	pattern := path.Join(strings.Trim(b.opts.AssetsDir, "/"), "[name]-[hash]")
	opts := api.BuildOptions{
		EntryPoints:       b.opts.EntryPoints,
		Bundle:            true,
		Splitting:         true,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            target,
		Outdir:            filepath.Join(root, b.opts.OutDir),
		EntryNames:        pattern,
		ChunkNames:        pattern,
		AssetNames:        pattern,
		Metafile:          true,
		Write:             true,
		AbsWorkingDir:     root,
		LogLevel:          api.LogLevelSilent,
		MinifyWhitespace:  b.opts.Minify,
		MinifyIdentifiers: b.opts.Minify,
		MinifySyntax:      b.opts.Minify,
		Plugins:           []api.Plugin{urlExternalPlugin()},
	}
	if b.opts.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}
	return opts, nil
}

// urlExternalPlugin leaves absolute URL imports to the browser.
func urlExternalPlugin() api.Plugin {
	return api.Plugin{
		Name: "url-external",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^(https?:)?//`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:     args.Path,
						External: true,
					}, nil
				})
		},
	}
}

func (b *Builder) copyHTML(outDir string) error {
	for _, src := range b.opts.HTML {
		data, err := os.ReadFile(filepath.Join(b.opts.Root, src))
		if err != nil {
			return fmt.Errorf("failed to read html template: %w", err)
		}
		if err := fs.WriteFile(filepath.Join(outDir, filepath.Base(src)), data); err != nil {
			return fmt.Errorf("failed to copy html template: %w", err)
		}
	}
	return nil
}

func parseTarget(target string) (api.Target, error) {
	switch strings.ToLower(target) {
	case "", "esnext":
		return api.ESNext, nil
	case "es2015":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2020":
		return api.ES2020, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	default:
		return api.DefaultTarget, fmt.Errorf("esbuild: unsupported target %q", target)
	}
}

func joinMessages(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if loc := location(m); loc != "" {
			errs = append(errs, fmt.Errorf("%s: %s", loc, m.Text))
			continue
		}
		errs = append(errs, errors.New(m.Text))
	}
	return errors.Join(errs...)
}

func location(m api.Message) string {
	if m.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", m.Location.File, m.Location.Line, m.Location.Column)
}
