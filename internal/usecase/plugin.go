package usecase

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"filehash/internal/adapter/cache"
	"filehash/internal/adapter/emitter"
	"filehash/internal/adapter/registry"
	"filehash/internal/adapter/resolver"
	"filehash/internal/adapter/rewriter"
	"filehash/internal/domain"
	"filehash/internal/port"
)

// PluginName identifies the transform to a hosting pipeline.
const PluginName = "filehash"

// PluginOptions configures a Plugin.
type PluginOptions struct {
	Global      string
	Externalize bool
	CacheSize   int
}

// Plugin drives one build through the lifecycle hooks: Configure,
// ConfigResolved, RenderChunk, GenerateBundle, TransformIndexHTML. Hooks are
// called sequentially; ResolveDependencies and RenderChunk may be called
// concurrently.
type Plugin struct {
	opts   PluginOptions
	logger zerolog.Logger

	base      string
	assetsDir string

	registry *registry.Registry
	resolver *resolver.Resolver
	cache    *cache.PreloadCache
	preloads *cache.CachedResolver
	rewriter port.SpecifierRewriter
	emitter  *emitter.Emitter
}

func NewPlugin(opts PluginOptions, logger zerolog.Logger) *Plugin {
	if opts.Global == "" {
		opts.Global = domain.DefaultGlobal
	}
	p := &Plugin{
		opts:   opts,
		logger: logger.With().Str("plugin", PluginName).Logger(),
		cache:  cache.NewPreloadCache(opts.CacheSize),
	}
	p.reset("/", "")
	return p
}

func (p *Plugin) Name() string {
	return PluginName
}

// Configure installs the preload resolver and the URL rendering override,
// keeping any override already present as the fallback.
func (p *Plugin) Configure(cfg *domain.BuildConfig) {
	if cfg.ModulePreload == nil {
		cfg.ModulePreload = &domain.ModulePreloadConfig{}
	}
	cfg.ModulePreload.ResolveDependencies = p.ResolveDependencies

	if cfg.Experimental == nil {
		cfg.Experimental = &domain.ExperimentalConfig{}
	}
	previous := cfg.Experimental.RenderBuiltURL
	global := p.opts.Global
	cfg.Experimental.RenderBuiltURL = func(filename string, ctx domain.URLContext) *domain.BuiltURL {
		if domain.IsLookupExpression(global, filename) {
			return &domain.BuiltURL{Runtime: filename}
		}
		if ctx.HostType == domain.HostCSS {
			return &domain.BuiltURL{Relative: true}
		}
		if previous != nil {
			return previous(filename, ctx)
		}
		return nil
	}
}

// ConfigResolved captures the public base and asset directory and starts a
// fresh registry for the build.
func (p *Plugin) ConfigResolved(cfg domain.ResolvedConfig) {
	base := cfg.Base
	if base == "" {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	p.reset(base, cfg.AssetsDir)
}

func (p *Plugin) reset(base, assetsDir string) {
	p.base = base
	p.assetsDir = strings.Trim(assetsDir, "/")
	p.registry = registry.New(p.assetsDir)
	p.resolver = resolver.New(p.registry, p.opts.Global)
	p.cache.Invalidate()
	p.preloads = cache.NewCachedResolver(p.resolver, p.cache)
	p.rewriter = rewriter.New(rewriter.WithNameLookup(p.registry))
	p.emitter = emitter.New(emitter.Options{
		Base:        p.base,
		AssetsDir:   p.assetsDir,
		Global:      p.opts.Global,
		Externalize: p.opts.Externalize,
	})
}

// ResolveDependencies is installed as the pipeline's preload resolver.
// Results are memoised once the registry is frozen.
func (p *Plugin) ResolveDependencies(filename string, deps []string, _ domain.PreloadContext) []string {
	if !p.registry.Frozen() {
		return p.resolver.ResolvePreloads(filename, deps)
	}
	return p.preloads.ResolvePreloads(filename, deps)
}

// RenderChunk rewrites the import specifiers of one chunk.
func (p *Plugin) RenderChunk(code string, meta domain.ChunkMeta) string {
	out, n := p.rewriter.RewriteN(code)
	if n > 0 {
		p.logger.Debug().Str("chunk", meta.FileName).Int("specifiers", n).Msg("rewrote imports")
	}
	return out
}

// GenerateBundle registers the finished chunk graph. In externalized mode it
// returns the registry files to emit.
func (p *Plugin) GenerateBundle(b domain.Bundle) ([]domain.Artifact, error) {
	conflicts, err := p.registry.RegisterBundle(b)
	if err != nil {
		return nil, fmt.Errorf("failed to register bundle: %w", err)
	}
	for _, c := range conflicts {
		p.logger.Warn().Err(c).Msg("skipped chunk name")
	}
	p.logger.Debug().Int("names", p.registry.Len()).Msg("registered bundle")

	artifacts, err := p.emitter.Artifacts(p.registry)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// TransformIndexHTML freezes the registry and injects the lookup table and
// import map into the document head.
func (p *Plugin) TransformIndexHTML(html string) (string, error) {
	p.registry.Freeze()

	out, ok, err := p.emitter.Inject(html, p.registry)
	if err != nil {
		return html, err
	}
	if !ok {
		p.logger.Warn().Msg("document has no <head> tag; registry not injected")
	}
	return out, nil
}

// Views returns the lookup table and import map of the current build.
func (p *Plugin) Views() (domain.LookupTable, domain.ImportMap) {
	return p.emitter.LookupTable(p.registry), p.emitter.ImportMap(p.registry)
}

func (p *Plugin) Registry() *registry.Registry {
	return p.registry
}

func (p *Plugin) Resolver() *resolver.Resolver {
	return p.resolver
}

func (p *Plugin) Base() string {
	return p.base
}
