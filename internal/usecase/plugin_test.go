package usecase

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehash/internal/adapter/registry"
	"filehash/internal/domain"
)

func scenarioBundle() domain.Bundle {
	return domain.Bundle{Entries: []domain.BundleEntry{
		{
			Kind:     domain.KindChunk,
			Name:     "main",
			FileName: "assets/main-abc123.js",
			IsEntry:  true,
			Imports:  []string{"assets/utils-def456.js"},
		},
		{
			Kind:        domain.KindChunk,
			Name:        "utils",
			FileName:    "assets/utils-def456.js",
			ImportedCSS: []string{"assets/utils-xyz.css"},
		},
		{Kind: domain.KindAsset, FileName: "assets/utils-xyz.css"},
	}}
}

func newPlugin(t *testing.T, opts PluginOptions) *Plugin {
	t.Helper()
	p := NewPlugin(opts, zerolog.Nop())
	p.ConfigResolved(domain.ResolvedConfig{Base: "/app", AssetsDir: "assets", OutDir: "dist"})
	return p
}

func TestPluginConfigureInstallsHooks(t *testing.T) {
	p := NewPlugin(PluginOptions{}, zerolog.Nop())
	cfg := &domain.BuildConfig{}
	p.Configure(cfg)

	require.NotNil(t, cfg.ModulePreload)
	require.NotNil(t, cfg.ModulePreload.ResolveDependencies)
	require.NotNil(t, cfg.Experimental)
	render := cfg.Experimental.RenderBuiltURL
	require.NotNil(t, render)

	tok := domain.LookupExpression(domain.DefaultGlobal, "utils")
	assert.Equal(t, &domain.BuiltURL{Runtime: tok}, render(tok, domain.URLContext{HostType: domain.HostJS}))
	assert.Equal(t, &domain.BuiltURL{Relative: true}, render("assets/x.png", domain.URLContext{HostType: domain.HostCSS}))
	assert.Nil(t, render("assets/x.png", domain.URLContext{HostType: domain.HostJS}))
}

func TestPluginConfigureChainsPreviousOverride(t *testing.T) {
	called := 0
	prev := func(filename string, ctx domain.URLContext) *domain.BuiltURL {
		called++
		return &domain.BuiltURL{URL: "https://cdn.example.com/" + filename}
	}
	cfg := &domain.BuildConfig{Experimental: &domain.ExperimentalConfig{RenderBuiltURL: prev}}

	p := NewPlugin(PluginOptions{}, zerolog.Nop())
	p.Configure(cfg)
	render := cfg.Experimental.RenderBuiltURL

	got := render("assets/x.png", domain.URLContext{HostType: domain.HostHTML})
	assert.Equal(t, "https://cdn.example.com/assets/x.png", got.URL)

	render(domain.LookupExpression(domain.DefaultGlobal, "main"), domain.URLContext{HostType: domain.HostHTML})
	render("a.png", domain.URLContext{HostType: domain.HostCSS})
	assert.Equal(t, 1, called)
}

func TestPluginConfigResolvedNormalizesBase(t *testing.T) {
	p := newPlugin(t, PluginOptions{})
	assert.Equal(t, "/app/", p.Base())
	assert.Equal(t, "assets", p.Registry().AssetsDir())

	p.ConfigResolved(domain.ResolvedConfig{AssetsDir: "/static/"})
	assert.Equal(t, "/", p.Base())
	assert.Equal(t, "static", p.Registry().AssetsDir())
}

func TestPluginFullLifecycle(t *testing.T) {
	p := newPlugin(t, PluginOptions{})
	cfg := &domain.BuildConfig{}
	p.Configure(cfg)

	code := p.RenderChunk(`import{u}from"./utils-!~{001}~.js";import("./lazy-!~{002}~.js");`, domain.ChunkMeta{Name: "main"})
	assert.Equal(t, `import{u}from"utils";import("lazy");`, code)

	artifacts, err := p.GenerateBundle(scenarioBundle())
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	html, err := p.TransformIndexHTML("<html><head><title>t</title></head><body></body></html>")
	require.NoError(t, err)
	assert.Contains(t, html, `"main": "/app/assets/main-abc123.js"`)
	assert.Contains(t, html, `"utils.css": "utils-xyz.css"`)
	assert.True(t, p.Registry().Frozen())

	resolve := cfg.ModulePreload.ResolveDependencies
	native := []string{"assets/utils-def456.js"}
	assert.Equal(t, native, resolve("assets/main-abc123.js", native, domain.PreloadContext{HostType: domain.HostHTML}))
	want := []string{
		domain.LookupExpression(domain.DefaultGlobal, "utils"),
		domain.LookupExpression(domain.DefaultGlobal, "utils.css"),
	}
	assert.Equal(t, want, resolve("assets/utils-def456.js", nil, domain.PreloadContext{}))
	assert.Equal(t, want, resolve("assets/utils-def456.js", nil, domain.PreloadContext{}))
	assert.Equal(t, []string{}, resolve("assets/unknown.js", nil, domain.PreloadContext{}))

	_, err = p.GenerateBundle(scenarioBundle())
	assert.ErrorIs(t, err, registry.ErrFrozen)
}

func TestPluginExternalized(t *testing.T) {
	p := newPlugin(t, PluginOptions{Externalize: true})

	artifacts, err := p.GenerateBundle(scenarioBundle())
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	html, err := p.TransformIndexHTML("<head></head>")
	require.NoError(t, err)
	assert.Contains(t, html, `<script src="/app/`+artifacts[0].FileName+`"></script>`)
	assert.NotContains(t, html, "window.fileHashes =")
	assert.Contains(t, html, `<script type="importmap">`)
}

func TestPluginFreshRegistryPerBuild(t *testing.T) {
	p := newPlugin(t, PluginOptions{})
	_, err := p.GenerateBundle(scenarioBundle())
	require.NoError(t, err)
	_, err = p.TransformIndexHTML("<head></head>")
	require.NoError(t, err)

	p.ConfigResolved(domain.ResolvedConfig{Base: "/", AssetsDir: "assets"})
	assert.Equal(t, 0, p.Registry().Len())
	assert.False(t, p.Registry().Frozen())

	next := domain.Bundle{Entries: []domain.BundleEntry{
		{Kind: domain.KindChunk, Name: "utils", FileName: "assets/utils-999.js"},
	}}
	_, err = p.GenerateBundle(next)
	require.NoError(t, err)
	lookup, im := p.Views()
	assert.Equal(t, "utils-999.js", lookup["utils"])
	assert.Equal(t, "/assets/utils-999.js", im.Imports["utils"])
}

func TestPluginHTMLWithoutHead(t *testing.T) {
	p := newPlugin(t, PluginOptions{})
	_, err := p.GenerateBundle(scenarioBundle())
	require.NoError(t, err)

	in := "<body>fragment</body>"
	out, err := p.TransformIndexHTML(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.False(t, strings.Contains(out, "importmap"))
}

func TestPluginDuplicateChunkNamesWarn(t *testing.T) {
	var logs bytes.Buffer
	p := NewPlugin(PluginOptions{}, zerolog.New(&logs))
	p.ConfigResolved(domain.ResolvedConfig{Base: "/", AssetsDir: "assets", OutDir: "dist"})

	b := scenarioBundle()
	b.Entries = append(b.Entries, domain.BundleEntry{
		Kind:     domain.KindChunk,
		Name:     "utils",
		FileName: "assets/utils-0000ff.js",
	})
	_, err := p.GenerateBundle(b)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "assets/utils-0000ff.js")

	file, ok := p.Registry().ByName("utils")
	require.True(t, ok)
	assert.Equal(t, "assets/utils-def456.js", file)
}
