package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehash/config"
	"filehash/internal/adapter/memstore"
	"filehash/internal/domain"
)

const viteManifest = `{
  "src/main.js": {
    "file": "assets/main-abc123.js",
    "name": "main",
    "src": "src/main.js",
    "isEntry": true,
    "imports": ["_utils-def456.js"],
    "dynamicImports": ["src/lazy.js"]
  },
  "_utils-def456.js": {
    "file": "assets/utils-def456.js",
    "name": "utils",
    "css": ["assets/utils-xyz.css"]
  },
  "src/lazy.js": {
    "file": "assets/lazy-777.js",
    "name": "lazy",
    "isDynamicEntry": true,
    "imports": ["_utils-def456.js"]
  }
}`

func writeOutput(t *testing.T, root string) string {
	t.Helper()
	files := map[string]string{
		"dist/.vite/manifest.json":    viteManifest,
		"dist/assets/main-abc123.js":  `import{u}from"./utils-def456.js";import("./lazy-777.js").then(m=>m.run(u));`,
		"dist/assets/utils-def456.js": `export const u = 1;`,
		"dist/assets/lazy-777.js":     "import { u } from './utils-def456.js';\nexport function run() { return u; }\n",
		"dist/assets/utils-xyz.css":   `.u{color:red}`,
		"dist/index.html":             `<!doctype html><html><head><meta charset="utf-8"></head><body><script type="module" src="/assets/main-abc123.js"></script></body></html>`,
		"dist/fragment.html":          `<div>no head</div>`,
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return filepath.Join(root, "dist")
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApplyRewritesOutput(t *testing.T) {
	root := t.TempDir()
	outDir := writeOutput(t, root)
	cfg := config.DefaultConfig()
	store := memstore.NewMemoryStore()

	u := NewApplyUseCase(cfg, store, zerolog.Nop())
	u.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	var mu sync.Mutex
	var progress []int
	result, err := u.Apply(context.Background(), ApplyOptions{
		Dir: root,
		Progress: func(done, total int) {
			mu.Lock()
			progress = append(progress, total)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	assert.Equal(t, 2, result.ChunksRewritten)
	assert.Equal(t, 1, result.ChunksUnchanged)
	assert.Equal(t, 0, result.ChunksCached)
	assert.Equal(t, 1, result.Documents)
	assert.Len(t, progress, 3)
	assert.Equal(t, filepath.Join(outDir, ".vite", "manifest.json"), result.Manifest)

	assert.Equal(t, `import{u}from"utils";import("lazy").then(m=>m.run(u));`, read(t, filepath.Join(outDir, "assets", "main-abc123.js")))
	assert.True(t, strings.HasPrefix(read(t, filepath.Join(outDir, "assets", "lazy-777.js")), "import { u } from 'utils';"))

	html := read(t, filepath.Join(outDir, "index.html"))
	assert.Contains(t, html, `"utils": "/assets/utils-def456.js"`)
	assert.Contains(t, html, `"utils.css": "utils-xyz.css"`)
	assert.Equal(t, `<div>no head</div>`, read(t, filepath.Join(outDir, "fragment.html")))

	require.NotNil(t, result.Snapshot)
	snaps, err := store.LatestSnapshots(0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "20260301T120000.000000000Z", snaps[0].ID)
	assert.Equal(t, "main-abc123.js", snaps[0].Lookup["main"])
}

func TestApplyIsIdempotent(t *testing.T) {
	root := t.TempDir()
	outDir := writeOutput(t, root)
	cfg := config.DefaultConfig()

	u := NewApplyUseCase(cfg, memstore.NewMemoryStore(), zerolog.Nop())
	_, err := u.Apply(context.Background(), ApplyOptions{Dir: root})
	require.NoError(t, err)
	firstMain := read(t, filepath.Join(outDir, "assets", "main-abc123.js"))
	firstHTML := read(t, filepath.Join(outDir, "index.html"))

	result, err := u.Apply(context.Background(), ApplyOptions{Dir: root})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksRewritten)
	assert.Equal(t, 0, result.Documents)
	assert.Equal(t, firstMain, read(t, filepath.Join(outDir, "assets", "main-abc123.js")))
	assert.Equal(t, firstHTML, read(t, filepath.Join(outDir, "index.html")))
}

func TestApplyUsesRewriteCache(t *testing.T) {
	cfg := config.DefaultConfig()
	store := memstore.NewMemoryStore()

	first := t.TempDir()
	writeOutput(t, first)
	_, err := NewApplyUseCase(cfg, store, zerolog.Nop()).Apply(context.Background(), ApplyOptions{Dir: first})
	require.NoError(t, err)

	second := t.TempDir()
	outDir := writeOutput(t, second)
	result, err := NewApplyUseCase(cfg, store, zerolog.Nop()).Apply(context.Background(), ApplyOptions{Dir: second})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunksCached)
	assert.Equal(t, 0, result.ChunksRewritten)
	assert.Equal(t, `import{u}from"utils";import("lazy").then(m=>m.run(u));`, read(t, filepath.Join(outDir, "assets", "main-abc123.js")))
}

func TestApplyDryRun(t *testing.T) {
	root := t.TempDir()
	outDir := writeOutput(t, root)
	before := read(t, filepath.Join(outDir, "assets", "main-abc123.js"))

	cfg := config.DefaultConfig()
	cfg.Registry.Externalize = true
	store := memstore.NewMemoryStore()

	result, err := NewApplyUseCase(cfg, store, zerolog.Nop()).Apply(context.Background(), ApplyOptions{Dir: root, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksRewritten)
	assert.Equal(t, 1, result.Documents)
	assert.Len(t, result.Artifacts, 2)

	assert.Equal(t, before, read(t, filepath.Join(outDir, "assets", "main-abc123.js")))
	for _, a := range result.Artifacts {
		_, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(a)))
		assert.True(t, os.IsNotExist(err), a)
	}
	snaps, err := store.LatestSnapshots(0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestApplyWritesExternalizedArtifacts(t *testing.T) {
	root := t.TempDir()
	outDir := writeOutput(t, root)
	cfg := config.DefaultConfig()
	cfg.Registry.Externalize = true

	result, err := NewApplyUseCase(cfg, nil, zerolog.Nop()).Apply(context.Background(), ApplyOptions{Dir: root})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)

	script := read(t, filepath.Join(outDir, filepath.FromSlash(result.Artifacts[0])))
	assert.True(t, strings.HasPrefix(script, "window.fileHashes = {"))
	assert.Contains(t, read(t, filepath.Join(outDir, "index.html")), `<script src="/`+result.Artifacts[0]+`">`)
}

func TestApplyWithPrebuiltBundle(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "assets", "a-1.js"), []byte(`import{b}from"./b-2.js";`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "assets", "b-2.js"), []byte(``), 0644))

	bundle := domain.Bundle{Entries: []domain.BundleEntry{
		{Kind: domain.KindChunk, Name: "a", FileName: "assets/a-1.js", IsEntry: true, Imports: []string{"assets/b-2.js"}},
		{Kind: domain.KindChunk, Name: "b", FileName: "assets/b-2.js"},
	}}
	result, err := NewApplyUseCase(config.DefaultConfig(), nil, zerolog.Nop()).Apply(context.Background(), ApplyOptions{Dir: root, Bundle: &bundle})
	require.NoError(t, err)
	assert.Empty(t, result.Manifest)
	assert.Equal(t, 1, result.ChunksRewritten)
	assert.Equal(t, 1, result.ChunksUnchanged)
	assert.Equal(t, `import{b}from"b";`, read(t, filepath.Join(outDir, "assets", "a-1.js")))
}

func TestApplyMissingManifest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0755))

	_, err := NewApplyUseCase(config.DefaultConfig(), nil, zerolog.Nop()).Apply(context.Background(), ApplyOptions{Dir: root})
	assert.Error(t, err)
}

func TestApplyCancelled(t *testing.T) {
	root := t.TempDir()
	writeOutput(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewApplyUseCase(config.DefaultConfig(), nil, zerolog.Nop()).Apply(ctx, ApplyOptions{Dir: root})
	assert.ErrorIs(t, err, context.Canceled)
}
