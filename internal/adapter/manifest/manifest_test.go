package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehash/internal/domain"
)

const viteManifest = `{
  "src/main.ts": {
    "file": "assets/main-abc123.js",
    "name": "main",
    "src": "src/main.ts",
    "isEntry": true,
    "imports": ["_utils-def456.js"],
    "dynamicImports": ["src/lazy.ts"],
    "css": ["assets/main-0a0a.css"],
    "assets": ["assets/logo-77.svg"]
  },
  "_utils-def456.js": {
    "file": "assets/utils-def456.js",
    "name": "utils",
    "css": ["assets/utils-xyz.css"]
  },
  "src/lazy.ts": {
    "file": "assets/lazy-999.js",
    "src": "src/lazy.ts",
    "isDynamicEntry": true,
    "imports": ["_utils-def456.js", "_missing.js"]
  },
  "src/style.css": {
    "file": "assets/style-1.css",
    "src": "src/style.css",
    "isEntry": true
  }
}`

func entryByFile(t *testing.T, b domain.Bundle, file string) domain.BundleEntry {
	t.Helper()
	for _, e := range b.Entries {
		if e.FileName == file {
			return e
		}
	}
	t.Fatalf("no entry for %s", file)
	return domain.BundleEntry{}
}

func TestParseVite(t *testing.T) {
	b, err := Parse([]byte(viteManifest), FormatVite, "dist")
	require.NoError(t, err)
	require.Len(t, b.Entries, 5)

	main := entryByFile(t, b, "assets/main-abc123.js")
	assert.Equal(t, domain.KindChunk, main.Kind)
	assert.Equal(t, "main", main.Name)
	assert.True(t, main.IsEntry)
	assert.Equal(t, []string{"assets/utils-def456.js"}, main.Imports)
	assert.Equal(t, []string{"assets/lazy-999.js"}, main.DynamicImports)
	assert.Equal(t, []string{"assets/main-0a0a.css"}, main.ImportedCSS)

	lazy := entryByFile(t, b, "assets/lazy-999.js")
	assert.Equal(t, "lazy", lazy.Name, "name derived from file when manifest has none")
	assert.True(t, lazy.IsDynamicEntry)
	assert.Equal(t, []string{"assets/utils-def456.js"}, lazy.Imports, "unknown manifest keys are dropped")

	style := entryByFile(t, b, "assets/style-1.css")
	assert.Equal(t, domain.KindAsset, style.Kind)
	assert.Empty(t, style.Name)

	logo := entryByFile(t, b, "assets/logo-77.svg")
	assert.Equal(t, domain.KindAsset, logo.Kind)
}

const esbuildMetafileJSON = `{
  "inputs": {},
  "outputs": {
    "dist/assets/main-ABC.js": {
      "imports": [
        {"path": "dist/assets/chunk-XYZ.js", "kind": "import-statement"},
        {"path": "dist/assets/page-QQQ.js", "kind": "dynamic-import"},
        {"path": "react", "kind": "import-statement", "external": true}
      ],
      "entryPoint": "src/main.js",
      "cssBundle": "dist/assets/main-CSS.css",
      "inputs": {"src/main.js": {"bytesInOutput": 10}}
    },
    "dist/assets/main-ABC.js.map": {"imports": [], "inputs": {}},
    "dist/assets/page-QQQ.js": {
      "imports": [{"path": "dist/assets/chunk-XYZ.js", "kind": "import-statement"}],
      "entryPoint": "src/page.js",
      "inputs": {"src/page.js": {"bytesInOutput": 10}}
    },
    "dist/assets/chunk-XYZ.js": {
      "imports": [],
      "inputs": {"src/lib/format.js": {"bytesInOutput": 5}, "src/lib/util.js": {"bytesInOutput": 5}}
    },
    "dist/assets/chunk-UVW.js": {
      "imports": [],
      "inputs": {"node_modules/react/index.js": {"bytesInOutput": 5}}
    },
    "dist/assets/chunk-RST.js": {
      "imports": [],
      "inputs": {"src/main/format.js": {"bytesInOutput": 5}}
    },
    "dist/assets/main-CSS.css": {"imports": [], "inputs": {}}
  }
}`

func TestParseEsbuild(t *testing.T) {
	b, err := Parse([]byte(esbuildMetafileJSON), FormatAuto, "dist")
	require.NoError(t, err)
	require.Len(t, b.Entries, 6)

	main := entryByFile(t, b, "assets/main-ABC.js")
	assert.Equal(t, "main", main.Name)
	assert.True(t, main.IsEntry)
	assert.Equal(t, []string{"assets/chunk-XYZ.js"}, main.Imports)
	assert.Equal(t, []string{"assets/page-QQQ.js"}, main.DynamicImports)
	assert.Equal(t, []string{"assets/main-CSS.css"}, main.ImportedCSS)

	assert.Equal(t, "format", entryByFile(t, b, "assets/chunk-RST.js").Name)
	assert.Equal(t, "react", entryByFile(t, b, "assets/chunk-UVW.js").Name)
	assert.Equal(t, "format_2", entryByFile(t, b, "assets/chunk-XYZ.js").Name)
	assert.Equal(t, domain.KindAsset, entryByFile(t, b, "assets/main-CSS.css").Kind)
}

func TestParseBundle(t *testing.T) {
	data := `{"entries":[
	  {"type":"chunk","name":"main","fileName":"assets/main-1.js","isEntry":true,"imports":["assets/u-2.js"]},
	  {"name":"u","fileName":"assets/u-2.js","importedCss":["assets/u-3.css"]},
	  {"fileName":"assets/u-3.css"}
	]}`
	assert.Equal(t, FormatBundle, Sniff([]byte(data)))

	b, err := Parse([]byte(data), FormatAuto, "")
	require.NoError(t, err)
	require.Len(t, b.Entries, 3)
	assert.Equal(t, domain.KindChunk, b.Entries[1].Kind)
	assert.Equal(t, domain.KindAsset, b.Entries[2].Kind)
	assert.Equal(t, []string{"assets/u-3.css"}, b.Entries[1].ImportedCSS)
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse([]byte(`{}`), Format("webpack"), "")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Parse([]byte(`not json`), FormatAuto, "")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDetectAndLoad(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Detect(dir)
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".vite"), 0755))
	p := filepath.Join(dir, ".vite", "manifest.json")
	require.NoError(t, os.WriteFile(p, []byte(viteManifest), 0644))

	found, format, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, p, found)
	assert.Equal(t, FormatVite, format)

	b, err := Load(found, format, dir)
	require.NoError(t, err)
	assert.Len(t, b.Chunks(), 3)
}

func TestNameFromFile(t *testing.T) {
	assert.Equal(t, "main", nameFromFile("assets/main-abc123.js"))
	assert.Equal(t, "my-lib", nameFromFile("assets/my-lib-abc.js"))
	assert.Equal(t, "plain", nameFromFile("plain.js"))
}
