package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestWalkerFiltersByPattern(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"assets/main-abc.js":   "",
		"assets/lib-def.mjs":   "",
		"assets/app-123.css":   "",
		"assets/vendor/x-1.js": "",
		"legacy/old.js":        "",
		"index.html":           "",
	})

	w := NewWalker([]string{"**/*.js", "**/*.mjs"}, []string{"legacy/**"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
		assert.True(t, filepath.IsAbs(f.Path))
	}
	sort.Strings(rel)
	assert.Equal(t, []string{"assets/lib-def.mjs", "assets/main-abc.js", "assets/vendor/x-1.js"}, rel)
}

func TestWalkerDefaultsToEverything(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "", "b/c.txt": ""})

	files, err := NewWalker(nil, nil).Walk(root)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, ValidatePatterns([]string{"**/*.js", "assets/*.css"}))
	assert.Error(t, ValidatePatterns([]string{"[unclosed"}))
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.js")

	require.NoError(t, WriteFile(p, []byte("one")))
	require.NoError(t, WriteFile(p, []byte("two")))

	got, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "two", got)

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
