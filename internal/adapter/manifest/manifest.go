// Package manifest turns bundler build manifests into a domain.Bundle.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"filehash/internal/domain"
)

var ErrUnknownFormat = errors.New("manifest: unknown format")

type Format string

const (
	FormatAuto    Format = "auto"
	FormatBundle  Format = "bundle"
	FormatVite    Format = "vite"
	FormatEsbuild Format = "esbuild"
)

// candidates are probed in order by Detect, relative to the output directory.
var candidates = []struct {
	path   string
	format Format
}{
	{".vite/manifest.json", FormatVite},
	{"manifest.json", FormatVite},
	{"filehash-bundle.json", FormatBundle},
	{"metafile.json", FormatEsbuild},
}

// Detect finds a manifest inside outDir.
func Detect(outDir string) (string, Format, error) {
	for _, c := range candidates {
		p := filepath.Join(outDir, filepath.FromSlash(c.path))
		if _, err := os.Stat(p); err == nil {
			return p, c.format, nil
		}
	}
	return "", "", fmt.Errorf("no manifest found in %s (tried .vite/manifest.json, manifest.json, filehash-bundle.json, metafile.json)", outDir)
}

// Load reads and parses a manifest file. outDir is the bundler output
// directory, used to make esbuild output paths relative.
func Load(file string, format Format, outDir string) (domain.Bundle, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	b, err := Parse(data, format, outDir)
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("%s: %w", file, err)
	}
	return b, nil
}

func Parse(data []byte, format Format, outDir string) (domain.Bundle, error) {
	if format == "" || format == FormatAuto {
		format = Sniff(data)
	}
	switch format {
	case FormatBundle:
		return parseBundle(data)
	case FormatVite:
		return parseVite(data)
	case FormatEsbuild:
		return parseEsbuild(data, outDir)
	default:
		return domain.Bundle{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Sniff guesses the format from the top-level JSON keys.
func Sniff(data []byte) Format {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return ""
	}
	if _, ok := top["outputs"]; ok {
		return FormatEsbuild
	}
	if _, ok := top["entries"]; ok {
		return FormatBundle
	}
	return FormatVite
}

func parseBundle(data []byte) (domain.Bundle, error) {
	var b domain.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.Bundle{}, fmt.Errorf("invalid bundle manifest: %w", err)
	}
	for i, e := range b.Entries {
		if e.Kind == "" {
			b.Entries[i].Kind = kindOf(e.FileName)
		}
	}
	return b, nil
}

// kindOf classifies an output file by extension.
func kindOf(file string) domain.EntryKind {
	switch path.Ext(file) {
	case ".js", ".mjs", ".cjs":
		return domain.KindChunk
	default:
		return domain.KindAsset
	}
}

// nameFromFile strips directory, extension and the trailing -hash segment:
// assets/main-abc123.js becomes main.
func nameFromFile(file string) string {
	base := path.Base(file)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if i := strings.LastIndex(stem, "-"); i > 0 {
		stem = stem[:i]
	}
	return stem
}
