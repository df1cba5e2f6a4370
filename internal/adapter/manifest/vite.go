package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"filehash/internal/domain"
)

// viteChunk is one record of Vite's build manifest.
type viteChunk struct {
	File           string   `json:"file"`
	Name           string   `json:"name"`
	Src            string   `json:"src"`
	IsEntry        bool     `json:"isEntry"`
	IsDynamicEntry bool     `json:"isDynamicEntry"`
	Imports        []string `json:"imports"`
	DynamicImports []string `json:"dynamicImports"`
	CSS            []string `json:"css"`
	Assets         []string `json:"assets"`
}

// parseVite converts a Vite manifest. Its imports reference other manifest
// keys, so they are translated to file names here.
func parseVite(data []byte) (domain.Bundle, error) {
	var m map[string]viteChunk
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Bundle{}, fmt.Errorf("invalid vite manifest: %w", err)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	files := func(refs []string) []string {
		var out []string
		for _, ref := range refs {
			if c, ok := m[ref]; ok && c.File != "" {
				out = append(out, c.File)
			}
		}
		return out
	}

	var b domain.Bundle
	seen := make(map[string]bool)
	for _, k := range keys {
		c := m[k]
		if c.File == "" || seen[c.File] {
			continue
		}
		seen[c.File] = true

		kind := kindOf(c.File)
		name := c.Name
		if name == "" && kind == domain.KindChunk {
			name = nameFromFile(c.File)
		}
		b.Entries = append(b.Entries, domain.BundleEntry{
			Kind:           kind,
			Name:           name,
			FileName:       c.File,
			IsEntry:        c.IsEntry,
			IsDynamicEntry: c.IsDynamicEntry,
			Imports:        files(c.Imports),
			DynamicImports: files(c.DynamicImports),
			ImportedCSS:    c.CSS,
		})

		for _, asset := range c.Assets {
			if !seen[asset] {
				seen[asset] = true
				b.Entries = append(b.Entries, domain.BundleEntry{Kind: domain.KindAsset, FileName: asset})
			}
		}
	}
	return b, nil
}
