package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"filehash/internal/domain"
)

type esbuildMetafile struct {
	Outputs map[string]esbuildOutput `json:"outputs"`
}

type esbuildOutput struct {
	Imports []struct {
		Path     string `json:"path"`
		Kind     string `json:"kind"`
		External bool   `json:"external"`
	} `json:"imports"`
	EntryPoint string                     `json:"entryPoint"`
	CSSBundle  string                     `json:"cssBundle"`
	Inputs     map[string]json.RawMessage `json:"inputs"`
}

// ParseEsbuildMetafile converts an esbuild metafile. Output paths are made
// relative to outDir.
func ParseEsbuildMetafile(data []byte, outDir string) (domain.Bundle, error) {
	return parseEsbuild(data, outDir)
}

// parseEsbuild builds one chunk per JS output. Entry chunks are named after
// their output file; shared chunks, which esbuild always calls "chunk", are
// named after their first input module. Name collisions get a numeric suffix.
func parseEsbuild(data []byte, outDir string) (domain.Bundle, error) {
	var meta esbuildMetafile
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Bundle{}, fmt.Errorf("invalid esbuild metafile: %w", err)
	}

	prefix := strings.Trim(path.Clean(strings.ReplaceAll(outDir, "\\", "/")), "/")
	rel := func(p string) string {
		p = strings.TrimPrefix(p, "./")
		if prefix != "" && prefix != "." {
			p = strings.TrimPrefix(p, prefix+"/")
		}
		return p
	}

	keys := make([]string, 0, len(meta.Outputs))
	for k := range meta.Outputs {
		if strings.HasSuffix(k, ".map") {
			continue
		}
		keys = append(keys, k)
	}
	// Entries claim their names before shared chunks.
	sort.Slice(keys, func(i, j int) bool {
		ei, ej := meta.Outputs[keys[i]].EntryPoint != "", meta.Outputs[keys[j]].EntryPoint != ""
		if ei != ej {
			return ei
		}
		return keys[i] < keys[j]
	})

	used := make(map[string]bool)
	unique := func(name string) string {
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		return candidate
	}

	var b domain.Bundle
	for _, k := range keys {
		out := meta.Outputs[k]
		file := rel(k)
		kind := kindOf(file)
		entry := domain.BundleEntry{
			Kind:     kind,
			FileName: file,
			IsEntry:  out.EntryPoint != "",
		}
		if kind == domain.KindChunk {
			entry.Name = unique(esbuildChunkName(file, out))
			for _, imp := range out.Imports {
				if imp.External {
					continue
				}
				switch imp.Kind {
				case "import-statement":
					entry.Imports = append(entry.Imports, rel(imp.Path))
				case "dynamic-import":
					entry.DynamicImports = append(entry.DynamicImports, rel(imp.Path))
				}
			}
			if out.CSSBundle != "" {
				entry.ImportedCSS = []string{rel(out.CSSBundle)}
			}
		}
		b.Entries = append(b.Entries, entry)
	}
	return b, nil
}

func esbuildChunkName(file string, out esbuildOutput) string {
	name := nameFromFile(file)
	if out.EntryPoint != "" || name != "chunk" || len(out.Inputs) == 0 {
		return name
	}
	inputs := make([]string, 0, len(out.Inputs))
	for in := range out.Inputs {
		if strings.HasPrefix(in, "<") {
			continue
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return name
	}
	sort.Strings(inputs)
	base := path.Base(inputs[0])
	if dir := path.Dir(inputs[0]); strings.HasPrefix(base, "index.") && dir != "." && dir != "/" {
		base = path.Base(dir)
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
