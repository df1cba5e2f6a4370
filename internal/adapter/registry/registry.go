// Package registry indexes the chunks of one build by logical name and by
// physical path.
package registry

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"filehash/internal/domain"
)

var (
	ErrFrozen       = errors.New("registry: frozen")
	ErrNameConflict = errors.New("registry: logical name already bound to another file")
)

// Registry maps logical names to physical paths and physical paths to chunks.
// It is populated sequentially during bundle generation and frozen before any
// concurrent reads.
type Registry struct {
	assetsDir string

	names       map[string]string       // logical name -> physical path
	namesByFile map[string]string       // physical path without assets dir -> logical name
	chunks      map[string]domain.Chunk // physical path -> chunk
	stylesheets map[string]bool         // logical keys that name stylesheets

	frozen atomic.Bool
}

func New(assetsDir string) *Registry {
	return &Registry{
		assetsDir:   assetsDir,
		names:       make(map[string]string),
		namesByFile: make(map[string]string),
		chunks:      make(map[string]domain.Chunk),
		stylesheets: make(map[string]bool),
	}
}

// AssetsDir returns the asset directory physical paths are relative to.
func (r *Registry) AssetsDir() string {
	return r.assetsDir
}

// Register indexes one bundle entry. Unnamed chunks are skipped; assets
// contribute only their stylesheet associations. Registering the same entry
// twice is a no-op. A name already bound to another file keeps its first
// binding; every such clash is reported as an ErrNameConflict, and the rest
// of the entry is still indexed.
func (r *Registry) Register(entry domain.BundleEntry) error {
	if r.frozen.Load() {
		return ErrFrozen
	}

	var conflicts []error
	if entry.Kind == domain.KindChunk && entry.Name != "" {
		if prev, ok := r.names[entry.Name]; ok && prev != entry.FileName {
			conflicts = append(conflicts, fmt.Errorf("%w: %q is %s, not %s", ErrNameConflict, entry.Name, prev, entry.FileName))
		} else {
			r.names[entry.Name] = entry.FileName
			r.namesByFile[r.Strip(entry.FileName)] = entry.Name
			r.chunks[entry.FileName] = domain.Chunk{
				LogicalName:   entry.Name,
				PhysicalPath:  entry.FileName,
				IsEntry:       entry.IsEntry,
				Kind:          domain.KindChunk,
				StaticImports: append([]string(nil), entry.Imports...),
				Stylesheets:   append([]string(nil), entry.ImportedCSS...),
			}
		}
	}

	for _, css := range entry.ImportedCSS {
		key := r.StylesheetKey(css)
		if key == "" {
			continue
		}
		if prev, ok := r.names[key]; ok && prev != css {
			conflicts = append(conflicts, fmt.Errorf("%w: %q is %s, not %s", ErrNameConflict, key, prev, css))
			continue
		}
		r.names[key] = css
		r.namesByFile[r.Strip(css)] = key
		r.stylesheets[key] = true
	}
	return errors.Join(conflicts...)
}

// RegisterBundle registers every entry of b. Name conflicts do not stop
// registration; they are returned so the caller can report them. err is set
// only when nothing could be registered.
func (r *Registry) RegisterBundle(b domain.Bundle) (conflicts []error, err error) {
	for _, e := range b.Entries {
		regErr := r.Register(e)
		switch {
		case regErr == nil:
		case errors.Is(regErr, ErrFrozen):
			return conflicts, regErr
		default:
			if joined, ok := regErr.(interface{ Unwrap() []error }); ok {
				conflicts = append(conflicts, joined.Unwrap()...)
			} else {
				conflicts = append(conflicts, regErr)
			}
		}
	}
	return conflicts, nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Strip removes the asset directory prefix from a physical path.
func (r *Registry) Strip(physical string) string {
	return domain.StripAssetsDir(r.assetsDir, physical)
}

// StylesheetKey derives the hash-independent key of a stylesheet path:
// assets/app-a1b2c3.css becomes app.css.
func (r *Registry) StylesheetKey(physical string) string {
	file := r.Strip(physical)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if i := strings.LastIndex(stem, "-"); i >= 0 {
		stem = stem[:i]
	}
	if stem == "" {
		return ""
	}
	if ext == "" {
		ext = ".css"
	}
	return stem + ext
}

// ByName returns the physical path bound to a logical name.
func (r *Registry) ByName(name string) (string, bool) {
	p, ok := r.names[name]
	return p, ok
}

// ByFile returns the chunk stored under a physical path.
func (r *Registry) ByFile(physical string) (domain.Chunk, bool) {
	c, ok := r.chunks[physical]
	return c, ok
}

// NameForFile returns the logical name of a file given with or without the
// asset directory prefix.
func (r *Registry) NameForFile(file string) (string, bool) {
	name, ok := r.namesByFile[r.Strip(file)]
	return name, ok
}

// IsStylesheet reports whether a logical name is a stylesheet key.
func (r *Registry) IsStylesheet(name string) bool {
	return r.stylesheets[name]
}

// Names returns all logical names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of logical names.
func (r *Registry) Len() int {
	return len(r.names)
}
