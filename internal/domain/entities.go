package domain

import "time"

// EntryKind tags a bundle entry as code or a plain asset.
type EntryKind string

const (
	KindChunk EntryKind = "chunk"
	KindAsset EntryKind = "asset"
)

// BundleEntry is one output of the bundler, as reported after generation.
type BundleEntry struct {
	Kind           EntryKind `json:"type"`
	Name           string    `json:"name,omitempty"`
	FileName       string    `json:"fileName"`
	IsEntry        bool      `json:"isEntry,omitempty"`
	IsDynamicEntry bool      `json:"isDynamicEntry,omitempty"`
	Imports        []string  `json:"imports,omitempty"`
	DynamicImports []string  `json:"dynamicImports,omitempty"`
	ImportedCSS    []string  `json:"importedCss,omitempty"`
}

// Bundle is the post-build chunk graph handed to GenerateBundle.
type Bundle struct {
	Entries []BundleEntry `json:"entries"`
}

// Chunks returns only the code entries of the bundle.
func (b Bundle) Chunks() []BundleEntry {
	chunks := make([]BundleEntry, 0, len(b.Entries))
	for _, e := range b.Entries {
		if e.Kind == KindChunk {
			chunks = append(chunks, e)
		}
	}
	return chunks
}

// Chunk is the registered view of a code chunk.
type Chunk struct {
	LogicalName   string
	PhysicalPath  string
	IsEntry       bool
	Kind          EntryKind
	StaticImports []string
	Stylesheets   []string
}

// ChunkMeta is what RenderChunk learns about the chunk it is rewriting.
type ChunkMeta struct {
	Name     string
	FileName string
	IsEntry  bool
}

// ImportMap is the document-level specifier map.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// LookupTable maps logical names to file names relative to the asset directory.
type LookupTable map[string]string

// Artifact is a file the transform asks the pipeline to emit.
type Artifact struct {
	FileName string
	Source   []byte
}

// Snapshot is a recorded build, kept for comparing consecutive deployments.
type Snapshot struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	OutDir    string      `json:"out_dir"`
	Lookup    LookupTable `json:"lookup"`
	ImportMap ImportMap   `json:"import_map"`
}

// SnapshotDiff lists how logical names moved between two snapshots.
type SnapshotDiff struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Added    []string      `json:"added,omitempty"`
	Removed  []string      `json:"removed,omitempty"`
	Rehashed []RehashEntry `json:"rehashed,omitempty"`
}

type RehashEntry struct {
	Name string `json:"name"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// Empty reports whether nothing changed.
func (d SnapshotDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Rehashed) == 0
}
