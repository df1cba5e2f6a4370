// Package emitter serializes a chunk registry into an import map and a
// runtime lookup table, and injects them into HTML documents.
package emitter

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"

	"filehash/internal/domain"
)

var (
	headOpen   = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	priorBlock = regexp.MustCompile(`(?s)\n?` + markerOpen + `.*?` + markerClose + `\n?`)
)

const (
	markerOpen  = "<!-- filehash -->"
	markerClose = "<!-- /filehash -->"
)

// Source is the read side of a chunk registry.
type Source interface {
	Names() []string
	ByName(name string) (string, bool)
	IsStylesheet(name string) bool
	Strip(physical string) string
}

type Options struct {
	Base        string
	AssetsDir   string
	Global      string
	Externalize bool
}

type Emitter struct {
	opts Options
}

func New(opts Options) *Emitter {
	if opts.Global == "" {
		opts.Global = domain.DefaultGlobal
	}
	return &Emitter{opts: opts}
}

// ImportMap maps every non-stylesheet logical name to its public URL.
func (e *Emitter) ImportMap(src Source) domain.ImportMap {
	m := domain.ImportMap{Imports: make(map[string]string)}
	for _, name := range src.Names() {
		if src.IsStylesheet(name) {
			continue
		}
		physical, _ := src.ByName(name)
		m.Imports[name] = e.opts.Base + physical
	}
	return m
}

// LookupTable maps every logical name, stylesheets included, to its file
// name relative to the asset directory.
func (e *Emitter) LookupTable(src Source) domain.LookupTable {
	t := make(domain.LookupTable)
	for _, name := range src.Names() {
		physical, _ := src.ByName(name)
		t[name] = src.Strip(physical)
	}
	return t
}

// Payloads holds the serialized forms of both views.
type Payloads struct {
	ImportMap   []byte
	LookupTable []byte
}

func (e *Emitter) Payloads(src Source) (Payloads, error) {
	im, err := json.MarshalIndent(e.ImportMap(src), "", "  ")
	if err != nil {
		return Payloads{}, fmt.Errorf("failed to encode import map: %w", err)
	}
	lt, err := json.MarshalIndent(e.LookupTable(src), "", "  ")
	if err != nil {
		return Payloads{}, fmt.Errorf("failed to encode lookup table: %w", err)
	}
	return Payloads{ImportMap: im, LookupTable: lt}, nil
}

// LookupScript is the classic script that publishes the lookup table.
func (e *Emitter) LookupScript(p Payloads) string {
	return "window." + e.opts.Global + " = " + string(p.LookupTable) + ";\n"
}

// Artifacts returns the files to emit in externalized mode: the lookup table
// script and the import map JSON, both content addressed. Inline mode emits
// nothing.
func (e *Emitter) Artifacts(src Source) ([]domain.Artifact, error) {
	if !e.opts.Externalize {
		return nil, nil
	}
	p, err := e.Payloads(src)
	if err != nil {
		return nil, err
	}
	script := []byte(e.LookupScript(p))
	return []domain.Artifact{
		{FileName: e.hashedName("filehashes", ".js", script), Source: script},
		{FileName: e.hashedName("importmap", ".json", p.ImportMap), Source: p.ImportMap},
	}, nil
}

func (e *Emitter) hashedName(stem, ext string, data []byte) string {
	name := fmt.Sprintf("%s-%016x%s", stem, xxh3.Hash(data), ext)
	return path.Join(e.opts.AssetsDir, name)
}

// Markup renders the tags to place at the top of the document head. The
// lookup table comes first so module scripts resolved through the import map
// can read it.
func (e *Emitter) Markup(src Source) (string, error) {
	p, err := e.Payloads(src)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if e.opts.Externalize {
		script := []byte(e.LookupScript(p))
		fmt.Fprintf(&b, "<script src=%q></script>\n", e.opts.Base+e.hashedName("filehashes", ".js", script))
	} else {
		b.WriteString("<script>\n")
		b.WriteString(e.LookupScript(p))
		b.WriteString("</script>\n")
	}
	b.WriteString("<script type=\"importmap\">\n")
	b.Write(p.ImportMap)
	b.WriteString("\n</script>")
	return b.String(), nil
}

// Inject inserts Markup right after the first <head> opening tag, replacing
// any block a previous run injected. It reports false and returns html
// unchanged when the document has no head tag.
func (e *Emitter) Inject(html string, src Source) (string, bool, error) {
	if headOpen.FindStringIndex(html) == nil {
		return html, false, nil
	}
	markup, err := e.Markup(src)
	if err != nil {
		return html, false, err
	}
	clean := priorBlock.ReplaceAllString(html, "")
	loc := headOpen.FindStringIndex(clean)
	block := "\n" + markerOpen + "\n" + markup + "\n" + markerClose + "\n"
	return clean[:loc[1]] + block + clean[loc[1]:], true, nil
}

// Injected reports whether html already carries an injected block.
func Injected(html string) bool {
	return strings.Contains(html, markerOpen)
}
