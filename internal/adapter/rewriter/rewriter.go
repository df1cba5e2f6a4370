// Package rewriter replaces hashed module specifiers in emitted chunk code
// with stable logical names.
package rewriter

import (
	"regexp"
	"strings"
)

const quoted = `(?:'([^'\n]*)'|"([^"\n]*)"|` + "`([^`]*)`)"

var (
	// import x from '...', import{a}from"...", import * as ns from `...`
	staticImport = regexp.MustCompile(`\bimport(?:\s*[{*][^'"` + "`" + `;()]*?|\s+[^'"` + "`" + `;()]*?)\s*from\s*` + quoted)
	// import('...')
	dynamicImport = regexp.MustCompile(`\bimport\(\s*` + quoted + `\s*\)`)

	placeholder = regexp.MustCompile(`-!~\{.*?\}~`)
)

// NameLookup resolves already-hashed file names to logical names.
type NameLookup interface {
	NameForFile(file string) (string, bool)
	ByName(name string) (string, bool)
}

type Option func(*Rewriter)

// WithNameLookup resolves specifiers through a chunk registry before falling
// back to the textual rule. Needed once placeholders have been replaced by
// real hashes.
func WithNameLookup(l NameLookup) Option {
	return func(r *Rewriter) { r.lookup = l }
}

// Rewriter is a pure text transform; it holds no per-chunk state.
type Rewriter struct {
	lookup NameLookup
}

func New(opts ...Option) *Rewriter {
	r := &Rewriter{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite returns code with every static and dynamic import specifier
// replaced by its logical name. Text that does not match passes through.
func (r *Rewriter) Rewrite(code string) string {
	out, _ := r.RewriteN(code)
	return out
}

// RewriteN is Rewrite plus the number of specifiers changed.
func (r *Rewriter) RewriteN(code string) (string, int) {
	code, n1 := r.replace(code, staticImport)
	code, n2 := r.replace(code, dynamicImport)
	return code, n1 + n2
}

func (r *Rewriter) replace(code string, re *regexp.Regexp) (string, int) {
	matches := re.FindAllStringSubmatchIndex(code, -1)
	if len(matches) == 0 {
		return code, 0
	}

	var b strings.Builder
	b.Grow(len(code))
	last, n := 0, 0
	for _, m := range matches {
		start, end := specifierSpan(m)
		if start < 0 {
			continue
		}
		name, ok := r.LogicalName(code[start:end])
		if !ok || name == code[start:end] {
			continue
		}
		b.WriteString(code[last:start])
		b.WriteString(name)
		last = end
		n++
	}
	if n == 0 {
		return code, 0
	}
	b.WriteString(code[last:])
	return b.String(), n
}

// specifierSpan picks whichever quote group matched.
func specifierSpan(m []int) (int, int) {
	for g := len(m)/2 - 3; g < len(m)/2; g++ {
		if m[2*g] >= 0 {
			return m[2*g], m[2*g+1]
		}
	}
	return -1, -1
}

// moduleExts are the extensions stripped from a specifier's last segment.
// Any other dot belongs to the name.
var moduleExts = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx"}

// LogicalName derives the logical name of a path specifier: its last path
// segment without module extension or bundler hash placeholder. Bare
// specifiers (packages, names already rewritten), URLs and interpolated
// templates are not rewritten.
func (r *Rewriter) LogicalName(specifier string) (string, bool) {
	if !isPathSpecifier(specifier) || strings.Contains(specifier, "${") {
		return "", false
	}

	base := specifier[strings.LastIndexAny(specifier, `/\`)+1:]
	if r.lookup != nil {
		if _, ok := r.lookup.ByName(base); ok {
			return base, true
		}
		if name, ok := r.lookup.NameForFile(base); ok {
			return name, true
		}
	}

	name := base
	for _, ext := range moduleExts {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			name = strings.TrimSuffix(name, ext)
			break
		}
	}
	if loc := placeholder.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + name[loc[1]:]
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// isPathSpecifier reports whether s points at a file: ./x, ../x, /x or a
// Windows style .\x. Protocol-relative URLs are excluded.
func isPathSpecifier(s string) bool {
	if strings.HasPrefix(s, "//") {
		return false
	}
	return strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`)
}
