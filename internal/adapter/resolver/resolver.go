// Package resolver computes module preload lists from a frozen chunk registry.
package resolver

import (
	"filehash/internal/adapter/registry"
	"filehash/internal/domain"
)

// Resolver answers preload queries against one build's registry. It only
// reads the registry and is safe for concurrent use once the registry is
// frozen.
type Resolver struct {
	reg    *registry.Registry
	global string
}

func New(reg *registry.Registry, global string) *Resolver {
	if global == "" {
		global = domain.DefaultGlobal
	}
	return &Resolver{reg: reg, global: global}
}

// ResolvePreloads returns the dependency tokens to preload for the requested
// physical path. Entry chunks keep the bundler's own list; other chunks get
// one lookup expression per transitively imported chunk and per stylesheet.
// Unknown paths resolve to an empty list.
func (r *Resolver) ResolvePreloads(requested string, nativeDeps []string) []string {
	chunk, ok := r.owner(requested)
	if !ok {
		return []string{}
	}
	if chunk.IsEntry {
		return nativeDeps
	}
	return r.walk(chunk.PhysicalPath,
		func(c domain.Chunk) string { return domain.LookupExpression(r.global, c.LogicalName) },
		func(css string) string {
			key := r.reg.StylesheetKey(css)
			if key == "" {
				return ""
			}
			return domain.LookupExpression(r.global, key)
		},
	)
}

// Closure returns the physical paths of the chunk at physical and everything
// it statically imports, followed in walk order by the stylesheets they pull
// in. Entry chunks are walked like any other.
func (r *Resolver) Closure(physical string) []string {
	chunk, ok := r.owner(physical)
	if !ok {
		return []string{}
	}
	return r.walk(chunk.PhysicalPath,
		func(c domain.Chunk) string { return c.PhysicalPath },
		func(css string) string { return css },
	)
}

// owner finds the chunk for a requested path: first through its logical
// name, then by physical path.
func (r *Resolver) owner(requested string) (domain.Chunk, bool) {
	key := r.reg.Strip(requested)
	if physical, ok := r.reg.ByName(key); ok {
		if c, ok := r.reg.ByFile(physical); ok {
			return c, true
		}
	}
	return r.reg.ByFile(requested)
}

type frame struct {
	file string
	post bool
}

// walk visits the static import graph depth first from root. A chunk's token
// is emitted when it is first reached, its stylesheet tokens after all of its
// imports have been walked. The visited set makes cycles and diamonds
// terminate with each chunk emitted once.
func (r *Resolver) walk(root string, chunkToken func(domain.Chunk) string, cssToken func(string) string) []string {
	visited := make(map[string]bool)
	seen := make(map[string]bool)
	out := []string{}
	emit := func(tok string) {
		if tok == "" || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	stack := []frame{{file: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c, ok := r.reg.ByFile(f.file)
		if f.post {
			for _, css := range c.Stylesheets {
				emit(cssToken(css))
			}
			continue
		}

		if visited[f.file] {
			continue
		}
		visited[f.file] = true
		if !ok {
			continue
		}

		emit(chunkToken(c))
		if c.Kind != domain.KindChunk {
			continue
		}

		stack = append(stack, frame{file: f.file, post: true})
		for i := len(c.StaticImports) - 1; i >= 0; i-- {
			if imp := c.StaticImports[i]; !visited[imp] {
				stack = append(stack, frame{file: imp})
			}
		}
	}
	return out
}
