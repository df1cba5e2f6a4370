package port

// SpecifierRewriter rewrites module specifiers in one chunk's code. It must
// be a pure text transform, safe to call from several goroutines.
type SpecifierRewriter interface {
	Rewrite(code string) string

	// RewriteN also reports how many specifiers changed.
	RewriteN(code string) (string, int)
}
