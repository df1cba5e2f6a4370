package domain

import "strings"

// HostType is the kind of document that triggers a preload.
type HostType string

const (
	HostHTML HostType = "html"
	HostJS   HostType = "js"
	HostCSS  HostType = "css"
)

// PreloadContext describes the caller asking for preload dependencies.
type PreloadContext struct {
	HostID   string
	HostType HostType
}

// ResolveDependenciesFunc returns the dependency tokens to preload for filename.
type ResolveDependenciesFunc func(filename string, deps []string, ctx PreloadContext) []string

// URLContext describes where a built URL is being rendered.
type URLContext struct {
	HostID   string
	HostType HostType
	Type     string // "asset" or "public"
}

// BuiltURL is an override for how a URL is rendered. A nil *BuiltURL means
// the pipeline default applies.
type BuiltURL struct {
	URL      string
	Runtime  string
	Relative bool
}

// RenderBuiltURLFunc lets a plugin override URL rendering.
type RenderBuiltURLFunc func(filename string, ctx URLContext) *BuiltURL

type ModulePreloadConfig struct {
	ResolveDependencies ResolveDependenciesFunc
}

type ExperimentalConfig struct {
	RenderBuiltURL RenderBuiltURLFunc
}

// BuildConfig is the mutable pipeline configuration seen by Configure.
type BuildConfig struct {
	ModulePreload *ModulePreloadConfig
	Experimental  *ExperimentalConfig
}

// ResolvedConfig is the final configuration seen by ConfigResolved.
type ResolvedConfig struct {
	Base      string
	AssetsDir string
	OutDir    string
}

// DefaultGlobal is the window property holding the lookup table.
const DefaultGlobal = "fileHashes"

// LookupExpression renders the runtime expression reading key from the lookup table.
func LookupExpression(global, key string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "window." + global + "['" + r.Replace(key) + "']"
}

// IsLookupExpression reports whether s was produced by LookupExpression.
func IsLookupExpression(global, s string) bool {
	return strings.HasPrefix(s, "window."+global+"[")
}

// StripAssetsDir removes the asset directory prefix from a physical path.
func StripAssetsDir(assetsDir, path string) string {
	if assetsDir == "" {
		return path
	}
	return strings.TrimPrefix(path, strings.TrimSuffix(assetsDir, "/")+"/")
}
