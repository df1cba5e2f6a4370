//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"
	"time"

	"github.com/rs/zerolog"

	"filehash/internal/adapter/manifest"
	"filehash/internal/adapter/memstore"
	"filehash/internal/domain"
	"filehash/internal/usecase"
)

var (
	store  *memstore.MemoryStore
	plugin *usecase.Plugin
	loads  int
)

func init() {
	store = memstore.NewMemoryStore()
	plugin = usecase.NewPlugin(usecase.PluginOptions{}, zerolog.Nop())
}

func main() {
	c := make(chan struct{})

	js.Global().Set("filehashLoad", js.FuncOf(loadManifest))
	js.Global().Set("filehashResolve", js.FuncOf(resolvePreloads))
	js.Global().Set("filehashRewrite", js.FuncOf(rewriteCode))
	js.Global().Set("filehashInject", js.FuncOf(injectHTML))
	js.Global().Set("filehashDiff", js.FuncOf(diffLoads))
	js.Global().Set("filehashClear", js.FuncOf(clearState))

	<-c
}

// loadManifest(manifestJSON, [base], [assetsDir]) registers a build.
func loadManifest(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: filehashLoad(manifestJSON, [base], [assetsDir])")
	}

	base, assetsDir := "/", "assets"
	if len(args) > 1 {
		base = args[1].String()
	}
	if len(args) > 2 {
		assetsDir = args[2].String()
	}

	bundle, err := manifest.Parse([]byte(args[0].String()), manifest.FormatAuto, "")
	if err != nil {
		return makeError("manifest: " + err.Error())
	}

	plugin.ConfigResolved(domain.ResolvedConfig{Base: base, AssetsDir: assetsDir})
	if _, err := plugin.GenerateBundle(bundle); err != nil {
		return makeError(err.Error())
	}
	plugin.Registry().Freeze()

	lookup, importMap := plugin.Views()
	loads++
	store.SaveSnapshot(domain.Snapshot{
		ID:        fmt.Sprintf("%06d", loads),
		CreatedAt: time.Now(),
		Lookup:    lookup,
		ImportMap: importMap,
	})

	return makeResult(map[string]interface{}{
		"success":   true,
		"names":     plugin.Registry().Names(),
		"importMap": importMap,
		"lookup":    lookup,
	})
}

// resolvePreloads(path, [nativeDepsJSON]) returns the preload tokens.
func resolvePreloads(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: filehashResolve(path, [nativeDepsJSON])")
	}

	var native []string
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1].String()), &native); err != nil {
			return makeError("nativeDeps: " + err.Error())
		}
	}

	deps := plugin.ResolveDependencies(args[0].String(), native, domain.PreloadContext{HostType: domain.HostHTML})
	return makeResult(map[string]interface{}{
		"path": args[0].String(),
		"deps": deps,
	})
}

func rewriteCode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: filehashRewrite(code)")
	}
	return makeResult(map[string]interface{}{
		"code": plugin.RenderChunk(args[0].String(), domain.ChunkMeta{}),
	})
}

func injectHTML(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: filehashInject(html)")
	}
	html, err := plugin.TransformIndexHTML(args[0].String())
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"html": html,
	})
}

// diffLoads compares the last two loaded manifests.
func diffLoads(this js.Value, args []js.Value) interface{} {
	diff, err := usecase.NewDiffUseCase(store).Latest()
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"diff": diff,
	})
}

func clearState(this js.Value, args []js.Value) interface{} {
	store = memstore.NewMemoryStore()
	plugin = usecase.NewPlugin(usecase.PluginOptions{}, zerolog.Nop())
	loads = 0
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
