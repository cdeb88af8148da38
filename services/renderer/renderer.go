// Package renderer executes previously compiled SSR adapters. It only reads
// from the store's layout, never mutates it, performs no caching of rendered
// output, and does not retry failed renders.
package renderer

import (
	"context"
	"os"

	"microfe/services/compiler"
	"microfe/services/registry"
)

// Invoker resolves an SSR adapter locator and executes it against
// caller-supplied props through the sidecar runtime.
type Invoker struct {
	runtime *compiler.Runtime
}

// New returns an Invoker backed by the given sidecar runtime.
func New(runtime *compiler.Runtime) *Invoker {
	return &Invoker{runtime: runtime}
}

// Render executes the adapter at ssrPath with props and returns the markup.
// It fails with registry.ErrArtifactMissing when the locator does not
// resolve to a readable file, and registry.ErrInvalidArtifact when the
// loaded value is not an invocable adapter producing a string. The caller's
// context bounds the call.
func (i *Invoker) Render(ctx context.Context, ssrPath string, props map[string]any) (string, error) {
	if info, err := os.Stat(ssrPath); err != nil || info.IsDir() {
		return "", registry.ErrArtifactMissing
	}
	if props == nil {
		props = map[string]any{}
	}
	return i.runtime.Render(ctx, ssrPath, props)
}
