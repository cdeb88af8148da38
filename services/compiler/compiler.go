// Package compiler turns a detected component workspace into the version
// artifacts the registry serves: a server-renderable adapter, a browser
// bundle with an embedded hydration bootstrap, and an optional stylesheet.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"microfe/services/registry"
)

const (
	ssrBundleFile  = "ssr-bundle.js"
	ssrWrapperFile = "ssr-wrapper.js"
	clientFile     = "client.js"
	stylesheetFile = "style.css"

	// Fixed global the browser bundle exposes the component under; the host
	// page loads React/ReactDOM separately.
	clientGlobalName = "MicroFEComponent"

	hydrateMaxAttempts = 50
	hydrateRetryMs     = 100
)

// React is supplied by the execution environment on both targets, never
// embedded in the bundles.
var reactExternals = []string{"react", "react-dom", "react-dom/client"}

// Compiler builds both targets through the sidecar Runtime and writes into
// the Store's layout. It owns the content of version output directories; the
// caller owns workspace cleanup on failure.
type Compiler struct {
	runtime *Runtime
	store   *registry.Store
}

// New returns a Compiler backed by the given sidecar runtime and store.
func New(runtime *Runtime, store *registry.Store) *Compiler {
	return &Compiler{runtime: runtime, store: store}
}

// Build compiles the entry module inside workspace for (slug, version). The
// SSR wrapper stays private in the version output directory; the client
// bundle and stylesheet (when present) are additionally published to the
// public CDN area. Any step failing aborts the whole build.
func (c *Compiler) Build(ctx context.Context, workspace, slug, version, entryFile string) (*registry.BundleResult, error) {
	entryPath := filepath.Join(workspace, entryFile)
	outDir := c.store.VersionOutputDir(slug, version)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", registry.ErrStoreIO, err)
	}

	ssrPath, err := c.buildServerAdapter(ctx, entryPath, outDir)
	if err != nil {
		return nil, err
	}

	clientPath, err := c.buildClientBundle(ctx, entryPath, outDir, slug, version)
	if err != nil {
		return nil, err
	}

	cssPath, err := c.copyStylesheet(ctx, filepath.Dir(entryPath), outDir, slug, version)
	if err != nil {
		return nil, err
	}

	return &registry.BundleResult{
		SSRPath:    ssrPath,
		ClientPath: clientPath,
		CSSPath:    cssPath,
	}, nil
}

// buildServerAdapter compiles the entry closure for the node target (CJS,
// React external) and writes the fixed adapter that turns props into markup
// synchronously. The adapter is the artifact the render invoker executes.
func (c *Compiler) buildServerAdapter(ctx context.Context, entryPath, outDir string) (string, error) {
	err := c.runtime.Build(ctx, BuildRequest{
		Entry:    entryPath,
		Outfile:  filepath.Join(outDir, ssrBundleFile),
		Platform: "node",
		Format:   "cjs",
		External: reactExternals,
	})
	if err != nil {
		return "", err
	}

	wrapper, err := renderTemplate("ssr_wrapper.js.tmpl", map[string]string{"BundleFile": ssrBundleFile})
	if err != nil {
		return "", fmt.Errorf("%w: %v", registry.ErrCompilation, err)
	}

	wrapperPath := filepath.Join(outDir, ssrWrapperFile)
	if err := os.WriteFile(wrapperPath, wrapper, 0o644); err != nil {
		return "", fmt.Errorf("%w: write ssr wrapper: %v", registry.ErrStoreIO, err)
	}
	return wrapperPath, nil
}

// buildClientBundle compiles the browser IIFE and post-processes it into the
// hydration bootstrap: bounded-wait for the React globals, then independent
// hydration of every container prefixed with the (slug, version) pair.
func (c *Compiler) buildClientBundle(ctx context.Context, entryPath, outDir, slug, version string) (string, error) {
	clientPath := filepath.Join(outDir, clientFile)

	err := c.runtime.Build(ctx, BuildRequest{
		Entry:      entryPath,
		Outfile:    clientPath,
		Platform:   "browser",
		Format:     "iife",
		GlobalName: clientGlobalName,
		External:   reactExternals,
	})
	if err != nil {
		return "", err
	}

	bundle, err := os.ReadFile(clientPath)
	if err != nil {
		return "", fmt.Errorf("%w: read client bundle: %v", registry.ErrStoreIO, err)
	}

	wrapped, err := renderTemplate("hydrate.js.tmpl", map[string]any{
		"Slug":         slug,
		"Version":      version,
		"GlobalName":   clientGlobalName,
		"Bundle":       string(bundle),
		"MaxAttempts":  hydrateMaxAttempts,
		"RetryDelayMs": hydrateRetryMs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", registry.ErrCompilation, err)
	}

	if err := os.WriteFile(clientPath, wrapped, 0o644); err != nil {
		return "", fmt.Errorf("%w: write client bundle: %v", registry.ErrStoreIO, err)
	}
	if _, err := c.store.PublishAsset(ctx, slug, version, clientFile, wrapped); err != nil {
		return "", err
	}
	return clientPath, nil
}

// copyStylesheet passes style.css through verbatim when it exists alongside
// the entry module. Absence is not an error.
func (c *Compiler) copyStylesheet(ctx context.Context, entryDir, outDir, slug, version string) (string, error) {
	content, err := os.ReadFile(filepath.Join(entryDir, stylesheetFile))
	if err != nil {
		return "", nil
	}

	cssPath := filepath.Join(outDir, stylesheetFile)
	if err := os.WriteFile(cssPath, content, 0o644); err != nil {
		return "", fmt.Errorf("%w: write stylesheet: %v", registry.ErrStoreIO, err)
	}
	if _, err := c.store.PublishAsset(ctx, slug, version, stylesheetFile, content); err != nil {
		return "", err
	}
	return cssPath, nil
}
