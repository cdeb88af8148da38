package compiler

import (
	"strings"
	"testing"
)

func TestRenderSSRWrapperTemplate(t *testing.T) {
	out, err := renderTemplate("ssr_wrapper.js.tmpl", map[string]string{"BundleFile": ssrBundleFile})
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}
	wrapper := string(out)

	for _, want := range []string{
		"require('react')",
		"require('react-dom/server')",
		"'" + ssrBundleFile + "'",
		"renderToString",
		"module.exports = function render(props)",
	} {
		if !strings.Contains(wrapper, want) {
			t.Fatalf("ssr wrapper missing %q:\n%s", want, wrapper)
		}
	}
}

func TestRenderHydrateTemplate(t *testing.T) {
	out, err := renderTemplate("hydrate.js.tmpl", map[string]any{
		"Slug":         "banner",
		"Version":      "1.0.0",
		"GlobalName":   clientGlobalName,
		"Bundle":       "var MicroFEComponent = { default: function Banner() {} };",
		"MaxAttempts":  hydrateMaxAttempts,
		"RetryDelayMs": hydrateRetryMs,
	})
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}
	script := string(out)

	for _, want := range []string{
		`[id^="microfe-banner-1.0.0"]`,
		"window." + clientGlobalName,
		"hydrateRoot",
		"ReactDOM.hydrate(",
		"attempts >= 50",
		"setTimeout(initHydration, 100)",
		"var MicroFEComponent = { default: function Banner() {} };",
		"JSON.parse(container.dataset.props)",
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("hydrate script missing %q", want)
		}
	}

	// The bounded wait must terminate instead of retrying forever.
	if !strings.Contains(script, "giving up") {
		t.Fatal("hydrate script lacks a terminal failure path")
	}
}
