// Package detector infers a component's entry module, display name, and
// best-effort properties schema from an extracted upload tree. Detection
// tolerates arbitrary, possibly malformed uploads and degrades to partial
// metadata; only the total absence of an entry candidate is fatal.
package detector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"microfe/services/registry"
)

// Conventional entry filenames probed at the tree root, in priority order.
var entryCandidates = []string{
	"index.tsx", "index.jsx", "index.ts", "index.js",
	"component.tsx", "component.jsx",
	"app.tsx", "app.jsx",
}

var (
	defaultExportRe = regexp.MustCompile(`export\s+default\s+function\s+(\w+)`)
	namedExportRe   = regexp.MustCompile(`export\s+(?:default\s+)?(?:const|function)\s+(\w+)`)
	propsIfaceRe    = regexp.MustCompile(`(?s)interface\s+\w*Props\s*\{([^}]+)\}`)
	propsMemberRe   = regexp.MustCompile(`(\w+)\s*(\??)\s*:\s*([^;,\n]+)`)
)

// Detect inspects the extracted tree rooted at dir. It returns
// registry.ErrNoEntry when no file qualifies as an entry module under any
// resolution rule; schema and name extraction never fail. Repeated calls on
// an identical tree yield identical results.
func Detect(dir string) (*registry.ComponentInfo, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan upload tree: %w", err)
	}

	entry := resolveEntry(dir, files)
	if entry == "" {
		return nil, registry.ErrNoEntry
	}

	content, err := os.ReadFile(filepath.Join(dir, entry))
	if err != nil {
		return nil, fmt.Errorf("read entry file %s: %w", entry, err)
	}
	source := string(content)

	return &registry.ComponentInfo{
		EntryFile:     entry,
		ComponentName: componentName(source, entry),
		PropsSchema:   propsSchema(source),
	}, nil
}

// listFiles returns all regular files below dir as slash-free relative
// paths in lexical walk order, which makes fallback selection stable.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// resolveEntry applies the resolution rules: conventional names at the root
// first, then the first markup-capable file (.tsx/.jsx) in walk order, then
// the first plain .ts/.js file.
func resolveEntry(dir string, files []string) string {
	for _, candidate := range entryCandidates {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
			return candidate
		}
	}

	for _, f := range files {
		switch filepath.Ext(f) {
		case ".tsx", ".jsx":
			return f
		}
	}
	for _, f := range files {
		switch filepath.Ext(f) {
		case ".ts", ".js":
			return f
		}
	}
	return ""
}

func componentName(source, entryFile string) string {
	if m := defaultExportRe.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	if m := namedExportRe.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	base := filepath.Base(entryFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// propsSchema lexically scans the first interface whose name ends in
// "Props". Member types are classified by substring into number, boolean,
// array, or string; a member is required unless marked optional with "?".
// No such interface yields an empty schema, not an error.
func propsSchema(source string) *registry.PropsSchema {
	m := propsIfaceRe.FindStringSubmatch(source)
	if m == nil {
		return registry.EmptyPropsSchema()
	}

	schema := registry.EmptyPropsSchema()
	for _, member := range propsMemberRe.FindAllStringSubmatch(m[1], -1) {
		name := member[1]
		optional := member[2] == "?"
		declared := strings.TrimSpace(member[3])

		schema.Properties[name] = registry.PropType{Type: classifyType(declared)}
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}

func classifyType(declared string) string {
	switch {
	case strings.Contains(declared, "number"):
		return "number"
	case strings.Contains(declared, "boolean"):
		return "boolean"
	case strings.Contains(declared, "[]"):
		return "array"
	default:
		return "string"
	}
}
