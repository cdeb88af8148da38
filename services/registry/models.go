package registry

import "time"

// Status values carried by components and versions. Informational only;
// no operation is blocked by a deprecated status.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
)

// Component is the registry's metadata document for one logical component.
// LatestVersion always equals the version of the last element of Versions
// after a successful publish.
type Component struct {
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description,omitempty"`
	LatestVersion string    `json:"latestVersion"`
	Versions      []Version `json:"versions"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Version records one successful build. The artifact locators are private
// filesystem paths resolved by the compiler and render invoker; they are
// never exposed through the API.
type Version struct {
	Version     string       `json:"version"`
	PropsSchema *PropsSchema `json:"propsSchema"`
	SSRPath     string       `json:"ssrPath"`
	ClientPath  string       `json:"clientPath"`
	CSSPath     string       `json:"cssPath,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Status      string       `json:"status"`
}

// PropsSchema is a JSON-schema-like structural description of a component's
// properties, inferred best-effort by the detector.
type PropsSchema struct {
	Type       string              `json:"type"`
	Properties map[string]PropType `json:"properties"`
	Required   []string            `json:"required"`
}

// PropType classifies a single property into one of the primitive JSON types
// string, number, boolean, or array.
type PropType struct {
	Type string `json:"type"`
}

// EmptyPropsSchema returns a schema with no properties, used when the
// detector finds no Props declaration.
func EmptyPropsSchema() *PropsSchema {
	return &PropsSchema{
		Type:       "object",
		Properties: map[string]PropType{},
		Required:   []string{},
	}
}

// FindVersion returns the version record matching v, or nil.
func (c *Component) FindVersion(v string) *Version {
	if c == nil {
		return nil
	}
	for i := range c.Versions {
		if c.Versions[i].Version == v {
			return &c.Versions[i]
		}
	}
	return nil
}

// ComponentInfo is the detector's transient output. It is folded into the
// component and version records at publish time, never persisted as-is.
type ComponentInfo struct {
	EntryFile     string
	ComponentName string
	PropsSchema   *PropsSchema
}

// BundleResult carries the compiler's artifact locators. The SSR wrapper and
// client bundle are required; the stylesheet is optional.
type BundleResult struct {
	SSRPath    string
	ClientPath string
	CSSPath    string
}
