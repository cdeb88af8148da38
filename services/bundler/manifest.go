package bundler

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the signed metadata included in a component bundle.
type Manifest struct {
	Version          string         `yaml:"version"`
	Name             string         `yaml:"name,omitempty"`
	CreatedAt        time.Time      `yaml:"created_at"`
	SigningPublicKey string         `yaml:"signing_public_key,omitempty"`
	Signature        string         `yaml:"signature,omitempty"`
	Files            []ManifestFile `yaml:"files"`
}

// ManifestFile describes a single source file within the bundle.
type ManifestFile struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// SigningBytes marshals the manifest without its signature for
// signing and verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}
