package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gos3 "microfe/pkg/s3"
)

const metadataFile = "metadata.json"

// Store owns component metadata and the on-disk artifact layout:
//
//	<root>/components/<slug>/metadata.json
//	<root>/components/<slug>/<version>/   private build outputs
//	<root>/cdn/components/<slug>/<version>/  public assets
//	<root>/uploads/<id>/                  transient extraction workspaces
//
// It is the only component permitted to write metadata.
type Store struct {
	root   string
	mirror *gos3.Client
	bucket string
}

// NewStore initialises a Store rooted at dir, creating the layout if absent.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store root directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	for _, sub := range []string{"components", filepath.Join("cdn", "components"), "uploads"} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrStoreIO, sub, err)
		}
	}
	return &Store{root: abs}, nil
}

// WithMirror configures an optional S3 mirror for public assets. Every
// PublishAsset call additionally uploads the asset to the given bucket under
// components/<slug>/<version>/<filename>.
func (s *Store) WithMirror(client *gos3.Client, bucket string) *Store {
	s.mirror = client
	s.bucket = bucket
	return s
}

// UploadsDir returns the directory the orchestrator creates transient
// extraction workspaces under.
func (s *Store) UploadsDir() string {
	return filepath.Join(s.root, "uploads")
}

func (s *Store) componentDir(slug string) string {
	return filepath.Join(s.root, "components", slug)
}

// VersionOutputDir resolves the private build-output directory for one
// (slug, version) pair. Pure: identical arguments always yield the same path.
func (s *Store) VersionOutputDir(slug, version string) string {
	return filepath.Join(s.componentDir(slug), version)
}

// CDNDir returns the public asset directory for one (slug, version) pair.
func (s *Store) CDNDir(slug, version string) string {
	return filepath.Join(s.root, "cdn", "components", slug, version)
}

// CDNFilePath resolves a published public asset, or ErrNotFound if the name
// escapes the version's asset directory or no such file exists.
func (s *Store) CDNFilePath(slug, version, filename string) (string, error) {
	dir := s.CDNDir(slug, version)
	path := filepath.Join(dir, filepath.Clean("/"+filename))
	if filepath.Dir(path) != dir {
		return "", ErrNotFound
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// Get loads the metadata document for slug. Missing or unparseable metadata
// is reported as ErrNotFound, never escalated.
func (s *Store) Get(slug string) (*Component, error) {
	data, err := os.ReadFile(filepath.Join(s.componentDir(slug), metadataFile))
	if err != nil {
		return nil, ErrNotFound
	}
	var c Component
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Put overwrites the metadata document for slug, creating its directory if
// absent. The write goes through a temp file and rename so readers never
// observe a torn document.
func (s *Store) Put(slug string, c *Component) error {
	if c == nil {
		return fmt.Errorf("%w: nil component", ErrValidation)
	}
	dir := s.componentDir(slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create component dir: %v", ErrStoreIO, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", ErrStoreIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp metadata: %v", ErrStoreIO, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write metadata: %v", ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: close metadata: %v", ErrStoreIO, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, metadataFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: commit metadata: %v", ErrStoreIO, err)
	}
	return nil
}

// ListAll enumerates every known slug and loads each record. A slug
// directory lacking readable metadata is skipped; the listing never fails on
// individual corrupt entries.
func (s *Store) ListAll() ([]*Component, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "components"))
	if err != nil {
		return nil, fmt.Errorf("%w: read components dir: %v", ErrStoreIO, err)
	}

	components := make([]*Component, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		c, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		components = append(components, c)
	}
	return components, nil
}

// PublishAsset copies a named artifact into the public CDN tree for
// (slug, version), overwriting any prior asset at that exact path, and
// mirrors it to S3 when a mirror is configured. It returns the local locator.
func (s *Store) PublishAsset(ctx context.Context, slug, version, filename string, content []byte) (string, error) {
	dir := s.CDNDir(slug, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create cdn dir: %v", ErrStoreIO, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("%w: write asset %s: %v", ErrStoreIO, filename, err)
	}

	if s.mirror != nil {
		sum := sha256.Sum256(content)
		key := fmt.Sprintf("components/%s/%s/%s", slug, version, filename)
		err := s.mirror.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), hex.EncodeToString(sum[:]))
		if err != nil {
			return "", fmt.Errorf("%w: mirror asset %s: %v", ErrStoreIO, filename, err)
		}
	}

	return path, nil
}
