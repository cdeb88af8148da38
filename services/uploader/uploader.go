// Package uploader coordinates one component upload as a single unit of
// work: extraction, detection, version assignment, compilation, metadata
// commit, and workspace cleanup.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"microfe/pkg/bus"
	"microfe/services/detector"
	"microfe/services/registry"
)

var buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "microfe_build_duration_seconds",
	Help:    "Duration of the dual-target component build.",
	Buckets: prometheus.DefBuckets,
})

// Compiler is the build step the orchestrator drives.
type Compiler interface {
	Build(ctx context.Context, workspace, slug, version, entryFile string) (*registry.BundleResult, error)
}

// Result reports one successful publish.
type Result struct {
	Slug    string `json:"slug"`
	Version string `json:"version"`
	Name    string `json:"name"`
}

// Uploader runs the upload pipeline. Publishes for one slug are serialised
// through a keyed critical section; unrelated slugs proceed concurrently.
type Uploader struct {
	store    *registry.Store
	compiler Compiler
	locks    *registry.SlugLocks
	events   *bus.Bus
}

// New returns an Uploader. The event bus is optional; when nil no publish
// events are emitted.
func New(store *registry.Store, compiler Compiler, events *bus.Bus) *Uploader {
	return &Uploader{
		store:    store,
		compiler: compiler,
		locks:    registry.NewSlugLocks(),
		events:   events,
	}
}

// Upload publishes one archive as a new component version. The metadata
// write is the sole mutation point: any earlier failure leaves the store
// untouched. The extraction workspace is removed on every path.
func (u *Uploader) Upload(ctx context.Context, archive []byte, suppliedName string) (Result, error) {
	if len(archive) == 0 {
		return Result{}, fmt.Errorf("%w: empty archive", registry.ErrValidation)
	}

	workspace := filepath.Join(u.store.UploadsDir(), uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: create workspace: %v", registry.ErrStoreIO, err)
	}
	defer os.RemoveAll(workspace)

	if err := extractArchive(archive, workspace); err != nil {
		return Result{}, err
	}

	info, err := detector.Detect(workspace)
	if err != nil {
		return Result{}, err
	}

	name := strings.TrimSpace(suppliedName)
	if name == "" {
		name = info.ComponentName
	}
	slug := registry.NormalizeSlug(name)
	if slug == "" {
		return Result{}, fmt.Errorf("%w: component name %q yields an empty slug", registry.ErrValidation, name)
	}

	unlock := u.locks.Lock(slug)
	defer unlock()

	now := time.Now().UTC()

	record, err := u.store.Get(slug)
	if err != nil {
		record = &registry.Component{
			Name:          info.ComponentName,
			Slug:          slug,
			LatestVersion: "1.0.0",
			Versions:      []registry.Version{},
			Status:        registry.StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	newVersion := nextVersion(record)

	start := time.Now()
	bundle, err := u.compiler.Build(ctx, workspace, slug, newVersion, info.EntryFile)
	if err != nil {
		return Result{}, err
	}
	buildDuration.Observe(time.Since(start).Seconds())

	schema := info.PropsSchema
	if schema == nil {
		schema = registry.EmptyPropsSchema()
	}

	record.Versions = append(record.Versions, registry.Version{
		Version:     newVersion,
		PropsSchema: schema,
		SSRPath:     bundle.SSRPath,
		ClientPath:  bundle.ClientPath,
		CSSPath:     bundle.CSSPath,
		CreatedAt:   now,
		Status:      registry.StatusActive,
	})
	record.LatestVersion = newVersion
	record.UpdatedAt = now

	if err := u.store.Put(slug, record); err != nil {
		return Result{}, err
	}

	result := Result{Slug: slug, Version: newVersion, Name: record.Name}

	if u.events != nil {
		event := map[string]any{
			"slug":         result.Slug,
			"version":      result.Version,
			"name":         result.Name,
			"published_at": now.Format(time.RFC3339),
		}
		if err := u.events.Publish(ctx, bus.SubjectComponentPublished, event); err != nil {
			// Event delivery is best-effort; the publish itself succeeded.
			fmt.Fprintf(os.Stderr, "uploader: publish event for %s@%s failed: %v\n", result.Slug, result.Version, err)
		}
	}

	return result, nil
}

// nextVersion assigns the version for the next publish: the patch component
// of latestVersion incremented by one, except the very first publish of a
// slug, which keeps the record's initial version so the first published
// version is 1.0.0.
func nextVersion(record *registry.Component) string {
	if len(record.Versions) == 0 {
		return record.LatestVersion
	}

	parts := strings.Split(record.LatestVersion, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}

	nums := make([]int, 3)
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			n = 0
		}
		nums[i] = n
	}
	nums[2]++

	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2])
}
