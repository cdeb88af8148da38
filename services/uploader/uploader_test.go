package uploader

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"microfe/services/registry"
)

type fakeCompiler struct {
	mu     sync.Mutex
	builds []string
	err    error
}

func (f *fakeCompiler) Build(ctx context.Context, workspace, slug, version, entryFile string) (*registry.BundleResult, error) {
	f.mu.Lock()
	f.builds = append(f.builds, slug+"@"+version)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &registry.BundleResult{
		SSRPath:    workspace + "/ssr-wrapper.js",
		ClientPath: workspace + "/client.js",
	}, nil
}

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func makeTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content := files[name]
		header := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(makeTar(t, files)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func makeTarZst(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := zw.Write(makeTar(t, files)); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	return buf.Bytes()
}

const componentSource = `interface BannerProps {
  title: string;
}

export default function Banner({ title }: BannerProps) {
  return <div>{title}</div>;
}
`

func newTestUploader(t *testing.T) (*Uploader, *registry.Store, *fakeCompiler) {
	t.Helper()
	store, err := registry.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	compiler := &fakeCompiler{}
	return New(store, compiler, nil), store, compiler
}

func TestUploadFirstPublish(t *testing.T) {
	u, store, _ := newTestUploader(t)

	archive := makeZip(t, map[string]string{"index.tsx": componentSource})
	result, err := u.Upload(context.Background(), archive, "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if result.Slug != "banner" || result.Version != "1.0.0" || result.Name != "Banner" {
		t.Fatalf("Upload result = %+v", result)
	}

	record, err := store.Get("banner")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.LatestVersion != "1.0.0" || len(record.Versions) != 1 {
		t.Fatalf("record = %+v", record)
	}
	if record.Versions[0].PropsSchema == nil {
		t.Fatal("version missing props schema")
	}
}

func TestUploadIncrementsPatch(t *testing.T) {
	u, store, _ := newTestUploader(t)

	archive := makeZip(t, map[string]string{"index.tsx": componentSource})
	ctx := context.Background()

	want := []string{"1.0.0", "1.0.1", "1.0.2"}
	for _, version := range want {
		result, err := u.Upload(ctx, archive, "")
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if result.Version != version {
			t.Fatalf("Upload version = %q, want %q", result.Version, version)
		}
	}

	record, err := store.Get("banner")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(record.Versions) != len(want) {
		t.Fatalf("record has %d versions, want %d", len(record.Versions), len(want))
	}
}

func TestUploadSuppliedNameOverridesDetected(t *testing.T) {
	u, _, _ := newTestUploader(t)

	archive := makeZip(t, map[string]string{"index.tsx": componentSource})
	result, err := u.Upload(context.Background(), archive, "Marketing Hero")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Slug != "marketing-hero" {
		t.Fatalf("slug = %q, want marketing-hero", result.Slug)
	}
}

func TestUploadValidationErrors(t *testing.T) {
	u, _, _ := newTestUploader(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		archive []byte
		want    error
	}{
		{
			name:    "empty archive",
			archive: nil,
			want:    registry.ErrValidation,
		},
		{
			name:    "unsupported format",
			archive: []byte("plain text, not an archive"),
			want:    registry.ErrValidation,
		},
		{
			name:    "no entry file",
			archive: makeZip(t, map[string]string{"readme.md": "# empty"}),
			want:    registry.ErrNoEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := u.Upload(ctx, tt.archive, ""); !errors.Is(err, tt.want) {
				t.Fatalf("Upload error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUploadCompileFailureLeavesStoreUntouched(t *testing.T) {
	u, store, compiler := newTestUploader(t)
	compiler.err = fmt.Errorf("%w: boom", registry.ErrCompilation)

	archive := makeZip(t, map[string]string{"index.tsx": componentSource})
	if _, err := u.Upload(context.Background(), archive, ""); !errors.Is(err, registry.ErrCompilation) {
		t.Fatalf("Upload error = %v, want ErrCompilation", err)
	}
	if _, err := store.Get("banner"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("store mutated despite failed build: %v", err)
	}
}

func TestUploadArchiveFormats(t *testing.T) {
	files := map[string]string{"index.tsx": componentSource}

	tests := []struct {
		name    string
		archive func(*testing.T, map[string]string) []byte
	}{
		{name: "zip", archive: makeZip},
		{name: "tar.gz", archive: makeTarGz},
		{name: "tar.zst", archive: makeTarZst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _, _ := newTestUploader(t)
			result, err := u.Upload(context.Background(), tt.archive(t, files), "")
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if result.Version != "1.0.0" {
				t.Fatalf("version = %q, want 1.0.0", result.Version)
			}
		})
	}
}

func TestUploadRejectsTraversal(t *testing.T) {
	u, _, _ := newTestUploader(t)

	archive := makeTarGz(t, map[string]string{
		"../escape.tsx": componentSource,
	})
	if _, err := u.Upload(context.Background(), archive, ""); !errors.Is(err, registry.ErrValidation) {
		t.Fatalf("Upload error = %v, want ErrValidation", err)
	}
}

func TestUploadConcurrentSameSlug(t *testing.T) {
	u, store, _ := newTestUploader(t)

	archive := makeZip(t, map[string]string{"index.tsx": componentSource})
	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = u.Upload(context.Background(), archive, "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	record, err := store.Get("banner")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(record.Versions) != workers {
		t.Fatalf("record has %d versions, want %d", len(record.Versions), workers)
	}
	seen := map[string]bool{}
	for _, v := range record.Versions {
		if seen[v.Version] {
			t.Fatalf("duplicate version %q", v.Version)
		}
		seen[v.Version] = true
	}
	if record.LatestVersion != record.Versions[workers-1].Version {
		t.Fatalf("latestVersion %q does not match last recorded version %q", record.LatestVersion, record.Versions[workers-1].Version)
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		name   string
		record *registry.Component
		want   string
	}{
		{
			name:   "first publish keeps initial version",
			record: &registry.Component{LatestVersion: "1.0.0"},
			want:   "1.0.0",
		},
		{
			name: "patch increment",
			record: &registry.Component{
				LatestVersion: "1.2.3",
				Versions:      []registry.Version{{Version: "1.2.3"}},
			},
			want: "1.2.4",
		},
		{
			name: "patch rolls past nine",
			record: &registry.Component{
				LatestVersion: "1.2.9",
				Versions:      []registry.Version{{Version: "1.2.9"}},
			},
			want: "1.2.10",
		},
		{
			name: "short version padded",
			record: &registry.Component{
				LatestVersion: "2",
				Versions:      []registry.Version{{Version: "2"}},
			},
			want: "2.0.1",
		},
		{
			name: "garbage parts treated as zero",
			record: &registry.Component{
				LatestVersion: "a.b.c",
				Versions:      []registry.Version{{Version: "a.b.c"}},
			},
			want: "0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextVersion(tt.record); got != tt.want {
				t.Fatalf("nextVersion = %q, want %q", got, tt.want)
			}
		})
	}
}
