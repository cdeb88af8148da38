package uploader

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"microfe/services/registry"
)

// Archive format magics: zip, gzip, zstd.
var (
	zipMagic  = []byte{0x50, 0x4b, 0x03, 0x04}
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// extractArchive unpacks the uploaded archive bytes into dir. Supported
// formats are zip, tar.gz, and tar.zst, sniffed by magic bytes. Entry paths
// are validated against directory traversal.
func extractArchive(archive []byte, dir string) error {
	switch {
	case bytes.HasPrefix(archive, zipMagic):
		return extractZip(archive, dir)
	case bytes.HasPrefix(archive, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(archive))
		if err != nil {
			return fmt.Errorf("%w: open gzip archive: %v", registry.ErrValidation, err)
		}
		defer r.Close()
		return extractTar(r, dir)
	case bytes.HasPrefix(archive, zstdMagic):
		r, err := zstd.NewReader(bytes.NewReader(archive))
		if err != nil {
			return fmt.Errorf("%w: open zstd archive: %v", registry.ErrValidation, err)
		}
		defer r.Close()
		return extractTar(r, dir)
	default:
		return fmt.Errorf("%w: unsupported archive format", registry.ErrValidation)
	}
}

func extractZip(archive []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("%w: open zip archive: %v", registry.ErrValidation, err)
	}

	for _, f := range zr.File {
		target, err := securePath(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %q: %w", f.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("mkdir %q: %w", filepath.Dir(f.Name), err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %q: %w", f.Name, err)
		}
		if err := writeEntry(target, rc); err != nil {
			rc.Close()
			return fmt.Errorf("write %q: %w", f.Name, err)
		}
		rc.Close()
	}
	return nil
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: read tar entry: %v", registry.ErrValidation, err)
		}

		target, err := securePath(dir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %q: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir %q: %w", filepath.Dir(header.Name), err)
			}
			if err := writeEntry(target, tr); err != nil {
				return fmt.Errorf("write %q: %w", header.Name, err)
			}
		}
	}
	return nil
}

func securePath(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.Clean(name))
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: archive entry %q escapes the workspace", registry.ErrValidation, name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
