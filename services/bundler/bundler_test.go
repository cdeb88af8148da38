package bundler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	secret, public, err := GenerateKeyMaterial()
	if err != nil {
		t.Fatalf("GenerateKeyMaterial: %v", err)
	}
	t.Setenv(envAgeSecretKey, secret)
	t.Setenv(envAgePublicKey, public)

	signer, err := NewSignerFromEnv()
	if err != nil {
		t.Fatalf("NewSignerFromEnv: %v", err)
	}
	return signer
}

func TestSignerRoundTrip(t *testing.T) {
	signer := newTestSigner(t)

	payload := []byte("manifest payload")
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := signer.Verify(payload, sig, signer.PublicKeyBase64()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := signer.Verify([]byte("tampered"), sig, signer.PublicKeyBase64()); err == nil {
		t.Fatal("Verify accepted a tampered payload")
	}
}

func TestSignerRejectsForeignKey(t *testing.T) {
	signer := newTestSigner(t)

	payload := []byte("payload")
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, foreignPub, err := GenerateKeyMaterial()
	if err != nil {
		t.Fatalf("GenerateKeyMaterial: %v", err)
	}
	if err := signer.Verify(payload, sig, foreignPub); err == nil {
		t.Fatal("Verify accepted a manifest signed by a different key")
	}
}

func TestManifestSigningBytesExcludeSignature(t *testing.T) {
	manifest := &Manifest{
		Version:   "1",
		Name:      "Banner",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Files:     []ManifestFile{{Path: "index.tsx", Size: 10, SHA256: "abc"}},
	}

	before, err := manifest.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	manifest.Signature = "deadbeef"
	after, err := manifest.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("SigningBytes changed after setting the signature")
	}
	if manifest.Signature != "deadbeef" {
		t.Fatal("SigningBytes mutated the manifest")
	}
}

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestPackAndReadBundle(t *testing.T) {
	signer := newTestSigner(t)
	ctx := context.Background()

	source := writeSource(t, map[string]string{
		"index.tsx":          "export default function Banner() {}",
		"style.css":          "body {}",
		"node_modules/x.js":  "ignored",
		".git/config":        "ignored",
		"lib/helpers/fmt.ts": "export const fmt = (v: string) => v;",
	})
	output := filepath.Join(t.TempDir(), "banner.tar.zst")

	manifest, err := Pack(ctx, PackConfig{
		SourceDir: source,
		Name:      "Banner",
		Output:    output,
		Signer:    signer,
		Stdout:    io.Discard,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if manifest.Name != "Banner" || manifest.Version != "1" {
		t.Fatalf("manifest = %+v", manifest)
	}
	if manifest.Signature == "" || manifest.SigningPublicKey == "" {
		t.Fatal("manifest not signed")
	}
	for _, f := range manifest.Files {
		if strings.HasPrefix(f.Path, "node_modules/") || strings.HasPrefix(f.Path, ".git/") {
			t.Fatalf("excluded path %q made it into the manifest", f.Path)
		}
	}
	if len(manifest.Files) != 3 {
		t.Fatalf("manifest has %d files, want 3", len(manifest.Files))
	}

	loaded, contents, err := readBundle(ctx, output)
	if err != nil {
		t.Fatalf("readBundle: %v", err)
	}
	payload, err := loaded.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	if err := signer.Verify(payload, loaded.Signature, loaded.SigningPublicKey); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if string(contents["index.tsx"]) != "export default function Banner() {}" {
		t.Fatalf("bundle content mismatch: %q", contents["index.tsx"])
	}
	if _, ok := contents["lib/helpers/fmt.ts"]; !ok {
		t.Fatal("nested file missing from bundle")
	}
}

func TestPackDefaultsNameToDirectory(t *testing.T) {
	signer := newTestSigner(t)

	parent := t.TempDir()
	source := filepath.Join(parent, "hero-banner")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(source, "index.tsx"), []byte("export default function Hero() {}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	manifest, err := Pack(context.Background(), PackConfig{
		SourceDir: source,
		Output:    filepath.Join(t.TempDir(), "hero.tar.zst"),
		Signer:    signer,
		Stdout:    io.Discard,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if manifest.Name != "hero-banner" {
		t.Fatalf("manifest name = %q, want hero-banner", manifest.Name)
	}
}

func TestPackEmptySourceFails(t *testing.T) {
	signer := newTestSigner(t)

	_, err := Pack(context.Background(), PackConfig{
		SourceDir: t.TempDir(),
		Output:    filepath.Join(t.TempDir(), "empty.tar.zst"),
		Signer:    signer,
		Stdout:    io.Discard,
	})
	if err == nil {
		t.Fatal("Pack succeeded on an empty source directory")
	}
}
