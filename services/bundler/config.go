package bundler

import (
	"io"
	"net/http"
	"time"
)

// PackConfig configures bundle creation.
type PackConfig struct {
	SourceDir string
	Name      string
	Output    string
	Signer    *Signer
	Now       func() time.Time
	Stdout    io.Writer
}

// PushConfig configures publishing a bundle to the registry.
type PushConfig struct {
	BundlePath string
	APIBaseURL string
	Name       string
	Signer     *Signer
	HTTPClient *http.Client
	Stdout     io.Writer
}
