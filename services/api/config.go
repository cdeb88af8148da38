package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls runtime behaviour for the registry service.
type Config struct {
	// Addr is the listen address, default ":8080".
	Addr string
	// DataDir is the store root, default "./data".
	DataDir string
	// RuntimeCommand launches the JS sidecar, default "node".
	RuntimeCommand string
	// MaxUploadBytes bounds the multipart upload size, default 32 MiB.
	MaxUploadBytes int64
	// RenderTimeout bounds one render invocation, default 10s.
	RenderTimeout time.Duration
	// NATSURL enables publish events when set.
	NATSURL string
	// CDNBucket enables the S3 asset mirror when set; the S3 client itself
	// is configured through the S3_* environment variables.
	CDNBucket string
}

// LoadConfig reads configuration from MICROFE_* environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		Addr:           getEnv("MICROFE_ADDR", ":8080"),
		DataDir:        getEnv("MICROFE_DATA_DIR", "./data"),
		RuntimeCommand: getEnv("MICROFE_RUNTIME", "node"),
		NATSURL:        strings.TrimSpace(os.Getenv("MICROFE_NATS_URL")),
		CDNBucket:      strings.TrimSpace(os.Getenv("MICROFE_CDN_BUCKET")),
	}

	maxUpload, err := getEnvInt64("MICROFE_MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return Config{}, err
	}
	if maxUpload <= 0 {
		return Config{}, fmt.Errorf("MICROFE_MAX_UPLOAD_BYTES must be positive, got %d", maxUpload)
	}
	cfg.MaxUploadBytes = maxUpload

	timeoutSec, err := getEnvInt64("MICROFE_RENDER_TIMEOUT_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}
	if timeoutSec <= 0 {
		return Config{}, fmt.Errorf("MICROFE_RENDER_TIMEOUT_SECONDS must be positive, got %d", timeoutSec)
	}
	cfg.RenderTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
