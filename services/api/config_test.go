package api

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(*testing.T, Config)
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg Config) {
				if cfg.Addr != ":8080" {
					t.Fatalf("Addr = %q", cfg.Addr)
				}
				if cfg.DataDir != "./data" {
					t.Fatalf("DataDir = %q", cfg.DataDir)
				}
				if cfg.RuntimeCommand != "node" {
					t.Fatalf("RuntimeCommand = %q", cfg.RuntimeCommand)
				}
				if cfg.MaxUploadBytes != 32<<20 {
					t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
				}
				if cfg.RenderTimeout != 10*time.Second {
					t.Fatalf("RenderTimeout = %v", cfg.RenderTimeout)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"MICROFE_ADDR":                   ":9090",
				"MICROFE_DATA_DIR":               "/var/lib/microfe",
				"MICROFE_RUNTIME":                "bun",
				"MICROFE_MAX_UPLOAD_BYTES":       "1048576",
				"MICROFE_RENDER_TIMEOUT_SECONDS": "3",
				"MICROFE_NATS_URL":               "nats://localhost:4222",
				"MICROFE_CDN_BUCKET":             "microfe-cdn",
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.Addr != ":9090" || cfg.RuntimeCommand != "bun" {
					t.Fatalf("cfg = %+v", cfg)
				}
				if cfg.MaxUploadBytes != 1<<20 {
					t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
				}
				if cfg.RenderTimeout != 3*time.Second {
					t.Fatalf("RenderTimeout = %v", cfg.RenderTimeout)
				}
				if cfg.NATSURL != "nats://localhost:4222" || cfg.CDNBucket != "microfe-cdn" {
					t.Fatalf("cfg = %+v", cfg)
				}
			},
		},
		{
			name:    "invalid upload size",
			env:     map[string]string{"MICROFE_MAX_UPLOAD_BYTES": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "non-positive timeout",
			env:     map[string]string{"MICROFE_RENDER_TIMEOUT_SECONDS": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			tt.check(t, cfg)
		})
	}
}
