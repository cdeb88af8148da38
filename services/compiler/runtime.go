package compiler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"microfe/services/registry"
)

//go:embed sidecar.js
var sidecarSource string

// Runtime is a handle to the JavaScript sidecar process that performs both
// compilation (esbuild) and SSR adapter execution. The sidecar source is
// embedded in the binary, fed to the runtime on stdin, and spoken to over a
// unix-socket HTTP API. One sidecar serves the whole process; requests are
// independent and may run concurrently.
type Runtime struct {
	cmd    *exec.Cmd
	socket string
	client *http.Client
}

// NewRuntime spawns the sidecar under the given runtime command ("node" by
// default; "bun run --smol" also works) and waits for its socket.
func NewRuntime(command string) (*Runtime, error) {
	if strings.TrimSpace(command) == "" {
		command = "node"
	}
	parts := strings.Fields(command)
	args := append(parts[1:], "-")

	socket := filepath.Join(os.TempDir(), fmt.Sprintf("microfe-%d.sock", os.Getpid()))
	os.Remove(socket)

	cmd := exec.Command(parts[0], args...)
	cmd.Env = append(os.Environ(), "MICROFE_SOCKET="+socket)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = strings.NewReader(sidecarSource)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start js runtime %q: %w", parts[0], err)
	}

	if err := waitForSocket(socket, 10*time.Second); err != nil {
		cmd.Process.Kill()
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}

	return &Runtime{
		cmd:    cmd,
		socket: socket,
		client: &http.Client{Transport: transport},
	}, nil
}

// Stop kills the sidecar process and removes its socket.
func (r *Runtime) Stop() error {
	if r == nil || r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	err := r.cmd.Process.Kill()
	os.Remove(r.socket)
	return err
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for sidecar socket at %s", path)
}

// BuildRequest describes one esbuild invocation performed by the sidecar.
type BuildRequest struct {
	Entry      string   `json:"entry"`
	Outfile    string   `json:"outfile"`
	Platform   string   `json:"platform"`
	Format     string   `json:"format"`
	GlobalName string   `json:"globalName,omitempty"`
	External   []string `json:"external,omitempty"`
}

type sidecarError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type buildResponse struct {
	OK    bool          `json:"ok"`
	Error *sidecarError `json:"error"`
}

// Build compiles one entry module into a single output file.
func (r *Runtime) Build(ctx context.Context, req BuildRequest) error {
	if req.Entry == "" || req.Outfile == "" {
		return fmt.Errorf("%w: entry and outfile are required", registry.ErrCompilation)
	}

	var result buildResponse
	if err := r.postJSON(ctx, "/build", req, &result); err != nil {
		return fmt.Errorf("%w: %v", registry.ErrCompilation, err)
	}
	if result.Error != nil {
		return fmt.Errorf("%w: %s", registry.ErrCompilation, result.Error.Message)
	}
	if !result.OK {
		return fmt.Errorf("%w: build of %s produced no output", registry.ErrCompilation, filepath.Base(req.Entry))
	}
	return nil
}

type renderResponse struct {
	HTML  string        `json:"html"`
	Error *sidecarError `json:"error"`
}

// Render executes the SSR adapter at path with the given props and returns
// the produced markup. The sidecar reloads the adapter whenever the file on
// disk changed, so a republished artifact is always observed fresh.
func (r *Runtime) Render(ctx context.Context, path string, props map[string]any) (string, error) {
	req := map[string]any{"path": path, "props": props}

	var result renderResponse
	if err := r.postJSON(ctx, "/render", req, &result); err != nil {
		return "", fmt.Errorf("render request: %w", err)
	}
	if result.Error != nil {
		switch result.Error.Code {
		case "artifact_missing":
			return "", registry.ErrArtifactMissing
		case "invalid_artifact":
			return "", fmt.Errorf("%w: %s", registry.ErrInvalidArtifact, result.Error.Message)
		default:
			return "", fmt.Errorf("failed to render component: %s", result.Error.Message)
		}
	}
	return result.HTML, nil
}

func (r *Runtime) postJSON(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://localhost"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(result)
}
