package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/technodrive/vehictl/internal/api"
	"github.com/technodrive/vehictl/internal/registration"
)

// writeTestConfig points VEHICTL_CONFIG at a registryd config. extra is
// appended as further top-level YAML.
func writeTestConfig(t *testing.T, port int, storePath string, extra ...string) {
	t.Helper()
	content := fmt.Sprintf(`
registration:
  api:
    host: "127.0.0.1"
    port: %d
  store_path: %q
logging:
  level: error
  format: text
  output: stdout
`, port, storePath)
	for _, e := range extra {
		content += e
	}

	path := filepath.Join(t.TempDir(), "vehictl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VEHICTL_CONFIG", path)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("VEHICTL_CONFIG", "/nonexistent/path/vehictl.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() error = nil, want config error")
	}
}

func TestRun_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	writeTestConfig(t, ln.Addr().(*net.TCPAddr).Port, filepath.Join(t.TempDir(), "registration.json"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); !errors.Is(err, api.ErrListen) {
		t.Fatalf("run() error = %v, want ErrListen", err)
	}
}

func TestRun_RegistersAuthorisedVIN(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	storePath := filepath.Join(t.TempDir(), "data", "registration.json")
	writeTestConfig(t, port, storePath)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/register", port)
	body := `{"vin":"` + authorizedVIN + `","device_id":"device-under-test"}`

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Post(url, "application/json", strings.NewReader(body))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if resp == nil {
		cancel()
		t.Fatal("registryd did not become ready")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /register status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	rec, err := registration.NewFileStore(storePath).Load()
	if err != nil || rec == nil || rec.DeviceID != "device-under-test" {
		t.Errorf("stored record = %+v, err = %v", rec, err)
	}
}

func TestRun_ServesWithBrokerDown(t *testing.T) {
	port := freePort(t)
	writeTestConfig(t, port, filepath.Join(t.TempDir(), "registration.json"), fmt.Sprintf(`
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: %d
    client_id: "vehictl-test"
  connect_timeout: 1
`, freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if resp == nil {
		cancel()
		select {
		case err := <-errCh:
			t.Fatalf("registryd did not serve with the broker down: run() = %v", err)
		case <-time.After(15 * time.Second):
			t.Fatal("registryd did not serve with the broker down")
		}
	}

	var health api.RegistrationHealthResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if decodeErr != nil {
		t.Errorf("decoding GET / body: %v", decodeErr)
	}
	if health.Status != "ok" || health.MQTT != "disconnected" {
		t.Errorf("GET / = %+v, want status ok and mqtt disconnected", health)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestShutdownSignals_Hangup(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("SIGHUP did not cancel the run context")
	}
}

func TestStateMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := stateMessage(registration.Summary{Registered: true, DeviceID: "abcdefgh..."}, now)
	if !msg.Registered || msg.DeviceID != "abcdefgh..." || !msg.Timestamp.Equal(now) {
		t.Errorf("stateMessage = %+v", msg)
	}

	if msg := stateMessage(registration.Summary{}, now); msg.Registered || msg.DeviceID != "" {
		t.Errorf("stateMessage(absent) = %+v", msg)
	}
}
