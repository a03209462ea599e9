package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/technodrive/vehictl/internal/control"
	"github.com/technodrive/vehictl/internal/infrastructure/config"
	"github.com/technodrive/vehictl/internal/infrastructure/logging"
	"github.com/technodrive/vehictl/internal/registration"
	"github.com/technodrive/vehictl/internal/relay"
)

const testVIN = "EE90-9073699"

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Host: "127.0.0.1",
		Port: 0,
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  5,
		},
	}
}

var testPins = relay.PinMap{
	relay.Ignition:   17,
	relay.Starter:    23,
	relay.Compressor: 27,
	relay.Fan:        22,
}

// testRelayServer builds a relayd server over simulated GPIO lines.
func testRelayServer(t *testing.T) (*Server, *relay.MemoryOpener) {
	t.Helper()

	chip := relay.NewMemoryOpener()
	board, err := relay.NewBoard(chip, testPins)
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	if err := board.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { board.Shutdown() })

	srv, err := New(Deps{
		Config:     testAPIConfig(),
		Logger:     logging.Discard(),
		Version:    "test",
		Controller: control.NewController(board),
		Pins:       board.Pins(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, chip
}

// testRegistrationServer builds a registryd server over a temp-dir store.
func testRegistrationServer(t *testing.T) (*Server, *registration.FileStore) {
	t.Helper()

	store := registration.NewFileStore(filepath.Join(t.TempDir(), "registration.json"))
	srv, err := New(Deps{
		Config:       testAPIConfig(),
		Logger:       logging.Discard(),
		Version:      "test",
		Registration: registration.NewService(store, testVIN),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// stubHealth stands in for the MQTT client's broker link.
type stubHealth struct{ err error }

func (h stubHealth) HealthCheck(context.Context) error { return h.err }

var errBrokerDown = errors.New("broker down")
