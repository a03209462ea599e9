package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/technodrive/vehictl/internal/relay"
)

func TestRelayHealth(t *testing.T) {
	srv, _ := testRelayServer(t)

	rec := do(t, srv, http.MethodGet, "/", "")
	wantStatus(t, rec, http.StatusOK)

	resp := decode[RelayHealthResponse](t, rec)
	if resp.Message != relayHealthMessage {
		t.Errorf("message = %q", resp.Message)
	}
	want := RelayConfigEcho{IgnitionPin: 17, StarterPin: 23, CompressorPin: 27, FanPin: 22, Logic: relayLogicNote}
	if resp.Config != want {
		t.Errorf("config = %+v, want %+v", resp.Config, want)
	}
	if resp.MQTT != "" {
		t.Errorf("mqtt = %q, want omitted when MQTT is disabled", resp.MQTT)
	}
}

func TestRelayHealth_MQTTDisconnected(t *testing.T) {
	srv, _ := testRelayServer(t)
	srv.mqtt = stubHealth{err: errBrokerDown}

	rec := do(t, srv, http.MethodGet, "/", "")
	wantStatus(t, rec, http.StatusOK)

	if resp := decode[RelayHealthResponse](t, rec); resp.MQTT != "disconnected" {
		t.Errorf("mqtt = %q, want disconnected", resp.MQTT)
	}
}

func TestControl_Success(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   map[string]string
		levels map[int]int
	}{
		{
			name:   "no fields",
			target: "/control",
			want:   map[string]string{"status": "success"},
		},
		{
			name:   "starter on",
			target: "/control?starter=1",
			want:   map[string]string{"status": "success", "starter": "ON"},
			levels: map[int]int{23: relay.LevelLow},
		},
		{
			name:   "ignition off",
			target: "/control?ignition=0",
			want:   map[string]string{"status": "success", "ignition": "OFF"},
			levels: map[int]int{17: relay.LevelHigh},
		},
		{
			name:   "ac on",
			target: "/control?ac=1",
			want:   map[string]string{"status": "success", "ac_compressor": "ON", "ac_fan": "ON"},
			levels: map[int]int{27: relay.LevelLow, 22: relay.LevelLow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, chip := testRelayServer(t)

			rec := do(t, srv, http.MethodGet, tt.target, "")
			wantStatus(t, rec, http.StatusOK)

			got := decode[map[string]string](t, rec)
			if len(got) != len(tt.want) {
				t.Fatalf("body = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
			for offset, want := range tt.levels {
				if l, _ := chip.Level(offset); l != want {
					t.Errorf("line %d level = %d, want %d", offset, l, want)
				}
			}
		})
	}
}

func TestControl_InvalidField(t *testing.T) {
	tests := []struct {
		target  string
		message string
	}{
		{"/control?starter=2", "Invalid starter value. Use 0 or 1"},
		{"/control?ignition=abc", "Ignition value must be an integer"},
		{"/control?ac=on", "AC value must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			srv, chip := testRelayServer(t)
			before := len(chip.Writes())

			rec := do(t, srv, http.MethodGet, tt.target, "")
			wantStatus(t, rec, http.StatusBadRequest)

			body := decode[Error](t, rec)
			if body.Error != tt.message || body.Code != ErrCodeValidation {
				t.Errorf("body = %+v, want error %q code %q", body, tt.message, ErrCodeValidation)
			}
			if after := len(chip.Writes()); after != before {
				t.Errorf("relay writes %d -> %d on rejected request", before, after)
			}
		})
	}
}

func TestControl_ShortCircuitKeepsEarlierWrites(t *testing.T) {
	srv, chip := testRelayServer(t)

	rec := do(t, srv, http.MethodGet, "/control?starter=1&ignition=5", "")
	wantStatus(t, rec, http.StatusBadRequest)

	body := decode[map[string]any](t, rec)
	if _, ok := body["ignition"]; ok {
		t.Error("response contains ignition key")
	}
	if l, _ := chip.Level(23); l != relay.LevelLow {
		t.Errorf("starter level = %d, want LOW", l)
	}
	if l, _ := chip.Level(17); l != relay.LevelHigh {
		t.Errorf("ignition level = %d, want HIGH", l)
	}
}

func TestControl_HardwareFailure(t *testing.T) {
	srv, chip := testRelayServer(t)
	chip.FailWrite(23, errors.New("i/o error"))

	rec := do(t, srv, http.MethodGet, "/control?starter=1", "")
	wantStatus(t, rec, http.StatusInternalServerError)

	if body := decode[Error](t, rec); body.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, ErrCodeInternal)
	}
}

func TestRelayRoutes(t *testing.T) {
	srv, _ := testRelayServer(t)

	wantStatus(t, do(t, srv, http.MethodPost, "/control?starter=1", ""), http.StatusMethodNotAllowed)
	wantStatus(t, do(t, srv, http.MethodGet, "/register", ""), http.StatusNotFound)
}
