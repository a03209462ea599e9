package api

import (
	"errors"
	"net/http"

	"github.com/technodrive/vehictl/internal/control"
	"github.com/technodrive/vehictl/internal/relay"
)

const (
	relayHealthMessage = "VehiCtrl Raspberry Pi Server is running (Active Low Config)"
	relayLogicNote     = "Active Low (0=ON, 1=OFF)"
)

// RelayConfigEcho is the wiring reported by GET / on relayd.
type RelayConfigEcho struct {
	IgnitionPin   int    `json:"ignition_pin"`
	StarterPin    int    `json:"starter_pin"`
	CompressorPin int    `json:"compressor_pin"`
	FanPin        int    `json:"fan_pin"`
	Logic         string `json:"logic"`
}

// RelayHealthResponse is the body of GET / on relayd.
type RelayHealthResponse struct {
	Message string          `json:"message"`
	Config  RelayConfigEcho `json:"config"`
	MQTT    string          `json:"mqtt,omitempty"`
}

// handleRelayHealth reports liveness and the pin map.
func (s *Server) handleRelayHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RelayHealthResponse{
		Message: relayHealthMessage,
		Config: RelayConfigEcho{
			IgnitionPin:   s.pins[relay.Ignition],
			StarterPin:    s.pins[relay.Starter],
			CompressorPin: s.pins[relay.Compressor],
			FanPin:        s.pins[relay.Fan],
			Logic:         relayLogicNote,
		},
		MQTT: s.mqttState(r.Context()),
	})
}

// handleControl applies starter, ignition and ac query parameters.
//
// The body is {"status":"success"} plus one "ON"/"OFF" entry per applied
// field. An invalid field answers 400; earlier fields stay applied.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	states, err := s.controller.Apply(r.URL.Query())
	if err != nil {
		var fe *control.FieldError
		if errors.As(err, &fe) {
			writeValidationError(w, fe.Error())
			return
		}
		s.logger.Error("relay control failed",
			"error", err,
			"applied", states,
			"request_id", requestID(r),
		)
		writeInternalError(w, "failed to drive relay")
		return
	}

	resp := make(map[string]string, len(states)+1)
	resp["status"] = "success"
	for k, v := range states {
		resp[k] = v
	}
	writeJSON(w, http.StatusOK, resp)
}
