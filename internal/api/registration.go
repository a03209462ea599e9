package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/technodrive/vehictl/internal/registration"
)

// Verification failure reasons.
const (
	reasonMissingDeviceID = "missing_device_id"
	reasonNotRegistered   = "not_registered"
	reasonDeviceMismatch  = "device_mismatch"
	reasonInternal        = "internal_error"
)

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	VIN      string `json:"vin"`
	DeviceID string `json:"device_id"`
}

// StatusMessage is the {status, message} body used by several endpoints.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RegistrationHealthResponse is the body of GET / on registryd.
type RegistrationHealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
	MQTT    string `json:"mqtt,omitempty"`
}

// VerifyResponse is the body of GET /verify, for success and failure alike.
type VerifyResponse struct {
	Verified     bool       `json:"verified"`
	VIN          string     `json:"vin,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Message      string     `json:"message"`
}

// StatusResponse is the body of GET /status. The device ID is masked.
type StatusResponse struct {
	Registered   bool       `json:"registered"`
	VIN          string     `json:"vin,omitempty"`
	DeviceID     string     `json:"device_id,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	LastVerified *time.Time `json:"last_verified,omitempty"`
}

func (s *Server) handleRegistrationHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RegistrationHealthResponse{
		Status:  "ok",
		Message: "VehiCtrl registration server is running",
		Version: s.version,
		MQTT:    s.mqttState(r.Context()),
	})
}

// handleRegister binds a device to the authorised vehicle.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	outcome, err := s.registration.Register(req.VIN, req.DeviceID)
	switch {
	case err == nil:
	case errors.Is(err, registration.ErrMissingFields):
		writeValidationError(w, "vin and device_id are required")
		return
	case errors.Is(err, registration.ErrUnauthorizedVIN):
		writeUnauthorized(w, "Invalid VIN/Chassis number")
		return
	case errors.Is(err, registration.ErrDeviceConflict):
		writeConflict(w, "This VIN is already registered to another device")
		return
	default:
		s.logger.Error("registration failed", "error", err, "request_id", requestID(r))
		writeInternalError(w, "Registration failed")
		return
	}

	msg := "Device registered successfully"
	if outcome == registration.OutcomeReregistered {
		msg = "Device re-registered successfully"
	}
	writeJSON(w, http.StatusOK, StatusMessage{Status: outcome.String(), Message: msg})
}

// handleVerify checks the device_id query parameter against the binding.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registration.Verify(r.URL.Query().Get("device_id"))
	if err != nil {
		status, reason, msg := verifyFailure(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("verification failed", "error", err, "request_id", requestID(r))
		}
		writeJSON(w, status, VerifyResponse{Verified: false, Reason: reason, Message: msg})
		return
	}

	registeredAt := rec.RegisteredAt
	writeJSON(w, http.StatusOK, VerifyResponse{
		Verified:     true,
		VIN:          rec.VIN,
		RegisteredAt: &registeredAt,
		Message:      "Device verified",
	})
}

func verifyFailure(err error) (status int, reason, message string) {
	switch {
	case errors.Is(err, registration.ErrMissingDeviceID):
		return http.StatusBadRequest, reasonMissingDeviceID, "device_id is required"
	case errors.Is(err, registration.ErrNotRegistered):
		return http.StatusNotFound, reasonNotRegistered, "No vehicle registration found"
	case errors.Is(err, registration.ErrDeviceMismatch):
		return http.StatusForbidden, reasonDeviceMismatch, "This device is not authorized for this vehicle"
	}
	return http.StatusInternalServerError, reasonInternal, "Verification failed"
}

// handleStatus reports the current binding.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := s.registration.Status()
	if err != nil {
		s.logger.Error("reading registration status failed", "error", err, "request_id", requestID(r))
		writeInternalError(w, "failed to read registration")
		return
	}

	if !sum.Registered {
		writeJSON(w, http.StatusOK, StatusResponse{Registered: false})
		return
	}

	registeredAt, lastVerified := sum.RegisteredAt, sum.LastVerified
	writeJSON(w, http.StatusOK, StatusResponse{
		Registered:   true,
		VIN:          sum.VIN,
		DeviceID:     sum.DeviceID,
		RegisteredAt: &registeredAt,
		LastVerified: &lastVerified,
	})
}

// handleReset removes the binding if there is one.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	removed, err := s.registration.Reset()
	if err != nil {
		s.logger.Error("registration reset failed", "error", err, "request_id", requestID(r))
		writeInternalError(w, "failed to reset registration")
		return
	}

	if !removed {
		writeJSON(w, http.StatusOK, StatusMessage{Status: "no_action", Message: "No registration to reset"})
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Status: "reset", Message: "Registration cleared"})
}
