// Package logging provides structured logging for the VehiCtrl services.
//
// It wraps the standard log/slog package so relayd and registryd emit the
// same JSON (or text) records with service and version fields attached.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "relayd", version)
//	logger.Info("relay set", "channel", "starter", "state", "ON")
//
// Device identifiers are logged masked; never log the full device_id.
package logging
