package relay

import "errors"

var (
	// ErrHardwareInit is returned by Initialize when a GPIO line cannot be
	// acquired or driven to its safe level.
	ErrHardwareInit = errors.New("relay: hardware initialisation failed")

	// ErrAlreadyInitialized is returned when Initialize runs a second time.
	ErrAlreadyInitialized = errors.New("relay: already initialised")

	// ErrNotInitialized is returned when a channel is used before Initialize.
	ErrNotInitialized = errors.New("relay: not initialised")

	// ErrUnknownChannel is returned for a channel outside the fixed set.
	ErrUnknownChannel = errors.New("relay: unknown channel")

	// ErrInvalidPinMap is returned by NewBoard for incomplete or overlapping wiring.
	ErrInvalidPinMap = errors.New("relay: invalid pin map")

	// ErrWriteFailed wraps a failed line write.
	ErrWriteFailed = errors.New("relay: line write failed")
)
