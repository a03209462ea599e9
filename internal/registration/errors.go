package registration

import "errors"

// Domain errors.
var (
	// ErrMissingFields is returned when vin or device_id is empty.
	ErrMissingFields = errors.New("registration: vin and device_id are required")

	// ErrUnauthorizedVIN is returned when a vin other than the configured one registers.
	ErrUnauthorizedVIN = errors.New("registration: vin not authorised")

	// ErrDeviceConflict is returned when the vehicle is bound to another device.
	ErrDeviceConflict = errors.New("registration: vehicle already registered to another device")

	// ErrMissingDeviceID is returned by Verify without a device_id.
	ErrMissingDeviceID = errors.New("registration: device_id is required")

	// ErrNotRegistered is returned when no record exists.
	ErrNotRegistered = errors.New("registration: no vehicle registered")

	// ErrDeviceMismatch is returned when a different device asks to be verified.
	ErrDeviceMismatch = errors.New("registration: device not registered")

	// ErrCorruptRecord is returned when the store holds unreadable data.
	ErrCorruptRecord = errors.New("registration: corrupt record")
)
