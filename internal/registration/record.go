package registration

import "time"

// Record is the persisted vehicle-to-device binding.
type Record struct {
	VIN          string    `json:"vin"`
	DeviceID     string    `json:"device_id"`
	RegisteredAt time.Time `json:"registered_at"`
	LastVerified time.Time `json:"last_verified"`
}

// complete reports whether the record carries both identifiers.
func (r *Record) complete() bool {
	return r.VIN != "" && r.DeviceID != ""
}

// Summary is the public view of the binding returned by Status.
type Summary struct {
	Registered   bool
	VIN          string
	DeviceID     string // masked
	RegisteredAt time.Time
	LastVerified time.Time
}

// Outcome distinguishes a first registration from a refresh.
type Outcome int

const (
	OutcomeRegistered Outcome = iota + 1
	OutcomeReregistered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeReregistered:
		return "re-registered"
	}
	return "unknown"
}

// maskPrefix is how many device ID characters Status reveals.
const maskPrefix = 8

// MaskDeviceID returns the first eight characters followed by "...".
// IDs of eight characters or fewer are returned unchanged. The prefix is
// cut from the original bytes, so an invalid UTF-8 byte counts as one
// character and is kept as stored.
func MaskDeviceID(id string) string {
	n := 0
	for i := range id {
		if n == maskPrefix {
			return id[:i] + "..."
		}
		n++
	}
	return id
}
