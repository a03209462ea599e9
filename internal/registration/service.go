package registration

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is the single-record persistence the service works against.
// FileStore is the production implementation.
type Store interface {
	Load() (*Record, error)
	Save(rec *Record) error
	Delete() (bool, error)
}

// Publisher receives the current registration summary after every change.
type Publisher interface {
	PublishRegistration(s Summary) error
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service implements register, verify, status and reset for one authorised VIN.
type Service struct {
	store         Store
	authorizedVIN string

	// mu serialises load-modify-save cycles.
	mu sync.Mutex

	now       func() time.Time
	logger    Logger
	publisher Publisher
}

// NewService creates a service that accepts only authorizedVIN.
func NewService(store Store, authorizedVIN string) *Service {
	return &Service{
		store:         store,
		authorizedVIN: authorizedVIN,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetPublisher sets where registration changes are announced. Nil disables it.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Register binds deviceID to the authorised vehicle, or refreshes an existing
// binding for the same device. Corrupt stored data is overwritten.
func (s *Service) Register(vin, deviceID string) (Outcome, error) {
	if vin == "" || deviceID == "" {
		return 0, ErrMissingFields
	}
	if vin != s.authorizedVIN {
		s.logger.Warn("registration rejected: unauthorised vin", "vin", vin)
		return 0, ErrUnauthorizedVIN
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Load()
	if errors.Is(err, ErrCorruptRecord) {
		s.logger.Warn("replacing corrupt registration record", "error", err)
		rec, err = nil, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading record: %w", err)
	}

	now := s.now()
	outcome := OutcomeRegistered

	switch {
	case rec == nil:
		rec = &Record{
			VIN:          vin,
			DeviceID:     deviceID,
			RegisteredAt: now,
			LastVerified: now,
		}
	case rec.DeviceID != deviceID:
		s.logger.Warn("registration rejected: vehicle bound to another device",
			"device_id", MaskDeviceID(deviceID))
		return 0, ErrDeviceConflict
	default:
		rec.LastVerified = now
		outcome = OutcomeReregistered
	}

	if err := s.store.Save(rec); err != nil {
		return 0, fmt.Errorf("saving record: %w", err)
	}

	s.logger.Info("device registered",
		"outcome", outcome.String(),
		"device_id", MaskDeviceID(deviceID))
	s.publish(summarize(rec))
	return outcome, nil
}

// Verify checks deviceID against the stored binding and records the time of
// a successful check. It returns a copy of the updated record.
func (s *Service) Verify(deviceID string) (*Record, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Load()
	if err != nil {
		// ErrCorruptRecord passes through; it is not repaired here.
		return nil, fmt.Errorf("loading record: %w", err)
	}
	if rec == nil {
		return nil, ErrNotRegistered
	}
	if rec.DeviceID != deviceID {
		s.logger.Warn("verification failed: device mismatch", "device_id", MaskDeviceID(deviceID))
		return nil, ErrDeviceMismatch
	}

	rec.LastVerified = s.now()
	if err := s.store.Save(rec); err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}

	s.publish(summarize(rec))
	out := *rec
	return &out, nil
}

// Status reports the current binding with the device ID masked.
// A corrupt record reports as not registered.
func (s *Service) Status() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Load()
	if errors.Is(err, ErrCorruptRecord) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("loading record: %w", err)
	}
	return summarize(rec), nil
}

// Reset removes the binding. It reports whether a record was removed.
func (s *Service) Reset() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.Delete()
	if err != nil {
		return false, fmt.Errorf("deleting record: %w", err)
	}
	if removed {
		s.logger.Info("registration reset")
		s.publish(Summary{})
	}
	return removed, nil
}

func (s *Service) publish(sum Summary) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRegistration(sum); err != nil {
		s.logger.Warn("failed to publish registration state", "error", err)
	}
}

// summarize builds the masked public view. A nil record is not registered.
func summarize(rec *Record) Summary {
	if rec == nil {
		return Summary{}
	}
	return Summary{
		Registered:   true,
		VIN:          rec.VIN,
		DeviceID:     MaskDeviceID(rec.DeviceID),
		RegisteredAt: rec.RegisteredAt,
		LastVerified: rec.LastVerified,
	}
}
