package relay

import (
	"errors"
	"fmt"
	"sync"
)

// channelLine holds one acquired line and its last commanded state.
// mu serialises writes to the line.
type channelLine struct {
	mu     sync.Mutex
	offset int
	line   Line
	on     bool
}

// Board is the relay driver adapter. It owns every GPIO line it acquires
// and must be released with Shutdown on all exit paths.
//
// All public methods are thread-safe.
type Board struct {
	opener LineOpener
	pins   PinMap

	mu          sync.RWMutex // protects channels and initialized
	channels    map[Channel]*channelLine
	initialized bool

	logger    Logger
	publisher StatePublisher
}

// NewBoard creates a board for the given wiring. Every channel must be
// mapped to a distinct, non-negative line offset.
// No hardware is touched until Initialize.
func NewBoard(opener LineOpener, pins PinMap) (*Board, error) {
	if opener == nil {
		return nil, fmt.Errorf("%w: line opener is required", ErrInvalidPinMap)
	}
	if err := validatePins(pins); err != nil {
		return nil, err
	}

	owned := make(PinMap, len(pins))
	for ch, offset := range pins {
		owned[ch] = offset
	}

	return &Board{
		opener: opener,
		pins:   owned,
		logger: noopLogger{},
	}, nil
}

func validatePins(pins PinMap) error {
	used := make(map[int]Channel, len(pins))
	for ch, offset := range pins {
		if !ch.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidPinMap, ErrUnknownChannel, ch)
		}
		if offset < 0 {
			return fmt.Errorf("%w: %s has negative line %d", ErrInvalidPinMap, ch, offset)
		}
		if other, dup := used[offset]; dup {
			return fmt.Errorf("%w: line %d shared by %s and %s", ErrInvalidPinMap, offset, other, ch)
		}
		used[offset] = ch
	}
	for _, ch := range AllChannels() {
		if _, ok := pins[ch]; !ok {
			return fmt.Errorf("%w: %s is not mapped", ErrInvalidPinMap, ch)
		}
	}
	return nil
}

// SetLogger sets the logger for the board.
func (b *Board) SetLogger(logger Logger) {
	b.logger = logger
}

// SetPublisher sets an optional publisher notified after each write.
func (b *Board) SetPublisher(p StatePublisher) {
	b.publisher = p
}

// Pins returns a copy of the channel wiring.
func (b *Board) Pins() PinMap {
	out := make(PinMap, len(b.pins))
	for ch, offset := range b.pins {
		out[ch] = offset
	}
	return out
}

// Initialize acquires every channel as an output at the inactive (HIGH)
// level. If any line fails, lines already acquired are released and the
// returned error wraps ErrHardwareInit.
func (b *Board) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return ErrAlreadyInitialized
	}

	channels := make(map[Channel]*channelLine, len(b.pins))
	for _, ch := range AllChannels() {
		offset := b.pins[ch]
		line, err := b.opener.OpenOutput(offset, LevelFor(false))
		if err != nil {
			if relErr := releaseAll(channels); relErr != nil {
				b.logger.Warn("releasing lines after failed initialisation", "error", relErr)
			}
			return fmt.Errorf("%w: %s (line %d): %w", ErrHardwareInit, ch, offset, err)
		}
		channels[ch] = &channelLine{offset: offset, line: line}
	}

	b.channels = channels
	b.initialized = true

	b.logger.Info("relay board initialised (active low)",
		"ignition", b.pins[Ignition],
		"starter", b.pins[Starter],
		"compressor", b.pins[Compressor],
		"fan", b.pins[Fan],
	)
	return nil
}

// SetChannel drives a channel to the given logical state and returns the
// state now in effect.
func (b *Board) SetChannel(ch Channel, on bool) (bool, error) {
	if !ch.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}

	b.mu.RLock()
	if !b.initialized {
		b.mu.RUnlock()
		return false, ErrNotInitialized
	}
	cl := b.channels[ch]

	level := LevelFor(on)
	cl.mu.Lock()
	err := cl.line.SetValue(level)
	if err == nil {
		cl.on = on
	}
	cl.mu.Unlock()
	b.mu.RUnlock()

	if err != nil {
		return false, fmt.Errorf("%w: %s (line %d): %w", ErrWriteFailed, ch, cl.offset, err)
	}

	b.logger.Info("relay set", "channel", ch, "state", StateText(on), "level", level)

	if b.publisher != nil {
		if pubErr := b.publisher.PublishChannelState(ch, on); pubErr != nil {
			b.logger.Warn("publishing relay state", "channel", ch, "error", pubErr)
		}
	}

	return on, nil
}

// State returns the last commanded logical state of a channel.
func (b *Board) State(ch Channel) (bool, error) {
	if !ch.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return false, ErrNotInitialized
	}

	cl := b.channels[ch]
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.on, nil
}

// Shutdown drives every line back to OFF and releases it. It is safe to
// call more than once and on a board that never initialised.
func (b *Board) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil
	}

	err := releaseAll(b.channels)
	b.channels = nil
	b.initialized = false

	if err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	b.logger.Info("relay board released")
	return nil
}

// releaseAll switches each line off before closing it.
func releaseAll(channels map[Channel]*channelLine) error {
	var errs []error
	for ch, cl := range channels {
		cl.mu.Lock()
		if err := cl.line.SetValue(LevelFor(false)); err != nil {
			errs = append(errs, fmt.Errorf("%s off: %w", ch, err))
		}
		if err := cl.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", ch, err))
		}
		cl.on = false
		cl.mu.Unlock()
	}
	return errors.Join(errs...)
}
