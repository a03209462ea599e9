package relay

// Channel is the logical name of one relay output.
type Channel string

// The fixed set of relay channels on the board.
const (
	Ignition   Channel = "ignition"
	Starter    Channel = "starter"
	Compressor Channel = "compressor"
	Fan        Channel = "fan"
)

// AllChannels returns every channel in initialisation order.
func AllChannels() []Channel {
	return []Channel{Ignition, Starter, Compressor, Fan}
}

// Valid reports whether c belongs to the fixed channel set.
func (c Channel) Valid() bool {
	switch c {
	case Ignition, Starter, Compressor, Fan:
		return true
	}
	return false
}

// Physical line levels.
const (
	LevelLow  = 0
	LevelHigh = 1
)

// LevelFor returns the line level that puts an active-low relay in the given
// logical state: ON drives LOW, OFF drives HIGH.
func LevelFor(on bool) int {
	if on {
		return LevelLow
	}
	return LevelHigh
}

// StateText renders a logical state the way the HTTP API reports it.
func StateText(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// PinMap maps each channel to its GPIO line offset.
type PinMap map[Channel]int

// Line is one requested GPIO output line.
type Line interface {
	SetValue(value int) error
	Close() error
}

// LineOpener requests output lines from the GPIO capability.
type LineOpener interface {
	// OpenOutput requests line offset as an output already driven to value.
	OpenOutput(offset int, value int) (Line, error)
}

// StatePublisher is notified after every successful channel write.
type StatePublisher interface {
	PublishChannelState(channel Channel, on bool) error
}

// Logger defines the logging interface used by the Board.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
