package relay

import (
	"errors"
	"sync"
	"testing"
)

// defaultPins mirrors the reference vehicle wiring.
func defaultPins() PinMap {
	return PinMap{
		Ignition:   17,
		Starter:    23,
		Compressor: 27,
		Fan:        22,
	}
}

func newTestBoard(t *testing.T) (*Board, *MemoryOpener) {
	t.Helper()
	chip := NewMemoryOpener()
	board, err := NewBoard(chip, defaultPins())
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if err := board.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { board.Shutdown() })
	return board, chip
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (p *recordingPublisher) PublishChannelState(ch Channel, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, string(ch)+"="+StateText(on))
	return p.err
}

func TestLevelFor(t *testing.T) {
	if got := LevelFor(true); got != LevelLow {
		t.Errorf("LevelFor(true) = %d, want LOW", got)
	}
	if got := LevelFor(false); got != LevelHigh {
		t.Errorf("LevelFor(false) = %d, want HIGH", got)
	}
}

func TestNewBoard_InvalidPins(t *testing.T) {
	tests := []struct {
		name string
		pins PinMap
	}{
		{"missing fan", PinMap{Ignition: 17, Starter: 23, Compressor: 27}},
		{"duplicate line", PinMap{Ignition: 17, Starter: 17, Compressor: 27, Fan: 22}},
		{"negative line", PinMap{Ignition: -1, Starter: 23, Compressor: 27, Fan: 22}},
		{"unknown channel", PinMap{Ignition: 17, Starter: 23, Compressor: 27, Fan: 22, "horn": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoard(NewMemoryOpener(), tt.pins)
			if !errors.Is(err, ErrInvalidPinMap) {
				t.Errorf("NewBoard() error = %v, want ErrInvalidPinMap", err)
			}
		})
	}
}

func TestInitialize_DrivesAllChannelsOff(t *testing.T) {
	board, chip := newTestBoard(t)

	for ch, offset := range defaultPins() {
		level, ok := chip.Level(offset)
		if !ok {
			t.Fatalf("%s line %d was never requested", ch, offset)
		}
		if level != LevelHigh {
			t.Errorf("%s level = %d, want HIGH (off)", ch, level)
		}
		on, err := board.State(ch)
		if err != nil || on {
			t.Errorf("State(%s) = %v, %v; want false, nil", ch, on, err)
		}
	}
}

func TestInitialize_Twice(t *testing.T) {
	board, _ := newTestBoard(t)
	if err := board.Initialize(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitialize_FailureReleasesAcquiredLines(t *testing.T) {
	chip := NewMemoryOpener()
	chip.FailOpen(27, errors.New("no such device"))

	board, err := NewBoard(chip, defaultPins())
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}

	err = board.Initialize()
	if !errors.Is(err, ErrHardwareInit) {
		t.Fatalf("Initialize() error = %v, want ErrHardwareInit", err)
	}

	// Ignition and starter were acquired before the compressor failed.
	for _, offset := range []int{17, 23} {
		if chip.Held(offset) {
			t.Errorf("line %d still held after failed initialisation", offset)
		}
	}

	if _, err := board.SetChannel(Ignition, true); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetChannel() after failed init error = %v, want ErrNotInitialized", err)
	}
}

func TestSetChannel_ActiveLow(t *testing.T) {
	tests := []struct {
		channel Channel
		on      bool
		level   int
	}{
		{Ignition, true, LevelLow},
		{Ignition, false, LevelHigh},
		{Starter, true, LevelLow},
		{Starter, false, LevelHigh},
		{Compressor, true, LevelLow},
		{Fan, false, LevelHigh},
	}

	for _, tt := range tests {
		t.Run(string(tt.channel)+"_"+StateText(tt.on), func(t *testing.T) {
			board, chip := newTestBoard(t)

			got, err := board.SetChannel(tt.channel, tt.on)
			if err != nil {
				t.Fatalf("SetChannel() error = %v", err)
			}
			if got != tt.on {
				t.Errorf("SetChannel() = %v, want %v", got, tt.on)
			}

			level, _ := chip.Level(defaultPins()[tt.channel])
			if level != tt.level {
				t.Errorf("line level = %d, want %d", level, tt.level)
			}

			state, _ := board.State(tt.channel)
			if state != tt.on {
				t.Errorf("State() = %v, want %v", state, tt.on)
			}
		})
	}
}

func TestSetChannel_UnknownChannel(t *testing.T) {
	board, _ := newTestBoard(t)
	if _, err := board.SetChannel("horn", true); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SetChannel(horn) error = %v, want ErrUnknownChannel", err)
	}
	if _, err := board.State("horn"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("State(horn) error = %v, want ErrUnknownChannel", err)
	}
}

func TestSetChannel_WriteFailureKeepsState(t *testing.T) {
	board, chip := newTestBoard(t)
	chip.FailWrite(23, errors.New("i/o error"))

	if _, err := board.SetChannel(Starter, true); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("SetChannel() error = %v, want ErrWriteFailed", err)
	}
	if on, _ := board.State(Starter); on {
		t.Error("State(starter) = ON after failed write, want OFF")
	}
}

func TestSetChannel_Publishes(t *testing.T) {
	board, _ := newTestBoard(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	board.SetPublisher(pub)

	if _, err := board.SetChannel(Ignition, true); err != nil {
		t.Fatalf("SetChannel() error = %v (publish failures must not fail writes)", err)
	}

	if len(pub.states) != 1 || pub.states[0] != "ignition=ON" {
		t.Errorf("published = %v, want [ignition=ON]", pub.states)
	}
}

func TestSetChannel_ConcurrentWritesSerialised(t *testing.T) {
	board, chip := newTestBoard(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			board.SetChannel(Fan, on)
		}(i%2 == 0)
	}
	wg.Wait()

	on, _ := board.State(Fan)
	level, _ := chip.Level(22)
	if level != LevelFor(on) {
		t.Errorf("line level %d disagrees with recorded state %v", level, on)
	}
}

func TestShutdown_ReleasesLinesOff(t *testing.T) {
	chip := NewMemoryOpener()
	board, err := NewBoard(chip, defaultPins())
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if err := board.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := board.SetChannel(Starter, true); err != nil {
		t.Fatalf("SetChannel() error = %v", err)
	}

	if err := board.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for ch, offset := range defaultPins() {
		if chip.Held(offset) {
			t.Errorf("%s line still held after Shutdown", ch)
		}
		if level, _ := chip.Level(offset); level != LevelHigh {
			t.Errorf("%s level = %d after Shutdown, want HIGH", ch, level)
		}
	}

	if err := board.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v, want nil", err)
	}
	if _, err := board.SetChannel(Starter, true); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetChannel() after Shutdown error = %v, want ErrNotInitialized", err)
	}
}

func TestShutdown_NeverInitialised(t *testing.T) {
	board, err := NewBoard(NewMemoryOpener(), defaultPins())
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if err := board.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestPins_ReturnsCopy(t *testing.T) {
	board, _ := newTestBoard(t)
	pins := board.Pins()
	pins[Fan] = 99

	if board.Pins()[Fan] != 22 {
		t.Error("mutating Pins() result changed board wiring")
	}
}
