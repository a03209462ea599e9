package relay

import (
	"fmt"
	"sync"
)

// MemoryOpener simulates GPIO lines in memory. relayd uses it when
// relay.gpio.simulate is set, so the HTTP surface can run on machines
// without a GPIO chip.
type MemoryOpener struct {
	mu     sync.Mutex
	lines  map[int]*memoryLine
	writes []Write

	// failOpen and failWrite inject errors per line offset.
	failOpen  map[int]error
	failWrite map[int]error
}

// Write records one level change on a simulated line.
type Write struct {
	Offset int
	Level  int
}

// NewMemoryOpener returns an empty simulated chip.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{
		lines:     make(map[int]*memoryLine),
		failOpen:  make(map[int]error),
		failWrite: make(map[int]error),
	}
}

// FailOpen makes OpenOutput fail for the given offset.
func (m *MemoryOpener) FailOpen(offset int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[offset] = err
}

// FailWrite makes SetValue fail for the given offset.
func (m *MemoryOpener) FailWrite(offset int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[offset] = err
}

// OpenOutput implements LineOpener.
func (m *MemoryOpener) OpenOutput(offset int, value int) (Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failOpen[offset]; err != nil {
		return nil, err
	}
	if l, ok := m.lines[offset]; ok && !l.closed {
		return nil, fmt.Errorf("line %d: device or resource busy", offset)
	}

	l := &memoryLine{chip: m, offset: offset, level: value}
	m.lines[offset] = l
	m.writes = append(m.writes, Write{Offset: offset, Level: value})
	return l, nil
}

// Level returns the current level of a line and whether it was ever requested.
func (m *MemoryOpener) Level(offset int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[offset]
	if !ok {
		return 0, false
	}
	return l.level, true
}

// Held reports whether a line is currently requested and not closed.
func (m *MemoryOpener) Held(offset int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[offset]
	return ok && !l.closed
}

// Writes returns every level change in order, including initial levels.
func (m *MemoryOpener) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

type memoryLine struct {
	chip   *MemoryOpener
	offset int
	level  int
	closed bool
}

func (l *memoryLine) SetValue(value int) error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()

	if l.closed {
		return fmt.Errorf("line %d: closed", l.offset)
	}
	if err := l.chip.failWrite[l.offset]; err != nil {
		return err
	}
	l.level = value
	l.chip.writes = append(l.chip.writes, Write{Offset: l.offset, Level: value})
	return nil
}

func (l *memoryLine) Close() error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	l.closed = true
	return nil
}
