// Package control turns /control query parameters into relay writes.
//
// Fields are evaluated in the fixed order starter, ignition, ac. The first
// invalid field aborts the request; writes made for earlier fields stay in
// effect.
package control

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/technodrive/vehictl/internal/relay"
)

// Field is one /control query parameter.
type Field string

// Supported fields.
const (
	FieldStarter  Field = "starter"
	FieldIgnition Field = "ignition"
	FieldAC       Field = "ac"
)

// fieldOrder is the evaluation order.
var fieldOrder = []Field{FieldStarter, FieldIgnition, FieldAC}

// label is the capitalised field name used at the start of a message.
func (f Field) label() string {
	if f == FieldAC {
		return "AC"
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}

// inline is the field name used mid-sentence.
func (f Field) inline() string {
	if f == FieldAC {
		return "AC"
	}
	return string(f)
}

// Reason classifies a rejected field value.
type Reason string

const (
	ReasonNotInteger Reason = "not_integer"
	ReasonOutOfRange Reason = "out_of_range"
)

// FieldError reports the first invalid field of a request.
type FieldError struct {
	Field  Field
	Value  string
	Reason Reason
}

func (e *FieldError) Error() string {
	if e.Reason == ReasonNotInteger {
		return fmt.Sprintf("%s value must be an integer", e.Field.label())
	}
	return fmt.Sprintf("Invalid %s value. Use 0 or 1", e.Field.inline())
}

// ErrRelay wraps a failed relay write.
var ErrRelay = errors.New("control: relay write failed")

// States maps response keys (starter, ignition, ac_compressor, ac_fan) to "ON"/"OFF".
type States map[string]string

// Switcher is the relay capability the controller drives.
type Switcher interface {
	SetChannel(ch relay.Channel, on bool) (bool, error)
}

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Controller applies vehicle commands to the relay board.
type Controller struct {
	relays Switcher
	logger Logger

	// acMu makes the compressor and fan writes of one ac command atomic
	// with respect to other ac commands.
	acMu sync.Mutex
}

// NewController creates a controller driving the given relays.
func NewController(relays Switcher) *Controller {
	return &Controller{relays: relays, logger: noopLogger{}}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// Apply evaluates the supplied fields in order and drives the relays.
//
// On success it returns one entry per supplied field (two for ac). On the
// first invalid field it returns a *FieldError together with the states
// already applied; those writes are not rolled back. A relay failure
// returns an error wrapping ErrRelay.
func (c *Controller) Apply(params url.Values) (States, error) {
	states := States{}

	for _, field := range fieldOrder {
		if !params.Has(string(field)) {
			continue
		}

		raw := params.Get(string(field))
		on, err := parseSwitch(field, raw)
		if err != nil {
			c.logger.Warn("rejected control field", "field", field, "value", raw, "error", err)
			return states, err
		}

		if err := c.apply(field, on, states); err != nil {
			return states, err
		}
	}

	return states, nil
}

func (c *Controller) apply(field Field, on bool, states States) error {
	switch field {
	case FieldStarter:
		return c.set(relay.Starter, on, string(FieldStarter), states)
	case FieldIgnition:
		return c.set(relay.Ignition, on, string(FieldIgnition), states)
	case FieldAC:
		// Compressor and fan always receive the same command.
		c.acMu.Lock()
		defer c.acMu.Unlock()
		if err := c.set(relay.Compressor, on, "ac_compressor", states); err != nil {
			return err
		}
		if err := c.set(relay.Fan, on, "ac_fan", states); err != nil {
			return err
		}
		c.logger.Info("AC system set", "state", relay.StateText(on))
	}
	return nil
}

func (c *Controller) set(ch relay.Channel, on bool, key string, states States) error {
	got, err := c.relays.SetChannel(ch, on)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRelay, ch, err)
	}
	states[key] = relay.StateText(got)
	return nil
}

// parseSwitch accepts an integer string equal to 0 or 1.
func parseSwitch(field Field, raw string) (bool, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return false, &FieldError{Field: field, Value: raw, Reason: ReasonNotInteger}
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, &FieldError{Field: field, Value: raw, Reason: ReasonOutOfRange}
}
