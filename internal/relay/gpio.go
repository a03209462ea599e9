package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevOpener requests lines from the Linux GPIO character device.
type CdevOpener struct {
	chip     string
	consumer string
}

// NewCdevOpener returns an opener for the named chip (e.g. "gpiochip0").
// The consumer label shows up in gpioinfo for every line this process holds.
func NewCdevOpener(chip, consumer string) *CdevOpener {
	return &CdevOpener{chip: chip, consumer: consumer}
}

// OpenOutput implements LineOpener.
func (o *CdevOpener) OpenOutput(offset int, value int) (Line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(value)}
	if o.consumer != "" {
		opts = append(opts, gpiocdev.WithConsumer(o.consumer))
	}

	line, err := gpiocdev.RequestLine(o.chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("requesting %s line %d: %w", o.chip, offset, err)
	}
	return line, nil
}
