package valve

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GpiocdevDriver requests lines on a real Linux gpiochip character device.
type GpiocdevDriver struct {
	chip *gpiocdev.Chip
}

// NewGpiocdevDriver opens the named gpiochip (e.g. "gpiochip0").
func NewGpiocdevDriver(chipName string) (*GpiocdevDriver, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chipName, err)
	}
	return &GpiocdevDriver{chip: chip}, nil
}

// RequestLine claims pin as an output, driven to initialValue in the same
// request that acquires it.
func (d *GpiocdevDriver) RequestLine(pin int, initialValue int) (Line, error) {
	line, err := d.chip.RequestLine(pin,
		gpiocdev.AsOutput(initialValue),
		gpiocdev.WithConsumer("irrigation-hub"),
	)
	if err != nil {
		return nil, err
	}
	return &gpiocdevLine{line: line}, nil
}

func (d *GpiocdevDriver) Close() error {
	return d.chip.Close()
}

type gpiocdevLine struct {
	line *gpiocdev.Line
}

func (l *gpiocdevLine) SetValue(value int) error {
	return l.line.SetValue(value)
}

func (l *gpiocdevLine) Close() error {
	return l.line.Close()
}
