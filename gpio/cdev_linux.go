//go:build linux

package gpio

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"

	"gregoryjjb/netgpio/pinbank"
)

// Consumer is the label the kernel shows for lines held by netgpio.
const Consumer = "netgpio"

// CdevDriver drives lines of a gpiochip through the GPIO character device.
// Pin gpio numbers are line offsets on the chip.
type CdevDriver struct {
	chip string
}

func NewCdevDriver(chip string) (*CdevDriver, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	if err := gpiocdev.IsChip(chip); err != nil {
		return nil, errors.Wrapf(err, "gpiocdev: %s", chip)
	}
	return &CdevDriver{chip: chip}, nil
}

// Prepare has nothing to do; lines are requested as outputs driven low when
// they are registered.
func (d *CdevDriver) Prepare(pins []pinbank.Pin) error {
	return nil
}

func (d *CdevDriver) Register(pin pinbank.Pin) (pinbank.PinActuator, error) {
	l, err := gpiocdev.RequestLine(d.chip, pin.GPIO,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(Consumer),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "request line %d on %s", pin.GPIO, d.chip)
	}
	return &cdevPin{line: l}, nil
}

func (d *CdevDriver) Close() error {
	return nil
}

type cdevPin struct {
	line *gpiocdev.Line
}

func (p *cdevPin) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return p.line.SetValue(v)
}

func (p *cdevPin) Close() error {
	return p.line.Close()
}
