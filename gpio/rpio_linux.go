//go:build linux

package gpio

import (
	"github.com/stianeikeland/go-rpio/v4"

	"gregoryjjb/netgpio/pinbank"
)

// RpioDriver drives Raspberry Pi header pins through go-rpio.
type RpioDriver struct{}

func NewRpioDriver() (*RpioDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	return &RpioDriver{}, nil
}

func (d *RpioDriver) Prepare(pins []pinbank.Pin) error {
	for _, p := range pins {
		pin := rpio.Pin(p.GPIO)
		pin.Output()
		pin.Low()
	}
	return nil
}

func (d *RpioDriver) Register(p pinbank.Pin) (pinbank.PinActuator, error) {
	return rpioPin(p.GPIO), nil
}

func (d *RpioDriver) Close() error {
	return rpio.Close()
}

type rpioPin rpio.Pin

func (p rpioPin) Set(on bool) error {
	if on {
		rpio.Pin(p).High()
	} else {
		rpio.Pin(p).Low()
	}
	return nil
}
