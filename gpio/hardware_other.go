//go:build !linux

package gpio

import (
	"errors"

	"gregoryjjb/netgpio/pinbank"
)

const DefaultGpiomemPath = "/dev/gpiomem"

var errNotLinux = errors.New("driver requires linux")

type MappedRegisters struct{}

func OpenGpiomem(path string) (*MappedRegisters, error) {
	return nil, errNotLinux
}

func (m *MappedRegisters) Read(offset uint32) uint32  { return 0 }
func (m *MappedRegisters) Write(offset, value uint32) {}
func (m *MappedRegisters) Close() error               { return nil }

func NewRpioDriver() (pinbank.Driver, error) {
	return nil, errNotLinux
}

func NewCdevDriver(chip string) (pinbank.Driver, error) {
	return nil, errNotLinux
}
