package gpio

import (
	"errors"
	"fmt"
	"time"

	"gregoryjjb/netgpio/pinbank"
)

var ErrUnknownDriver = errors.New("unknown gpio driver")

const (
	DriverMemory   = "memory"
	DriverGpiomem  = "gpiomem"
	DriverRpio     = "rpio"
	DriverGpiocdev = "gpiocdev"
	DriverModbus   = "modbus"
)

type DriverConfig struct {
	Name        string
	GpiomemPath string
	Chip        string
	Modbus      ModbusConfig
	// Watch is passed to the simulated registers for logging.
	Watch []int
}

// Open builds the driver named by cfg. An empty name selects the
// simulated register block.
func Open(cfg DriverConfig) (pinbank.Driver, error) {
	switch cfg.Name {
	case "", DriverMemory:
		glog.Debug().Msg("GPIO will be simulated")
		regs := NewMemoryRegisters()
		regs.Watch = cfg.Watch
		return NewRegisterDriver(regs, nil), nil

	case DriverGpiomem:
		regs, err := OpenGpiomem(cfg.GpiomemPath)
		if err != nil {
			return nil, err
		}
		return NewRegisterDriver(regs, regs.Close), nil

	case DriverRpio:
		d, err := NewRpioDriver()
		if err != nil {
			return nil, err
		}
		return d, nil

	case DriverGpiocdev:
		d, err := NewCdevDriver(cfg.Chip)
		if err != nil {
			return nil, err
		}
		return d, nil

	case DriverModbus:
		mc := cfg.Modbus
		if mc.Timeout == 0 {
			mc.Timeout = 2 * time.Second
		}
		d, err := NewModbusDriver(mc)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Name)
}
