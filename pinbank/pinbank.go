package pinbank

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Width is the number of pins in a bank
const Width = 8

// MaxGPIO is the highest BCM2835 GPIO number.
const MaxGPIO = 53

var plog zerolog.Logger

func init() {
	plog = log.With().Str("component", "pinbank").Logger()
}

var (
	ErrMissingPins        = errors.New("description does not declare the expected pins")
	ErrRegistrationFailed = errors.New("pin registration failed")
	ErrPrepareFailed      = errors.New("bank preparation failed")
	ErrLengthMismatch     = errors.New("frame length does not match bank width")
	ErrDuplicateGPIO      = errors.New("gpio already assigned")
	ErrGPIORange          = errors.New("gpio out of range")
)

// RegistrationError reports which pin could not be registered.
type RegistrationError struct {
	Index int
	Label string
	Err   error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: pin %d (%q): %v", ErrRegistrationFailed, e.Index, e.Label, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistrationFailed
}

// PinActuator drives a single output.
type PinActuator interface {
	Set(on bool) error
}

// Driver is the hardware side of a bank. Prepare must leave every pin
// configured as an output and driven low.
type Driver interface {
	Prepare(pins []Pin) error
	Register(pin Pin) (PinActuator, error)
	Close() error
}

// FrameDriver is a Driver that can apply a whole frame in one step. When the
// bank's driver implements it, SetStates goes through SetFrame instead of the
// per-pin actuators.
type FrameDriver interface {
	Driver
	SetFrame(pins []Pin, states []bool) error
}

type Pin struct {
	Index int
	Label string
	GPIO  int
	// Mask selects the pin within its 32-bit set/clear register.
	Mask uint32
}

func MaskFor(gpio int) uint32 {
	return 1 << uint(gpio%32)
}

// Bank is a configured set of Width pins. It does no locking of its own.
type Bank struct {
	pins      []Pin
	actuators []PinActuator
	driver    Driver
}

// Configure validates desc, prepares the driver and registers each pin.
// Either every pin is registered or no bank is returned.
func Configure(desc Description, pinout []int, driver Driver) (*Bank, error) {
	count := len(desc.Pins)
	if count == 0 || count != Width {
		return nil, fmt.Errorf("%w: got %d children, want %d", ErrMissingPins, count, Width)
	}

	plog.Debug().Int("children", count).Str("compatible", desc.Compatible).Msg("Configuring bank")

	pins := make([]Pin, 0, count)
	seen := make(map[int]int, count)
	for i, node := range desc.Pins {
		gpio, ok := node.resolveGPIO(i, pinout)
		if !ok {
			return nil, &RegistrationError{Index: i, Label: node.Label, Err: fmt.Errorf("no gpio in pinout for position %d", i)}
		}
		if gpio < 0 || gpio > MaxGPIO {
			return nil, &RegistrationError{Index: i, Label: node.Label, Err: fmt.Errorf("%w: %d, want 0..%d", ErrGPIORange, gpio, MaxGPIO)}
		}
		if prev, dup := seen[gpio]; dup {
			return nil, &RegistrationError{Index: i, Label: node.Label, Err: fmt.Errorf("%w: gpio %d used by pin %d", ErrDuplicateGPIO, gpio, prev)}
		}
		seen[gpio] = i

		pins = append(pins, Pin{
			Index: i,
			Label: node.Label,
			GPIO:  gpio,
			Mask:  MaskFor(gpio),
		})
	}

	if err := driver.Prepare(pins); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrepareFailed, err)
	}

	actuators := make([]PinActuator, 0, count)
	for _, pin := range pins {
		a, err := driver.Register(pin)
		if err != nil {
			closeActuators(actuators)
			plog.Err(err).Int("index", pin.Index).Str("label", pin.Label).Msg("Failed to register pin")
			return nil, &RegistrationError{Index: pin.Index, Label: pin.Label, Err: err}
		}
		actuators = append(actuators, a)

		plog.Debug().
			Int("index", pin.Index).
			Str("label", pin.Label).
			Int("gpio", pin.GPIO).
			Str("mask", fmt.Sprintf("%#08x", pin.Mask)).
			Msg("Registered pin")
	}

	return &Bank{
		pins:      pins,
		actuators: actuators,
		driver:    driver,
	}, nil
}

func (b *Bank) Width() int {
	return len(b.pins)
}

// Pins returns a copy of the bank's pin table.
func (b *Bank) Pins() []Pin {
	out := make([]Pin, len(b.pins))
	copy(out, b.pins)
	return out
}

// SetStates drives pin i on when states[i] is true. Without a FrameDriver
// every pin is attempted and the first actuator error is returned.
func (b *Bank) SetStates(states []bool) error {
	if len(states) != len(b.pins) {
		return fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(states), len(b.pins))
	}

	if fd, ok := b.driver.(FrameDriver); ok {
		return fd.SetFrame(b.pins, states)
	}

	var firstErr error
	for i, state := range states {
		if err := b.actuators[i].Set(state); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pin %d (%q): %w", i, b.pins[i].Label, err)
		}
	}

	return firstErr
}

// SetAll drives every pin to the same state.
func (b *Bank) SetAll(state bool) error {
	states := make([]bool, len(b.pins))
	for i := range states {
		states[i] = state
	}
	return b.SetStates(states)
}

// Close darkens the bank and releases the actuators and the driver.
func (b *Bank) Close() error {
	if err := b.SetAll(false); err != nil {
		plog.Warn().Err(err).Msg("Could not clear bank before closing")
	}
	closeActuators(b.actuators)
	b.actuators = nil
	b.pins = nil
	return b.driver.Close()
}

func closeActuators(actuators []PinActuator) {
	for _, a := range actuators {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				plog.Warn().Err(err).Msg("Failed to release pin")
			}
		}
	}
}
