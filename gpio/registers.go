package gpio

import (
	"fmt"
	"sync"

	"gregoryjjb/netgpio/pinbank"
)

// BCM2835 GPIO register offsets, in bytes from the block base.
const (
	GPFSEL0 = 0x00
	GPSET0  = 0x1C
	GPCLR0  = 0x28
	GPLEV0  = 0x34

	// RegisterSpan covers GPFSEL0 through GPLEV1.
	RegisterSpan = 0x3C

	fselOutput = 0b001
	fselMask   = 0b111
)

// Registers is 32-bit access to a GPIO register block.
type Registers interface {
	Read(offset uint32) uint32
	Write(offset, value uint32)
}

func fselOffset(gpio int) uint32 {
	return GPFSEL0 + 4*uint32(gpio/10)
}

func fselShift(gpio int) uint32 {
	return uint32(gpio%10) * 3
}

func setOffset(gpio int) uint32 {
	return GPSET0 + 4*uint32(gpio/32)
}

func clrOffset(gpio int) uint32 {
	return GPCLR0 + 4*uint32(gpio/32)
}

// RegisterDriver programs pins through set/clear registers. A frame costs one
// SET and one CLR write per 32-pin bank it touches.
type RegisterDriver struct {
	regs   Registers
	closer func() error

	// mu covers read-modify-write of the function select registers.
	mu sync.Mutex
}

func NewRegisterDriver(regs Registers, closer func() error) *RegisterDriver {
	return &RegisterDriver{regs: regs, closer: closer}
}

// Prepare selects the output function for every pin, then clears them all.
func (d *RegisterDriver) Prepare(pins []pinbank.Pin) error {
	for _, pin := range pins {
		if pin.GPIO < 0 || pin.GPIO > pinbank.MaxGPIO {
			return fmt.Errorf("gpio %d outside the register block", pin.GPIO)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	fsel := map[uint32]struct{ mask, value uint32 }{}
	clr := map[uint32]uint32{}
	for _, pin := range pins {
		off := fselOffset(pin.GPIO)
		f := fsel[off]
		f.mask |= fselMask << fselShift(pin.GPIO)
		f.value |= fselOutput << fselShift(pin.GPIO)
		fsel[off] = f

		clr[clrOffset(pin.GPIO)] |= pin.Mask
	}

	for off, f := range fsel {
		current := d.regs.Read(off)
		d.regs.Write(off, (current&^f.mask)|(f.value&f.mask))
	}
	for off, mask := range clr {
		d.regs.Write(off, mask)
	}

	return nil
}

func (d *RegisterDriver) Register(pin pinbank.Pin) (pinbank.PinActuator, error) {
	return &registerPin{
		regs: d.regs,
		mask: pin.Mask,
		set:  setOffset(pin.GPIO),
		clr:  clrOffset(pin.GPIO),
	}, nil
}

// SetFrame ORs the masks of the pins turning on and of those turning off,
// then writes each set register once and each clear register once.
func (d *RegisterDriver) SetFrame(pins []pinbank.Pin, states []bool) error {
	var set, clr [2]uint32
	for i, pin := range pins {
		if states[i] {
			set[pin.GPIO/32] |= pin.Mask
		} else {
			clr[pin.GPIO/32] |= pin.Mask
		}
	}

	for bank := range set {
		if set[bank] != 0 {
			d.regs.Write(GPSET0+4*uint32(bank), set[bank])
		}
		if clr[bank] != 0 {
			d.regs.Write(GPCLR0+4*uint32(bank), clr[bank])
		}
	}
	return nil
}

func (d *RegisterDriver) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

type registerPin struct {
	regs Registers
	mask uint32
	set  uint32
	clr  uint32
}

func (p *registerPin) Set(on bool) error {
	if on {
		p.regs.Write(p.set, p.mask)
	} else {
		p.regs.Write(p.clr, p.mask)
	}
	return nil
}
