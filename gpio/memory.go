package gpio

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var glog zerolog.Logger

func init() {
	glog = log.With().Str("component", "gpio").Logger()
}

// MemoryRegisters simulates a register block. Writes to the set and clear
// registers update the level registers the way the hardware would.
type MemoryRegisters struct {
	mu    sync.Mutex
	words [RegisterSpan / 4]uint32

	// Watch lists the gpios printed on every output change.
	Watch []int
}

func NewMemoryRegisters() *MemoryRegisters {
	return &MemoryRegisters{}
}

func (m *MemoryRegisters) Read(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[offset/4]
}

func (m *MemoryRegisters) Write(offset, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch offset {
	case GPSET0, GPSET0 + 4:
		m.words[(GPLEV0+offset-GPSET0)/4] |= value
	case GPCLR0, GPCLR0 + 4:
		m.words[(GPLEV0+offset-GPCLR0)/4] &^= value
	default:
		m.words[offset/4] = value
		return
	}

	m.printStates()
}

// Level reports whether gpio is driven high.
func (m *MemoryRegisters) Level(gpio int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[(GPLEV0+4*uint32(gpio/32))/4]&(1<<uint(gpio%32)) != 0
}

// Function returns the 3-bit function select field of gpio.
func (m *MemoryRegisters) Function(gpio int) uint32 {
	return (m.Read(fselOffset(gpio)) >> fselShift(gpio)) & fselMask
}

func (m *MemoryRegisters) printStates() {
	if len(m.Watch) == 0 {
		return
	}
	var str string
	for _, gpio := range m.Watch {
		if m.words[(GPLEV0+4*uint32(gpio/32))/4]&(1<<uint(gpio%32)) != 0 {
			str += "#"
		} else {
			str += " "
		}
	}
	glog.Debug().Str("pins", str).Msg("GPIO")
}
