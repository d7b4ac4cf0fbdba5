//go:build linux

package gpio

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultGpiomemPath is the Raspberry Pi gpio register window.
const DefaultGpiomemPath = "/dev/gpiomem"

const gpiomemLength = 4096

// MappedRegisters is a register block mapped from a device file.
type MappedRegisters struct {
	mem []byte
}

// OpenGpiomem maps the gpio register block at path.
func OpenGpiomem(path string) (*MappedRegisters, error) {
	if path == "" {
		path = DefaultGpiomemPath
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mem, err := unix.Mmap(int(file.Fd()), 0, gpiomemLength, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &MappedRegisters{mem: mem}, nil
}

func (m *MappedRegisters) Read(offset uint32) uint32 {
	return binary.LittleEndian.Uint32(m.mem[offset : offset+4])
}

func (m *MappedRegisters) Write(offset, value uint32) {
	binary.LittleEndian.PutUint32(m.mem[offset:offset+4], value)
}

func (m *MappedRegisters) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
