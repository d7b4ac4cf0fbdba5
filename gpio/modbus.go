package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"gregoryjjb/netgpio/pinbank"
)

const (
	coilOn  = 0xFF00
	coilOff = 0x0000
)

// ModbusConfig locates the coils of a remote output module.
type ModbusConfig struct {
	Endpoint string
	UnitID   uint8
	CoilBase uint16
	Timeout  time.Duration
}

// CoilWriter is the subset of modbus.Client used by the driver.
type CoilWriter interface {
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error)
}

// ModbusDriver maps pin i to coil CoilBase+i. Pin gpio numbers are not used.
type ModbusDriver struct {
	mu      sync.Mutex
	client  CoilWriter
	base    uint16
	handler *modbus.TCPClientHandler
}

func NewModbusDriver(cfg ModbusConfig) (*ModbusDriver, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus driver: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus driver: connect %s: %w", cfg.Endpoint, err)
	}

	d := NewModbusDriverWithClient(modbus.NewClient(h), cfg.CoilBase)
	d.handler = h
	return d, nil
}

// NewModbusDriverWithClient wraps an already connected client.
func NewModbusDriverWithClient(client CoilWriter, base uint16) *ModbusDriver {
	return &ModbusDriver{client: client, base: base}
}

func (d *ModbusDriver) Prepare(pins []pinbank.Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pins) == 0 {
		return nil
	}
	_, err := d.client.WriteMultipleCoils(d.base, uint16(len(pins)), packBits(make([]bool, len(pins))))
	return err
}

func (d *ModbusDriver) Register(pin pinbank.Pin) (pinbank.PinActuator, error) {
	return &modbusPin{d: d, addr: d.base + uint16(pin.Index)}, nil
}

// SetFrame writes the whole frame as one multiple-coil request.
func (d *ModbusDriver) SetFrame(pins []pinbank.Pin, states []bool) error {
	if len(pins) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.client.WriteMultipleCoils(d.base+uint16(pins[0].Index), uint16(len(states)), packBits(states))
	return err
}

func (d *ModbusDriver) Close() error {
	if d.handler == nil {
		return nil
	}
	return d.handler.Close()
}

type modbusPin struct {
	d    *ModbusDriver
	addr uint16
}

func (p *modbusPin) Set(on bool) error {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	value := uint16(coilOff)
	if on {
		value = coilOn
	}
	_, err := p.d.client.WriteSingleCoil(p.addr, value)
	return err
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
