package main

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/netgpio/gpio"
	"gregoryjjb/netgpio/netgpio"
	"gregoryjjb/netgpio/pinbank"
)

func newTestConfig(t *testing.T, flags Flags, env map[string]string, files map[string]string) (*Config, error) {
	fs := NewMemFS()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0644))
	}
	return NewConfig(fs, flags, func(s string) string { return env[s] })
}

func TestNewConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := newTestConfig(t, Flags{}, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "", c.Path())
		assert.Equal(t, "127.0.0.1:1225", c.Address())
		assert.Equal(t, "/run/netgpio", c.FifoPath())
		assert.Equal(t, netgpio.DefaultSettleDelay, c.SettleDelay())
		assert.Equal(t, pinbank.DefaultPinout, c.Pinout())
		assert.Equal(t, gpio.DriverMemory, c.DriverName())

		desc, err := c.Description()
		require.NoError(t, err)
		assert.Len(t, desc.Pins, pinbank.Width)
	})

	t.Run("FileInWorkingDir", func(t *testing.T) {
		c, err := newTestConfig(t, Flags{}, nil, map[string]string{
			"/netgpio.toml": `
port = 8080
settle_delay_ms = 0
fifo_path = ""
pinout = [2, 3, 4, 5, 6, 7, 8, 9]

[driver]
name = "modbus"
modbus_endpoint = "10.0.0.5:502"
modbus_unit_id = 3
modbus_coil_base = 16
modbus_timeout_ms = 500
`,
		})
		require.NoError(t, err)

		assert.Equal(t, "/netgpio.toml", c.Path())
		assert.Equal(t, "127.0.0.1:8080", c.Address())
		assert.Equal(t, time.Duration(0), c.SettleDelay())
		assert.Equal(t, "", c.FifoPath())

		d := c.Driver()
		assert.Equal(t, gpio.DriverModbus, d.Name)
		assert.Equal(t, "10.0.0.5:502", d.Modbus.Endpoint)
		assert.Equal(t, uint8(3), d.Modbus.UnitID)
		assert.Equal(t, uint16(16), d.Modbus.CoilBase)
		assert.Equal(t, 500*time.Millisecond, d.Modbus.Timeout)
		assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9}, d.Watch)
	})

	t.Run("HomeConfigAndEnv", func(t *testing.T) {
		c, err := newTestConfig(t, Flags{}, map[string]string{"HOST": "0.0.0.0", "PORT": "9000"}, map[string]string{
			"/home/.config/netgpio/netgpio.toml": `host = "10.1.1.1"`,
		})
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9000", c.Address())
	})

	t.Run("FlagsWin", func(t *testing.T) {
		c, err := newTestConfig(t,
			Flags{ConfigPath: "/etc/netgpio.toml", LogLevel: "debug", Simulate: true},
			map[string]string{"NETGPIO_CONFIG": "/missing.toml"},
			map[string]string{"/etc/netgpio.toml": "log_level = \"warn\"\n[driver]\nname = \"rpio\"\n"},
		)
		require.NoError(t, err)
		assert.Equal(t, "debug", c.LogLevel())
		assert.Equal(t, gpio.DriverMemory, c.DriverName())
	})

	t.Run("Description", func(t *testing.T) {
		c, err := newTestConfig(t, Flags{}, nil, map[string]string{
			"/netgpio.toml": `description = "/etc/netgpio.yaml"`,
			"/etc/netgpio.yaml": `compatible: custom,netgpio
pins:
  - label: green
    gpio: 22
  - label: blue
`,
		})
		require.NoError(t, err)

		desc, err := c.Description()
		require.NoError(t, err)
		require.Len(t, desc.Pins, 2)
		assert.Equal(t, "green", desc.Pins[0].Label)
	})

	t.Run("DescriptionBesideConfig", func(t *testing.T) {
		c, err := newTestConfig(t, Flags{}, nil, map[string]string{
			"/home/.config/netgpio/netgpio.toml": `description = "pins.yaml"`,
			"/home/.config/netgpio/pins.yaml":    "compatible: custom,netgpio\npins:\n  - label: red\n",
		})
		require.NoError(t, err)

		desc, err := c.Description()
		require.NoError(t, err)
		require.Len(t, desc.Pins, 1)
		assert.Equal(t, "red", desc.Pins[0].Label)
	})

	invalid := []struct {
		name  string
		env   map[string]string
		files map[string]string
	}{
		{name: "port out of range", files: map[string]string{"/netgpio.toml": "port = 70000"}},
		{name: "bad PORT env", env: map[string]string{"PORT": "http"}},
		{name: "negative settle delay", files: map[string]string{"/netgpio.toml": "settle_delay_ms = -1"}},
		{name: "negative history", files: map[string]string{"/netgpio.toml": "history = -1"}},
		{name: "short pinout", files: map[string]string{"/netgpio.toml": "pinout = [1, 2, 3]"}},
		{name: "not toml", files: map[string]string{"/netgpio.toml": "port = "}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestConfig(t, Flags{}, tt.env, tt.files)
			assert.Error(t, err)
		})
	}

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := newTestConfig(t, Flags{ConfigPath: "/nope.toml"}, nil, nil)
		assert.Error(t, err)
	})
}
