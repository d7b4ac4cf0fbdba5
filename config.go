package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"gregoryjjb/netgpio/gpio"
	"gregoryjjb/netgpio/netgpio"
	"gregoryjjb/netgpio/pinbank"
)

var ErrValidation = errors.New("invalid config")

const ConfigFileName = "netgpio.toml"

// Flags are the command line overrides.
type Flags struct {
	ConfigPath string
	LogLevel   string
	Simulate   bool
}

type tomlDriver struct {
	Name            string `toml:"name"`
	GpiomemPath     string `toml:"gpiomem_path"`
	Chip            string `toml:"chip"`
	ModbusEndpoint  string `toml:"modbus_endpoint"`
	ModbusUnitID    uint8  `toml:"modbus_unit_id"`
	ModbusCoilBase  uint16 `toml:"modbus_coil_base"`
	ModbusTimeoutMS int    `toml:"modbus_timeout_ms"`
}

type tomlConfig struct {
	Host          string     `toml:"host"`
	Port          int        `toml:"port"`
	FifoPath      string     `toml:"fifo_path"`
	SettleDelayMS *int       `toml:"settle_delay_ms"`
	History       int        `toml:"history"`
	LogLevel      string     `toml:"log_level"`
	Description   string     `toml:"description"`
	Pinout        []int      `toml:"pinout"`
	Driver        tomlDriver `toml:"driver"`
}

type Config struct {
	fs   *HostFS
	path string
	toml tomlConfig
}

// NewConfig loads the first config file found. No file at all is not an
// error; defaults are used.
func NewConfig(fsys *HostFS, flags Flags, getenv func(string) string) (*Config, error) {
	c := &Config{
		fs: fsys,
		toml: tomlConfig{
			Host:     "127.0.0.1",
			Port:     1225,
			FifoPath: "/run/netgpio",
			History:  32,
			LogLevel: "info",
		},
	}

	path, err := findConfigFile(fsys, flags, getenv)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, &c.toml); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		c.path = path
	}

	if v := getenv("HOST"); v != "" {
		c.toml.Host = v
	}
	if v := getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			return nil, fmt.Errorf("%w: PORT %q", ErrValidation, v)
		}
		c.toml.Port = port
	}
	if flags.LogLevel != "" {
		c.toml.LogLevel = flags.LogLevel
	}
	if flags.Simulate {
		c.toml.Driver.Name = gpio.DriverMemory
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func findConfigFile(fsys *HostFS, flags Flags, getenv func(string) string) (string, error) {
	if flags.ConfigPath != "" {
		return fsys.Resolve(flags.ConfigPath), nil
	}
	if p := getenv("NETGPIO_CONFIG"); p != "" {
		return fsys.Resolve(p), nil
	}
	return fsys.FindFirst(fsys.SearchPath(ConfigFileName))
}

func (c *Config) validate() error {
	if c.toml.Port < 1 || c.toml.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrValidation, c.toml.Port)
	}
	if c.toml.SettleDelayMS != nil && *c.toml.SettleDelayMS < 0 {
		return fmt.Errorf("%w: settle_delay_ms cannot be negative", ErrValidation)
	}
	if c.toml.History < 0 {
		return fmt.Errorf("%w: history cannot be negative", ErrValidation)
	}
	if c.toml.Pinout != nil && len(c.toml.Pinout) < pinbank.Width {
		return fmt.Errorf("%w: pinout lists %d gpios, need %d", ErrValidation, len(c.toml.Pinout), pinbank.Width)
	}
	return nil
}

// Path is the file the config was loaded from, empty when defaults are used.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.toml.Host, c.toml.Port)
}

func (c *Config) FifoPath() string {
	return c.toml.FifoPath
}

func (c *Config) LogLevel() string {
	return c.toml.LogLevel
}

func (c *Config) History() int {
	return c.toml.History
}

func (c *Config) SettleDelay() time.Duration {
	if c.toml.SettleDelayMS == nil {
		return netgpio.DefaultSettleDelay
	}
	return time.Duration(*c.toml.SettleDelayMS) * time.Millisecond
}

func (c *Config) Pinout() []int {
	if c.toml.Pinout == nil {
		return pinbank.DefaultPinout
	}
	return c.toml.Pinout
}

// Description loads the device description, or the default description when
// none is configured. A relative path is taken from the config file's
// directory.
func (c *Config) Description() (pinbank.Description, error) {
	if c.toml.Description == "" {
		return pinbank.DefaultDescription(), nil
	}

	path := c.toml.Description
	if !filepath.IsAbs(path) && c.path != "" {
		path = filepath.Join(filepath.Dir(c.path), path)
	}
	f, err := c.fs.Open(c.fs.Resolve(path))
	if err != nil {
		return pinbank.Description{}, err
	}
	defer f.Close()

	return pinbank.ParseDescription(f)
}

func (c *Config) DriverName() string {
	if c.toml.Driver.Name == "" {
		return gpio.DriverMemory
	}
	return c.toml.Driver.Name
}

func (c *Config) Driver() gpio.DriverConfig {
	d := c.toml.Driver
	return gpio.DriverConfig{
		Name:        c.DriverName(),
		GpiomemPath: d.GpiomemPath,
		Chip:        d.Chip,
		Modbus: gpio.ModbusConfig{
			Endpoint: d.ModbusEndpoint,
			UnitID:   d.ModbusUnitID,
			CoilBase: d.ModbusCoilBase,
			Timeout:  time.Duration(d.ModbusTimeoutMS) * time.Millisecond,
		},
		Watch: c.Pinout()[:pinbank.Width],
	}
}
