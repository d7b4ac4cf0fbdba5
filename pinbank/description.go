package pinbank

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Compatible is the description type handled by this package.
const Compatible = "custom,netgpio"

// DefaultPinout assigns a gpio to each child position when the child does
// not name one.
var DefaultPinout = []int{4, 17, 27, 22, 5, 6, 13, 26}

// Description declares the bank: one child per pin, in order.
type Description struct {
	Compatible string    `yaml:"compatible"`
	Pins       []PinNode `yaml:"pins"`
}

type PinNode struct {
	Label string `yaml:"label"`
	GPIO  *int   `yaml:"gpio,omitempty"`
}

func (n PinNode) resolveGPIO(position int, pinout []int) (int, bool) {
	if n.GPIO != nil {
		return *n.GPIO, true
	}
	if position < len(pinout) {
		return pinout[position], true
	}
	return 0, false
}

func DefaultDescription() Description {
	pins := make([]PinNode, 0, Width)
	for i := 0; i < Width; i++ {
		pins = append(pins, PinNode{Label: fmt.Sprintf("netgpio:bit%d", i)})
	}
	return Description{
		Compatible: Compatible,
		Pins:       pins,
	}
}

// ParseDescription decodes a YAML description. Child count is checked by
// Configure, not here.
func ParseDescription(r io.Reader) (Description, error) {
	var desc Description
	if err := yaml.NewDecoder(r).Decode(&desc); err != nil {
		if err == io.EOF {
			return Description{}, ErrMissingPins
		}
		return Description{}, fmt.Errorf("decode description: %w", err)
	}

	if desc.Compatible != "" && desc.Compatible != Compatible {
		return Description{}, fmt.Errorf("description is for %q, not %q", desc.Compatible, Compatible)
	}

	for i := range desc.Pins {
		if desc.Pins[i].Label == "" {
			desc.Pins[i].Label = fmt.Sprintf("netgpio:bit%d", i)
		}
	}

	return desc, nil
}
