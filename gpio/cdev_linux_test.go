//go:build linux

package gpio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiosim"

	"gregoryjjb/netgpio/gpio"
	"gregoryjjb/netgpio/pinbank"
)

func TestCdevDriver(t *testing.T) {
	s, err := gpiosim.NewSimpleton(pinbank.Width)
	if err != nil {
		t.Skip("gpio-sim not available:", err)
	}
	defer s.Close()

	d, err := gpio.NewCdevDriver(s.DevPath())
	require.NoError(t, err)

	pinout := []int{0, 1, 2, 3, 4, 5, 6, 7}
	bank, err := pinbank.Configure(pinbank.DefaultDescription(), pinout, d)
	require.NoError(t, err)
	defer bank.Close()

	for _, offset := range pinout {
		level, err := s.Level(offset)
		require.NoError(t, err)
		assert.Equal(t, 0, level)
	}

	states := []bool{true, false, true, true, false, false, false, true}
	require.NoError(t, bank.SetStates(states))
	for i, offset := range pinout {
		level, err := s.Level(offset)
		require.NoError(t, err)
		assert.Equal(t, states[i], level == 1, "line %d", offset)
	}
}
