//go:build tinygo && rp2040

package main

import (
	"machine"
	"sync"

	"dispenser/core"

	"github.com/pkg/errors"
)

// RPGPIODriver implements core.GPIODriver on machine.Pin. Axes step from
// separate goroutines, so the pin table is locked.
type RPGPIODriver struct {
	mu             sync.Mutex
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pin > 29 {
		return errors.Errorf("RPGPIODriver: no GPIO%d", pin)
	}
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	// GPIO numbers map directly to machine.Pin on RP2040
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	d.mu.Lock()
	machinePin, exists := d.configuredPins[pin]
	d.mu.Unlock()
	if !exists {
		return core.ErrPinNotConfigured
	}
	machinePin.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	d.mu.Lock()
	machinePin, exists := d.configuredPins[pin]
	d.mu.Unlock()
	if !exists {
		return false, core.ErrPinNotConfigured
	}
	return machinePin.Get(), nil
}
