package core

import "github.com/pkg/errors"

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// ErrPinNotConfigured is returned when a pin is driven before ConfigureOutput
var ErrPinNotConfigured = errors.New("pin not configured as output")

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
// Implementations must be safe for concurrent use: axis profiles drive
// their own step pins from separate goroutines.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}
