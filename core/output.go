package core

import "github.com/pkg/errors"

// DigitalOutput is a two-state output on one GPIO pin (pump, enable lines)
type DigitalOutput struct {
	driver GPIODriver
	pin    GPIOPin
	invert bool
	on     bool
}

// NewDigitalOutput configures pin as an output and drives it to the off level
func NewDigitalOutput(driver GPIODriver, pin GPIOPin, invert bool) (*DigitalOutput, error) {
	if err := driver.ConfigureOutput(pin); err != nil {
		return nil, errors.Wrapf(err, "DigitalOutput: configure pin %d", pin)
	}
	out := &DigitalOutput{driver: driver, pin: pin, invert: invert}
	if err := out.Off(); err != nil {
		return nil, err
	}
	return out, nil
}

// On drives the output to its active level
func (o *DigitalOutput) On() error {
	return o.set(true)
}

// Off drives the output to its inactive level
func (o *DigitalOutput) Off() error {
	return o.set(false)
}

// IsOn reports the last level successfully written
func (o *DigitalOutput) IsOn() bool {
	return o.on
}

func (o *DigitalOutput) set(on bool) error {
	if err := o.driver.SetPin(o.pin, on != o.invert); err != nil {
		return errors.Wrapf(err, "DigitalOutput: set pin %d", o.pin)
	}
	o.on = on
	return nil
}
