//go:build tinygo && rp2040

package main

import (
	"machine"
	"time"
)

// usbStream adapts machine.Serial (USB CDC on RP2040) to io.ReadWriter.
// Read polls until at least one byte is buffered.
type usbStream struct{}

// InitUSB configures USB CDC serial
func InitUSB() usbStream {
	machine.Serial.Configure(machine.UARTConfig{})
	return usbStream{}
}

func (usbStream) Read(b []byte) (int, error) {
	for machine.Serial.Buffered() == 0 {
		time.Sleep(time.Millisecond)
	}
	n := 0
	for n < len(b) && machine.Serial.Buffered() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		b[n] = c
		n++
	}
	return n, nil
}

func (usbStream) Write(b []byte) (int, error) {
	return machine.Serial.Write(b)
}
