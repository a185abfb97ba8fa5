//go:build tinygo && rp2040

package main

import (
	"context"
	"machine"
	"time"

	"dispenser/core"
	"dispenser/protocol"
	"dispenser/standalone"
	"dispenser/standalone/config"
	"dispenser/standalone/store"

	"github.com/sirupsen/logrus"
)

func main() {
	usb := InitUSB()

	// USB carries the line protocol; logs go to the debug UART
	machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})
	logger := logrus.New()
	logger.SetOutput(machine.UART0)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	log := logrus.NewEntry(logger)

	cfg := config.DefaultConfig()

	// SDA=GP4, SCL=GP5
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		SDA:       machine.GP4,
		SCL:       machine.GP5,
		Frequency: 400 * machine.KHz,
	}); err != nil {
		fatal(log, err)
	}
	eeprom := store.NewEEPROM(i2c, cfg.EEPROMAddress, cfg.EEPROMSize)

	ctrl, err := standalone.NewWithConfig(cfg, NewRPGPIODriver(), eeprom, core.SystemClock{}, log)
	if err != nil {
		fatal(log, err)
	}

	ctx := context.Background()
	transport := protocol.NewTransport(usb, ctrl.HandleLine, log)
	go func() {
		if err := transport.Serve(ctx); err != nil {
			log.WithError(err).Error("transport stopped")
		}
	}()

	if err := ctrl.Run(ctx); err != nil {
		fatal(log, err)
	}
}

// fatal logs err and flashes the LED forever
func fatal(log *logrus.Entry, err error) {
	log.WithError(err).Error("startup failed")
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
