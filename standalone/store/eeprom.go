package store

import (
	"github.com/pkg/errors"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/at24cx"
)

// AT24C32 geometry
const (
	DefaultAddress   = 0x50
	AT24C32Size      = 4096
	AT24C32PageBytes = 32
)

// EEPROM is a PageDevice on an AT24Cxx serial EEPROM
type EEPROM struct {
	dev   at24cx.Device
	pages int
}

// NewEEPROM configures an AT24Cxx of size bytes at address on bus
func NewEEPROM(bus drivers.I2C, address uint16, size int) *EEPROM {
	dev := at24cx.New(bus)
	dev.Address = address
	dev.Configure(at24cx.Config{
		PageSize:        AT24C32PageBytes,
		StartRAMAddress: 0,
		EndRAMAddress:   uint16(size - 1),
	})
	return &EEPROM{dev: dev, pages: size / PageSize}
}

// Pages returns the number of PageSize pages on the chip
func (e *EEPROM) Pages() int {
	return e.pages
}

// WritePage writes one page
func (e *EEPROM) WritePage(index int, page [PageSize]byte) error {
	if err := checkPage(e, index); err != nil {
		return err
	}
	if _, err := e.dev.WriteAt(page[:], int64(index*PageSize)); err != nil {
		return errors.Wrapf(err, "EEPROM: write page %d", index)
	}
	return nil
}

// ReadPage reads one page
func (e *EEPROM) ReadPage(index int) ([PageSize]byte, error) {
	var page [PageSize]byte
	if err := checkPage(e, index); err != nil {
		return page, err
	}
	if _, err := e.dev.ReadAt(page[:], int64(index*PageSize)); err != nil {
		return page, errors.Wrapf(err, "EEPROM: read page %d", index)
	}
	return page, nil
}
