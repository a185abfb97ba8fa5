package store

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// ErrNoAck is returned when a transaction addresses a missing device
var ErrNoAck = errors.New("i2c: no acknowledge")

// MemoryEEPROM emulates a two-byte-addressed serial EEPROM on an I2C bus.
// It implements the drivers.I2C Tx method so the real AT24Cxx driver can
// run against it (for simulation and testing).
type MemoryEEPROM struct {
	mu      sync.Mutex
	address uint16
	mem     []byte
	pointer int // Internal address counter

	failWrites error
	failReads  error
	writes     uint64
}

// NewMemoryEEPROM creates an erased (all 0xFF) device of size bytes
func NewMemoryEEPROM(address uint16, size int) *MemoryEEPROM {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &MemoryEEPROM{address: address, mem: mem}
}

// Tx performs one bus transaction. A write of two address bytes sets the
// internal pointer; further written bytes are stored from there. A read
// continues from the pointer.
func (m *MemoryEEPROM) Tx(addr uint16, w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr != m.address {
		return errors.Wrapf(ErrNoAck, "address 0x%02x", addr)
	}

	switch {
	case len(w) == 1:
		return errors.New("MemoryEEPROM: incomplete memory address")
	case len(w) >= 2:
		m.pointer = (int(w[0])<<8 | int(w[1])) % len(m.mem)
		if data := w[2:]; len(data) > 0 {
			if m.failWrites != nil {
				return m.failWrites
			}
			for _, b := range data {
				m.mem[m.pointer] = b
				m.pointer = (m.pointer + 1) % len(m.mem)
			}
			m.writes++
		}
	}

	if len(r) > 0 {
		if m.failReads != nil {
			return m.failReads
		}
		for i := range r {
			r[i] = m.mem[m.pointer]
			m.pointer = (m.pointer + 1) % len(m.mem)
		}
	}
	return nil
}

// FailWrites makes every data write fail with err; nil restores normal operation
func (m *MemoryEEPROM) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

// FailReads makes every read fail with err; nil restores normal operation
func (m *MemoryEEPROM) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = err
}

// Writes returns the number of data write transactions
func (m *MemoryEEPROM) Writes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Poke overwrites raw memory, bypassing the bus
func (m *MemoryEEPROM) Poke(offset int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.mem[offset:], data)
}

// Peek returns a copy of raw memory
func (m *MemoryEEPROM) Peek(offset, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	copy(out, m.mem[offset:])
	return out
}

// LoadImage replaces memory with an image read from r. A short image
// leaves the remainder erased.
func (m *MemoryEEPROM) LoadImage(r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(m.mem))
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.Wrap(err, "MemoryEEPROM: load image")
	}
	copy(m.mem, buf[:n])
	for i := n; i < len(m.mem); i++ {
		m.mem[i] = 0xFF
	}
	return nil
}

// SaveImage writes the full memory contents to w
func (m *MemoryEEPROM) SaveImage(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := w.Write(m.mem); err != nil {
		return errors.Wrap(err, "MemoryEEPROM: save image")
	}
	return nil
}

// MemoryPages is a PageDevice held directly in memory, without a bus
type MemoryPages struct {
	pages [][PageSize]byte
}

// NewMemoryPages creates n erased pages
func NewMemoryPages(n int) *MemoryPages {
	pages := make([][PageSize]byte, n)
	for i := range pages {
		for j := range pages[i] {
			pages[i][j] = 0xFF
		}
	}
	return &MemoryPages{pages: pages}
}

func (m *MemoryPages) Pages() int {
	return len(m.pages)
}

func (m *MemoryPages) WritePage(index int, page [PageSize]byte) error {
	if err := checkPage(m, index); err != nil {
		return err
	}
	m.pages[index] = page
	return nil
}

func (m *MemoryPages) ReadPage(index int) ([PageSize]byte, error) {
	if err := checkPage(m, index); err != nil {
		return [PageSize]byte{}, err
	}
	return m.pages[index], nil
}
