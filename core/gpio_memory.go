package core

import "sync"

// EdgeFunc is called after every level change on a MemoryGPIO pin
type EdgeFunc func(pin GPIOPin, level bool)

// MemoryGPIO is a GPIODriver that keeps pin levels in memory.
// It backs the simulator and the tests; rising edges are counted per pin
// so step pulses can be checked without hardware.
type MemoryGPIO struct {
	mu         sync.Mutex
	configured map[GPIOPin]bool
	levels     map[GPIOPin]bool
	rising     map[GPIOPin]uint64
	onEdge     EdgeFunc
	failPins   map[GPIOPin]error
}

// NewMemoryGPIO creates an empty in-memory driver
func NewMemoryGPIO() *MemoryGPIO {
	return &MemoryGPIO{
		configured: make(map[GPIOPin]bool),
		levels:     make(map[GPIOPin]bool),
		rising:     make(map[GPIOPin]uint64),
		failPins:   make(map[GPIOPin]error),
	}
}

// OnEdge installs a callback invoked on every level change
func (g *MemoryGPIO) OnEdge(fn EdgeFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onEdge = fn
}

// FailPin makes every SetPin on pin return err (nil clears it)
func (g *MemoryGPIO) FailPin(pin GPIOPin, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failPins, pin)
		return
	}
	g.failPins[pin] = err
}

// ConfigureOutput configures a pin as a digital output, driven low
func (g *MemoryGPIO) ConfigureOutput(pin GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.configured[pin] = true
	g.levels[pin] = false
	return nil
}

// SetPin sets the pin level
func (g *MemoryGPIO) SetPin(pin GPIOPin, value bool) error {
	g.mu.Lock()
	if err := g.failPins[pin]; err != nil {
		g.mu.Unlock()
		return err
	}
	if !g.configured[pin] {
		g.mu.Unlock()
		return ErrPinNotConfigured
	}
	prev := g.levels[pin]
	g.levels[pin] = value
	if value && !prev {
		g.rising[pin]++
	}
	fn := g.onEdge
	g.mu.Unlock()

	if fn != nil && prev != value {
		fn(pin, value)
	}
	return nil
}

// GetPin reads the current pin level
func (g *MemoryGPIO) GetPin(pin GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.configured[pin] {
		return false, ErrPinNotConfigured
	}
	return g.levels[pin], nil
}

// RisingEdges returns how many low-to-high transitions pin has seen
func (g *MemoryGPIO) RisingEdges(pin GPIOPin) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rising[pin]
}
