package standalone

import (
	"time"

	"dispenser/standalone/stepgen"
	"dispenser/standalone/store"

	"github.com/pkg/errors"
)

// MaxPositions is the capacity of the position list
const MaxPositions = 100

var (
	ErrListFull    = errors.New("position list full")
	ErrQueueClosed = errors.New("controller stopped")
)

// Failure event names, as recorded in diagnostics and reported to observers
const (
	EventStoreBackup  = "store_backup"
	EventStoreRestore = "store_restore"
	EventMotion       = "motion"
	EventPump         = "pump"
	EventListFull     = "list_full"
	EventQueueFull    = "queue_full"
)

// Mode is the controller state
type Mode int32

const (
	// ModeScheduled sweeps the position list autonomously
	ModeScheduled Mode = iota
	// ModeManual executes operator commands one at a time
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeScheduled:
		return "scheduled"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// MarshalText renders the mode name in JSON output
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Pump is a two-state actuator
type Pump interface {
	On() error
	Off() error
	IsOn() bool
}

// Persister saves and loads the position list
type Persister interface {
	Backup(positions []store.Position) error
	Restore() ([]store.Position, error)
}

// Observer receives controller events. Methods may be called from any
// goroutine and must not block.
type Observer interface {
	CommandHandled(name string)
	ModeChanged(mode Mode)
	PositionVisited(index int, pos store.Position)
	Failure(event string, err error)
}

// AxisStatus is the state of one axis
type AxisStatus struct {
	Name string `json:"name"`
	stepgen.Params
}

// Status is a point-in-time view of the controller
type Status struct {
	Version        string        `json:"version"`
	Mode           Mode          `json:"mode"`
	Axes           []AxisStatus  `json:"axes"`
	Positions      int           `json:"positions"`
	Capacity       int           `json:"capacity"`
	RepeatDuration time.Duration `json:"repeat_duration"`
	PumpOn         bool          `json:"pump_on"`
	Failures       uint64        `json:"failures"`
	LastFailure    string        `json:"last_failure,omitempty"`
}
