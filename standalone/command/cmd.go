package command

// Axis indexes the three gantry axes
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	NumAxes
)

// Axes lists the axes in canonical order
var Axes = [NumAxes]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "?"
	}
}

// AxisSet is a sparse per-axis override of signed step coordinates.
// An absent axis means "leave unchanged".
type AxisSet struct {
	values  [NumAxes]int32
	present [NumAxes]bool
}

// With returns a copy of s with axis set to v
func (s AxisSet) With(axis Axis, v int32) AxisSet {
	s.values[axis] = v
	s.present[axis] = true
	return s
}

// Get returns the value for axis and whether it is present
func (s AxisSet) Get(axis Axis) (int32, bool) {
	return s.values[axis], s.present[axis]
}

// Or returns the value for axis, or def when absent
func (s AxisSet) Or(axis Axis, def int32) int32 {
	if s.present[axis] {
		return s.values[axis]
	}
	return def
}

// Complete reports whether all three axes are present
func (s AxisSet) Complete() bool {
	return s.present[AxisX] && s.present[AxisY] && s.present[AxisZ]
}

// Empty reports whether no axis is present
func (s AxisSet) Empty() bool {
	return !s.present[AxisX] && !s.present[AxisY] && !s.present[AxisZ]
}

// AxisMagnitudeSet is the unsigned counterpart of AxisSet, used for speed,
// acceleration and steps-per-distance parameters
type AxisMagnitudeSet struct {
	values  [NumAxes]uint32
	present [NumAxes]bool
}

// With returns a copy of s with axis set to v
func (s AxisMagnitudeSet) With(axis Axis, v uint32) AxisMagnitudeSet {
	s.values[axis] = v
	s.present[axis] = true
	return s
}

// Get returns the value for axis and whether it is present
func (s AxisMagnitudeSet) Get(axis Axis) (uint32, bool) {
	return s.values[axis], s.present[axis]
}

// Magnitudes converts a signed set, failing if any present value is negative
func Magnitudes(s AxisSet) (AxisMagnitudeSet, bool) {
	var out AxisMagnitudeSet
	for _, axis := range Axes {
		v, ok := s.Get(axis)
		if !ok {
			continue
		}
		if v < 0 {
			return AxisMagnitudeSet{}, false
		}
		out = out.With(axis, uint32(v))
	}
	return out, true
}

// Cmd is a parsed operator command. The set of implementations is closed:
// only types in this package satisfy it.
type Cmd interface {
	// Name returns the command keyword
	Name() string
	isCmd()
}

type (
	// Goto moves each present axis to an absolute coordinate
	Goto struct{ Target AxisSet }
	// Move moves each present axis by a relative distance
	Move struct{ Delta AxisSet }
	// SpeedMin sets the profile start/end speed per axis
	SpeedMin struct{ Values AxisMagnitudeSet }
	// SpeedMax sets the cruise speed bound per axis
	SpeedMax struct{ Values AxisMagnitudeSet }
	// SpeedAccel sets the acceleration bound per axis
	SpeedAccel struct{ Values AxisMagnitudeSet }
	// StepPerMM sets the steps-per-distance conversion per axis
	StepPerMM struct{ Values AxisMagnitudeSet }

	// AddPos appends a watering position; Pos is always complete
	AddPos struct {
		Pos         AxisSet
		Duration    uint32
		HasDuration bool
	}

	// WaterDuration changes one position's duration, or all when HasIndex is false
	WaterDuration struct {
		Index    uint32
		HasIndex bool
		Duration uint32
	}

	// DelPos removes the position at Index
	DelPos struct{ Index uint32 }
	// RepeatDuration sets the inter-cycle wait in milliseconds
	RepeatDuration struct{ Millis uint32 }

	PumpOn  struct{}
	PumpOff struct{}
	ListPos struct{}
	Start   struct{}
	Stop    struct{}
	Home    struct{}
	Help    struct{}
	Status  struct{}
)

func (Goto) Name() string           { return "goto" }
func (Move) Name() string           { return "move" }
func (SpeedMin) Name() string       { return "speed min" }
func (SpeedMax) Name() string       { return "speed max" }
func (SpeedAccel) Name() string     { return "speed acc" }
func (StepPerMM) Name() string      { return "step_per_mm" }
func (AddPos) Name() string         { return "add pos" }
func (WaterDuration) Name() string  { return "water duration" }
func (DelPos) Name() string         { return "del pos" }
func (RepeatDuration) Name() string { return "repeat duration" }
func (PumpOn) Name() string         { return "pump on" }
func (PumpOff) Name() string        { return "pump off" }
func (ListPos) Name() string        { return "list pos" }
func (Start) Name() string          { return "start" }
func (Stop) Name() string           { return "stop" }
func (Home) Name() string           { return "home" }
func (Help) Name() string           { return "help" }
func (Status) Name() string         { return "status" }

func (Goto) isCmd()           {}
func (Move) isCmd()           {}
func (SpeedMin) isCmd()       {}
func (SpeedMax) isCmd()       {}
func (SpeedAccel) isCmd()     {}
func (StepPerMM) isCmd()      {}
func (AddPos) isCmd()         {}
func (WaterDuration) isCmd()  {}
func (DelPos) isCmd()         {}
func (RepeatDuration) isCmd() {}
func (PumpOn) isCmd()         {}
func (PumpOff) isCmd()        {}
func (ListPos) isCmd()        {}
func (Start) isCmd()          {}
func (Stop) isCmd()           {}
func (Home) isCmd()           {}
func (Help) isCmd()           {}
func (Status) isCmd()         {}
