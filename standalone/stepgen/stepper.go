package stepgen

import (
	"math"
	"time"

	"dispenser/core"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Default axis parameters, in distance units (speeds per second)
const (
	DefaultStepPerMM  = 20
	DefaultSpeedMin   = 10
	DefaultSpeedMax   = 250
	DefaultSpeedAccel = 50
	DefaultPulseWidth = 10 * time.Microsecond
)

// Config describes one axis: its two outputs and its motion parameters
type Config struct {
	StepPin   core.GPIOPin
	DirPin    core.GPIOPin
	InvertDir bool

	StepPerMM  uint32
	SpeedMin   uint32
	SpeedMax   uint32
	SpeedAccel uint32

	PulseWidth time.Duration // Step output high time
}

// Params is a snapshot of an axis' motion state
type Params struct {
	Position   int32  `json:"position"`
	StepPerMM  uint32 `json:"step_per_mm"`
	SpeedMin   uint32 `json:"speed_min"`
	SpeedMax   uint32 `json:"speed_max"`
	SpeedAccel uint32 `json:"speed_accel"`
}

// Stepper represents a single stepper motor. A Stepper is not safe for
// concurrent use; different Steppers may move concurrently.
type Stepper struct {
	name  string
	gpio  core.GPIODriver
	clock core.Clock
	log   *logrus.Entry

	stepPin    core.GPIOPin
	dirPin     core.GPIOPin
	invertDir  bool
	pulseWidth time.Duration

	// Position in distance units, updated only when a move completes
	currentPos int32

	stepPerMM  uint32
	speedMin   uint32
	speedMax   uint32
	speedAccel uint32
}

// NewStepper configures the step and direction outputs and creates a
// stepper at position 0
func NewStepper(name string, cfg Config, gpio core.GPIODriver, clock core.Clock, log *logrus.Entry) (*Stepper, error) {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = DefaultPulseWidth
	}

	for _, pin := range []core.GPIOPin{cfg.StepPin, cfg.DirPin} {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, errors.Wrapf(err, "Stepper %s: configure pin %d", name, pin)
		}
	}

	return &Stepper{
		name:       name,
		gpio:       gpio,
		clock:      clock,
		log:        log.WithFields(logrus.Fields{"component": "stepper", "axis": name}),
		stepPin:    cfg.StepPin,
		dirPin:     cfg.DirPin,
		invertDir:  cfg.InvertDir,
		pulseWidth: cfg.PulseWidth,
		stepPerMM:  cfg.StepPerMM,
		speedMin:   cfg.SpeedMin,
		speedMax:   cfg.SpeedMax,
		speedAccel: cfg.SpeedAccel,
	}, nil
}

// Goto moves the axis to target and blocks until the last pulse is out.
// The recorded position changes only if every pulse was issued.
func (s *Stepper) Goto(target int32) error {
	delta := int64(target) - int64(s.currentPos)
	if delta == 0 {
		return nil
	}

	if err := s.gpio.SetPin(s.dirPin, (delta > 0) != s.invertDir); err != nil {
		return errors.Wrapf(err, "Stepper %s: set direction", s.name)
	}

	profile := s.profile(delta)
	s.log.WithFields(logrus.Fields{
		"from":  s.currentPos,
		"to":    target,
		"steps": profile.Total(),
	}).Debug("move started")

	for {
		period, ok := profile.Next()
		if !ok {
			break
		}
		if err := s.pulse(period); err != nil {
			return errors.Wrapf(err, "Stepper %s: pulse %d of %d", s.name,
				profile.Total()-profile.Remaining(), profile.Total())
		}
	}

	s.currentPos = target
	return nil
}

// Move moves the axis by distance relative to its current position,
// saturating at the coordinate range
func (s *Stepper) Move(distance int32) error {
	target := int64(s.currentPos) + int64(distance)
	if target > math.MaxInt32 {
		target = math.MaxInt32
	} else if target < math.MinInt32 {
		target = math.MinInt32
	}
	return s.Goto(int32(target))
}

// profile builds the step-rate profile for a move of delta distance units
func (s *Stepper) profile(delta int64) *Profile {
	if delta < 0 {
		delta = -delta
	}
	spm := uint64(s.stepPerMM)
	return NewProfile(
		uint64(delta)*spm,
		uint64(s.speedMin)*spm,
		uint64(s.speedMax)*spm,
		uint64(s.speedAccel)*spm,
	)
}

// pulse drives one step pulse and waits out the rest of period
func (s *Stepper) pulse(period time.Duration) error {
	if err := s.gpio.SetPin(s.stepPin, true); err != nil {
		return err
	}
	s.clock.Sleep(s.pulseWidth)
	if err := s.gpio.SetPin(s.stepPin, false); err != nil {
		return err
	}
	s.clock.Sleep(period - s.pulseWidth)
	return nil
}

// Name returns the axis name
func (s *Stepper) Name() string {
	return s.name
}

// CurrentPos returns the recorded position
func (s *Stepper) CurrentPos() int32 {
	return s.currentPos
}

// SetCurrentPos overwrites the recorded position without moving
func (s *Stepper) SetCurrentPos(pos int32) {
	s.currentPos = pos
}

func (s *Stepper) StepPerMM() uint32      { return s.stepPerMM }
func (s *Stepper) SetStepPerMM(v uint32)  { s.stepPerMM = v }
func (s *Stepper) SpeedMin() uint32       { return s.speedMin }
func (s *Stepper) SetSpeedMin(v uint32)   { s.speedMin = v }
func (s *Stepper) SpeedMax() uint32       { return s.speedMax }
func (s *Stepper) SetSpeedMax(v uint32)   { s.speedMax = v }
func (s *Stepper) SpeedAccel() uint32     { return s.speedAccel }
func (s *Stepper) SetSpeedAccel(v uint32) { s.speedAccel = v }

// Params returns a snapshot of the axis state
func (s *Stepper) Params() Params {
	return Params{
		Position:   s.currentPos,
		StepPerMM:  s.stepPerMM,
		SpeedMin:   s.speedMin,
		SpeedMax:   s.speedMax,
		SpeedAccel: s.speedAccel,
	}
}
