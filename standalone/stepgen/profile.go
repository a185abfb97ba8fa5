package stepgen

import (
	"math"
	"time"
)

type profilePhase uint8

const (
	phaseAccel profilePhase = iota
	phaseCruise
	phaseDecel
)

// Profile generates the inter-pulse periods of one trapezoidal move.
// Rates are in steps per second. The rate starts at min, rises by
// accel*period after every pulse until it reaches max or half the pulses
// are spent, holds, then falls back the same way.
type Profile struct {
	total   uint64
	emitted uint64

	min   float64
	max   float64
	accel float64
	rate  float64

	phase      profilePhase
	accelSteps uint64
	cruiseEnd  uint64
}

// NewProfile creates a profile for steps pulses. Rates below 1 step/s are
// raised to 1; a min above max runs the whole move at max.
func NewProfile(steps uint64, minSPS, maxSPS, accelSPS uint64) *Profile {
	hi := math.Max(float64(maxSPS), 1)
	lo := math.Min(math.Max(float64(minSPS), 1), hi)
	return &Profile{
		total: steps,
		min:   lo,
		max:   hi,
		accel: float64(accelSPS),
		rate:  lo,
	}
}

// Total returns the number of pulses the profile emits
func (p *Profile) Total() uint64 {
	return p.total
}

// Remaining returns the number of pulses not yet emitted
func (p *Profile) Remaining() uint64 {
	return p.total - p.emitted
}

// Rate returns the step rate the next pulse will be emitted at
func (p *Profile) Rate() float64 {
	return p.rate
}

// AccelSteps returns the length of the acceleration ramp; valid once the
// profile has left the acceleration phase
func (p *Profile) AccelSteps() uint64 {
	return p.accelSteps
}

// Next returns the period of the next pulse, or false when the move is done
func (p *Profile) Next() (time.Duration, bool) {
	if p.emitted >= p.total {
		return 0, false
	}

	switch p.phase {
	case phaseAccel:
		if p.rate < p.max && p.emitted < p.total/2 {
			period := p.period()
			p.rate = math.Min(p.rate+p.accel*period.Seconds(), p.max)
			p.emitted++
			p.accelSteps++
			return period, true
		}
		p.phase = phaseCruise
		p.cruiseEnd = p.total - p.accelSteps
		fallthrough

	case phaseCruise:
		if p.emitted < p.cruiseEnd {
			p.emitted++
			return p.period(), true
		}
		p.phase = phaseDecel
		fallthrough

	default:
		period := p.period()
		p.rate = math.Max(p.rate-p.accel*period.Seconds(), p.min)
		p.emitted++
		return period, true
	}
}

// period converts the current rate to a pulse period, rounded up so the
// emitted rate never exceeds the computed one
func (p *Profile) period() time.Duration {
	return time.Duration(math.Ceil(float64(time.Second) / p.rate))
}
