package stepgen

import (
	"testing"
	"time"
)

func drain(p *Profile) (periods []time.Duration, rates []float64) {
	for {
		rate := p.Rate()
		period, ok := p.Next()
		if !ok {
			return periods, rates
		}
		periods = append(periods, period)
		rates = append(rates, rate)
	}
}

func TestProfilePulseCount(t *testing.T) {
	for _, steps := range []uint64{0, 1, 2, 3, 7, 40, 101, 1000, 5000, 20000} {
		p := NewProfile(steps, 200, 5000, 1000)
		periods, _ := drain(p)
		if uint64(len(periods)) != steps {
			t.Errorf("steps=%d: emitted %d pulses", steps, len(periods))
		}
		if p.Remaining() != 0 {
			t.Errorf("steps=%d: %d pulses remaining", steps, p.Remaining())
		}
		if _, ok := p.Next(); ok {
			t.Errorf("steps=%d: Next should stay exhausted", steps)
		}
	}
}

func TestProfileRateBounds(t *testing.T) {
	const (
		minSPS   = 200
		maxSPS   = 5000
		accelSPS = 1000
	)

	for _, steps := range []uint64{10, 500, 20000} {
		p := NewProfile(steps, minSPS, maxSPS, accelSPS)
		periods, rates := drain(p)

		for i, period := range periods {
			if rates[i] > maxSPS {
				t.Fatalf("steps=%d pulse %d: rate %.2f above max", steps, i, rates[i])
			}
			if rates[i] < minSPS {
				t.Fatalf("steps=%d pulse %d: rate %.2f below min", steps, i, rates[i])
			}
			// Emitted rate never exceeds the computed one
			if float64(time.Second)/float64(period) > rates[i]+1e-9 {
				t.Fatalf("steps=%d pulse %d: period %v faster than rate %.2f", steps, i, period, rates[i])
			}
			if i > 0 {
				change := rates[i] - rates[i-1]
				if change < 0 {
					change = -change
				}
				if limit := accelSPS*periods[i-1].Seconds() + 1e-6; change > limit {
					t.Fatalf("steps=%d pulse %d: rate changed by %.3f, limit %.3f", steps, i, change, limit)
				}
			}
		}
	}
}

func TestProfileTrapezoid(t *testing.T) {
	p := NewProfile(40000, 200, 5000, 1000)
	periods, rates := drain(p)

	ramp := p.AccelSteps()
	if ramp == 0 || ramp >= 20000 {
		t.Fatalf("Expected a ramp shorter than half the move, got %d", ramp)
	}
	if rates[ramp] != 5000 {
		t.Errorf("Expected cruise at max rate, got %.2f", rates[ramp])
	}
	if periods[0] != 5*time.Millisecond {
		t.Errorf("Expected first period 5ms, got %v", periods[0])
	}
	if periods[len(periods)-1] <= periods[ramp] {
		t.Errorf("Expected final pulse slower than cruise")
	}
}

func TestProfileShortMove(t *testing.T) {
	// Too short to reach max: half the pulses ramp up, half ramp down
	p := NewProfile(4, 200, 5000, 1000)
	periods, rates := drain(p)

	if p.AccelSteps() != 2 {
		t.Errorf("Expected 2 ramp pulses, got %d", p.AccelSteps())
	}
	if len(periods) != 4 {
		t.Fatalf("Expected 4 pulses, got %d", len(periods))
	}
	if !(rates[0] < rates[1] && rates[2] > rates[3]) {
		t.Errorf("Expected up-then-down rates, got %v", rates)
	}
}

func TestProfileFlat(t *testing.T) {
	tests := []struct {
		name            string
		min, max, accel uint64
		want            time.Duration
	}{
		{"min above max", 500, 100, 50, 10 * time.Millisecond},
		{"no acceleration", 100, 1000, 0, 10 * time.Millisecond},
		{"zero rates", 0, 0, 10, time.Second},
	}

	for _, test := range tests {
		periods, _ := drain(NewProfile(9, test.min, test.max, test.accel))
		for i, period := range periods {
			if period != test.want {
				t.Errorf("%s: pulse %d period %v, want %v", test.name, i, period, test.want)
				break
			}
		}
	}
}
