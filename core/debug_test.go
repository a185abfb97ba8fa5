package core

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestVirtualClock(t *testing.T) {
	clock := NewVirtualClock()

	clock.Sleep(10 * time.Millisecond)
	clock.Sleep(-time.Second) // ignored
	<-clock.After(5 * time.Millisecond)

	if got := clock.Elapsed(); got != 15*time.Millisecond {
		t.Errorf("Expected 15ms elapsed, got %v", got)
	}
}

func TestVirtualClockConcurrentSleepsAccumulate(t *testing.T) {
	clock := NewVirtualClock()

	var wg sync.WaitGroup
	for _, d := range []time.Duration{30 * time.Millisecond, 50 * time.Millisecond} {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Sleep(d)
		}()
	}
	wg.Wait()

	if got := clock.Elapsed(); got != 80*time.Millisecond {
		t.Errorf("Expected concurrent sleeps to sum to 80ms, got %v", got)
	}
}

func TestDiagnosticsRecord(t *testing.T) {
	diag := NewDiagnostics(NewVirtualClock())

	if _, ok := diag.Last(); ok {
		t.Error("Empty ring should have no last event")
	}

	diag.Record("store_backup", errors.New("nak"))
	diag.Record("motion", errors.New("pin fault"))

	if diag.Total() != 2 {
		t.Errorf("Expected total 2, got %d", diag.Total())
	}

	last, ok := diag.Last()
	if !ok || last.Event != "motion" || last.Message != "pin fault" {
		t.Errorf("Unexpected last event: %+v", last)
	}

	snap := diag.Snapshot()
	if len(snap) != 2 || snap[0].Event != "store_backup" {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
}

func TestDiagnosticsWraps(t *testing.T) {
	diag := NewDiagnostics(nil)

	for i := 0; i < DiagnosticRingSize+5; i++ {
		diag.Record("e", errors.New(string(rune('a'+i%26))))
	}

	snap := diag.Snapshot()
	if len(snap) != DiagnosticRingSize {
		t.Fatalf("Expected %d retained events, got %d", DiagnosticRingSize, len(snap))
	}
	// Oldest retained is the 6th recorded
	if snap[0].Message != string(rune('a'+5)) {
		t.Errorf("Expected oldest message %q, got %q", string(rune('a'+5)), snap[0].Message)
	}

	diag.Clear()
	if diag.Total() != 0 || len(diag.Snapshot()) != 0 {
		t.Error("Clear should empty the ring")
	}
}
