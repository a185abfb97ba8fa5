package store

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestRecordRoundTrip(t *testing.T) {
	tests := []Position{
		{0, 0, 0, 0},
		{10, -3, 7, 1000},
		{-1, 95, 96, 60000},
		{math.MaxInt32, math.MinInt32, 0, math.MaxUint32},
	}

	for _, p := range tests {
		got, err := DecodeRecord(EncodeRecord(p))
		if err != nil {
			t.Errorf("%v: decode failed: %v", p, err)
			continue
		}
		if got != p {
			t.Errorf("Round trip mismatch: got %v, want %v", got, p)
		}
	}
}

func TestDecodeRecordRejects(t *testing.T) {
	erased := [PageSize]byte{}
	for i := range erased {
		erased[i] = 0xFF
	}

	short := EncodeRecord(Position{1, 2, 3, 4})
	short[0]--

	long := EncodeRecord(Position{1, 2, 3, 4})
	long[0]++

	tests := []struct {
		name string
		page [PageSize]byte
	}{
		{"zeroed", [PageSize]byte{}},
		{"erased", erased},
		{"truncated", short},
		{"trailing bytes", long},
	}

	for _, test := range tests {
		_, err := DecodeRecord(test.page)
		if errors.Cause(err) != ErrCorruptRecord {
			t.Errorf("%s: expected ErrCorruptRecord, got %v", test.name, err)
		}
	}
}

func TestPositionLess(t *testing.T) {
	a := Position{X: 1, Y: 5, Z: 9}
	b := Position{X: 1, Y: 6, Z: 0}
	c := Position{X: 2}

	if !a.Less(b) || !b.Less(c) || !a.Less(c) {
		t.Error("Expected a < b < c")
	}
	if a.Less(a) {
		t.Error("Less should be strict")
	}
	if (Position{X: 1, Y: 5, Z: 9, DurationMS: 1}).Less(a) {
		t.Error("Duration should not affect ordering")
	}
}

func TestPositionString(t *testing.T) {
	if got := (Position{10, -2, 0, 500}).String(); got != "(10, -2, 0) 500ms" {
		t.Errorf("Unexpected string %q", got)
	}
}
