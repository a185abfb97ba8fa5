package standalone

import (
	"math/rand"
	"strings"
	"testing"

	"dispenser/standalone/store"
)

func isSorted(positions []store.Position) bool {
	for i := 1; i < len(positions); i++ {
		if positions[i].Less(positions[i-1]) {
			return false
		}
	}
	return true
}

func TestPositionListBound(t *testing.T) {
	list := NewPositionList(MaxPositions)
	for i := 0; i < MaxPositions; i++ {
		if err := list.Add(store.Position{X: int32(i), DurationMS: 1}); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	before := list.Items()

	if err := list.Add(store.Position{X: -1}); err != ErrListFull {
		t.Fatalf("Expected ErrListFull, got %v", err)
	}
	after := list.Items()
	if len(after) != MaxPositions {
		t.Fatalf("Expected %d positions, got %d", MaxPositions, len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Position %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestPositionListSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	list := NewPositionList(MaxPositions)

	for op := 0; op < 2000; op++ {
		if list.Len() > 0 && rng.Intn(3) == 0 {
			list.Delete(rng.Intn(list.Len()))
		} else {
			list.Add(store.Position{
				X:          int32(rng.Intn(7) - 3),
				Y:          int32(rng.Intn(7) - 3),
				Z:          int32(rng.Intn(3)),
				DurationMS: uint32(op),
			})
		}
		if !isSorted(list.Items()) {
			t.Fatalf("List unsorted after op %d: %v", op, list.Items())
		}
	}
}

func TestPositionListStableForEqualCoordinates(t *testing.T) {
	list := NewPositionList(10)
	if list.Cap() != 10 {
		t.Errorf("Expected capacity 10, got %d", list.Cap())
	}
	list.Add(store.Position{X: 1, DurationMS: 100})
	list.Add(store.Position{X: 0, DurationMS: 50})
	list.Add(store.Position{X: 1, DurationMS: 200})

	got := list.Items()
	if got[1].DurationMS != 100 || got[2].DurationMS != 200 {
		t.Errorf("Equal coordinates should keep insertion order, got %v", got)
	}
}

func TestPositionListEdits(t *testing.T) {
	list := NewPositionList(10)
	list.Add(store.Position{X: 2, DurationMS: 1000})
	list.Add(store.Position{X: 1, DurationMS: 1000})

	if list.Delete(5) || list.SetDuration(2, 10) {
		t.Error("Out of range edits should be no-ops")
	}
	if !list.SetDuration(1, 300) || list.At(1).DurationMS != 300 || list.At(1).X != 2 {
		t.Errorf("SetDuration edited the wrong entry: %v", list.Items())
	}
	if !list.SetAllDurations(700) || list.At(0).DurationMS != 700 || list.At(1).DurationMS != 700 {
		t.Errorf("SetAllDurations failed: %v", list.Items())
	}
	if !list.Delete(0) || list.Len() != 1 || list.At(0).X != 2 {
		t.Errorf("Delete failed: %v", list.Items())
	}
	if NewPositionList(1).SetAllDurations(5) {
		t.Error("SetAllDurations on an empty list should report no change")
	}
}

func TestPositionListReplace(t *testing.T) {
	list := NewPositionList(3)
	list.Replace([]store.Position{{X: 3}, {X: 1}, {X: 2}, {X: 0}})

	if list.Len() != 3 {
		t.Fatalf("Expected replace to truncate to capacity, got %d", list.Len())
	}
	if !isSorted(list.Items()) || list.At(0).X != 1 {
		t.Errorf("Expected sorted first three, got %v", list.Items())
	}
}

func TestPositionListRender(t *testing.T) {
	list := NewPositionList(10)
	list.Add(store.Position{X: 10, DurationMS: 500})
	list.Add(store.Position{X: 0, Y: -1, Z: 2, DurationMS: 1000})

	want := "0: (0, -1, 2) 1000ms\n1: (10, 0, 0) 500ms\n"
	if got := list.Render(); got != want {
		t.Errorf("Render:\n%s\nwant:\n%s", got, want)
	}
	if NewPositionList(1).Render() != "" {
		t.Error("Empty list should render nothing")
	}
	if !strings.HasSuffix(list.Render(), "\n") {
		t.Error("Render should end each line with a newline")
	}
}
