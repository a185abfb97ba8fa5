package standalone

import (
	"fmt"
	"sort"
	"strings"

	"dispenser/standalone/store"
)

// PositionList is a bounded list of positions kept in (x, y, z) order.
// Equal coordinates keep insertion order.
type PositionList struct {
	items    []store.Position
	capacity int
}

// NewPositionList creates an empty list
func NewPositionList(capacity int) *PositionList {
	return &PositionList{items: make([]store.Position, 0, capacity), capacity: capacity}
}

// Len returns the number of positions
func (l *PositionList) Len() int {
	return len(l.items)
}

// Cap returns the list capacity
func (l *PositionList) Cap() int {
	return l.capacity
}

// At returns the position at index i
func (l *PositionList) At(i int) store.Position {
	return l.items[i]
}

// Items returns a copy of the positions in order
func (l *PositionList) Items() []store.Position {
	out := make([]store.Position, len(l.items))
	copy(out, l.items)
	return out
}

// Add inserts p after every position that does not sort after it
func (l *PositionList) Add(p store.Position) error {
	if len(l.items) >= l.capacity {
		return ErrListFull
	}
	i := sort.Search(len(l.items), func(i int) bool { return p.Less(l.items[i]) })
	l.items = append(l.items, store.Position{})
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = p
	return nil
}

// Delete removes the position at index i, reporting whether it existed
func (l *PositionList) Delete(i int) bool {
	if i < 0 || i >= len(l.items) {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// SetDuration changes the duration at index i, reporting whether it existed
func (l *PositionList) SetDuration(i int, ms uint32) bool {
	if i < 0 || i >= len(l.items) {
		return false
	}
	l.items[i].DurationMS = ms
	return true
}

// SetAllDurations changes every duration, reporting whether the list was non-empty
func (l *PositionList) SetAllDurations(ms uint32) bool {
	for i := range l.items {
		l.items[i].DurationMS = ms
	}
	return len(l.items) > 0
}

// Replace loads positions, sorting them and dropping any beyond capacity
func (l *PositionList) Replace(positions []store.Position) {
	if len(positions) > l.capacity {
		positions = positions[:l.capacity]
	}
	l.items = append(l.items[:0], positions...)
	sort.SliceStable(l.items, func(i, j int) bool { return l.items[i].Less(l.items[j]) })
}

// Render lists one position per line as "index: (x, y, z) durationms"
func (l *PositionList) Render() string {
	var sb strings.Builder
	for i, p := range l.items {
		fmt.Fprintf(&sb, "%d: %s\n", i, p)
	}
	return sb.String()
}
