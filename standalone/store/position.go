package store

import (
	"fmt"
	"time"

	"dispenser/protocol"

	"github.com/pkg/errors"
)

// ErrCorruptRecord is returned when a page does not hold a valid record
var ErrCorruptRecord = errors.New("corrupt position record")

// Position is one watering target: a gantry coordinate and how long the
// pump runs there
type Position struct {
	X          int32  `json:"x"`
	Y          int32  `json:"y"`
	Z          int32  `json:"z"`
	DurationMS uint32 `json:"duration_ms"`
}

// Less orders positions by x, then y, then z
func (p Position) Less(o Position) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

// Duration returns the dispense time
func (p Position) Duration() time.Duration {
	return time.Duration(p.DurationMS) * time.Millisecond
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d) %dms", p.X, p.Y, p.Z, p.DurationMS)
}

// EncodeRecord serializes p into a page: a length byte followed by x, y,
// z and duration as VLQ integers. Unused bytes are zero.
func EncodeRecord(p Position) [PageSize]byte {
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQInt(out, p.X)
	protocol.EncodeVLQInt(out, p.Y)
	protocol.EncodeVLQInt(out, p.Z)
	protocol.EncodeVLQUint(out, p.DurationMS)

	var page [PageSize]byte
	page[0] = byte(out.CurPosition())
	copy(page[1:], out.Result())
	return page
}

// DecodeRecord parses a page written by EncodeRecord. The length byte must
// be in range and the four values must fill it exactly.
func DecodeRecord(page [PageSize]byte) (Position, error) {
	n := int(page[0])
	if n == 0 || n > PageSize-1 {
		return Position{}, errors.Wrapf(ErrCorruptRecord, "length %d", n)
	}

	data := page[1 : 1+n]
	var p Position
	var err error
	if p.X, err = protocol.DecodeVLQInt(&data); err != nil {
		return Position{}, errors.Wrapf(ErrCorruptRecord, "x: %v", err)
	}
	if p.Y, err = protocol.DecodeVLQInt(&data); err != nil {
		return Position{}, errors.Wrapf(ErrCorruptRecord, "y: %v", err)
	}
	if p.Z, err = protocol.DecodeVLQInt(&data); err != nil {
		return Position{}, errors.Wrapf(ErrCorruptRecord, "z: %v", err)
	}
	if p.DurationMS, err = protocol.DecodeVLQUint(&data); err != nil {
		return Position{}, errors.Wrapf(ErrCorruptRecord, "duration: %v", err)
	}
	if len(data) != 0 {
		return Position{}, errors.Wrapf(ErrCorruptRecord, "%d trailing bytes", len(data))
	}
	return p, nil
}
