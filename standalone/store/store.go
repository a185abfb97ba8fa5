package store

import (
	"time"

	"dispenser/core"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultWriteDelay covers the write cycle of common serial EEPROMs
const DefaultWriteDelay = 10 * time.Millisecond

// Config configures a Store
type Config struct {
	Capacity   int           // Maximum number of records
	WriteDelay time.Duration // Pause after each page write
}

// Store keeps a list of positions on a PageDevice: the header page holds
// the count and pages 1..count hold one record each.
type Store struct {
	dev        PageDevice
	clock      core.Clock
	log        *logrus.Entry
	capacity   int
	writeDelay time.Duration
}

// New creates a store on dev. Capacity is limited by the device size and
// by the one-byte header count.
func New(dev PageDevice, cfg Config, clock core.Clock, log *logrus.Entry) *Store {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	capacity := cfg.Capacity
	if limit := dev.Pages() - 1; capacity <= 0 || capacity > limit {
		capacity = limit
	}
	if capacity > 0xFF {
		capacity = 0xFF
	}

	return &Store{
		dev:        dev,
		clock:      clock,
		log:        log.WithFields(logrus.Fields{"component": "store"}),
		capacity:   capacity,
		writeDelay: cfg.WriteDelay,
	}
}

// Capacity returns the maximum number of records
func (s *Store) Capacity() int {
	return s.capacity
}

// Backup writes the header then every position in order, pausing after
// each page. It stops at the first failed write.
func (s *Store) Backup(positions []Position) error {
	if len(positions) > s.capacity {
		return errors.Errorf("Store: Backup(): %d positions exceed capacity %d", len(positions), s.capacity)
	}

	var header [PageSize]byte
	header[0] = byte(len(positions))
	if err := s.write(HeaderPage, header); err != nil {
		return errors.Wrap(err, "Store: Backup(): header write failed")
	}

	for i, p := range positions {
		if err := s.write(i+1, EncodeRecord(p)); err != nil {
			return errors.Wrapf(err, "Store: Backup(): record %d write failed", i)
		}
	}
	return nil
}

func (s *Store) write(index int, page [PageSize]byte) error {
	if err := s.dev.WritePage(index, page); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"page": index}).Debug("page written")
	s.clock.Sleep(s.writeDelay)
	return nil
}

// Restore reads the header and every counted record. Records that cannot
// be read or decoded are dropped; only a header failure is an error.
func (s *Store) Restore() ([]Position, error) {
	header, err := s.dev.ReadPage(HeaderPage)
	if err != nil {
		return nil, errors.Wrap(err, "Store: Restore(): header read failed")
	}

	count := int(header[0])
	if count > s.capacity {
		s.log.WithFields(logrus.Fields{"count": count, "capacity": s.capacity}).Warn("header count clamped")
		count = s.capacity
	}

	positions := make([]Position, 0, count)
	dropped := 0
	for i := 1; i <= count; i++ {
		page, err := s.dev.ReadPage(i)
		if err == nil {
			var p Position
			if p, err = DecodeRecord(page); err == nil {
				positions = append(positions, p)
				continue
			}
		}
		dropped++
		s.log.WithFields(logrus.Fields{"page": i}).Debugf("record dropped: %v", err)
	}

	if dropped > 0 {
		s.log.WithFields(logrus.Fields{"dropped": dropped, "restored": len(positions)}).Warn("unreadable records skipped")
	}
	return positions, nil
}
