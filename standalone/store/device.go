package store

import "github.com/pkg/errors"

// PageSize is the fixed unit of every store read and write
const PageSize = 32

// HeaderPage holds the record count in its first byte
const HeaderPage = 0

// ErrPageIndex is returned for a page outside the device
var ErrPageIndex = errors.New("page index out of range")

// PageDevice is fixed-size page storage. Implementations need not be safe
// for concurrent use.
type PageDevice interface {
	WritePage(index int, page [PageSize]byte) error
	ReadPage(index int) ([PageSize]byte, error)
	// Pages returns the number of addressable pages
	Pages() int
}

func checkPage(dev PageDevice, index int) error {
	if index < 0 || index >= dev.Pages() {
		return errors.Wrapf(ErrPageIndex, "page %d of %d", index, dev.Pages())
	}
	return nil
}
