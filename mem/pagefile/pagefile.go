// Package pagefile provides the backing stores that hold the pages of the
// virtual memory while they are not resident.
package pagefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

// DefaultSeed is the seed used to fill a new page file.
const DefaultSeed = 70514

// MaxInitialValue bounds the pseudo-random cell values of a new page file.
const MaxInitialValue = 1000

const cellSize = 4

// Errors returned by the backing stores.
var (
	ErrPageOutOfRange = errors.New("pagefile: page out of range")
	ErrPageSize       = errors.New("pagefile: data does not match page size")
)

// A BackingStore persists the cells of the pages. Fetch always returns
// exactly one page of cells and Store always takes one.
type BackingStore interface {
	Fetch(page int) ([]int32, error)
	Store(page int, data []int32) error
}

// Layout describes the shape of a page file.
type Layout struct {
	NumPages int
	PageSize int
}

func (l Layout) pageBytes() int {
	return l.PageSize * cellSize
}

func (l Layout) checkPage(page int) error {
	if page < 0 || page >= l.NumPages {
		return fmt.Errorf("%w: page %d, %d pages", ErrPageOutOfRange,
			page, l.NumPages)
	}

	return nil
}

func (l Layout) checkData(data []int32) error {
	if len(data) != l.PageSize {
		return fmt.Errorf("%w: got %d cells, want %d", ErrPageSize,
			len(data), l.PageSize)
	}

	return nil
}

// initialPages generates the initial content of every page. Pages are generated
// in order from a single source, so the whole file is a function of the seed.
func initialPages(l Layout, seed int64, fn pageWriter) error {
	rng := rand.New(rand.NewSource(seed))
	data := make([]int32, l.PageSize)

	for page := 0; page < l.NumPages; page++ {
		for i := range data {
			data[i] = rng.Int31n(MaxInitialValue)
		}

		if err := fn(page, data); err != nil {
			return err
		}
	}

	return nil
}

func encodePage(data []int32) []byte {
	buf := make([]byte, len(data)*cellSize)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*cellSize:], uint32(v))
	}

	return buf
}

func decodePage(buf []byte) []int32 {
	data := make([]int32, len(buf)/cellSize)
	for i := range data {
		data[i] = int32(binary.LittleEndian.Uint32(buf[i*cellSize:]))
	}

	return data
}
