// Package replacement provides the page replacement algorithms that pick the
// frame to reclaim when the memory manager runs out of free frames.
package replacement

import (
	"log"

	"github.com/sarchlab/vmsim/mem/vm"
)

// A VictimFinder decides which frame should be evicted. It is only called
// when no frame is free and it never moves page contents; writing back and
// loading pages is up to the memory manager.
type VictimFinder interface {
	FindVictim(t *vm.PageTable, adm *vm.AdminState) int
}

// A Refresher updates per-page recency information periodically.
type Refresher interface {
	Refresh(t *vm.PageTable)
}

// NewVictimFinder returns the victim finder of the algorithm.
func NewVictimFinder(algorithm vm.Algorithm) VictimFinder {
	switch algorithm {
	case vm.FIFO:
		return NewFIFOVictimFinder()
	case vm.Clock:
		return NewClockVictimFinder()
	case vm.Aging:
		return NewAgingVictimFinder()
	default:
		log.Panicf("unknown page replacement algorithm %s", algorithm)
	}

	return nil
}

func advance(cursor, numFrames int) int {
	return (cursor + 1) % numFrames
}
