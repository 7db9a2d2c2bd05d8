package replacement

import "github.com/sarchlab/vmsim/mem/vm"

// FIFOVictimFinder evicts frames in the order they were allocated. Free
// frames are handed out in ascending order, so the allocation order is the
// frame index order and a rotating cursor is all the state required.
type FIFOVictimFinder struct{}

// NewFIFOVictimFinder returns a newly constructed FIFO victim finder.
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return &FIFOVictimFinder{}
}

// FindVictim returns the frame under the cursor and advances the cursor.
func (f *FIFOVictimFinder) FindVictim(
	t *vm.PageTable,
	adm *vm.AdminState,
) int {
	victim := adm.NextVictim
	adm.NextVictim = advance(adm.NextVictim, t.NumFrames())

	return victim
}
