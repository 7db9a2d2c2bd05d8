package replacement

import "github.com/sarchlab/vmsim/mem/vm"

const ageReferencedBit = 0x80

// AgingVictimFinder approximates LRU with an 8-bit history per page. Each
// refresh shifts the history right and records the reference bit in the most
// significant position.
type AgingVictimFinder struct{}

// NewAgingVictimFinder returns a newly constructed aging victim finder.
func NewAgingVictimFinder() *AgingVictimFinder {
	return &AgingVictimFinder{}
}

// Refresh ages every present page and clears its reference bit.
func (f *AgingVictimFinder) Refresh(t *vm.PageTable) {
	for frame := 0; frame < t.NumFrames(); frame++ {
		page := t.PageInFrame(frame)
		if page == vm.NoPage {
			continue
		}

		entry := t.Lookup(page)

		age := entry.Age >> 1
		if entry.Referenced {
			age |= ageReferencedBit
		}

		t.SetAge(page, age)
		t.ClearReferenced(page)
	}
}

// FindVictim returns the frame of the present page with the smallest age.
// Ties go to the lowest frame index. The cursor is not used.
func (f *AgingVictimFinder) FindVictim(
	t *vm.PageTable,
	_ *vm.AdminState,
) int {
	victim := vm.NoFrame
	minAge := 0

	for frame := 0; frame < t.NumFrames(); frame++ {
		page := t.PageInFrame(frame)
		if page == vm.NoPage {
			return frame
		}

		// A page loaded after the last refresh still has age 0, so it is
		// the preferred victim until a refresh records its references.
		age := int(t.Lookup(page).Age)
		if victim == vm.NoFrame || age < minAge {
			victim = frame
			minAge = age
		}
	}

	return victim
}
