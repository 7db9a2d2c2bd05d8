package replacement

import "github.com/sarchlab/vmsim/mem/vm"

// ClockVictimFinder gives every referenced page a second chance. The cursor
// sweeps the frames like a clock hand, clearing reference bits until it finds
// a page that has not been referenced since the last sweep.
type ClockVictimFinder struct{}

// NewClockVictimFinder returns a newly constructed clock victim finder.
func NewClockVictimFinder() *ClockVictimFinder {
	return &ClockVictimFinder{}
}

// FindVictim returns the first unreferenced frame at or after the cursor and
// leaves the cursor right after it. It inspects at most NumFrames()+1 frames,
// since the first full sweep clears every bit it passes.
func (f *ClockVictimFinder) FindVictim(
	t *vm.PageTable,
	adm *vm.AdminState,
) int {
	numFrames := t.NumFrames()

	for {
		frame := adm.NextVictim
		adm.NextVictim = advance(frame, numFrames)

		page := t.PageInFrame(frame)
		if page == vm.NoPage {
			return frame
		}

		if !t.Lookup(page).Referenced {
			return frame
		}

		t.ClearReferenced(page)
	}
}
