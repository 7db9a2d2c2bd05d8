package vm

import (
	"fmt"
	"log"
)

// NoFrame marks a page table entry that is not backed by a frame.
const NoFrame = -1

// NoPage marks a frame that does not hold any page.
const NoPage = -1

// A PageTableEntry maintains the information about how to translate one
// virtual page to a frame.
type PageTableEntry struct {
	Present    bool
	Dirty      bool
	Referenced bool
	Frame      int
	Age        uint8
}

// A PageTable holds one entry per virtual page and the reverse mapping from
// frames to pages.
//
// The PageTable is not safe for concurrent use. It lives inside a Region and
// is guarded by the Region's lock.
type PageTable struct {
	entries   []PageTableEntry
	framePage []int
}

// NewPageTable creates a page table with all pages unmapped and all frames
// free.
func NewPageTable(numPages, numFrames int) *PageTable {
	if numPages <= 0 || numFrames <= 0 {
		log.Panicf("invalid page table size: %d pages, %d frames",
			numPages, numFrames)
	}

	t := &PageTable{
		entries:   make([]PageTableEntry, numPages),
		framePage: make([]int, numFrames),
	}

	for i := range t.entries {
		t.entries[i].Frame = NoFrame
	}

	for i := range t.framePage {
		t.framePage[i] = NoPage
	}

	return t
}

// NumPages returns the number of virtual pages.
func (t *PageTable) NumPages() int {
	return len(t.entries)
}

// NumFrames returns the number of frames.
func (t *PageTable) NumFrames() int {
	return len(t.framePage)
}

// Lookup returns a copy of the entry of the given page.
func (t *PageTable) Lookup(page int) PageTableEntry {
	t.pageMustBeInRange(page)
	return t.entries[page]
}

// PageInFrame returns the page stored in the frame, or NoPage if the frame is
// free.
func (t *PageTable) PageInFrame(frame int) int {
	t.frameMustBeInRange(frame)
	return t.framePage[frame]
}

// FreeFrame returns the free frame with the smallest index. The bool return
// value is false if all the frames are in use.
func (t *PageTable) FreeFrame() (int, bool) {
	for frame, page := range t.framePage {
		if page == NoPage {
			return frame, true
		}
	}

	return NoFrame, false
}

// MarkPresent maps the page into the frame. The page arrives as a fresh copy
// of the backing store, so it is clean, unreferenced and has no age.
func (t *PageTable) MarkPresent(page, frame int) {
	t.pageMustBeInRange(page)
	t.frameMustBeInRange(frame)

	if t.entries[page].Present {
		log.Panicf("page %d is already present in frame %d",
			page, t.entries[page].Frame)
	}

	if t.framePage[frame] != NoPage {
		log.Panicf("frame %d already holds page %d",
			frame, t.framePage[frame])
	}

	t.entries[page] = PageTableEntry{
		Present: true,
		Frame:   frame,
	}
	t.framePage[frame] = page
}

// MarkEvicted unmaps the page from its frame. The dirty flag and the age are
// kept until the page is loaded again.
func (t *PageTable) MarkEvicted(page int) {
	t.pageMustBeInRange(page)

	entry := &t.entries[page]
	if !entry.Present {
		log.Panicf("page %d is not present", page)
	}

	t.framePage[entry.Frame] = NoPage
	entry.Present = false
	entry.Frame = NoFrame
}

// SetReferenced marks the page as referenced.
func (t *PageTable) SetReferenced(page int) {
	t.pageMustBeInRange(page)
	t.entries[page].Referenced = true
}

// ClearReferenced clears the referenced flag of the page.
func (t *PageTable) ClearReferenced(page int) {
	t.pageMustBeInRange(page)
	t.entries[page].Referenced = false
}

// SetDirty marks the page as modified.
func (t *PageTable) SetDirty(page int) {
	t.pageMustBeInRange(page)
	t.entries[page].Dirty = true
}

// ClearDirty marks the page as in sync with the backing store.
func (t *PageTable) ClearDirty(page int) {
	t.pageMustBeInRange(page)
	t.entries[page].Dirty = false
}

// SetAge overwrites the aging counter of the page.
func (t *PageTable) SetAge(page int, age uint8) {
	t.pageMustBeInRange(page)
	t.entries[page].Age = age
}

// CheckInvariants verifies that the page table and the frame table agree on
// the present pages.
func (t *PageTable) CheckInvariants() error {
	numPresent := 0

	for page, entry := range t.entries {
		if entry.Present != (entry.Frame != NoFrame) {
			return fmt.Errorf("page %d: present=%t but frame=%d",
				page, entry.Present, entry.Frame)
		}

		if !entry.Present {
			continue
		}

		numPresent++

		if entry.Frame < 0 || entry.Frame >= len(t.framePage) {
			return fmt.Errorf("page %d: frame %d out of range",
				page, entry.Frame)
		}

		if t.framePage[entry.Frame] != page {
			return fmt.Errorf("page %d maps to frame %d, which holds page %d",
				page, entry.Frame, t.framePage[entry.Frame])
		}
	}

	numMapped := 0
	for frame, page := range t.framePage {
		if page == NoPage {
			continue
		}

		numMapped++

		if page < 0 || page >= len(t.entries) {
			return fmt.Errorf("frame %d: page %d out of range", frame, page)
		}

		if t.entries[page].Frame != frame {
			return fmt.Errorf("frame %d holds page %d, which maps to frame %d",
				frame, page, t.entries[page].Frame)
		}
	}

	if numMapped != numPresent {
		return fmt.Errorf("%d frames mapped but %d pages present",
			numMapped, numPresent)
	}

	return nil
}

// A PageTableSnapshot is a copy of the page table that can be inspected
// without holding the region lock.
type PageTableSnapshot struct {
	Entries   []PageTableEntry
	FramePage []int
}

// Snapshot copies the page table.
func (t *PageTable) Snapshot() PageTableSnapshot {
	s := PageTableSnapshot{
		Entries:   make([]PageTableEntry, len(t.entries)),
		FramePage: make([]int, len(t.framePage)),
	}

	copy(s.Entries, t.entries)
	copy(s.FramePage, t.framePage)

	return s
}

func (t *PageTable) pageMustBeInRange(page int) {
	if page < 0 || page >= len(t.entries) {
		log.Panicf("page %d out of range [0, %d)", page, len(t.entries))
	}
}

func (t *PageTable) frameMustBeInRange(frame int) {
	if frame < 0 || frame >= len(t.framePage) {
		log.Panicf("frame %d out of range [0, %d)", frame, len(t.framePage))
	}
}
