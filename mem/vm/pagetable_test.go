package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PageTable", func() {
	var t *PageTable

	BeforeEach(func() {
		t = NewPageTable(8, 2)
	})

	It("should start with everything unmapped", func() {
		for page := 0; page < t.NumPages(); page++ {
			entry := t.Lookup(page)
			Expect(entry.Present).To(BeFalse())
			Expect(entry.Frame).To(Equal(NoFrame))
		}

		for frame := 0; frame < t.NumFrames(); frame++ {
			Expect(t.PageInFrame(frame)).To(Equal(NoPage))
		}

		Expect(t.CheckInvariants()).To(Succeed())
	})

	It("should find free frames in ascending order", func() {
		frame, ok := t.FreeFrame()
		Expect(ok).To(BeTrue())
		Expect(frame).To(Equal(0))

		t.MarkPresent(5, 0)

		frame, ok = t.FreeFrame()
		Expect(ok).To(BeTrue())
		Expect(frame).To(Equal(1))

		t.MarkPresent(3, 1)

		_, ok = t.FreeFrame()
		Expect(ok).To(BeFalse())
	})

	It("should return the lowest free frame after an eviction", func() {
		t.MarkPresent(0, 0)
		t.MarkPresent(1, 1)
		t.MarkEvicted(0)

		frame, ok := t.FreeFrame()

		Expect(ok).To(BeTrue())
		Expect(frame).To(Equal(0))
	})

	It("should mark a page present as a clean copy", func() {
		t.SetDirty(4)
		t.SetAge(4, 0x40)

		t.MarkPresent(4, 1)

		entry := t.Lookup(4)
		Expect(entry.Present).To(BeTrue())
		Expect(entry.Frame).To(Equal(1))
		Expect(entry.Dirty).To(BeFalse())
		Expect(entry.Referenced).To(BeFalse())
		Expect(entry.Age).To(Equal(uint8(0)))
		Expect(t.PageInFrame(1)).To(Equal(4))
		Expect(t.CheckInvariants()).To(Succeed())
	})

	It("should keep dirty and age when evicting", func() {
		t.MarkPresent(2, 0)
		t.SetDirty(2)
		t.SetAge(2, 0xc0)

		t.MarkEvicted(2)

		entry := t.Lookup(2)
		Expect(entry.Present).To(BeFalse())
		Expect(entry.Frame).To(Equal(NoFrame))
		Expect(entry.Dirty).To(BeTrue())
		Expect(entry.Age).To(Equal(uint8(0xc0)))
		Expect(t.PageInFrame(0)).To(Equal(NoPage))
		Expect(t.CheckInvariants()).To(Succeed())
	})

	It("should set and clear flags", func() {
		t.MarkPresent(1, 0)

		t.SetReferenced(1)
		t.SetDirty(1)
		Expect(t.Lookup(1).Referenced).To(BeTrue())
		Expect(t.Lookup(1).Dirty).To(BeTrue())

		t.ClearReferenced(1)
		t.ClearDirty(1)
		Expect(t.Lookup(1).Referenced).To(BeFalse())
		Expect(t.Lookup(1).Dirty).To(BeFalse())
	})

	It("should panic on out-of-range indices", func() {
		Expect(func() { t.Lookup(8) }).To(Panic())
		Expect(func() { t.Lookup(-1) }).To(Panic())
		Expect(func() { t.PageInFrame(2) }).To(Panic())
		Expect(func() { t.MarkPresent(0, 2) }).To(Panic())
	})

	It("should panic when mapping into an occupied frame", func() {
		t.MarkPresent(0, 0)

		Expect(func() { t.MarkPresent(1, 0) }).To(Panic())
	})

	It("should panic when mapping a page twice", func() {
		t.MarkPresent(0, 0)

		Expect(func() { t.MarkPresent(0, 1) }).To(Panic())
	})

	It("should panic when evicting an absent page", func() {
		Expect(func() { t.MarkEvicted(0) }).To(Panic())
	})

	It("should detect a broken bijection", func() {
		t.MarkPresent(0, 0)
		t.framePage[1] = 0

		Expect(t.CheckInvariants()).NotTo(Succeed())
	})

	It("should detect a present page without frame", func() {
		t.entries[3].Present = true

		Expect(t.CheckInvariants()).NotTo(Succeed())
	})

	It("should snapshot a copy", func() {
		t.MarkPresent(6, 1)

		s := t.Snapshot()
		t.MarkEvicted(6)

		Expect(s.Entries[6].Present).To(BeTrue())
		Expect(s.FramePage[1]).To(Equal(6))
	})
})
