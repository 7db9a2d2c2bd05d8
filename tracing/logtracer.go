package tracing

import (
	"log"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// LogTracer writes one line per page fault and one block per page table dump.
type LogTracer struct {
	sim.LogHookBase
}

// NewLogTracer creates a LogTracer that writes to the logger, or to the
// standard logger if logger is nil.
func NewLogTracer(logger *log.Logger) *LogTracer {
	return &LogTracer{LogHookBase: sim.MakeLogHookBase(logger)}
}

// PageFault logs the fault.
func (t *LogTracer) PageFault(where string, evt vm.FaultEvent) {
	t.Printf("%s: page fault %d, access %d: page %d -> frame %d, "+
		"evicted page %d, evictions %d, write-back %t\n",
		where,
		evt.FaultCount,
		evt.AccessCount,
		evt.RequestedPage,
		evt.AllocatedFrame,
		evt.EvictedPage,
		evt.EvictionCount,
		evt.WroteBack,
	)
}

// PageTableDump logs the administration data and every present page.
func (t *LogTracer) PageTableDump(where string, s vm.RegionSnapshot) {
	t.Printf("%s: page table of %s, algorithm %s, faults %d, accesses %d, "+
		"evictions %d, next victim %d\n",
		where,
		s.Key,
		s.Adm.Algorithm,
		s.Adm.FaultCount,
		s.Adm.AccessCount,
		s.Adm.EvictionCount,
		s.Adm.NextVictim,
	)

	for frame, page := range s.PageTable.FramePage {
		if page == vm.NoPage {
			t.Printf("%s:   frame %3d: free\n", where, frame)
			continue
		}

		entry := s.PageTable.Entries[page]
		t.Printf("%s:   frame %3d: page %4d, dirty %t, referenced %t, "+
			"age %08b\n",
			where, frame, page, entry.Dirty, entry.Referenced, entry.Age)
	}
}
