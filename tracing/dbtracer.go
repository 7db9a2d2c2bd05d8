package tracing

import (
	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// Table names used by the DBTracer.
const (
	FaultTableName = "page_faults"
	DumpTableName  = "page_table_dumps"
)

type faultTableEntry struct {
	ID             string
	Location       string
	FaultCount     uint64
	AccessCount    uint64
	EvictionCount  uint64
	RequestedPage  int
	AllocatedFrame int
	EvictedFrame   int
	EvictedPage    int
	WroteBack      bool
}

type dumpTableEntry struct {
	DumpID     string
	Location   string
	Frame      int
	Page       int
	Dirty      bool
	Referenced bool
	Age        uint8
}

// DBTracer records page faults and page table dumps through a DataRecorder.
type DBTracer struct {
	backend datarecording.DataRecorder
}

// NewDBTracer creates a DBTracer and the tables it writes to.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	backend.CreateTable(FaultTableName, faultTableEntry{})
	backend.CreateTable(DumpTableName, dumpTableEntry{})

	return &DBTracer{backend: backend}
}

// PageFault records the fault.
func (t *DBTracer) PageFault(where string, evt vm.FaultEvent) {
	t.backend.InsertData(FaultTableName, faultTableEntry{
		ID:             sim.GetIDGenerator().Generate(),
		Location:       where,
		FaultCount:     evt.FaultCount,
		AccessCount:    evt.AccessCount,
		EvictionCount:  evt.EvictionCount,
		RequestedPage:  evt.RequestedPage,
		AllocatedFrame: evt.AllocatedFrame,
		EvictedFrame:   evt.EvictedFrame,
		EvictedPage:    evt.EvictedPage,
		WroteBack:      evt.WroteBack,
	})
}

// PageTableDump records one row per occupied frame.
func (t *DBTracer) PageTableDump(where string, s vm.RegionSnapshot) {
	dumpID := sim.GetIDGenerator().Generate()

	for frame, page := range s.PageTable.FramePage {
		if page == vm.NoPage {
			continue
		}

		entry := s.PageTable.Entries[page]
		t.backend.InsertData(DumpTableName, dumpTableEntry{
			DumpID:     dumpID,
			Location:   where,
			Frame:      frame,
			Page:       page,
			Dirty:      entry.Dirty,
			Referenced: entry.Referenced,
			Age:        entry.Age,
		})
	}
}
