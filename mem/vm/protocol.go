// Package vm provides the models for demand-paged virtual memory: the page
// table, the shared region and the fault channel between the memory manager
// and its clients.
package vm

import "github.com/sarchlab/vmsim/sim"

// RequestKind tags the requests that travel to the memory manager.
type RequestKind int

// The kinds of requests the memory manager handles.
const (
	PageFaultReq RequestKind = iota
	DumpPageTableReq
	TerminateReq
)

func (k RequestKind) String() string {
	switch k {
	case PageFaultReq:
		return "PageFault"
	case DumpPageTableReq:
		return "DumpPageTable"
	case TerminateReq:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// A Request is a message to the memory manager. Page is only meaningful for
// page faults.
type Request struct {
	ID   string
	Kind RequestKind
	Page int
}

// A FaultEvent describes one resolved page fault. EvictedFrame and
// EvictedPage are NoFrame and NoPage if a free frame was used.
type FaultEvent struct {
	FaultCount     uint64
	AccessCount    uint64
	EvictionCount  uint64
	RequestedPage  int
	AllocatedFrame int
	EvictedFrame   int
	EvictedPage    int
	WroteBack      bool
}

// Hook positions of the memory manager.
var (
	// HookPosPageFault is triggered after a page fault is resolved. The item
	// is a FaultEvent.
	HookPosPageFault = &sim.HookPos{Name: "PageFault"}

	// HookPosPageTableDump is triggered when a page table dump is requested.
	// The item is a RegionSnapshot.
	HookPosPageTableDump = &sim.HookPos{Name: "PageTableDump"}
)
