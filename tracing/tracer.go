// Package tracing collects the page faults and the page table dumps of a
// memory manager.
package tracing

import (
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// A FaultTracer consumes the events that a memory manager reports. The
// manager calls the tracer while it holds the region lock, so a tracer must
// not access the region.
type FaultTracer interface {
	PageFault(where string, evt vm.FaultEvent)
	PageTableDump(where string, snapshot vm.RegionSnapshot)
}

// CollectTrace lets the tracer collect the events of a domain.
func CollectTrace(domain sim.Hookable, tracer FaultTracer) {
	domain.AcceptHook(&traceHook{t: tracer})
}

type traceHook struct {
	t FaultTracer
}

// Func dispatches the hook to the tracer.
func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case vm.HookPosPageFault:
		h.t.PageFault(ctx.Domain.Name(), ctx.Item.(vm.FaultEvent))
	case vm.HookPosPageTableDump:
		h.t.PageTableDump(ctx.Domain.Name(), ctx.Item.(vm.RegionSnapshot))
	}
}
