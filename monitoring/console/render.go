package console

import (
	"fmt"
	"io"

	"github.com/sarchlab/vmsim/mem/vm"
)

// RenderStats writes the counters of the region.
func RenderStats(w io.Writer, s vm.RegionSnapshot) {
	stats := s.Adm.Stats()

	fmt.Fprintf(w, " region %s | %s | page size %d | %d pages | %d frames\n",
		s.Key,
		s.Adm.Algorithm,
		s.Geometry.PageSize,
		s.Geometry.NumPages(),
		s.Geometry.NumFrames(),
	)
	fmt.Fprintf(w, " accesses %d | faults %d | evictions %d | fault rate %.4f\n",
		stats.Accesses, stats.Faults, stats.Evictions, stats.FaultRate)
	fmt.Fprintf(w, " next victim %d | last requested page %d\n",
		s.Adm.NextVictim, s.Adm.RequestedPage)
}

// RenderFrames writes one line per frame with the flags of its page.
func RenderFrames(w io.Writer, s vm.RegionSnapshot) {
	fmt.Fprintf(w, " %5s %5s %5s %3s %8s\n", "frame", "page", "dirty", "ref", "age")

	for frame, page := range s.PageTable.FramePage {
		if page == vm.NoPage {
			fmt.Fprintf(w, " %5d %5s\n", frame, "-")
			continue
		}

		e := s.PageTable.Entries[page]
		fmt.Fprintf(w, " %5d %5d %5s %3s %08b\n",
			frame, page, flag(e.Dirty), flag(e.Referenced), e.Age)
	}
}

func flag(set bool) string {
	if set {
		return "x"
	}

	return "."
}
