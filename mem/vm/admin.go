package vm

import (
	"fmt"
	"strings"
)

// Algorithm selects the page replacement algorithm of the memory manager.
type Algorithm int

// The supported page replacement algorithms.
const (
	FIFO Algorithm = iota
	Aging
	Clock
)

func (a Algorithm) String() string {
	switch a {
	case FIFO:
		return "fifo"
	case Aging:
		return "aging"
	case Clock:
		return "clock"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm converts a case-insensitive algorithm name into an
// Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimPrefix(name, "-")) {
	case "fifo":
		return FIFO, nil
	case "aging":
		return Aging, nil
	case "clock":
		return Clock, nil
	default:
		return FIFO, fmt.Errorf("unknown page replacement algorithm %q", name)
	}
}

// AdminState is the administration data of the virtual memory, shared by the
// memory manager and the clients.
type AdminState struct {
	RequestedPage int
	Algorithm     Algorithm
	NextVictim    int
	AgeInterval   uint64

	FaultCount    uint64
	AccessCount   uint64
	EvictionCount uint64

	ManagerID string
}

// Stats summarizes the counters of a run.
type Stats struct {
	Faults    uint64  `json:"faults"`
	Accesses  uint64  `json:"accesses"`
	Evictions uint64  `json:"evictions"`
	FaultRate float64 `json:"fault_rate"`
}

// Stats returns the counters and the ratio of faults to accesses.
func (a AdminState) Stats() Stats {
	s := Stats{
		Faults:    a.FaultCount,
		Accesses:  a.AccessCount,
		Evictions: a.EvictionCount,
	}

	if a.AccessCount > 0 {
		s.FaultRate = float64(a.FaultCount) / float64(a.AccessCount)
	}

	return s
}
