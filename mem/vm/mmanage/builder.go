package mmanage

import (
	"log"

	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/replacement"
	"github.com/sarchlab/vmsim/sim"
)

// A Builder can build memory managers.
type Builder struct {
	registry     *vm.Registry
	region       *vm.Region
	backingStore pagefile.BackingStore
	algorithm    vm.Algorithm
	ageInterval  uint64
	victimFinder replacement.VictimFinder
}

// MakeBuilder creates a new builder with the FIFO algorithm.
func MakeBuilder() Builder {
	return Builder{
		algorithm:   vm.FIFO,
		ageInterval: vm.DefaultAgeInterval,
	}
}

// WithRegistry sets the registry that the region is released from when the
// manager shuts down.
func (b Builder) WithRegistry(registry *vm.Registry) Builder {
	b.registry = registry
	return b
}

// WithRegion sets the shared region that the manager owns.
func (b Builder) WithRegion(region *vm.Region) Builder {
	b.region = region
	return b
}

// WithBackingStore sets where the pages are fetched from and stored to.
func (b Builder) WithBackingStore(s pagefile.BackingStore) Builder {
	b.backingStore = s
	return b
}

// WithAlgorithm sets the page replacement algorithm.
func (b Builder) WithAlgorithm(a vm.Algorithm) Builder {
	b.algorithm = a
	return b
}

// WithAgeInterval sets after how many accesses the clients refresh the page
// ages. It only matters for the aging algorithm.
func (b Builder) WithAgeInterval(n uint64) Builder {
	b.ageInterval = n
	return b
}

// WithVictimFinder overrides the victim finder derived from the algorithm.
func (b Builder) WithVictimFinder(f replacement.VictimFinder) Builder {
	b.victimFinder = f
	return b
}

// Build creates a memory manager and records its settings in the region.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid()

	c := &Comp{
		NamedBase:    sim.MakeNamedBase(name),
		region:       b.region,
		registry:     b.registry,
		backingStore: b.backingStore,
		victimFinder: b.victimFinder,
	}

	if c.victimFinder == nil {
		c.victimFinder = replacement.NewVictimFinder(b.algorithm)
	}

	b.region.Lock()
	b.region.Adm.Algorithm = b.algorithm
	b.region.Adm.AgeInterval = b.ageInterval
	b.region.Adm.ManagerID = name + "." + sim.GetIDGenerator().Generate()
	b.region.Unlock()

	return c
}

func (b Builder) mustBeValid() {
	if b.region == nil {
		log.Panic("memory manager requires a region")
	}

	if b.backingStore == nil {
		log.Panic("memory manager requires a backing store")
	}

	if b.ageInterval == 0 {
		log.Panic("age interval must be positive")
	}
}
