package vmaccess

import (
	"log"
	"time"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/replacement"
	"github.com/sarchlab/vmsim/sim"
)

// A Builder can build address translators.
type Builder struct {
	region       *vm.Region
	faultTimeout time.Duration
	pollInterval time.Duration
}

// MakeBuilder creates a new builder. By default the translators wait for page
// faults without a time limit.
func MakeBuilder() Builder {
	return Builder{
		pollInterval: time.Millisecond,
	}
}

// WithRegion sets the region that the translator accesses.
func (b Builder) WithRegion(r *vm.Region) Builder {
	b.region = r
	return b
}

// WithFaultTimeout limits how long a single page fault can take. Zero means
// no limit.
func (b Builder) WithFaultTimeout(d time.Duration) Builder {
	b.faultTimeout = d
	return b
}

// WithPollInterval sets how long the translator backs off when another
// client's page fault occupies the fault channel.
func (b Builder) WithPollInterval(d time.Duration) Builder {
	b.pollInterval = d
	return b
}

// Build creates a translator on the configured region.
func (b Builder) Build(name string) *Comp {
	if b.region == nil {
		log.Panic("address translator requires a region")
	}

	if b.pollInterval <= 0 {
		log.Panicf("poll interval must be positive, got %v", b.pollInterval)
	}

	return &Comp{
		NamedBase:    sim.MakeNamedBase(name),
		region:       b.region,
		refresher:    replacement.NewAgingVictimFinder(),
		faultTimeout: b.faultTimeout,
		pollInterval: b.pollInterval,
	}
}

// Attach looks up the region by key and builds a translator on it.
func (b Builder) Attach(
	registry *vm.Registry,
	key string,
	name string,
) (*Comp, error) {
	r, err := registry.Attach(key)
	if err != nil {
		return nil, err
	}

	return b.WithRegion(r).Build(name), nil
}
