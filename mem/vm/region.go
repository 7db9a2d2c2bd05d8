package vm

import (
	"errors"
	"log"
	"sync"
)

// Errors returned when creating or attaching regions.
var (
	ErrRegionExists   = errors.New("vm: region already exists")
	ErrRegionNotFound = errors.New("vm: region not found")
)

// A Region is the memory shared between the memory manager and its clients.
// It holds the administration data, the page table, the physical memory and
// the fault channel.
//
// Everything except the channel is guarded by the Region's lock. The manager
// holds the lock while it resolves a fault; a client holds it while it
// touches the flags and the data of a resident page.
type Region struct {
	sync.Mutex

	key      string
	geometry Geometry

	Adm   AdminState
	Table *PageTable
	Data  []int32

	channel *FaultChannel
}

// NewRegion creates an initialized region: all pages unmapped, all frames
// free and the victim cursor at frame 0.
func NewRegion(key string, g Geometry) (*Region, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	r := &Region{
		key:      key,
		geometry: g,
		Table:    NewPageTable(g.NumPages(), g.NumFrames()),
		Data:     make([]int32, g.NumFrames()*g.PageSize),
		channel:  NewFaultChannel(),
	}

	r.Adm = AdminState{
		RequestedPage: NoPage,
		Algorithm:     FIFO,
		NextVictim:    0,
		AgeInterval:   DefaultAgeInterval,
	}

	return r, nil
}

// Key returns the key that identifies the region in a Registry.
func (r *Region) Key() string {
	return r.key
}

// Geometry returns the sizes of the region.
func (r *Region) Geometry() Geometry {
	return r.geometry
}

// Channel returns the fault channel that connects clients with the manager.
func (r *Region) Channel() *FaultChannel {
	return r.channel
}

// FrameData returns the cells of the frame. The returned slice aliases the
// physical memory; callers must hold the region lock.
func (r *Region) FrameData(frame int) []int32 {
	if frame < 0 || frame >= r.geometry.NumFrames() {
		log.Panicf("frame %d out of range [0, %d)",
			frame, r.geometry.NumFrames())
	}

	start := frame * r.geometry.PageSize

	return r.Data[start : start+r.geometry.PageSize]
}

// A RegionSnapshot is a consistent copy of the region state.
type RegionSnapshot struct {
	Key       string
	Geometry  Geometry
	Adm       AdminState
	PageTable PageTableSnapshot
}

// Snapshot takes the region lock and copies the region state.
func (r *Region) Snapshot() RegionSnapshot {
	r.Lock()
	defer r.Unlock()

	return RegionSnapshot{
		Key:       r.key,
		Geometry:  r.geometry,
		Adm:       r.Adm,
		PageTable: r.Table.Snapshot(),
	}
}

// A Registry maps well-known keys to regions. The manager creates a region
// under a key and the clients attach to it.
type Registry struct {
	lock    sync.Mutex
	regions map[string]*Region
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regions: make(map[string]*Region)}
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// Create creates and registers a new region. It fails if a region with the
// same key exists.
func (reg *Registry) Create(key string, g Geometry) (*Region, error) {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	if _, found := reg.regions[key]; found {
		return nil, ErrRegionExists
	}

	r, err := NewRegion(key, g)
	if err != nil {
		return nil, err
	}

	reg.regions[key] = r

	return r, nil
}

// Attach returns the region registered under the key.
func (reg *Registry) Attach(key string) (*Region, error) {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	r, found := reg.regions[key]
	if !found {
		return nil, ErrRegionNotFound
	}

	return r, nil
}

// Release removes the region from the registry. Clients that are already
// attached keep their reference but can no longer reach a manager.
func (reg *Registry) Release(key string) {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	delete(reg.regions, key)
}
