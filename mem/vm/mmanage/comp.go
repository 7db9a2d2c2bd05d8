// Package mmanage provides the memory manager, the party that owns the page
// table and the backing store and resolves page faults.
package mmanage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/replacement"
	"github.com/sarchlab/vmsim/sim"
)

// ErrInvalidPage is handed to a client that requests a page outside the
// virtual address space.
var ErrInvalidPage = errors.New("mmanage: invalid page")

// Comp is the memory manager. It waits for requests on the fault channel of
// its region and handles them one at a time.
type Comp struct {
	sim.NamedBase
	sim.HookableBase

	region       *vm.Region
	registry     *vm.Registry
	backingStore pagefile.BackingStore
	victimFinder replacement.VictimFinder
}

// Region returns the region that the manager owns.
func (c *Comp) Region() *vm.Region {
	return c.region
}

// Run is the event loop of the manager. It blocks until a request arrives,
// handles it to completion and blocks again. Run returns nil after a
// terminate request, the context error when the context is done, and the
// error of the backing store if a page cannot be moved. In every case the
// region is torn down: waiters observe vm.ErrTerminated and the region is
// released from the registry.
func (c *Comp) Run(ctx context.Context) error {
	defer c.shutdown()

	requests := c.region.Channel().Requests()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-requests:
			done, err := c.handle(req)
			if err != nil {
				return err
			}

			if done {
				return nil
			}
		}
	}
}

func (c *Comp) handle(req vm.Request) (done bool, err error) {
	switch req.Kind {
	case vm.PageFaultReq:
		return false, c.resolve(req)
	case vm.DumpPageTableReq:
		c.dumpPageTable()
		return false, nil
	case vm.TerminateReq:
		return true, nil
	default:
		log.Panicf("memory manager cannot handle request kind %d", req.Kind)
	}

	return false, nil
}

func (c *Comp) resolve(req vm.Request) error {
	err := c.handlePageFault(req.Page)

	releaseErr := c.region.Channel().Release(err)
	if releaseErr != nil {
		return fmt.Errorf("mmanage: page fault %s: %w", req.ID, releaseErr)
	}

	if errors.Is(err, ErrInvalidPage) {
		return nil
	}

	return err
}

func (c *Comp) handlePageFault(page int) error {
	r := c.region
	r.Lock()
	defer r.Unlock()

	if page < 0 || page >= r.Table.NumPages() {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	if r.Table.Lookup(page).Present {
		return nil
	}

	r.Adm.RequestedPage = page

	evt := vm.FaultEvent{
		RequestedPage: page,
		EvictedFrame:  vm.NoFrame,
		EvictedPage:   vm.NoPage,
	}

	frame, found := r.Table.FreeFrame()
	if !found {
		frame = c.victimFinder.FindVictim(r.Table, &r.Adm)

		err := c.evict(frame, &evt)
		if err != nil {
			return err
		}
	}

	err := c.load(page, frame)
	if err != nil {
		return err
	}

	r.Adm.FaultCount++

	evt.AllocatedFrame = frame
	evt.FaultCount = r.Adm.FaultCount
	evt.AccessCount = r.Adm.AccessCount
	evt.EvictionCount = r.Adm.EvictionCount

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    vm.HookPosPageFault,
		Item:   evt,
	})

	return nil
}

func (c *Comp) evict(frame int, evt *vm.FaultEvent) error {
	r := c.region

	victimPage := r.Table.PageInFrame(frame)
	if victimPage == vm.NoPage {
		log.Panicf("victim frame %d does not hold a page", frame)
	}

	entry := r.Table.Lookup(victimPage)
	r.Table.MarkEvicted(victimPage)

	if entry.Dirty {
		data := append([]int32(nil), r.FrameData(frame)...)

		err := c.backingStore.Store(victimPage, data)
		if err != nil {
			return fmt.Errorf("mmanage: store page %d: %w", victimPage, err)
		}

		r.Table.ClearDirty(victimPage)
		evt.WroteBack = true
	}

	r.Adm.EvictionCount++
	evt.EvictedFrame = frame
	evt.EvictedPage = victimPage

	return nil
}

func (c *Comp) load(page, frame int) error {
	r := c.region

	data, err := c.backingStore.Fetch(page)
	if err != nil {
		return fmt.Errorf("mmanage: fetch page %d: %w", page, err)
	}

	if len(data) != r.Geometry().PageSize {
		return fmt.Errorf("mmanage: fetch page %d: got %d cells, want %d",
			page, len(data), r.Geometry().PageSize)
	}

	copy(r.FrameData(frame), data)
	r.Table.MarkPresent(page, frame)

	return nil
}

func (c *Comp) dumpPageTable() {
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    vm.HookPosPageTableDump,
		Item:   c.region.Snapshot(),
	})
}

func (c *Comp) shutdown() {
	c.region.Channel().Terminate()

	if c.registry != nil {
		c.registry.Release(c.region.Key())
	}
}
