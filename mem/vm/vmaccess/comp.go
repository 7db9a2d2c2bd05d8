// Package vmaccess provides the address translator, the client side of the
// simulated memory. It turns virtual addresses into cells of the physical
// memory and asks the memory manager for pages that are not resident.
package vmaccess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/replacement"
	"github.com/sarchlab/vmsim/sim"
)

// Errors returned by the translator.
var (
	ErrInvalidAddress = errors.New("vmaccess: invalid address")
	ErrFaultTimeout   = errors.New("vmaccess: page fault timed out")
)

// Comp is an address translator. A Comp is safe for concurrent use; its
// accesses are serialized.
type Comp struct {
	sim.NamedBase

	lock         sync.Mutex
	region       *vm.Region
	refresher    replacement.Refresher
	faultTimeout time.Duration
	pollInterval time.Duration
}

// Size returns the number of addressable cells.
func (c *Comp) Size() int {
	return c.region.Geometry().VirtualSize
}

// Read returns the value stored at the virtual address.
func (c *Comp) Read(ctx context.Context, address int) (int32, error) {
	var value int32

	err := c.access(ctx, address, false, func(cell *int32) {
		value = *cell
	})

	return value, err
}

// Write stores the value at the virtual address.
func (c *Comp) Write(ctx context.Context, address int, value int32) error {
	return c.access(ctx, address, true, func(cell *int32) {
		*cell = value
	})
}

func (c *Comp) access(
	ctx context.Context,
	address int,
	isWrite bool,
	fn func(cell *int32),
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	g := c.region.Geometry()
	if address < 0 || address >= g.VirtualSize {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, address)
	}

	page, offset := g.Split(address)

	err := c.lockResident(ctx, page)
	if err != nil {
		return err
	}
	defer c.region.Unlock()

	table := c.region.Table
	entry := table.Lookup(page)

	fn(&c.region.FrameData(entry.Frame)[offset])

	table.SetReferenced(page)
	if isWrite {
		table.SetDirty(page)
	}

	c.countAccess()

	return nil
}

// lockResident returns with the region locked and the page present. The page
// can be evicted again by a fault of another client between the release and
// the relock, so the check is repeated.
func (c *Comp) lockResident(ctx context.Context, page int) error {
	for {
		c.region.Lock()
		if c.region.Table.Lookup(page).Present {
			return nil
		}
		c.region.Unlock()

		err := c.fault(ctx, page)
		if err != nil {
			return err
		}
	}
}

func (c *Comp) fault(ctx context.Context, page int) error {
	waitCtx := ctx
	if c.faultTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.faultTimeout)
		defer cancel()
	}

	completion, err := c.region.Channel().PostFault(page)
	if errors.Is(err, vm.ErrFaultOutstanding) {
		return c.backOff(ctx, waitCtx)
	}

	if err != nil {
		return err
	}

	err = completion.Wait(waitCtx)

	return c.translateWaitError(ctx, err)
}

func (c *Comp) backOff(ctx, waitCtx context.Context) error {
	select {
	case <-time.After(c.pollInterval):
		return nil
	case <-c.region.Channel().Terminated():
		return vm.ErrTerminated
	case <-waitCtx.Done():
		return c.translateWaitError(ctx, waitCtx.Err())
	}
}

func (c *Comp) translateWaitError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrFaultTimeout
	}

	return err
}

func (c *Comp) countAccess() {
	adm := &c.region.Adm
	adm.AccessCount++

	if adm.Algorithm != vm.Aging || adm.AgeInterval == 0 {
		return
	}

	if adm.AccessCount%adm.AgeInterval == 0 {
		c.refresher.Refresh(c.region.Table)
	}
}
