package vm

import (
	"context"
	"errors"
	"sync"

	"github.com/sarchlab/vmsim/sim"
)

// Errors reported by the FaultChannel.
var (
	// ErrFaultOutstanding is returned when a fault is posted while another
	// fault has not been released yet.
	ErrFaultOutstanding = errors.New("vm: another page fault is outstanding")

	// ErrNoWaiter is returned when the manager releases the channel while no
	// fault is outstanding.
	ErrNoWaiter = errors.New("vm: release without an outstanding page fault")

	// ErrTerminated is observed by waiters once the manager shuts down.
	ErrTerminated = errors.New("vm: memory manager terminated")
)

const requestQueueSize = 4

// A Completion is resolved when the manager has handled a page fault.
type Completion struct {
	req        Request
	done       chan struct{}
	err        error
	terminated <-chan struct{}
}

// Request returns the request that the completion belongs to.
func (c *Completion) Request() Request {
	return c.req
}

// Wait blocks until the fault is released, the manager terminates or the
// context is done. A release that races with the termination wins.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-c.terminated:
		select {
		case <-c.done:
			return c.err
		default:
			return ErrTerminated
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// A FaultChannel is a one-slot rendezvous between the clients and the
// memory manager. At most one page fault can be outstanding at any time.
type FaultChannel struct {
	lock        sync.Mutex
	requests    chan Request
	outstanding *Completion

	terminated    chan struct{}
	terminateOnce sync.Once
}

// NewFaultChannel creates a FaultChannel.
func NewFaultChannel() *FaultChannel {
	return &FaultChannel{
		requests:   make(chan Request, requestQueueSize),
		terminated: make(chan struct{}),
	}
}

// Requests returns the channel that the manager receives requests from.
func (c *FaultChannel) Requests() <-chan Request {
	return c.requests
}

// Terminated returns a channel that is closed when the manager shuts down.
func (c *FaultChannel) Terminated() <-chan struct{} {
	return c.terminated
}

// IsTerminated tells if the manager has shut down.
func (c *FaultChannel) IsTerminated() bool {
	select {
	case <-c.terminated:
		return true
	default:
		return false
	}
}

// HasOutstandingFault tells if a page fault waits for its release.
func (c *FaultChannel) HasOutstandingFault() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.outstanding != nil
}

// PostFault notifies the manager that the page is required. The returned
// Completion is resolved once the manager has loaded the page.
func (c *FaultChannel) PostFault(page int) (*Completion, error) {
	c.lock.Lock()

	if c.IsTerminated() {
		c.lock.Unlock()
		return nil, ErrTerminated
	}

	if c.outstanding != nil {
		c.lock.Unlock()
		return nil, ErrFaultOutstanding
	}

	req := Request{
		ID:   sim.GetIDGenerator().Generate(),
		Kind: PageFaultReq,
		Page: page,
	}
	completion := &Completion{
		req:        req,
		done:       make(chan struct{}),
		terminated: c.terminated,
	}
	c.outstanding = completion

	c.lock.Unlock()

	if err := c.send(req); err != nil {
		c.lock.Lock()
		if c.outstanding == completion {
			c.outstanding = nil
		}
		c.lock.Unlock()

		return nil, err
	}

	return completion, nil
}

// PostDump asks the manager to dump its page table.
func (c *FaultChannel) PostDump() error {
	return c.send(Request{
		ID:   sim.GetIDGenerator().Generate(),
		Kind: DumpPageTableReq,
		Page: NoPage,
	})
}

// PostTerminate asks the manager to shut down.
func (c *FaultChannel) PostTerminate() error {
	return c.send(Request{
		ID:   sim.GetIDGenerator().Generate(),
		Kind: TerminateReq,
		Page: NoPage,
	})
}

func (c *FaultChannel) send(req Request) error {
	select {
	case <-c.terminated:
		return ErrTerminated
	default:
	}

	select {
	case c.requests <- req:
		return nil
	case <-c.terminated:
		return ErrTerminated
	}
}

// Release resolves the outstanding page fault, unblocking exactly one
// waiter. A non-nil err is handed to the waiter.
func (c *FaultChannel) Release(err error) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.outstanding == nil {
		return ErrNoWaiter
	}

	completion := c.outstanding
	c.outstanding = nil
	completion.err = err
	close(completion.done)

	return nil
}

// Terminate signals all current and future waiters that the manager is gone.
// It does not release the outstanding fault.
func (c *FaultChannel) Terminate() {
	c.terminateOnce.Do(func() {
		close(c.terminated)
	})
}
