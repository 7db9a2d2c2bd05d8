// Package simulation wires the memory manager, the address translator and
// their supporting services into one run.
package simulation

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmanage"
	"github.com/sarchlab/vmsim/mem/vm/vmaccess"
	"github.com/sarchlab/vmsim/monitoring"
	"github.com/sarchlab/vmsim/vmappl"
)

const monitorShutdownTimeout = time.Second

// A Simulation owns the components of one run.
type Simulation struct {
	id       string
	config   config.Config
	registry *vm.Registry

	region       *vm.Region
	store        pagefile.BackingStore
	manager      *mmanage.Comp
	translator   *vmaccess.Comp
	monitor      *monitoring.Monitor
	dataRecorder datarecording.DataRecorder
	closers      []io.Closer

	startOnce sync.Once
	cancel    context.CancelFunc
	runErr    chan error

	terminateOnce sync.Once
	terminateErr  error
}

// ID returns the unique ID of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Config returns the configuration of the run.
func (s *Simulation) Config() config.Config {
	return s.config
}

// Region returns the shared region.
func (s *Simulation) Region() *vm.Region {
	return s.region
}

// Manager returns the memory manager.
func (s *Simulation) Manager() *mmanage.Comp {
	return s.manager
}

// Translator returns the address translator.
func (s *Simulation) Translator() *vmaccess.Comp {
	return s.translator
}

// Monitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// DataRecorder returns the data recorder, or nil if no database trace is
// recorded.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Start runs the memory manager in the background.
func (s *Simulation) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.runErr = make(chan error, 1)

		go func() {
			s.runErr <- s.manager.Run(ctx)
		}()
	})
}

// RunWorkload fills, sorts and verifies an array through the translator.
func (s *Simulation) RunWorkload(ctx context.Context, b vmappl.Builder) error {
	app := b.Build(s.translator)

	if s.monitor != nil {
		bar := s.monitor.CreateProgressBar("vmappl", uint64(2*app.Length()))
		defer s.monitor.CompleteProgressBar(bar)

		app = b.WithProgressReporter(bar).Build(s.translator)
	}

	return app.Run(ctx)
}

// Dump asks the manager to report its page table to the tracers.
func (s *Simulation) Dump() error {
	return s.region.Channel().PostDump()
}

// Stats returns the counters of the run.
func (s *Simulation) Stats() vm.Stats {
	return s.region.Snapshot().Adm.Stats()
}

// Terminate stops the manager, waits for it and releases every resource.
// It returns the error that stopped the manager, if any. Later calls return
// the same result.
func (s *Simulation) Terminate() error {
	s.terminateOnce.Do(func() {
		s.terminateErr = s.terminate()
	})

	return s.terminateErr
}

func (s *Simulation) terminate() error {
	var runErr error

	if s.runErr != nil {
		err := s.region.Channel().PostTerminate()
		if err != nil && !errors.Is(err, vm.ErrTerminated) {
			s.cancel()
		}

		runErr = <-s.runErr
		s.cancel()
	} else {
		s.region.Channel().Terminate()
		s.registry.Release(s.region.Key())
	}

	return errors.Join(runErr, s.close())
}

func (s *Simulation) close() error {
	var errs []error

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(),
			monitorShutdownTimeout)
		errs = append(errs, s.monitor.Shutdown(ctx))
		cancel()
	}

	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}

	s.closers = nil
	s.registry.Release(s.region.Key())

	return errors.Join(errs...)
}
