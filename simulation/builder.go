package simulation

import (
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmanage"
	"github.com/sarchlab/vmsim/mem/vm/vmaccess"
	"github.com/sarchlab/vmsim/monitoring"
	"github.com/sarchlab/vmsim/sim"
	"github.com/sarchlab/vmsim/tracing"
)

// Component names used by a simulation.
const (
	ManagerName    = "VM.MManage"
	TranslatorName = "VM.Access"
)

// Builder can be used to build a simulation.
type Builder struct {
	config      config.Config
	registry    *vm.Registry
	faultLogger *log.Logger
	csvTrace    bool
	csvPath     string
	dbTrace     bool
	dbPath      string
	mysqlDSN    string
	monitorOn   bool
}

// MakeBuilder creates a builder with the default configuration. Monitoring
// follows the configured monitor port.
func MakeBuilder() Builder {
	return Builder{
		config:   config.Default(),
		registry: vm.DefaultRegistry,
	}.WithConfig(config.Default())
}

// WithConfig sets the configuration of the run.
func (b Builder) WithConfig(c config.Config) Builder {
	b.config = c
	b.monitorOn = c.MonitorPort >= 0
	return b
}

// WithRegistry sets the registry that the region is created in.
func (b Builder) WithRegistry(r *vm.Registry) Builder {
	b.registry = r
	return b
}

// WithFaultLogger logs every page fault and page table dump.
func (b Builder) WithFaultLogger(l *log.Logger) Builder {
	b.faultLogger = l
	return b
}

// WithCSVTrace writes the page faults into path.csv. An empty path selects a
// unique name.
func (b Builder) WithCSVTrace(path string) Builder {
	b.csvTrace = true
	b.csvPath = path
	return b
}

// WithDBTrace records the page faults and dumps into path.sqlite3. An empty
// path selects a unique name.
func (b Builder) WithDBTrace(path string) Builder {
	b.dbTrace = true
	b.dbPath = path
	return b
}

// WithMySQLTrace records the page faults and dumps into a new database on
// the MySQL server of the DSN, instead of an SQLite file.
func (b Builder) WithMySQLTrace(dsn string) Builder {
	b.dbTrace = true
	b.mysqlDSN = dsn
	return b
}

// WithoutMonitoring disables the monitoring server.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// Build creates the region, the backing store and the components and
// connects them. The manager does not run until Start is called.
func (b Builder) Build() (*Simulation, error) {
	err := b.config.Validate()
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:       sim.NewRunID(),
		config:   b.config,
		registry: b.registry,
	}

	s.region, err = b.registry.Create(b.config.RegionKey, b.config.Geometry)
	if err != nil {
		return nil, fmt.Errorf("simulation: create region %q: %w",
			b.config.RegionKey, err)
	}

	s.store, err = b.openBackingStore()
	if err != nil {
		b.registry.Release(b.config.RegionKey)
		return nil, err
	}

	if c, ok := s.store.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	s.manager = mmanage.MakeBuilder().
		WithRegistry(b.registry).
		WithRegion(s.region).
		WithBackingStore(s.store).
		WithAlgorithm(b.config.Algorithm).
		WithAgeInterval(b.config.AgeInterval).
		Build(ManagerName)

	err = b.attachTracers(s)
	if err != nil {
		s.close()
		return nil, err
	}

	s.translator, err = vmaccess.MakeBuilder().
		WithFaultTimeout(b.config.FaultTimeout).
		Attach(b.registry, b.config.RegionKey, TranslatorName)
	if err != nil {
		s.close()
		return nil, err
	}

	if b.monitorOn {
		err = b.startMonitor(s)
		if err != nil {
			s.close()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) openBackingStore() (pagefile.BackingStore, error) {
	c := b.config

	var (
		store pagefile.BackingStore
		err   error
	)

	switch c.PageFileKind {
	case config.PageFileOnDisk:
		store, err = pagefile.OpenFileStore(c.PageFile, c.Layout(), c.Seed)
	case config.PageFileInSQLite:
		store, err = pagefile.OpenSQLiteStore(c.PageFile, c.Layout(), c.Seed)
	case config.PageFileInMemory:
		store = pagefile.NewMemoryStore(c.Layout(), c.Seed)
	default:
		log.Panicf("unknown page file kind %q", c.PageFileKind)
	}

	if err != nil {
		return nil, fmt.Errorf("simulation: open page file: %w", err)
	}

	return store, nil
}

func (b Builder) attachTracers(s *Simulation) error {
	if b.faultLogger != nil {
		tracing.CollectTrace(s.manager, tracing.NewLogTracer(b.faultLogger))
	}

	if b.csvTrace {
		csvTracer := tracing.NewCSVTracer(b.csvPath)
		csvTracer.Init()
		tracing.CollectTrace(s.manager, csvTracer)
		s.closers = append(s.closers, csvTracer)
	}

	if !b.dbTrace {
		return nil
	}

	if b.mysqlDSN != "" {
		recorder, err := datarecording.NewMySQL(b.mysqlDSN)
		if err != nil {
			return fmt.Errorf("simulation: open MySQL trace: %w", err)
		}

		s.dataRecorder = recorder
	} else {
		path := b.dbPath
		if path == "" {
			path = "vmsim_" + s.id
		}

		s.dataRecorder = datarecording.New(path)
	}

	tracing.CollectTrace(s.manager, tracing.NewDBTracer(s.dataRecorder))
	s.closers = append(s.closers, s.dataRecorder)

	return nil
}

func (b Builder) startMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor()
	if b.config.MonitorPort > 0 {
		s.monitor.WithPortNumber(b.config.MonitorPort)
	}

	s.monitor.RegisterRegion(s.region)
	s.monitor.RegisterComponent(s.manager)
	s.monitor.RegisterComponent(s.translator)

	return s.monitor.StartServer()
}
