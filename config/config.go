// Package config collects the settings of a simulation run from defaults,
// .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
)

// DefaultRegionKey is the well-known key that the manager creates the region
// under and the clients attach to.
const DefaultRegionKey = "./vmem"

// DefaultEnvFile is read by Load when no file is given.
const DefaultEnvFile = ".env"

// PageFileKind selects the backing store implementation.
type PageFileKind string

// The supported backing stores.
const (
	PageFileOnDisk   PageFileKind = "file"
	PageFileInSQLite PageFileKind = "sqlite"
	PageFileInMemory PageFileKind = "memory"
)

// The environment variables that Load understands.
const (
	EnvRegionKey    = "VMSIM_REGION"
	EnvPageSize     = "VMSIM_PAGESIZE"
	EnvVirtualSize  = "VMSIM_VIRTUAL_SIZE"
	EnvPhysicalSize = "VMSIM_PHYSICAL_SIZE"
	EnvAlgorithm    = "VMSIM_ALGO"
	EnvAgeInterval  = "VMSIM_AGE_INTERVAL"
	EnvPageFile     = "VMSIM_PAGEFILE"
	EnvPageFileKind = "VMSIM_PAGEFILE_KIND"
	EnvSeed         = "VMSIM_SEED"
	EnvMonitorPort  = "VMSIM_MONITOR_PORT"
	EnvFaultTimeout = "VMSIM_FAULT_TIMEOUT"
)

// Config holds the settings of one run.
type Config struct {
	RegionKey    string
	Geometry     vm.Geometry
	Algorithm    vm.Algorithm
	AgeInterval  uint64
	PageFile     string
	PageFileKind PageFileKind
	Seed         int64

	// MonitorPort is the port of the monitoring server. Zero picks a free
	// port; a negative value disables the server.
	MonitorPort int

	// FaultTimeout limits each page fault. Zero waits forever.
	FaultTimeout time.Duration
}

// Default returns the settings of the classic setup: 8-cell pages, 1024
// virtual cells, 128 physical cells and FIFO replacement.
func Default() Config {
	return Config{
		RegionKey:    DefaultRegionKey,
		Geometry:     vm.DefaultGeometry(),
		Algorithm:    vm.FIFO,
		AgeInterval:  vm.DefaultAgeInterval,
		PageFile:     "./pagefile.bin",
		PageFileKind: PageFileOnDisk,
		Seed:         pagefile.DefaultSeed,
		MonitorPort:  -1,
	}
}

// Load returns the default settings overridden by the given .env files and
// then by the environment. Without files, DefaultEnvFile is read if it
// exists.
func Load(envFiles ...string) (Config, error) {
	values, err := readEnvFiles(envFiles)
	if err != nil {
		return Config{}, err
	}

	c := Default()

	lookup := func(key string) (string, bool) {
		if v, found := os.LookupEnv(key); found {
			return v, true
		}

		v, found := values[key]

		return v, found
	}

	err = c.apply(lookup)
	if err != nil {
		return Config{}, err
	}

	return c, c.Validate()
}

func readEnvFiles(envFiles []string) (map[string]string, error) {
	if len(envFiles) == 0 {
		_, err := os.Stat(DefaultEnvFile)
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}

		envFiles = []string{DefaultEnvFile}
	}

	values, err := godotenv.Read(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w",
			strings.Join(envFiles, ", "), err)
	}

	return values, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) apply(lookup lookupFunc) error {
	if v, found := lookup(EnvRegionKey); found {
		c.RegionKey = v
	}

	if v, found := lookup(EnvPageFile); found {
		c.PageFile = v
	}

	if v, found := lookup(EnvPageFileKind); found {
		c.PageFileKind = PageFileKind(strings.ToLower(v))
	}

	if v, found := lookup(EnvAlgorithm); found {
		a, err := vm.ParseAlgorithm(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvAlgorithm, err)
		}

		c.Algorithm = a
	}

	if v, found := lookup(EnvFaultTimeout); found {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvFaultTimeout, err)
		}

		c.FaultTimeout = d
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvPageSize, &c.Geometry.PageSize},
		{EnvVirtualSize, &c.Geometry.VirtualSize},
		{EnvPhysicalSize, &c.Geometry.PhysicalSize},
		{EnvMonitorPort, &c.MonitorPort},
	}

	for _, i := range ints {
		v, found := lookup(i.key)
		if !found {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", i.key, err)
		}

		*i.dst = n
	}

	if v, found := lookup(EnvAgeInterval); found {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvAgeInterval, err)
		}

		c.AgeInterval = n
	}

	if v, found := lookup(EnvSeed); found {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvSeed, err)
		}

		c.Seed = n
	}

	return nil
}

// Validate checks that the settings describe a runnable simulation.
func (c Config) Validate() error {
	if c.RegionKey == "" {
		return errors.New("config: region key must not be empty")
	}

	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.AgeInterval == 0 {
		return errors.New("config: age interval must be positive")
	}

	switch c.PageFileKind {
	case PageFileOnDisk, PageFileInSQLite:
		if c.PageFile == "" {
			return fmt.Errorf("config: %s page file requires a path",
				c.PageFileKind)
		}
	case PageFileInMemory:
	default:
		return fmt.Errorf("config: unknown page file kind %q", c.PageFileKind)
	}

	if c.MonitorPort > 65535 {
		return fmt.Errorf("config: invalid monitor port %d", c.MonitorPort)
	}

	if c.FaultTimeout < 0 {
		return errors.New("config: fault timeout must not be negative")
	}

	return nil
}

// Layout returns the layout of the page file that the settings require.
func (c Config) Layout() pagefile.Layout {
	return pagefile.Layout{
		NumPages: c.Geometry.NumPages(),
		PageSize: c.Geometry.PageSize,
	}
}
