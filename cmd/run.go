package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/simulation"
	"github.com/sarchlab/vmsim/vmappl"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sorting workload on the simulated memory.",
		Long: `Run starts a memory manager, fills an array in virtual memory ` +
			`with random values, sorts it through the address translator and ` +
			`prints the page fault statistics. Interrupting the run ` +
			`terminates the manager and releases the region.`,
		Args: cobra.NoArgs,
		RunE: run,
	}

	addConfigFlags(runCmd)

	f := runCmd.Flags()
	f.Bool("fifo", false, "Use FIFO page replacement (default).")
	f.Bool("clock", false, "Use clock page replacement.")
	f.Bool("aging", false, "Use aging page replacement.")
	runCmd.MarkFlagsMutuallyExclusive("fifo", "clock", "aging")

	f.Uint64("age-interval", vm.DefaultAgeInterval,
		"The number of accesses between two aging refreshes.")
	f.Int("length", 0,
		"The number of cells to sort; 0 sorts the whole virtual memory.")
	f.Int64("app-seed", 1, "The seed of the values to sort.")
	f.Bool("bubble", false, "Sort with bubble sort instead of quicksort.")
	f.Bool("log-faults", false, "Log every page fault to stderr.")
	f.String("log-file", "", "Log the page faults to a file.")
	f.String("trace-csv", "", "Write the page faults into this CSV file.")
	f.String("trace-db", "",
		"Record the page faults into this SQLite database.")
	f.String("trace-mysql", "",
		"Record the page faults into a new database on this MySQL server, "+
			"given as a DSN such as user:password@tcp(host:3306)/.")
	f.Bool("dump", false, "Dump the page table after the workload.")
	f.Bool("monitor", false, "Start the monitoring server.")
	f.Int("monitor-port", 0, "The port of the monitoring server.")
	f.Bool("open-monitor", false, "Open the monitor in the browser.")

	return runCmd
}

func run(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	c, err := runConfig(cmd)
	if err != nil {
		return err
	}

	b, logFile, err := simulationBuilder(cmd, c)
	if err != nil {
		return err
	}

	if logFile != nil {
		defer logFile.Close()
	}

	s, err := b.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s.Start(ctx)

	openMonitor, _ := cmd.Flags().GetBool("open-monitor")
	if openMonitor && s.Monitor() != nil {
		if err := s.Monitor().OpenBrowser(); err != nil {
			log.Printf("cannot open the monitor: %v", err)
		}
	}

	workloadErr := s.RunWorkload(ctx, appBuilder(cmd))

	dump, _ := cmd.Flags().GetBool("dump")
	if dump && workloadErr == nil {
		workloadErr = s.Dump()
	}

	stats := s.Stats()
	terminateErr := s.Terminate()

	printSummary(cmd.OutOrStdout(), c, stats)

	if errors.Is(workloadErr, context.Canceled) {
		workloadErr = nil
	}

	if errors.Is(terminateErr, context.Canceled) {
		terminateErr = nil
	}

	return errors.Join(workloadErr, terminateErr)
}

func runConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()

	for name, algorithm := range map[string]vm.Algorithm{
		"fifo":  vm.FIFO,
		"clock": vm.Clock,
		"aging": vm.Aging,
	} {
		if set, _ := f.GetBool(name); set {
			c.Algorithm = algorithm
		}
	}

	if f.Changed("age-interval") {
		c.AgeInterval, _ = f.GetUint64("age-interval")
	}

	monitor, _ := f.GetBool("monitor")
	if monitor || f.Changed("monitor-port") {
		c.MonitorPort, _ = f.GetInt("monitor-port")
	}

	return c, c.Validate()
}

func simulationBuilder(
	cmd *cobra.Command,
	c config.Config,
) (simulation.Builder, *os.File, error) {
	f := cmd.Flags()
	b := simulation.MakeBuilder().WithConfig(c)

	var logFile *os.File

	logFaults, _ := f.GetBool("log-faults")
	logPath, _ := f.GetString("log-file")

	switch {
	case logPath != "":
		var err error

		logFile, err = os.Create(logPath)
		if err != nil {
			return b, nil, err
		}

		b = b.WithFaultLogger(log.New(logFile, "", log.Lmicroseconds))
	case logFaults:
		b = b.WithFaultLogger(log.New(cmd.ErrOrStderr(), "", log.Lmicroseconds))
	}

	if path, _ := f.GetString("trace-csv"); path != "" {
		b = b.WithCSVTrace(path)
	}

	if path, _ := f.GetString("trace-db"); path != "" {
		b = b.WithDBTrace(path)
	}

	if dsn, _ := f.GetString("trace-mysql"); dsn != "" {
		b = b.WithMySQLTrace(dsn)
	}

	return b, logFile, nil
}

func appBuilder(cmd *cobra.Command) vmappl.Builder {
	f := cmd.Flags()

	length, _ := f.GetInt("length")
	seed, _ := f.GetInt64("app-seed")
	bubble, _ := f.GetBool("bubble")

	b := vmappl.MakeBuilder().WithLength(length).WithSeed(seed)
	if bubble {
		b = b.WithSortAlgorithm(vmappl.BubbleSort)
	}

	return b
}

func printSummary(w io.Writer, c config.Config, stats vm.Stats) {
	fmt.Fprintf(w, "Algorithm:  %s\n", c.Algorithm)
	fmt.Fprintf(w, "Page size:  %d\n", c.Geometry.PageSize)
	fmt.Fprintf(w, "Pages:      %d\n", c.Geometry.NumPages())
	fmt.Fprintf(w, "Frames:     %d\n", c.Geometry.NumFrames())
	fmt.Fprintf(w, "Accesses:   %d\n", stats.Accesses)
	fmt.Fprintf(w, "Faults:     %d\n", stats.Faults)
	fmt.Fprintf(w, "Evictions:  %d\n", stats.Evictions)
	fmt.Fprintf(w, "Fault rate: %.4f\n", stats.FaultRate)
}
