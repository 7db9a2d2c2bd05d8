// Package cmd provides the command-line interface of vmsim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the base command with all the child commands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vmsim",
		Short: "vmsim simulates demand-paged virtual memory.",
		Long: `vmsim simulates demand-paged virtual memory. A memory manager ` +
			`owns a page table, a small physical memory and a page file, ` +
			`and resolves the page faults of a sorting workload with the ` +
			`FIFO, clock or aging replacement algorithm.`,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDumpPageFileCmd())
	rootCmd.AddCommand(newWatchCmd())

	return rootCmd
}

// Execute runs the command line and exits. Exit handlers, such as the ones
// that flush the traces, run before the process ends.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
