package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/mem/pagefile"
)

func newDumpPageFileCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump-pagefile",
		Short: "Print the pages stored in a page file.",
		Long: `Dump-pagefile prints the cells of the pages in a page file. ` +
			`A page file that does not exist yet is created with the seeded ` +
			`initial content.`,
		Args: cobra.NoArgs,
		RunE: dumpPageFile,
	}

	addConfigFlags(dumpCmd)

	f := dumpCmd.Flags()
	f.Int("first", 0, "The first page to print.")
	f.Int("count", 1, "The number of pages to print.")

	return dumpCmd
}

func dumpPageFile(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return err
	}

	store, closer, err := openStore(c)
	if err != nil {
		return err
	}

	if closer != nil {
		defer closer.Close()
	}

	first, _ := cmd.Flags().GetInt("first")
	count, _ := cmd.Flags().GetInt("count")

	for page := first; page < first+count; page++ {
		data, err := store.Fetch(page)
		if err != nil {
			return err
		}

		printPage(cmd.OutOrStdout(), page, data)
	}

	return nil
}

func openStore(c config.Config) (pagefile.BackingStore, io.Closer, error) {
	switch c.PageFileKind {
	case config.PageFileOnDisk:
		s, err := pagefile.OpenFileStore(c.PageFile, c.Layout(), c.Seed)
		return s, s, err
	case config.PageFileInSQLite:
		s, err := pagefile.OpenSQLiteStore(c.PageFile, c.Layout(), c.Seed)
		return s, s, err
	default:
		return pagefile.NewMemoryStore(c.Layout(), c.Seed), nil, nil
	}
}

func printPage(w io.Writer, page int, data []int32) {
	cells := make([]string, len(data))
	for i, v := range data {
		cells[i] = fmt.Sprintf("%4d", v)
	}

	fmt.Fprintf(w, "page %4d: %s\n", page, strings.Join(cells, " "))
}
