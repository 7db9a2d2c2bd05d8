package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/mem/vm"
)

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringSlice("env", nil, "The .env files to read the settings from.")
	f.String("region", config.DefaultRegionKey,
		"The key of the shared memory region.")
	f.Int("pagesize", vm.DefaultPageSize,
		"The number of cells per page (8, 16, 32 or 64).")
	f.String("pagefile", "", "The path of the page file.")
	f.String("pagefile-kind", string(config.PageFileOnDisk),
		"Where to keep the pages: file, sqlite or memory.")
	f.Int64("seed", 0, "The seed of the initial page file content.")
}

// loadConfig reads the configuration and lets the flags that were set on the
// command line override it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()

	envFiles, _ := f.GetStringSlice("env")

	c, err := config.Load(envFiles...)
	if err != nil {
		return config.Config{}, err
	}

	if f.Changed("region") {
		c.RegionKey, _ = f.GetString("region")
	}

	if f.Changed("pagesize") {
		c.Geometry.PageSize, _ = f.GetInt("pagesize")
	}

	if f.Changed("pagefile") {
		c.PageFile, _ = f.GetString("pagefile")
	}

	if f.Changed("pagefile-kind") {
		kind, _ := f.GetString("pagefile-kind")
		c.PageFileKind = config.PageFileKind(kind)
	}

	if f.Changed("seed") {
		c.Seed, _ = f.GetInt64("seed")
	}

	return c, nil
}
