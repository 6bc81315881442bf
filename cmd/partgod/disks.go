package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/partgod/internal/layout"
	"github.com/sigreer/partgod/internal/units"
)

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "List disks available for installation",
	Long: `List the disks reported by lsblk that can be partitioned.

Disks with a partition mounted at a protected mount point (by default
/ and /iso) belong to the running system and are not listed.`,
	Run: runDisks,
}

var layoutCmd = &cobra.Command{
	Use:   "layout <disk>",
	Short: "Show the partitions and free space of a disk",
	Args:  cobra.ExactArgs(1),
	Run:   runLayout,
}

func init() {
	disksCmd.Flags().StringP("output", "o", formatAuto, "Output format: table, json or auto")
	layoutCmd.Flags().StringP("output", "o", formatAuto, "Output format: table, json or auto")
}

// diskInfo is the JSON form of a disk summary
type diskInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SizeBytes   uint64 `json:"size_bytes"`
	Sectors     uint64 `json:"sectors"`
	SectorSize  uint64 `json:"sector_size"`
	Table       string `json:"table"`
	Partitions  int    `json:"partitions"`
	LargestFree uint64 `json:"largest_free_sectors"`
}

func summarize(d *layout.Disk) diskInfo {
	info := diskInfo{
		Name:       d.Name(),
		Path:       d.Path(),
		SizeBytes:  d.SizeBytes(),
		Sectors:    d.Size(),
		SectorSize: d.SectorSize(),
		Table:      d.Label().String(),
		Partitions: len(d.Partitions()),
	}
	for _, g := range d.FreeSpaces() {
		info.LargestFree = max(info.LargestFree, g.Size)
	}
	return info
}

func runDisks(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("output")
	format, err := resolveFormat(format, stdoutIsTerminal())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	disks := collectDisks(cfg)

	infos := make([]diskInfo, 0, len(disks))
	for _, d := range disks {
		infos = append(infos, summarize(d))
	}

	if format == formatJSON {
		printJSON(os.Stdout, infos)
		return
	}

	if len(infos) == 0 {
		fmt.Println("No disks available for installation.")
		return
	}

	fmt.Printf("%-12s %-12s %-16s %-7s %-6s %-6s %s\n", "NAME", "SIZE", "SECTORS", "SECTOR", "TABLE", "PARTS", "LARGEST FREE")
	fmt.Println(strings.Repeat("-", 80))
	for _, in := range infos {
		fmt.Printf("%-12s %-12s %-16s %-7d %-6s %-6d %s\n",
			in.Name,
			units.BytesToHuman(in.SizeBytes),
			humanize.Comma(int64(in.Sectors)),
			in.SectorSize,
			in.Table,
			in.Partitions,
			units.SectorsToHuman(in.LargestFree, in.SectorSize),
		)
	}
}

func runLayout(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("output")
	format, err := resolveFormat(format, stdoutIsTerminal())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	d, err := findDisk(collectDisks(cfg), args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if format == formatJSON {
		printJSON(os.Stdout, layoutRows(d))
		return
	}
	fmt.Printf("%s  %s  %s sectors of %d bytes  table: %s\n\n",
		d.Path(), units.BytesToHuman(d.SizeBytes()), humanize.Comma(int64(d.Size())), d.SectorSize(), d.Label())
	printLayout(os.Stdout, d)
}
