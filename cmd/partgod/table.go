package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/sigreer/partgod/internal/layout"
	"github.com/sigreer/partgod/internal/units"
)

// layoutRow is one line of a layout listing, partition or free space
type layoutRow struct {
	Status     string   `json:"status"`
	Device     string   `json:"device,omitempty"`
	Start      uint64   `json:"start"`
	End        uint64   `json:"end"`
	Sectors    uint64   `json:"sectors"`
	Size       string   `json:"size"`
	FSType     string   `json:"fstype,omitempty"`
	MountPoint string   `json:"mountpoint,omitempty"`
	Label      string   `json:"label,omitempty"`
	Flags      []string `json:"flags,omitempty"`
}

func layoutRows(d *layout.Disk) []layoutRow {
	items := d.Layout()
	rows := make([]layoutRow, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case layout.Partition:
			device := ""
			if v.Name != "" {
				device = "/dev/" + v.Name
			}
			rows = append(rows, layoutRow{
				Status:     v.Status.String(),
				Device:     device,
				Start:      v.Start,
				End:        v.End(),
				Sectors:    v.Size,
				Size:       units.SectorsToHuman(v.Size, v.SectorSize),
				FSType:     v.FSType,
				MountPoint: v.MountPoint,
				Label:      v.Label,
				Flags:      v.Flags,
			})
		case layout.FreeSpace:
			rows = append(rows, layoutRow{
				Status:  "free",
				Start:   v.Start,
				End:     v.End(),
				Sectors: v.Size,
				Size:    units.SectorsToHuman(v.Size, d.SectorSize()),
			})
		}
	}
	return rows
}

// printLayout writes the layout of d as a table. End is exclusive.
func printLayout(w io.Writer, d *layout.Disk) {
	fmt.Fprintf(w, "%-9s %-16s %-14s %-14s %-12s %-8s %-12s %-8s %s\n",
		"STATUS", "DEVICE", "START", "END", "SIZE", "FS", "MOUNT", "LABEL", "FLAGS")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range layoutRows(d) {
		fmt.Fprintf(w, "%-9s %-16s %-14s %-14s %-12s %-8s %-12s %-8s %s\n",
			r.Status,
			dash(r.Device),
			humanize.Comma(int64(r.Start)),
			humanize.Comma(int64(r.End)),
			r.Size,
			dash(r.FSType),
			dash(r.MountPoint),
			dash(r.Label),
			dash(strings.Join(r.Flags, ",")),
		)
	}
}
