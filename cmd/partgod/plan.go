package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigreer/partgod/internal/db"
	"github.com/sigreer/partgod/internal/descriptor"
	"github.com/sigreer/partgod/internal/layout"
	"github.com/sigreer/partgod/internal/units"
)

var planCmd = &cobra.Command{
	Use:   "plan <disk>",
	Short: "Plan a partition layout and export the descriptor",
	Long: `Plan changes to a disk and print the partitioning descriptor.

Changes are applied in this order:
  - --default replaces everything with a boot, root and optional swap
    partition (--fs, --swap)
  - --delete marks existing partitions for removal (sda2, /dev/sda2 or 2)
  - --table switches the partition table; only allowed once no existing
    partition is kept
  - --add places new partitions in the first free region that holds them,
    aligned to 1 MiB. The format is SIZE:FS:MOUNT[:LABEL] where SIZE takes
    units (500MiB, 20G, 50%) relative to the free region; 100% fills it.

Examples:
  partgod plan sda --default --swap 4
  partgod plan nvme0n1 --delete 3 --add 100%:xfs:/srv --save
  partgod plan vdb --table gpt --add 512MiB:fat32:/boot/efi --add 100%:ext4:/`,
	Args: cobra.ExactArgs(1),
	Run:  runPlan,
}

func init() {
	planCmd.Flags().Bool("default", false, "Use the default boot/root/swap layout")
	planCmd.Flags().String("fs", "", "Root filesystem for --default (default from config)")
	planCmd.Flags().Uint64("swap", 0, "Swap size in GiB for --default (default from config)")
	planCmd.Flags().String("table", "", "Partition table: gpt or msdos")
	planCmd.Flags().StringSlice("delete", nil, "Partition to delete (repeatable)")
	planCmd.Flags().StringArray("add", nil, "Partition to add as SIZE:FS:MOUNT[:LABEL] (repeatable)")
	planCmd.Flags().Bool("save", false, "Save the plan to the plan store")
	planCmd.Flags().StringP("output", "O", "", "Write the descriptor to a file instead of stdout")
	planCmd.Flags().Bool("show", false, "Print the resulting layout to stderr")
}

// planOptions collects the changes requested on the command line
type planOptions struct {
	Default bool
	FSType  string
	SwapGiB uint64
	Table   string
	Delete  []string
	Add     []string
}

// addSpec is a parsed --add value
type addSpec struct {
	Size       string
	FSType     string
	MountPoint string
	Label      string
}

func parseAddSpec(s string) (addSpec, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 3 || len(fields) > 4 {
		return addSpec{}, fmt.Errorf("invalid partition %q: want SIZE:FS:MOUNT[:LABEL]", s)
	}
	spec := addSpec{
		Size:       strings.TrimSpace(fields[0]),
		FSType:     strings.TrimSpace(fields[1]),
		MountPoint: strings.TrimSpace(fields[2]),
	}
	if len(fields) == 4 {
		spec.Label = strings.TrimSpace(fields[3])
	}
	if spec.Size == "" {
		return addSpec{}, fmt.Errorf("invalid partition %q: size is required", s)
	}
	if (spec.FSType == "swap" || spec.FSType == "linux-swap") && spec.MountPoint != "" {
		return addSpec{}, fmt.Errorf("invalid partition %q: swap has no mount point", s)
	}
	return spec, nil
}

// applyPlan performs the requested changes on d. blank is the table used
// when the disk has none and no table was requested.
func applyPlan(d *layout.Disk, opts planOptions, blank layout.Label) error {
	target := d.Label()
	if opts.Table != "" {
		label, err := layout.ParseLabel(opts.Table)
		if err != nil || label == layout.LabelNone {
			return fmt.Errorf("invalid table %q: must be gpt or msdos", opts.Table)
		}
		target = label
	} else if target == layout.LabelNone {
		target = blank
	}

	specs := make([]addSpec, 0, len(opts.Add))
	for _, a := range opts.Add {
		spec, err := parseAddSpec(a)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	if opts.Default {
		if target != d.Label() {
			d.SetLabel(target)
		}
		if err := d.UseDefaultLayoutWithSwap(opts.FSType, opts.SwapGiB); err != nil {
			return err
		}
	}

	for _, ref := range opts.Delete {
		id, err := resolvePartition(d, ref)
		if err != nil {
			return err
		}
		if err := d.MarkDelete(id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", ref, err)
		}
	}

	if target != d.Label() {
		for _, p := range d.Partitions() {
			if p.Status == layout.StatusExists || p.Status == layout.StatusModify {
				return fmt.Errorf("cannot switch %s to %s: partition %s would be destroyed, delete it first",
					d.Name(), target, p.Name)
			}
		}
		logrus.WithFields(logrus.Fields{"disk": d.Name(), "from": d.Label().String(), "to": target.String()}).Info("Switching partition table")
		d.SetLabel(target)
	}

	for _, spec := range specs {
		if err := placePartition(d, spec); err != nil {
			return err
		}
	}
	return nil
}

// resolvePartition finds a partition by kernel name, /dev path or number
func resolvePartition(d *layout.Disk, ref string) (uint64, error) {
	name := strings.TrimPrefix(ref, "/dev/")
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		name = layout.PartitionDeviceName(d.Name(), n)
	}
	for _, p := range d.Partitions() {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: partition %q on %s", layout.ErrNotFound, ref, d.Name())
}

// placePartition adds spec at the start of the first free region, aligned
// to the default boundary, that can hold it
func placePartition(d *layout.Disk, spec addSpec) error {
	if _, ok := units.ParseSize(spec.Size, d.SectorSize(), d.Size()); !ok {
		return fmt.Errorf("invalid size %q", spec.Size)
	}

	if spec.MountPoint != "" {
		taken := mapset.NewThreadUnsafeSet[string]()
		for _, p := range d.Partitions() {
			if p.Status != layout.StatusDelete && p.MountPoint != "" {
				taken.Add(p.MountPoint)
			}
		}
		if err := layout.ValidateMountPoint(spec.MountPoint, taken); err != nil {
			return err
		}
	}

	for _, g := range d.FreeSpaces() {
		start := units.AlignUp(g.Start, layout.DefaultAlignment)
		fit := d.MaxFit(start)
		if fit == 0 {
			continue
		}
		size, ok := units.ParseSize(spec.Size, d.SectorSize(), fit)
		if !ok || size == 0 || size > fit {
			continue
		}

		b := layout.NewBuilder().
			Start(start).
			Size(size).
			SectorSize(d.SectorSize()).
			Status(layout.StatusCreate).
			FSType(spec.FSType).
			MountPoint(spec.MountPoint).
			Label(spec.Label)
		if spec.MountPoint == "/boot/efi" && d.Label() != layout.LabelMsdos {
			b.AddFlag("boot").AddFlag("esp")
		}
		p, err := b.Build()
		if err != nil {
			return err
		}
		return d.NewPartition(p)
	}
	return fmt.Errorf("%w: no free region on %s holds %s", layout.ErrInsufficientSpace, d.Name(), spec.Size)
}

func runPlan(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	opts := planOptions{Table: mustString(cmd, "table")}
	opts.Default, _ = cmd.Flags().GetBool("default")
	opts.Delete, _ = cmd.Flags().GetStringSlice("delete")
	opts.Add, _ = cmd.Flags().GetStringArray("add")
	opts.FSType = cfg.Defaults.Filesystem
	if fs := mustString(cmd, "fs"); fs != "" {
		opts.FSType = fs
	}
	opts.SwapGiB = cfg.Defaults.SwapGiB
	if cmd.Flags().Changed("swap") {
		opts.SwapGiB, _ = cmd.Flags().GetUint64("swap")
	}
	save, _ := cmd.Flags().GetBool("save")
	show, _ := cmd.Flags().GetBool("show")
	outPath := mustString(cmd, "output")

	d, err := findDisk(collectDisks(cfg), args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := applyPlan(d, opts, cfg.TableLabel()); err != nil {
		fmt.Fprintf(os.Stderr, "Error planning %s: %v\n", d.Path(), err)
		os.Exit(1)
	}

	desc := descriptor.Export(d)
	data, err := descriptor.Marshal(desc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if show {
		printLayout(os.Stderr, d)
		fmt.Fprintln(os.Stderr)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing descriptor: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Descriptor for %s written to %s\n", d.Path(), outPath)
	} else {
		os.Stdout.Write(data)
	}

	if !save {
		return
	}

	database, err := openDB(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening plan store: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	plan := &db.Plan{
		Device:         d.Path(),
		TableType:      d.Label().String(),
		SectorSize:     int64(d.SectorSize()),
		DiskSectors:    int64(d.Size()),
		PartitionCount: len(desc.Content.Partitions),
		DescriptorJSON: string(data),
	}
	if err := database.SavePlan(plan); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving plan: %v\n", err)
		os.Exit(1)
	}
	database.RecordEvent(plan.ID, db.EventSaved, map[string]interface{}{
		"default": opts.Default,
		"deleted": len(opts.Delete),
		"added":   len(opts.Add),
	})
	if outPath != "" {
		database.RecordEvent(plan.ID, db.EventExported, map[string]interface{}{"path": outPath})
	}
	fmt.Fprintf(os.Stderr, "Saved plan %s\n", plan.ID)
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
