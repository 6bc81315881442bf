package layout

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sigreer/partgod/internal/units"
)

const (
	// DefaultAlignment is the sector boundary default partitions start and end on
	DefaultAlignment = 2048

	bootSizeMiB = 500
)

// UseDefaultLayout replaces the layout with a boot partition followed by a
// root partition spanning the rest of the disk. See UseDefaultLayoutWithSwap.
func (d *Disk) UseDefaultLayout(fsType string) error {
	return d.UseDefaultLayoutWithSwap(fsType, 0)
}

// UseDefaultLayoutWithSwap replaces the layout with the standard scheme:
//
//   - a 500 MiB boot partition after the first mebibyte: an EFI system
//     partition on GPT (or disks without a table), an ext4 /boot on MBR
//   - a root partition mounted at / formatted with fsType
//   - swapGiB of swap at the end of the disk, when requested and there is
//     room left for root
//
// Pending creations are dropped and every other partition is marked for
// deletion. A swap request that does not fit is silently skipped; if boot
// and root do not fit, ErrInsufficientSpace is returned and the disk is
// left unchanged.
func (d *Disk) UseDefaultLayoutWithSwap(fsType string, swapGiB uint64) error {
	const align = DefaultAlignment
	last := d.LastUsable()

	bootStart := units.AlignUp(units.OneMiBSectors(d.sectorSize), align)
	bootSize := units.AlignUp(units.MiBToSectors(bootSizeMiB, d.sectorSize), align)
	bootEnd := bootStart + bootSize
	rootStart := units.AlignUp(bootEnd, align)

	var swapSize uint64
	if swapGiB <= last*d.sectorSize/units.GiB {
		swapSize = units.AlignDown(units.MiBToSectors(swapGiB*1024, d.sectorSize), align)
	}

	rootLimit := last
	if swapSize > 0 && rootStart+swapSize < last {
		rootLimit = last - swapSize
	}
	rootEnd := units.AlignDown(rootLimit, align)

	var rootSize uint64
	if rootEnd > rootStart {
		rootSize = rootEnd - rootStart
	}
	if rootSize == 0 {
		// Root is mandatory, swap is not
		swapSize = 0
		if last > rootStart {
			rootSize = units.AlignDown(last-rootStart, align)
		}
	}
	if bootEnd > last || rootSize == 0 {
		return fmt.Errorf("%w: %s has %d usable sectors, default layout needs more than %d",
			ErrInsufficientSpace, d.name, last, rootStart)
	}

	kept := make([]Item, 0, len(d.layout)+3)
	for _, it := range d.layout {
		p, ok := it.(Partition)
		if !ok || p.Status == StatusCreate || p.Status == StatusUnknown {
			continue
		}
		p.Status = StatusDelete
		kept = append(kept, p)
	}

	boot := Partition{
		ID:         d.ids.Next(),
		Start:      bootStart,
		Size:       bootSize,
		SectorSize: d.sectorSize,
		Status:     StatusCreate,
		Label:      "BOOT",
	}
	if d.label == LabelMsdos {
		boot.FSType = "ext4"
		boot.MountPoint = "/boot"
		boot.Flags = []string{"boot"}
	} else {
		boot.FSType = "fat32"
		boot.MountPoint = "/boot/efi"
		boot.Flags = []string{"boot", "esp"}
	}

	root := Partition{
		ID:         d.ids.Next(),
		Start:      rootStart,
		Size:       rootSize,
		SectorSize: d.sectorSize,
		Status:     StatusCreate,
		FSType:     fsType,
		MountPoint: "/",
		Label:      "ROOT",
	}
	kept = append(kept, boot, root)

	swapStart := units.AlignUp(root.End(), align)
	if swapSize > 0 && swapStart+swapSize <= last {
		kept = append(kept, Partition{
			ID:         d.ids.Next(),
			Start:      swapStart,
			Size:       swapSize,
			SectorSize: d.sectorSize,
			Status:     StatusCreate,
			FSType:     "swap",
			Label:      "SWAP",
		})
	} else {
		if swapGiB > 0 {
			logrus.WithFields(logrus.Fields{"disk": d.name, "swap_gib": swapGiB}).Info("Not enough room for swap, skipping it")
		}
		swapSize = 0
	}

	d.layout = kept
	d.CalculateFreeSpace()
	d.AssignDeviceNumbers()

	logrus.WithFields(logrus.Fields{
		"disk":      d.name,
		"table":     d.label.String(),
		"root_size": rootSize,
		"swap_size": swapSize,
	}).Debug("Applied default layout")
	return nil
}
