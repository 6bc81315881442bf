package layout

import (
	"fmt"

	"github.com/sigreer/partgod/internal/units"
)

// GPT defaults used to size the backup table at the end of the disk
const (
	gptEntries   = 128
	gptEntrySize = 128
)

// TailReserve is the number of sectors kept free at the end of a disk for
// backup table structures. Disks without a table get a GPT one, so they
// reserve the same as GPT.
func TailReserve(label Label, sectorSize uint64) uint64 {
	switch label {
	case LabelGPT, LabelNone:
		// backup header + backup entry array
		return 1 + units.BytesToSectors(gptEntries*gptEntrySize, sectorSize)
	default:
		return 0
	}
}

// Disk is a block device and its proposed partition layout.
//
// The layout is ordered: partitions marked for deletion first, then
// partitions and free space by start sector. The disk owns all items;
// accessors return copies and callers refer to items by id.
type Disk struct {
	ids        *IDs
	name       string
	size       uint64
	sectorSize uint64
	label      Label
	layout     []Item
	initial    []Item
}

// NewDisk builds a disk from discovered partitions and computes its free space.
// size is in sectors. Partitions without an id get one from ids.
func NewDisk(ids *IDs, name string, size, sectorSize uint64, label Label, parts []Partition) *Disk {
	if ids == nil {
		ids = NewIDs()
	}
	if sectorSize == 0 {
		sectorSize = units.DefaultSectorSize
	}

	items := make([]Item, 0, len(parts))
	for _, p := range parts {
		p = p.clone()
		if p.ID == 0 {
			p.ID = ids.Next()
		}
		if p.SectorSize == 0 {
			p.SectorSize = sectorSize
		}
		items = append(items, p)
	}

	d := &Disk{
		ids:        ids,
		name:       name,
		size:       size,
		sectorSize: sectorSize,
		label:      label,
		layout:     items,
		initial:    cloneItems(items),
	}
	d.CalculateFreeSpace()
	return d
}

// Name is the kernel device name without the /dev prefix
func (d *Disk) Name() string { return d.name }

// Path is the device node of the disk
func (d *Disk) Path() string { return "/dev/" + d.name }

// Size is the capacity in sectors
func (d *Disk) Size() uint64 { return d.size }

// SectorSize is the logical sector size in bytes
func (d *Disk) SectorSize() uint64 { return d.sectorSize }

// SizeBytes is the capacity in bytes
func (d *Disk) SizeBytes() uint64 { return d.size * d.sectorSize }

// Label is the partition table kind
func (d *Disk) Label() Label { return d.label }

// SetLabel changes the table kind. Free space is recomputed because the
// tail reserve depends on it.
func (d *Disk) SetLabel(l Label) {
	d.label = l
	d.CalculateFreeSpace()
}

// LastUsable is the first sector of the tail reserve
func (d *Disk) LastUsable() uint64 {
	reserve := TailReserve(d.label, d.sectorSize)
	if reserve >= d.size {
		return 0
	}
	return d.size - reserve
}

// Layout returns a copy of the current layout
func (d *Disk) Layout() []Item {
	return cloneItems(d.layout)
}

// InitialLayout returns a copy of the layout as discovered
func (d *Disk) InitialLayout() []Item {
	return cloneItems(d.initial)
}

// Partitions returns copies of all partitions in layout order
func (d *Disk) Partitions() []Partition {
	var parts []Partition
	for _, it := range d.layout {
		if p, ok := it.(Partition); ok {
			parts = append(parts, p.clone())
		}
	}
	return parts
}

// FreeSpaces returns the current gaps in layout order
func (d *Disk) FreeSpaces() []FreeSpace {
	var gaps []FreeSpace
	for _, it := range d.layout {
		if f, ok := it.(FreeSpace); ok {
			gaps = append(gaps, f)
		}
	}
	return gaps
}

// Partition looks up a partition by id
func (d *Disk) Partition(id uint64) (Partition, error) {
	i, err := d.indexOf(id)
	if err != nil {
		return Partition{}, err
	}
	return d.layout[i].(Partition).clone(), nil
}

// Clone returns an independent copy sharing the id allocator
func (d *Disk) Clone() *Disk {
	c := *d
	c.layout = cloneItems(d.layout)
	c.initial = cloneItems(d.initial)
	return &c
}

func (d *Disk) indexOf(id uint64) (int, error) {
	for i, it := range d.layout {
		if _, ok := it.(Partition); ok && it.ItemID() == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: id %d on %s", ErrNotFound, id, d.name)
}
