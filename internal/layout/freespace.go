package layout

import (
	"cmp"
	"slices"

	"github.com/sigreer/partgod/internal/units"
)

// Gaps up to this size are not worth offering to the user
const minGapMiB = 5

// CalculateFreeSpace rebuilds the free-space entries from the partitions.
//
// Deleted partitions take no space and are moved to the front of the layout
// so they stay visible. The first mebibyte and the tail reserve are never
// reported as free.
func (d *Disk) CalculateFreeSpace() {
	var deleted []Item
	var rest []Partition
	for _, it := range d.layout {
		p, ok := it.(Partition)
		if !ok {
			continue
		}
		if p.Status == StatusDelete {
			deleted = append(deleted, p)
		} else {
			rest = append(rest, p)
		}
	}
	slices.SortStableFunc(rest, func(a, b Partition) int {
		return cmp.Compare(a.Start, b.Start)
	})

	last := d.LastUsable()
	minGap := units.MiBToSectors(minGapMiB, d.sectorSize)
	cursor := min(units.OneMiBSectors(d.sectorSize), last)

	items := make([]Item, 0, 2*len(rest)+1)
	addGap := func(end uint64) {
		end = min(end, last)
		if end > cursor && end-cursor > minGap {
			items = append(items, FreeSpace{ID: d.ids.Next(), Start: cursor, Size: end - cursor})
		}
	}
	for _, p := range rest {
		addGap(p.Start)
		items = append(items, p)
		cursor = max(cursor, min(p.End(), last))
	}
	addGap(last)

	d.layout = append(deleted, items...)
	d.Normalize()
}

// Normalize moves deleted partitions to the front and merges free-space
// entries that ended up next to each other.
func (d *Disk) Normalize() {
	ordered := make([]Item, 0, len(d.layout))
	for _, it := range d.layout {
		if p, ok := it.(Partition); ok && p.Status == StatusDelete {
			ordered = append(ordered, it)
		}
	}
	for _, it := range d.layout {
		if p, ok := it.(Partition); !ok || p.Status != StatusDelete {
			ordered = append(ordered, it)
		}
	}

	out := make([]Item, 0, len(ordered))
	var pending *FreeSpace
	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
	}
	for _, it := range ordered {
		switch v := it.(type) {
		case FreeSpace:
			if pending == nil {
				gap := v
				pending = &gap
				continue
			}
			pending.ID = d.ids.Next()
			pending.Size = max(pending.End(), v.End()) - pending.Start
		case Partition:
			flush()
			out = append(out, v)
		}
	}
	flush()

	d.layout = out
}
