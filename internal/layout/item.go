package layout

// Item is an entry in a disk layout: either a Partition or a FreeSpace gap.
// Use a type switch to tell them apart.
type Item interface {
	ItemID() uint64
	StartSector() uint64
	EndSector() uint64
	isItem()
}

// FreeSpace is an unallocated gap. Gaps are derived from the partitions and
// recomputed after every change, so their ids are not stable.
type FreeSpace struct {
	ID    uint64
	Start uint64
	Size  uint64
}

// End is the first sector after the gap
func (f FreeSpace) End() uint64 {
	return f.Start + f.Size
}

func (f FreeSpace) ItemID() uint64      { return f.ID }
func (f FreeSpace) StartSector() uint64 { return f.Start }
func (f FreeSpace) EndSector() uint64   { return f.End() }
func (FreeSpace) isItem()               {}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		if p, ok := it.(Partition); ok {
			out[i] = p.clone()
		} else {
			out[i] = it
		}
	}
	return out
}
