package layout

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sigreer/partgod/internal/units"
)

// NewPartition adds a partition to the layout.
//
// The partition must have a non-zero size, lie between the first mebibyte
// and the end of the usable area, and not intersect any partition that is
// not marked for deletion, including other pending creations. On error the layout is left untouched. A zero id
// is replaced with a fresh one and an unknown status becomes StatusCreate.
func (d *Disk) NewPartition(p Partition) error {
	p = p.clone()
	if p.SectorSize == 0 {
		p.SectorSize = d.sectorSize
	}
	if p.Status == StatusUnknown {
		p.Status = StatusCreate
	}
	if err := d.checkRange(p); err != nil {
		return err
	}
	if err := d.checkOverlap(p); err != nil {
		return err
	}
	if p.ID != 0 {
		if _, err := d.indexOf(p.ID); err == nil {
			return fmt.Errorf("%w: id %d is already in use", ErrInvalidPartition, p.ID)
		}
	} else {
		p.ID = d.ids.Next()
	}

	logrus.WithFields(logrus.Fields{
		"disk":   d.name,
		"id":     p.ID,
		"start":  p.Start,
		"size":   p.Size,
		"status": p.Status.String(),
	}).Debug("Adding partition")

	d.layout = append(d.layout, p)
	d.CalculateFreeSpace()
	d.AssignDeviceNumbers()
	return nil
}

// RemovePartition drops a partition from the layout entirely. This is meant
// for partitions that are not on disk yet; discovered partitions should be
// marked for deletion instead.
func (d *Disk) RemovePartition(id uint64) error {
	i, err := d.indexOf(id)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"disk": d.name, "id": id}).Debug("Removing partition")

	d.layout = append(d.layout[:i], d.layout[i+1:]...)
	d.CalculateFreeSpace()
	return nil
}

// ResetLayout throws away every change and restores the discovered layout
func (d *Disk) ResetLayout() {
	d.layout = cloneItems(d.initial)
	d.CalculateFreeSpace()
}

// MaxFit returns the largest size in sectors a new partition starting at
// start can have. It is 0 when start is inside a partition or past the
// usable area.
func (d *Disk) MaxFit(start uint64) uint64 {
	limit := d.LastUsable()
	if start >= limit {
		return 0
	}
	for _, it := range d.layout {
		p, ok := it.(Partition)
		if !ok || p.Status == StatusDelete {
			continue
		}
		if start >= p.Start && start < p.End() {
			return 0
		}
		if p.Start > start && p.Start < limit {
			limit = p.Start
		}
	}
	return limit - start
}

func (d *Disk) checkRange(p Partition) error {
	if p.Size == 0 {
		return fmt.Errorf("%w: size must be greater than zero", ErrInvalidPartition)
	}
	if first := units.OneMiBSectors(d.sectorSize); p.Start < first {
		return fmt.Errorf("%w: [%d, %d) starts inside the first %d sectors of %s",
			ErrOutOfRange, p.Start, p.End(), first, d.name)
	}
	last := d.LastUsable()
	if p.End() < p.Start || p.End() > last {
		return fmt.Errorf("%w: [%d, %d) ends past sector %d of %s",
			ErrOutOfRange, p.Start, p.End(), last, d.name)
	}
	return nil
}

func (d *Disk) checkOverlap(p Partition) error {
	for _, it := range d.layout {
		q, ok := it.(Partition)
		if !ok || q.Status == StatusDelete {
			continue
		}
		if p.Start < q.End() && p.End() > q.Start {
			return &OverlapError{
				Start:         p.Start,
				End:           p.End(),
				ExistingID:    q.ID,
				ExistingStart: q.Start,
				ExistingEnd:   q.End(),
			}
		}
	}
	return nil
}
