package layout

import (
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// MarkDelete requests removal of a partition. Discovered partitions are
// marked for deletion; partitions that were never on disk are dropped.
func (d *Disk) MarkDelete(id uint64) error {
	i, err := d.indexOf(id)
	if err != nil {
		return err
	}
	p := d.layout[i].(Partition)
	switch p.Status {
	case StatusCreate, StatusUnknown:
		return d.RemovePartition(id)
	case StatusExists, StatusModify:
		p.Status = StatusDelete
		d.layout[i] = p
		logrus.WithFields(logrus.Fields{"disk": d.name, "id": id}).Debug("Marked partition for deletion")
		d.CalculateFreeSpace()
		return nil
	default:
		return fmt.Errorf("%w: partition %d is already marked for deletion", ErrInvalidTransition, id)
	}
}

// MarkModify flags a discovered partition as changed
func (d *Disk) MarkModify(id uint64) error {
	i, err := d.indexOf(id)
	if err != nil {
		return err
	}
	p := d.layout[i].(Partition)
	switch p.Status {
	case StatusModify:
		return nil
	case StatusExists:
		p.Status = StatusModify
		d.layout[i] = p
		return nil
	default:
		return fmt.Errorf("%w: cannot modify a partition in state %s", ErrInvalidTransition, p.Status)
	}
}

// Unmark turns a modified partition back into an untouched one
func (d *Disk) Unmark(id uint64) error {
	i, err := d.indexOf(id)
	if err != nil {
		return err
	}
	p := d.layout[i].(Partition)
	if p.Status != StatusModify {
		return fmt.Errorf("%w: cannot unmark a partition in state %s", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusExists
	d.layout[i] = p
	return nil
}

// Restore cancels a pending deletion. A partition whose fields were edited
// before deletion comes back as modified, otherwise as existing. It fails if
// the space has been handed to another partition in the meantime.
func (d *Disk) Restore(id uint64) error {
	i, err := d.indexOf(id)
	if err != nil {
		return err
	}
	p := d.layout[i].(Partition)
	if p.Status != StatusDelete {
		return fmt.Errorf("%w: partition %d is not marked for deletion", ErrInvalidTransition, id)
	}
	if err := d.checkOverlap(p); err != nil {
		return err
	}
	p.Status = StatusExists
	if d.editedSinceDiscovery(p) {
		p.Status = StatusModify
	}
	d.layout[i] = p
	d.CalculateFreeSpace()
	d.AssignDeviceNumbers()
	return nil
}

func (d *Disk) editedSinceDiscovery(p Partition) bool {
	for _, it := range d.initial {
		q, ok := it.(Partition)
		if !ok || q.ID != p.ID {
			continue
		}
		return q.FSType != p.FSType || q.MountPoint != p.MountPoint ||
			q.Label != p.Label || !slices.Equal(q.Flags, p.Flags)
	}
	return false
}

// SetMountPoint sets or, with an empty string, clears the mount point
func (d *Disk) SetMountPoint(id uint64, mountPoint string) error {
	taken := mapset.NewThreadUnsafeSet[string]()
	for _, it := range d.layout {
		if p, ok := it.(Partition); ok && p.ID != id && p.Status != StatusDelete && p.MountPoint != "" {
			taken.Add(p.MountPoint)
		}
	}
	return d.edit(id, func(p *Partition) error {
		if mountPoint == "" {
			p.MountPoint = ""
			return nil
		}
		if p.IsSwap() {
			return fmt.Errorf("%w: swap partitions are not mounted", ErrInvalidMountPoint)
		}
		if err := ValidateMountPoint(mountPoint, taken); err != nil {
			return err
		}
		p.MountPoint = mountPoint
		return nil
	})
}

// SetFilesystem changes the filesystem. Switching to swap clears the mount point.
func (d *Disk) SetFilesystem(id uint64, fsType string) error {
	return d.edit(id, func(p *Partition) error {
		p.FSType = fsType
		if p.IsSwap() {
			p.MountPoint = ""
		}
		return nil
	})
}

// SetPartitionLabel changes the partition label
func (d *Disk) SetPartitionLabel(id uint64, label string) error {
	return d.edit(id, func(p *Partition) error {
		p.Label = label
		return nil
	})
}

// SetFlag sets or clears a flag
func (d *Disk) SetFlag(id uint64, flag string, on bool) error {
	if flag == "" {
		return fmt.Errorf("%w: empty flag", ErrInvalidPartition)
	}
	return d.edit(id, func(p *Partition) error {
		if on {
			p.AddFlag(flag)
		} else {
			p.RemoveFlag(flag)
		}
		return nil
	})
}

// edit applies fn to a copy of the partition and stores it when fn succeeds.
// Editing a discovered partition marks it modified.
func (d *Disk) edit(id uint64, fn func(p *Partition) error) error {
	i, err := d.indexOf(id)
	if err != nil {
		return err
	}
	p := d.layout[i].(Partition).clone()
	if p.Status == StatusDelete {
		return fmt.Errorf("%w: partition %d is marked for deletion", ErrInvalidTransition, id)
	}
	if err := fn(&p); err != nil {
		return err
	}
	if p.Status == StatusExists {
		p.Status = StatusModify
	}
	d.layout[i] = p
	return nil
}

// ValidateMountPoint checks that mountPoint is absolute, has no trailing
// slash (except "/") and is not in taken
func ValidateMountPoint(mountPoint string, taken mapset.Set[string]) error {
	switch {
	case mountPoint == "":
		return fmt.Errorf("%w: mount point cannot be empty", ErrInvalidMountPoint)
	case !strings.HasPrefix(mountPoint, "/"):
		return fmt.Errorf("%w: %q is not an absolute path", ErrInvalidMountPoint, mountPoint)
	case mountPoint != "/" && strings.HasSuffix(mountPoint, "/"):
		return fmt.Errorf("%w: %q ends with a slash", ErrInvalidMountPoint, mountPoint)
	case taken != nil && taken.Contains(mountPoint):
		return fmt.Errorf("%w: %q is already used by another partition", ErrInvalidMountPoint, mountPoint)
	}
	return nil
}
