package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id does not name a partition on the disk
	ErrNotFound = errors.New("partition not found")

	// ErrOverlap is matched by every *OverlapError
	ErrOverlap = errors.New("partition overlaps an existing partition")

	// ErrOutOfRange is returned when a partition does not fit inside the usable area
	ErrOutOfRange = errors.New("partition outside usable area")

	// ErrInvalidPartition is returned for incomplete or zero-sized partitions
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidMountPoint is returned when a mount point fails validation
	ErrInvalidMountPoint = errors.New("invalid mount point")

	// ErrInsufficientSpace is returned when the default layout does not fit on the disk
	ErrInsufficientSpace = errors.New("insufficient space")
)

// OverlapError describes a rejected partition and the partition it collides with
type OverlapError struct {
	Start         uint64
	End           uint64
	ExistingID    uint64
	ExistingStart uint64
	ExistingEnd   uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("range [%d, %d) overlaps partition %d at [%d, %d)",
		e.Start, e.End, e.ExistingID, e.ExistingStart, e.ExistingEnd)
}

// Is lets errors.Is(err, ErrOverlap) match
func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}
