package layout

import (
	"fmt"

	"github.com/sigreer/partgod/internal/units"
)

// Builder assembles a partition whose fields become known one at a time.
// Build checks that start, size and mount point are set and that the size
// is not zero. The id is left at zero and handed out by Disk.NewPartition.
type Builder struct {
	start      *uint64
	size       *uint64
	sectorSize uint64
	status     Status
	fsType     string
	mountPoint *string
	label      string
	readOnly   bool
	flags      []string
}

// NewBuilder returns an empty builder with status StatusUnknown
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Start(start uint64) *Builder {
	b.start = &start
	return b
}

func (b *Builder) Size(size uint64) *Builder {
	b.size = &size
	return b
}

func (b *Builder) SectorSize(sectorSize uint64) *Builder {
	b.sectorSize = sectorSize
	return b
}

func (b *Builder) Status(status Status) *Builder {
	b.status = status
	return b
}

func (b *Builder) FSType(fsType string) *Builder {
	b.fsType = fsType
	return b
}

func (b *Builder) MountPoint(mountPoint string) *Builder {
	b.mountPoint = &mountPoint
	return b
}

func (b *Builder) Label(label string) *Builder {
	b.label = label
	return b
}

func (b *Builder) ReadOnly(ro bool) *Builder {
	b.readOnly = ro
	return b
}

func (b *Builder) AddFlag(flag string) *Builder {
	for _, f := range b.flags {
		if f == flag {
			return b
		}
	}
	b.flags = append(b.flags, flag)
	return b
}

// Build validates the collected fields and returns the partition
func (b *Builder) Build() (Partition, error) {
	if b.start == nil {
		return Partition{}, fmt.Errorf("%w: start is required", ErrInvalidPartition)
	}
	if b.size == nil {
		return Partition{}, fmt.Errorf("%w: size is required", ErrInvalidPartition)
	}
	if b.mountPoint == nil {
		return Partition{}, fmt.Errorf("%w: mount point is required", ErrInvalidPartition)
	}
	if *b.size == 0 {
		return Partition{}, fmt.Errorf("%w: size must be greater than zero", ErrInvalidPartition)
	}
	sectorSize := b.sectorSize
	if sectorSize == 0 {
		sectorSize = units.DefaultSectorSize
	}
	var flags []string
	if len(b.flags) > 0 {
		flags = append(flags, b.flags...)
	}
	return Partition{
		Start:      *b.start,
		Size:       *b.size,
		SectorSize: sectorSize,
		Status:     b.status,
		FSType:     b.fsType,
		MountPoint: *b.mountPoint,
		Label:      b.label,
		ReadOnly:   b.readOnly,
		Flags:      flags,
	}, nil
}
