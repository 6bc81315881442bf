package layout

import (
	"fmt"
	"slices"
)

// Status is the lifecycle state of a partition
type Status int

const (
	// StatusUnknown marks a partition that is not fully specified yet
	StatusUnknown Status = iota
	// StatusExists is a discovered partition nobody touched
	StatusExists
	// StatusCreate is a new partition that is not on disk yet
	StatusCreate
	// StatusModify is a discovered partition with pending changes
	StatusModify
	// StatusDelete is a discovered partition marked for removal
	StatusDelete
)

func (s Status) String() string {
	switch s {
	case StatusExists:
		return "existing"
	case StatusCreate:
		return "create"
	case StatusModify:
		return "modify"
	case StatusDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Label is the partition table kind of a disk
type Label int

const (
	// LabelNone means the disk has no table yet; one is created as GPT
	LabelNone Label = iota
	LabelGPT
	LabelMsdos
)

func (l Label) String() string {
	switch l {
	case LabelGPT:
		return "gpt"
	case LabelMsdos:
		return "msdos"
	default:
		return "none"
	}
}

// ParseLabel maps a partition table name to a Label. lsblk reports MBR as "dos".
func ParseLabel(s string) (Label, error) {
	switch s {
	case "", "none":
		return LabelNone, nil
	case "gpt":
		return LabelGPT, nil
	case "dos", "msdos", "mbr":
		return LabelMsdos, nil
	default:
		return LabelNone, fmt.Errorf("unknown partition table type: %s", s)
	}
}

// Partition is one partition on a disk.
//
// Start and Size are in sectors and describe the half-open range
// [Start, Start+Size). Empty strings mean "not set".
type Partition struct {
	ID         uint64
	Start      uint64
	Size       uint64
	SectorSize uint64
	Status     Status
	Name       string
	FSType     string
	MountPoint string
	Label      string
	ReadOnly   bool
	Flags      []string
}

// End is the first sector after the partition
func (p Partition) End() uint64 {
	return p.Start + p.Size
}

// SizeBytes is the partition size in bytes
func (p Partition) SizeBytes() uint64 {
	return p.Size * p.SectorSize
}

// IsSwap reports whether the partition holds swap
func (p Partition) IsSwap() bool {
	return p.FSType == "swap" || p.FSType == "linux-swap"
}

// HasFlag reports whether flag is set
func (p Partition) HasFlag(flag string) bool {
	return slices.Contains(p.Flags, flag)
}

// AddFlag sets flag, keeping the first insertion position
func (p *Partition) AddFlag(flag string) {
	if !p.HasFlag(flag) {
		p.Flags = append(p.Flags, flag)
	}
}

// RemoveFlag clears flag
func (p *Partition) RemoveFlag(flag string) {
	p.Flags = slices.DeleteFunc(p.Flags, func(f string) bool { return f == flag })
}

func (p Partition) clone() Partition {
	p.Flags = slices.Clone(p.Flags)
	return p
}

func (p Partition) ItemID() uint64      { return p.ID }
func (p Partition) StartSector() uint64 { return p.Start }
func (p Partition) EndSector() uint64   { return p.End() }
func (Partition) isItem()               {}
