package layout

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigreer/partgod/internal/units"
)

// ignoreGapIDs compares layouts without the free-space ids, which change on
// every recomputation
var ignoreGapIDs = cmpopts.IgnoreFields(FreeSpace{}, "ID")

var ignorePartitionIDs = cmpopts.IgnoreFields(Partition{}, "ID")

func newTestDisk(size uint64, label Label, parts ...Partition) *Disk {
	return NewDisk(NewIDs(), "sda", size, 512, label, parts)
}

func existing(name string, start, size uint64) Partition {
	return Partition{Name: name, Start: start, Size: size, Status: StatusExists, FSType: "ext4"}
}

func create(start, size uint64) Partition {
	return Partition{Start: start, Size: size, Status: StatusCreate, FSType: "ext4"}
}

func assertDisjoint(t *testing.T, d *Disk) {
	t.Helper()
	var live []Partition
	for _, p := range d.Partitions() {
		if p.Status != StatusDelete {
			live = append(live, p)
		}
	}
	for i, a := range live {
		assert.GreaterOrEqual(t, a.Start, units.OneMiBSectors(d.SectorSize()), "partition %d inside the first mebibyte", a.ID)
		assert.LessOrEqual(t, a.End(), d.Size(), "partition %d past end of disk", a.ID)
		for _, b := range live[i+1:] {
			overlap := a.Start < b.End() && b.Start < a.End()
			assert.False(t, overlap, "partitions %d [%d,%d) and %d [%d,%d) overlap",
				a.ID, a.Start, a.End(), b.ID, b.Start, b.End())
		}
	}
}

func TestTailReserve(t *testing.T) {
	assert.Equal(t, uint64(33), TailReserve(LabelGPT, 512))
	assert.Equal(t, uint64(33), TailReserve(LabelNone, 512))
	assert.Equal(t, uint64(5), TailReserve(LabelGPT, 4096))
	assert.Equal(t, uint64(0), TailReserve(LabelMsdos, 512))
}

func TestParseLabel(t *testing.T) {
	for in, want := range map[string]Label{"gpt": LabelGPT, "dos": LabelMsdos, "msdos": LabelMsdos, "": LabelNone, "none": LabelNone} {
		got, err := ParseLabel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLabel("sun")
	assert.Error(t, err)
	assert.Equal(t, "msdos", LabelMsdos.String())
}

func TestNewDiskAssignsIDs(t *testing.T) {
	ids := NewIDs()
	d := NewDisk(ids, "sda", 10_000_000, 0, LabelGPT, []Partition{existing("sda1", 2048, 20480)})

	assert.Equal(t, uint64(512), d.SectorSize())
	parts := d.Partitions()
	require.Len(t, parts, 1)
	assert.Equal(t, uint64(1), parts[0].ID)
	assert.Equal(t, uint64(512), parts[0].SectorSize)
	assert.Equal(t, "/dev/sda", d.Path())
	assert.Equal(t, uint64(10_000_000*512), d.SizeBytes())
}

func TestAccessorsReturnCopies(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT, Partition{Name: "sda1", Start: 2048, Size: 20480, Status: StatusExists, Flags: []string{"boot"}})
	parts := d.Partitions()
	parts[0].Flags[0] = "changed"
	parts[0].Start = 99

	p, err := d.Partition(parts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"boot"}, p.Flags)
	assert.Equal(t, uint64(2048), p.Start)
}

func TestCalculateFreeSpaceEmptyDisk(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)

	gaps := d.FreeSpaces()
	require.Len(t, gaps, 1)
	assert.Equal(t, uint64(2048), gaps[0].Start)
	assert.Equal(t, uint64(10_000_000-33-2048), gaps[0].Size)
}

func TestCalculateFreeSpaceMsdosHasNoTailReserve(t *testing.T) {
	d := newTestDisk(10_000_000, LabelMsdos)

	gaps := d.FreeSpaces()
	require.Len(t, gaps, 1)
	assert.Equal(t, uint64(10_000_000), gaps[0].End())
}

func TestCalculateFreeSpaceBetweenPartitions(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT,
		existing("sda2", 3_000_000, 1_000_000),
		existing("sda1", 2048, 1_000_000),
	)

	layout := d.Layout()
	require.Len(t, layout, 4)
	assert.Equal(t, "sda1", layout[0].(Partition).Name)
	gap := layout[1].(FreeSpace)
	assert.Equal(t, uint64(1_002_048), gap.Start)
	assert.Equal(t, uint64(3_000_000), gap.End())
	assert.Equal(t, "sda2", layout[2].(Partition).Name)
	tail := layout[3].(FreeSpace)
	assert.Equal(t, uint64(4_000_000), tail.Start)
	assert.Equal(t, uint64(10_000_000-33), tail.End())
}

func TestCalculateFreeSpaceMinimumGap(t *testing.T) {
	const fiveMiB = 10240 // sectors of 512 bytes

	// A gap of exactly 5 MiB is dropped
	d := newTestDisk(10_000_000, LabelGPT,
		existing("sda1", 2048, 100_000),
		existing("sda2", 102_048+fiveMiB, 100_000),
	)
	for _, g := range d.FreeSpaces() {
		assert.NotEqual(t, uint64(102_048), g.Start, "5 MiB gap must not be listed")
	}

	// One more sector and it shows up
	d = newTestDisk(10_000_000, LabelGPT,
		existing("sda1", 2048, 100_000),
		existing("sda2", 102_048+fiveMiB+1, 100_000),
	)
	var found bool
	for _, g := range d.FreeSpaces() {
		if g.Start == 102_048 {
			found = true
			assert.Equal(t, uint64(fiveMiB+1), g.Size)
		}
		assert.Greater(t, g.Size, uint64(fiveMiB))
	}
	assert.True(t, found)
}

func TestCalculateFreeSpaceDeletedFirst(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT,
		existing("sda1", 2048, 1_000_000),
		existing("sda2", 1_002_048, 1_000_000),
	)
	parts := d.Partitions()
	require.NoError(t, d.MarkDelete(parts[1].ID))

	layout := d.Layout()
	first, ok := layout[0].(Partition)
	require.True(t, ok)
	assert.Equal(t, StatusDelete, first.Status)
	assert.Equal(t, "sda2", first.Name)

	// The deleted range is free again
	gaps := d.FreeSpaces()
	require.Len(t, gaps, 1)
	assert.Equal(t, uint64(1_002_048), gaps[0].Start)
	assert.Equal(t, d.LastUsable(), gaps[0].End())
}

func TestCalculateFreeSpaceIdempotent(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT,
		existing("sda1", 2048, 1_000_000),
		existing("sda2", 3_000_000, 1_000_000),
		existing("sda3", 5_000_000, 1_000_000),
	)
	require.NoError(t, d.MarkDelete(d.Partitions()[1].ID))

	d.CalculateFreeSpace()
	once := d.Layout()
	d.CalculateFreeSpace()
	twice := d.Layout()

	assert.Empty(t, cmp.Diff(once, twice, ignoreGapIDs))
}

func TestCalculateFreeSpaceGivesFreshIDs(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	before := d.FreeSpaces()[0].ID
	d.CalculateFreeSpace()
	assert.NotEqual(t, before, d.FreeSpaces()[0].ID)
}

func TestNormalizeMergesAdjacentFreeSpace(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	d.layout = []Item{
		FreeSpace{ID: 100, Start: 2048, Size: 1000},
		FreeSpace{ID: 101, Start: 3048, Size: 2000},
		Partition{ID: 102, Start: 5048, Size: 100, Status: StatusCreate},
		Partition{ID: 103, Start: 6000, Size: 100, Status: StatusDelete},
		FreeSpace{ID: 104, Start: 5148, Size: 500},
	}

	d.Normalize()

	require.Len(t, d.layout, 4)
	assert.Equal(t, uint64(103), d.layout[0].ItemID())
	merged := d.layout[1].(FreeSpace)
	assert.Equal(t, uint64(2048), merged.Start)
	assert.Equal(t, uint64(3000), merged.Size)
	assert.Equal(t, uint64(102), d.layout[2].ItemID())
	assert.Equal(t, uint64(104), d.layout[3].ItemID())
}

func TestNewPartition(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)

	require.NoError(t, d.NewPartition(create(2048, 1_000_000)))

	parts := d.Partitions()
	require.Len(t, parts, 1)
	assert.NotZero(t, parts[0].ID)
	assert.Equal(t, "sda1", parts[0].Name)
	assert.Equal(t, uint64(512), parts[0].SectorSize)

	gaps := d.FreeSpaces()
	require.Len(t, gaps, 1)
	assert.Equal(t, uint64(1_002_048), gaps[0].Start)
}

func TestNewPartitionInsideExistingLeavesLayoutUnchanged(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT, existing("sda1", 2048, 4_000_000))
	before := d.Layout()

	err := d.NewPartition(create(100_000, 10_000))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlap))
	var oe *OverlapError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, uint64(2048), oe.ExistingStart)
	assert.Empty(t, cmp.Diff(before, d.Layout()))
}

func TestNewPartitionOverlapsPendingCreate(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	require.NoError(t, d.NewPartition(create(2048, 1_000_000)))
	before := d.Layout()

	err := d.NewPartition(create(500_000, 1_000_000))

	assert.ErrorIs(t, err, ErrOverlap)
	assert.Empty(t, cmp.Diff(before, d.Layout()))
}

func TestNewPartitionMayReuseDeletedSpace(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT, existing("sda1", 2048, 4_000_000))
	require.NoError(t, d.MarkDelete(d.Partitions()[0].ID))

	assert.NoError(t, d.NewPartition(create(2048, 1_000_000)))
	assertDisjoint(t, d)
}

func TestNewPartitionAdjacentRangesAllowed(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT, existing("sda1", 2048, 1_000_000))
	assert.NoError(t, d.NewPartition(create(1_002_048, 1_000_000)))
}

func TestNewPartitionValidation(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	before := d.Layout()

	assert.ErrorIs(t, d.NewPartition(create(2048, 0)), ErrInvalidPartition)
	assert.ErrorIs(t, d.NewPartition(create(2048, 10_000_000)), ErrOutOfRange)
	assert.ErrorIs(t, d.NewPartition(create(9_999_990, 10)), ErrOutOfRange, "tail reserve is not allocatable")
	assert.ErrorIs(t, d.NewPartition(create(0, 4096)), ErrOutOfRange, "partition table area is not allocatable")
	assert.ErrorIs(t, d.NewPartition(create(2047, 4096)), ErrOutOfRange)

	assert.Empty(t, cmp.Diff(before, d.Layout()))
}

func TestNewPartitionFirstMebibyte4K(t *testing.T) {
	d := NewDisk(NewIDs(), "sdb", 2_000_000, 4096, LabelGPT, nil)

	assert.ErrorIs(t, d.NewPartition(create(255, 1000)), ErrOutOfRange)
	require.NoError(t, d.NewPartition(create(256, 1000)))
	assertDisjoint(t, d)
}

func TestNewPartitionDuplicateID(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT, existing("sda1", 2048, 1_000_000))
	dup := create(2_000_000, 1000)
	dup.ID = d.Partitions()[0].ID

	assert.ErrorIs(t, d.NewPartition(dup), ErrInvalidPartition)
}

func TestNewPartitionUnknownBecomesCreate(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	p, err := NewBuilder().Start(2048).Size(20480).MountPoint("/home").Build()
	require.NoError(t, err)
	require.Equal(t, StatusUnknown, p.Status)

	require.NoError(t, d.NewPartition(p))
	assert.Equal(t, StatusCreate, d.Partitions()[0].Status)
}

func TestRemovePartition(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	require.NoError(t, d.NewPartition(create(2048, 1_000_000)))
	id := d.Partitions()[0].ID

	require.NoError(t, d.RemovePartition(id))
	assert.Empty(t, d.Partitions())
	require.Len(t, d.FreeSpaces(), 1)

	assert.ErrorIs(t, d.RemovePartition(id), ErrNotFound)
}

func TestRemovePartitionRejectsFreeSpaceID(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	gap := d.FreeSpaces()[0]

	assert.ErrorIs(t, d.RemovePartition(gap.ID), ErrNotFound)
	assert.Len(t, d.FreeSpaces(), 1)
}

func TestResetLayoutRestoresDiscoveredState(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT,
		existing("sda1", 2048, 1_000_000),
		existing("sda2", 3_000_000, 1_000_000),
	)
	discovered := d.Layout()

	parts := d.Partitions()
	require.NoError(t, d.MarkDelete(parts[0].ID))
	require.NoError(t, d.SetMountPoint(parts[1].ID, "/data"))
	require.NoError(t, d.NewPartition(create(5_000_000, 1_000_000)))
	require.NoError(t, d.UseDefaultLayout("ext4"))

	d.ResetLayout()

	assert.Empty(t, cmp.Diff(discovered, d.Layout(), ignoreGapIDs))
}

func TestCloneIsIndependent(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT)
	c := d.Clone()
	require.NoError(t, c.NewPartition(create(2048, 1_000_000)))

	assert.Empty(t, d.Partitions())
	assert.Len(t, c.Partitions(), 1)
}

func TestMaxFit(t *testing.T) {
	d := newTestDisk(10_000_000, LabelGPT,
		existing("sda1", 2048, 1_000_000),
		existing("sda2", 3_000_000, 1_000_000),
	)

	assert.Equal(t, uint64(3_000_000-1_002_048), d.MaxFit(1_002_048))
	assert.Equal(t, uint64(0), d.MaxFit(5000), "inside sda1")
	assert.Equal(t, d.LastUsable()-4_000_000, d.MaxFit(4_000_000))
	assert.Equal(t, uint64(0), d.MaxFit(d.LastUsable()))

	// The largest fit is accepted, one more sector is not
	fit := d.MaxFit(1_002_048)
	assert.NoError(t, d.Clone().NewPartition(create(1_002_048, fit)))
	assert.ErrorIs(t, d.Clone().NewPartition(create(1_002_048, fit+1)), ErrOverlap)
}

func TestMutationsNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := newTestDisk(20_000_000, LabelGPT,
		existing("sda1", 2048, 2_000_000),
		existing("sda2", 4_000_000, 3_000_000),
		existing("sda3", 9_000_000, 5_000_000),
	)

	for i := 0; i < 500; i++ {
		parts := d.Partitions()
		switch rng.Intn(6) {
		case 0, 1:
			start := uint64(rng.Int63n(20_000_000))
			size := uint64(rng.Int63n(3_000_000))
			_ = d.NewPartition(create(start, size))
		case 2:
			if len(parts) > 0 {
				_ = d.MarkDelete(parts[rng.Intn(len(parts))].ID)
			}
		case 3:
			if len(parts) > 0 {
				_ = d.Restore(parts[rng.Intn(len(parts))].ID)
			}
		case 4:
			if gaps := d.FreeSpaces(); len(gaps) > 0 {
				g := gaps[rng.Intn(len(gaps))]
				_ = d.NewPartition(create(g.Start, d.MaxFit(g.Start)))
			}
		case 5:
			if rng.Intn(10) == 0 {
				d.ResetLayout()
			}
		}
		assertDisjoint(t, d)
	}
}
