package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(d *Disk) []string {
	var out []string
	for _, p := range d.Partitions() {
		if p.Status != StatusDelete {
			out = append(out, p.Name)
		}
	}
	return out
}

func TestPartitionDeviceName(t *testing.T) {
	assert.Equal(t, "sda1", PartitionDeviceName("sda", 1))
	assert.Equal(t, "vdb12", PartitionDeviceName("vdb", 12))
	assert.Equal(t, "nvme0n1p2", PartitionDeviceName("nvme0n1", 2))
	assert.Equal(t, "mmcblk0p1", PartitionDeviceName("mmcblk0", 1))
}

func TestPartitionNumber(t *testing.T) {
	for name, want := range map[string]int{"sda1": 1, "nvme0n1p12": 12, "vdc3": 3} {
		n, ok := partitionNumber(name)
		require.True(t, ok, name)
		assert.Equal(t, want, n)
	}
	for _, name := range []string{"", "sda", "sda0"} {
		_, ok := partitionNumber(name)
		assert.False(t, ok, name)
	}
}

func TestAssignDeviceNumbersFillsLowestFree(t *testing.T) {
	d := newTestDisk(20_000_000, LabelGPT,
		existing("sda1", 2048, 1_000_000),
		existing("sda3", 3_000_000, 1_000_000),
	)

	require.NoError(t, d.NewPartition(create(5_000_000, 1_000_000)))
	require.NoError(t, d.NewPartition(create(7_000_000, 1_000_000)))

	assert.Equal(t, []string{"sda1", "sda3", "sda2", "sda4"}, names(d))
}

func TestAssignDeviceNumbersNvme(t *testing.T) {
	d := NewDisk(NewIDs(), "nvme0n1", 20_000_000, 512, LabelGPT, nil)

	require.NoError(t, d.NewPartition(create(2048, 1_000_000)))
	require.NoError(t, d.NewPartition(create(2_000_000, 1_000_000)))

	assert.Equal(t, []string{"nvme0n1p1", "nvme0n1p2"}, names(d))
}

func TestAssignDeviceNumbersSkipsDeleted(t *testing.T) {
	d := newTestDisk(20_000_000, LabelGPT,
		existing("sda1", 2048, 1_000_000),
		existing("sda2", 3_000_000, 1_000_000),
	)
	require.NoError(t, d.MarkDelete(d.Partitions()[0].ID))

	require.NoError(t, d.NewPartition(create(5_000_000, 1_000_000)))

	var created Partition
	for _, p := range d.Partitions() {
		if p.Status == StatusCreate {
			created = p
		}
	}
	assert.Equal(t, "sda1", created.Name, "number of a deleted partition is free again")
}

func TestAssignDeviceNumbersRestoredPartitionWins(t *testing.T) {
	d := newTestDisk(20_000_000, LabelGPT, existing("sda1", 2048, 1_000_000))
	id := d.Partitions()[0].ID
	require.NoError(t, d.MarkDelete(id))
	require.NoError(t, d.NewPartition(create(5_000_000, 1_000_000)))

	require.NoError(t, d.Restore(id))

	restored, err := d.Partition(id)
	require.NoError(t, err)
	assert.Equal(t, "sda1", restored.Name)
	assert.ElementsMatch(t, []string{"sda1", "sda2"}, names(d))
}

func TestAssignDeviceNumbersUnnamedExisting(t *testing.T) {
	d := newTestDisk(20_000_000, LabelGPT,
		existing("", 2048, 1_000_000),
		existing("sda1", 3_000_000, 1_000_000),
	)
	d.AssignDeviceNumbers()

	assert.Equal(t, []string{"sda2", "sda1"}, names(d))
}
