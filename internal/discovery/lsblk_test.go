package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigreer/partgod/internal/layout"
)

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "lsblk.json"))
	require.NoError(t, err)
	return data
}

func TestParse(t *testing.T) {
	disks, err := Parse(readFixture(t), layout.NewIDs(), DefaultProtected)
	require.NoError(t, err)
	require.Len(t, disks, 2, "loop device and live media are skipped")

	nvme := disks[0]
	assert.Equal(t, "nvme0n1", nvme.Name())
	assert.Equal(t, uint64(1_000_215_216), nvme.Size())
	assert.Equal(t, uint64(512), nvme.SectorSize())
	assert.Equal(t, layout.LabelGPT, nvme.Label())

	parts := nvme.Partitions()
	require.Len(t, parts, 2)
	assert.Equal(t, layout.Partition{
		ID: parts[0].ID, Start: 2048, Size: 1_048_576, SectorSize: 512,
		Status: layout.StatusExists, Name: "nvme0n1p1", FSType: "vfat", Label: "EFI",
	}, parts[0])
	assert.Equal(t, uint64(1_050_624), parts[1].Start)
	assert.Equal(t, uint64(209_715_200), parts[1].Size)
	assert.Equal(t, "ext4", parts[1].FSType)

	gaps := nvme.FreeSpaces()
	require.Len(t, gaps, 1, "free space is computed on discovery")
	assert.Equal(t, parts[1].End(), gaps[0].Start)

	sdb := disks[1]
	assert.Equal(t, "sdb", sdb.Name())
	assert.Equal(t, uint64(4096), sdb.SectorSize(), "quoted numbers are accepted")
	assert.Equal(t, uint64(3_906_469_888), sdb.Size())
	assert.Equal(t, layout.LabelNone, sdb.Label())
	assert.Empty(t, sdb.Partitions())
}

func TestParseSharesIDAllocator(t *testing.T) {
	ids := layout.NewIDs()
	disks, err := Parse(readFixture(t), ids, DefaultProtected)
	require.NoError(t, err)

	seen := map[uint64]bool{}
	for _, d := range disks {
		for _, it := range d.Layout() {
			assert.False(t, seen[it.ItemID()], "duplicate id %d", it.ItemID())
			seen[it.ItemID()] = true
		}
	}
	assert.Greater(t, ids.Next(), uint64(len(seen)))
}

func TestParseCustomProtectedMounts(t *testing.T) {
	disks, err := Parse(readFixture(t), nil, []string{"/"})
	require.NoError(t, err)

	var names []string
	for _, d := range disks {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"sda", "nvme0n1", "sdb"}, names)
	assert.Equal(t, layout.LabelMsdos, disks[0].Label())
}

func TestParseRootMountedChild(t *testing.T) {
	data := []byte(`{"blockdevices":[
		{"name":"vda","size":10737418240,"type":"disk","log-sec":512,"pttype":"gpt","children":[
			{"name":"vda1","size":1073741824,"type":"part","start":2048,"mountpoint":null,"children":[
				{"name":"root","size":1073741824,"type":"lvm","mountpoint":"/"}
			]}
		]}
	]}`)

	disks, err := Parse(data, nil, DefaultProtected)
	require.NoError(t, err)
	assert.Empty(t, disks)
}

func TestParseDefaultsSectorSize(t *testing.T) {
	data := []byte(`{"blockdevices":[{"name":"vdb","size":1048576000,"type":"disk"}]}`)

	disks, err := Parse(data, nil, DefaultProtected)
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.Equal(t, uint64(512), disks[0].SectorSize())
	assert.Equal(t, uint64(2_048_000), disks[0].Size())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no blockdevices", `{}`},
		{"no type", `{"blockdevices":[{"name":"sda","size":1}]}`},
		{"no name", `{"blockdevices":[{"type":"disk","size":1}]}`},
		{"no size", `{"blockdevices":[{"name":"sda","type":"disk"}]}`},
		{"partition without start", `{"blockdevices":[{"name":"sda","type":"disk","size":1048576,
			"children":[{"name":"sda1","size":1024}]}]}`},
		{"partition without size", `{"blockdevices":[{"name":"sda","type":"disk","size":1048576,
			"children":[{"name":"sda1","start":2048}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), nil, DefaultProtected)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := Parse([]byte(`not json`), nil, DefaultProtected)
	assert.Error(t, err)
	_, err = Parse([]byte(`{"blockdevices":[{"name":"sda","type":"disk","size":"big"}]}`), nil, DefaultProtected)
	assert.Error(t, err)
}

func TestSourceCollect(t *testing.T) {
	dir := t.TempDir()
	fixture, err := filepath.Abs(filepath.Join("testdata", "lsblk.json"))
	require.NoError(t, err)
	script := filepath.Join(dir, "lsblk")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat "+fixture+"\n"), 0o755))

	src := &Source{Binary: script}
	disks, err := src.Collect(layout.NewIDs())
	require.NoError(t, err)
	assert.Len(t, disks, 2)
}

func TestSourceCollectFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "lsblk")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'permission denied' >&2\nexit 1\n"), 0o755))

	src := &Source{Binary: script}
	_, err := src.Collect(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
