package layout

import (
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
)

// PartitionDeviceName builds the kernel name of partition n on disk.
// Disks whose name ends in a digit (nvme0n1, mmcblk0) get a "p" separator.
func PartitionDeviceName(disk string, n int) string {
	if endsInDigit(disk) {
		return disk + "p" + strconv.Itoa(n)
	}
	return disk + strconv.Itoa(n)
}

// partitionNumber extracts the trailing partition number of a kernel name
func partitionNumber(name string) (int, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func endsInDigit(s string) bool {
	return s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9'
}

// AssignDeviceNumbers gives every partition that is not marked for deletion
// a kernel device name. Discovered partitions keep their numbers, pending
// ones keep theirs unless a discovered partition claims it, and the rest
// get the lowest free number in layout order.
func (d *Disk) AssignDeviceNumbers() {
	used := mapset.NewThreadUnsafeSet[int]()
	for _, it := range d.layout {
		p, ok := it.(Partition)
		if !ok || (p.Status != StatusExists && p.Status != StatusModify) {
			continue
		}
		if n, ok := partitionNumber(p.Name); ok {
			used.Add(n)
		}
	}

	for i, it := range d.layout {
		p, ok := it.(Partition)
		if !ok {
			continue
		}
		n, named := partitionNumber(p.Name)
		switch p.Status {
		case StatusExists, StatusModify:
			if named {
				continue
			}
		case StatusCreate:
			if named && used.Add(n) {
				continue
			}
		default:
			continue
		}
		n = 1
		for !used.Add(n) {
			n++
		}
		p.Name = PartitionDeviceName(d.name, n)
		d.layout[i] = p
	}
}
