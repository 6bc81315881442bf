// Package discovery builds disk models from lsblk output
package discovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/sigreer/partgod/internal/layout"
	"github.com/sigreer/partgod/internal/units"
)

// Columns requested from lsblk. Sizes are in bytes because of -b.
const Columns = "NAME,SIZE,TYPE,MOUNTPOINT,FSTYPE,LABEL,START,LOG-SEC,PTTYPE"

// DefaultProtected are mount points that mark a device as in use by the
// running system
var DefaultProtected = []string{"/", "/iso"}

// ErrMalformed is returned when lsblk output lacks a required field
var ErrMalformed = errors.New("malformed lsblk output")

// Source runs lsblk and parses its output
type Source struct {
	// Binary is the lsblk executable, "lsblk" when empty
	Binary string
	// Protected mount points, DefaultProtected when nil
	Protected []string
}

// lsblkOutput represents the JSON output from lsblk
type lsblkOutput struct {
	Blockdevices *[]lsblkDevice `json:"blockdevices"`
}

// lsblkDevice represents a single device in lsblk output
type lsblkDevice struct {
	Name       string        `json:"name"`
	Size       *flexUint     `json:"size"`
	Type       string        `json:"type"`
	MountPoint string        `json:"mountpoint"`
	FSType     string        `json:"fstype"`
	Label      string        `json:"label"`
	Start      *flexUint     `json:"start"`
	LogSec     *flexUint     `json:"log-sec"`
	PTType     string        `json:"pttype"`
	Children   []lsblkDevice `json:"children,omitempty"`
}

// flexUint accepts both JSON numbers and numeric strings. Older lsblk
// releases quote every value.
type flexUint uint64

func (f *flexUint) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*f = flexUint(v)
	return nil
}

// Collect runs lsblk and returns the disks that are safe to partition
func (s *Source) Collect(ids *layout.IDs) ([]*layout.Disk, error) {
	bin := s.Binary
	if bin == "" {
		bin = "lsblk"
	}

	cmd := exec.Command(bin, "--json", "-o", Columns, "-b")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("failed to run %s: %w: %s", bin, err, msg)
		}
		return nil, fmt.Errorf("failed to run %s: %w", bin, err)
	}

	protected := s.Protected
	if protected == nil {
		protected = DefaultProtected
	}
	return Parse(out, ids, protected)
}

// Parse converts lsblk JSON into disks. Devices mounted, directly or through
// a child, at one of the protected mount points are skipped. Only entries of
// type "disk" are returned; their children become existing partitions.
func Parse(data []byte, ids *layout.IDs, protected []string) ([]*layout.Disk, error) {
	var output lsblkOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse lsblk output: %w", err)
	}
	if output.Blockdevices == nil {
		return nil, fmt.Errorf("%w: missing blockdevices array", ErrMalformed)
	}
	if ids == nil {
		ids = layout.NewIDs()
	}
	guard := mapset.NewThreadUnsafeSet(protected...)

	var disks []*layout.Disk
	for _, dev := range *output.Blockdevices {
		if mp, ok := protectedMount(dev, guard); ok {
			logrus.WithFields(logrus.Fields{"device": dev.Name, "mountpoint": mp}).Debug("Skipping device in use by the running system")
			continue
		}
		if dev.Type == "" {
			return nil, fmt.Errorf("%w: device %q has no type", ErrMalformed, dev.Name)
		}
		if dev.Type != "disk" {
			continue
		}
		disk, err := parseDisk(dev, ids)
		if err != nil {
			return nil, err
		}
		disks = append(disks, disk)
	}
	return disks, nil
}

// protectedMount reports the first protected mount point found on dev or
// any of its descendants
func protectedMount(dev lsblkDevice, guard mapset.Set[string]) (string, bool) {
	if dev.MountPoint != "" && guard.Contains(dev.MountPoint) {
		return dev.MountPoint, true
	}
	for _, child := range dev.Children {
		if mp, ok := protectedMount(child, guard); ok {
			return mp, true
		}
	}
	return "", false
}

func parseDisk(dev lsblkDevice, ids *layout.IDs) (*layout.Disk, error) {
	if dev.Name == "" {
		return nil, fmt.Errorf("%w: disk entry has no name", ErrMalformed)
	}
	if dev.Size == nil {
		return nil, fmt.Errorf("%w: disk %s has no size", ErrMalformed, dev.Name)
	}

	sectorSize := units.DefaultSectorSize
	if dev.LogSec != nil && *dev.LogSec > 0 {
		sectorSize = uint64(*dev.LogSec)
	}

	label, err := layout.ParseLabel(dev.PTType)
	if err != nil {
		// Tables we cannot edit are treated as blank
		label = layout.LabelNone
	}

	parts := make([]layout.Partition, 0, len(dev.Children))
	for _, child := range dev.Children {
		p, err := parsePartition(child, dev.Name, sectorSize)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	logrus.WithFields(logrus.Fields{
		"disk":        dev.Name,
		"bytes":       uint64(*dev.Size),
		"sector_size": sectorSize,
		"table":       label.String(),
		"partitions":  len(parts),
	}).Debug("Discovered disk")

	return layout.NewDisk(ids, dev.Name, uint64(*dev.Size)/sectorSize, sectorSize, label, parts), nil
}

func parsePartition(dev lsblkDevice, disk string, sectorSize uint64) (layout.Partition, error) {
	if dev.Start == nil {
		return layout.Partition{}, fmt.Errorf("%w: partition %q on %s has no start", ErrMalformed, dev.Name, disk)
	}
	if dev.Size == nil {
		return layout.Partition{}, fmt.Errorf("%w: partition %q on %s has no size", ErrMalformed, dev.Name, disk)
	}
	return layout.Partition{
		Start:      uint64(*dev.Start),
		Size:       uint64(*dev.Size) / sectorSize,
		SectorSize: sectorSize,
		Status:     layout.StatusExists,
		Name:       dev.Name,
		FSType:     dev.FSType,
		MountPoint: dev.MountPoint,
		Label:      dev.Label,
	}, nil
}
