// Package descriptor turns a planned disk layout into the declarative
// partitioning document consumed by the installer.
//
// The document is diff-like: partitions that stay untouched are left out and
// every emitted entry names the action to take. Keys are always present and
// carry null instead of being omitted.
package descriptor

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sigreer/partgod/internal/layout"
	"github.com/sigreer/partgod/internal/units"
)

// Descriptor is the top-level document for one disk
type Descriptor struct {
	Device  string  `json:"device"`
	Type    string  `json:"type"`
	Content Content `json:"content"`
}

// Content describes the partition table and the actions on it
type Content struct {
	Type       string  `json:"type"`
	Partitions []Entry `json:"partitions"`
}

// Entry is one partition action. Start and End are decimal sector numbers
// as strings; End is the inclusive last sector.
type Entry struct {
	Action      string   `json:"action"`
	BlockDevice *string  `json:"blockdevice"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Sectors     uint64   `json:"sectors"`
	Size        string   `json:"size"`
	Type        string   `json:"type"`
	Filesystem  *string  `json:"filesystem"`
	MountPoint  *string  `json:"mountpoint"`
	Label       *string  `json:"label"`
	Flags       []string `json:"flags"`
}

// Export builds the descriptor for d. Device numbers are assigned first so
// that every emitted partition has a block device path.
func Export(d *layout.Disk) *Descriptor {
	d.AssignDeviceNumbers()

	desc := &Descriptor{
		Device: d.Path(),
		Type:   "disk",
		Content: Content{
			Type:       d.Label().String(),
			Partitions: []Entry{},
		},
	}

	usable := d.LastUsable()
	gpt := d.Label() == layout.LabelGPT
	var used uint64

	for _, p := range d.Partitions() {
		action, ok := actionFor(p.Status)
		if !ok {
			continue
		}

		size := units.ProvisioningSize(p.SizeBytes(), used, p.SectorSize, usable)
		if size == "100%" {
			logrus.WithFields(logrus.Fields{
				"disk":       d.Name(),
				"partition":  p.Name,
				"sectors":    p.Size,
				"used":       used,
				"usable_end": usable,
			}).Debug("Partition takes the rest of the disk")
		}

		typ := "filesystem"
		if gpt {
			if code, ok := GPTTypeCode(p.FSType, p.HasFlag("esp")); ok {
				typ = code
			}
		}

		var dev *string
		if p.Name != "" {
			dev = ptr("/dev/" + p.Name)
		}

		flags := make([]string, 0, len(p.Flags))
		flags = append(flags, p.Flags...)

		desc.Content.Partitions = append(desc.Content.Partitions, Entry{
			Action:      action,
			BlockDevice: dev,
			Start:       strconv.FormatUint(p.Start, 10),
			End:         strconv.FormatUint(lastSector(p), 10),
			Sectors:     p.Size,
			Size:        size,
			Type:        typ,
			Filesystem:  ptr(FilesystemName(p.FSType)),
			MountPoint:  ptr(p.MountPoint),
			Label:       ptr(p.Label),
			Flags:       flags,
		})

		if p.Status == layout.StatusCreate || p.Status == layout.StatusModify {
			used += p.Size
		}
	}

	return desc
}

// Write encodes desc as indented JSON
func Write(w io.Writer, desc *Descriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(desc); err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return nil
}

// Marshal returns the indented JSON form of desc
func Marshal(desc *Descriptor) ([]byte, error) {
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return data, nil
}

// Unmarshal parses a descriptor previously produced by Marshal or Write
func Unmarshal(data []byte) (*Descriptor, error) {
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	if desc.Content.Partitions == nil {
		desc.Content.Partitions = []Entry{}
	}
	return &desc, nil
}

func actionFor(s layout.Status) (string, bool) {
	switch s {
	case layout.StatusCreate, layout.StatusModify, layout.StatusDelete:
		return s.String(), true
	default:
		return "", false
	}
}

func lastSector(p layout.Partition) uint64 {
	if p.Size == 0 {
		return p.Start
	}
	return p.Start + p.Size - 1
}

// ptr is a helper to create a pointer to a string, nil when empty
func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
