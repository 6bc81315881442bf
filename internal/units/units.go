package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Binary and decimal byte multipliers
const (
	KiB uint64 = 1 << 10
	MiB uint64 = 1 << 20
	GiB uint64 = 1 << 30
	TiB uint64 = 1 << 40

	KB uint64 = 1000
	MB uint64 = 1000 * KB
	GB uint64 = 1000 * MB
	TB uint64 = 1000 * GB
)

// DefaultSectorSize is used when a device does not report its logical sector size
const DefaultSectorSize uint64 = 512

// BytesToSectors converts a byte count to sectors, rounding up
func BytesToSectors(bytes, sectorSize uint64) uint64 {
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}
	n := bytes / sectorSize
	if bytes%sectorSize != 0 {
		n++
	}
	return n
}

// MiBToSectors converts mebibytes to sectors, rounding up
func MiBToSectors(mib, sectorSize uint64) uint64 {
	return BytesToSectors(mib*MiB, sectorSize)
}

// OneMiBSectors is the number of sectors needed to cover one mebibyte
func OneMiBSectors(sectorSize uint64) uint64 {
	return MiBToSectors(1, sectorSize)
}

// AlignUp rounds x up to a multiple of align. An alignment of 0 leaves x unchanged.
func AlignUp(x, align uint64) uint64 {
	if align == 0 {
		return x
	}
	return (x + align - 1) / align * align
}

// AlignDown rounds x down to a multiple of align
func AlignDown(x, align uint64) uint64 {
	if align == 0 {
		return x
	}
	return x / align * align
}

// BytesToHuman formats a byte count with binary prefixes and two decimals.
// Values below 1 KiB are returned as the exact byte count.
func BytesToHuman(bytes uint64) string {
	switch {
	case bytes >= TiB:
		return fmt.Sprintf("%.2f TiB", float64(bytes)/float64(TiB))
	case bytes >= GiB:
		return fmt.Sprintf("%.2f GiB", float64(bytes)/float64(GiB))
	case bytes >= MiB:
		return fmt.Sprintf("%.2f MiB", float64(bytes)/float64(MiB))
	case bytes >= KiB:
		return fmt.Sprintf("%.2f KiB", float64(bytes)/float64(KiB))
	default:
		return strconv.FormatUint(bytes, 10)
	}
}

// SectorsToHuman formats a sector count as a human readable size
func SectorsToHuman(sectors, sectorSize uint64) string {
	return BytesToHuman(sectors * sectorSize)
}

// sizeUnits is checked in order, so longer suffixes sharing a tail with
// shorter ones ("gib" vs "b") must come first.
var sizeUnits = []struct {
	suffix     string
	multiplier float64
}{
	{"tib", float64(TiB)},
	{"tb", float64(TB)},
	{"gib", float64(GiB)},
	{"gb", float64(GB)},
	{"mib", float64(MiB)},
	{"mb", float64(MB)},
	{"kib", float64(KiB)},
	{"kb", float64(KB)},
	{"b", 1},
	{"%", 0},
}

// ParseSize converts a size expression into a sector count.
//
// Accepted forms: "50 MiB", "500MB", "25%", "1024B", "2.5GiB", or a bare
// integer which is taken as a raw sector count. Percentages are resolved
// against totalSectors. The second return value is false when the input
// cannot be parsed.
func ParseSize(input string, sectorSize, totalSectors uint64) (uint64, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, false
	}
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}

	for _, u := range sizeUnits {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		v, ok := parseNumber(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)))
		if !ok {
			return 0, false
		}
		var sectors float64
		if u.suffix == "%" {
			sectors = math.Round(v / 100 * float64(totalSectors))
		} else {
			sectors = math.Round(v * u.multiplier / float64(sectorSize))
		}
		// Beyond this the conversion to uint64 is undefined
		if sectors >= math.MaxUint64 {
			return 0, false
		}
		return uint64(sectors), true
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ProvisioningSize renders a partition size the way the provisioning tool
// expects it.
//
// When the requested allocation together with usedSectors reaches the last
// mebibyte of usableTotal, "100%" is returned so the tool can do its own
// end-of-disk rounding. Otherwise the size is given in decimal units
// ("500M", "50G", "2T") or as a byte count ("512B") below one kilobyte.
func ProvisioningSize(bytes, usedSectors, sectorSize, usableTotal uint64) string {
	requested := BytesToSectors(bytes, sectorSize)
	reserve := OneMiBSectors(sectorSize)
	var limit uint64
	if usableTotal > reserve {
		limit = usableTotal - reserve
	}
	if requested+usedSectors >= limit {
		return "100%"
	}

	b := float64(bytes)
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.0fT", b/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.0fG", b/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.0fM", b/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0fK", b/float64(KB))
	default:
		return strconv.FormatUint(bytes, 10) + "B"
	}
}
