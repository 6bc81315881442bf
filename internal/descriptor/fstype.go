package descriptor

import "strings"

// GPT partition type codes in sgdisk notation
const (
	TypeLinuxFilesystem = "8300"
	TypeEFISystem       = "EF00"
	TypeBasicData       = "0700"
	TypeLinuxSwap       = "8200"
)

// GPTTypeCode returns the partition type code for a filesystem. FAT
// partitions are EFI system partitions when esp is set. The second result is
// false for filesystems without a well-known code.
func GPTTypeCode(fsType string, esp bool) (string, bool) {
	switch strings.ToLower(fsType) {
	case "ext2", "ext3", "ext4", "btrfs", "xfs":
		return TypeLinuxFilesystem, true
	case "fat12", "fat16", "fat32", "vfat":
		if esp {
			return TypeEFISystem, true
		}
		return TypeBasicData, true
	case "ntfs":
		return TypeBasicData, true
	case "swap", "linux-swap":
		return TypeLinuxSwap, true
	default:
		return "", false
	}
}

// FilesystemName maps a filesystem to the spelling the installer expects.
// All FAT variants become "vfat". Unsupported filesystems map to "".
func FilesystemName(fsType string) string {
	switch fs := strings.ToLower(fsType); fs {
	case "fat12", "fat16", "fat32", "vfat":
		return "vfat"
	case "ext2", "ext3", "ext4", "btrfs", "xfs", "ntfs", "swap":
		return fs
	case "linux-swap":
		return "swap"
	default:
		return ""
	}
}
