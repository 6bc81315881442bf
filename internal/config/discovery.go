package config

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// fallbackLsblk lists places lsblk lives on installer images whose PATH does
// not include it
var fallbackLsblk = []string{
	"/run/current-system/sw/bin/lsblk",
	"/usr/bin/lsblk",
	"/bin/lsblk",
	"/sbin/lsblk",
}

// LsblkPath resolves the configured lsblk executable.
// Absolute paths are used as is, bare names are looked up in PATH and then
// in the usual system locations.
func (d Discovery) LsblkPath() (string, error) {
	name := d.Lsblk
	if name == "" {
		name = "lsblk"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	if name == "lsblk" {
		for _, p := range fallbackLsblk {
			if _, err := exec.LookPath(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("lsblk not found: %q is not in PATH", name)
}
