package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/sigreer/partgod/internal/layout"
)

// Output formats accepted by -o
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
)

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// resolveFormat turns "auto" into table on a terminal and JSON otherwise
func resolveFormat(format string, terminal bool) (string, error) {
	switch format {
	case formatTable, formatJSON:
		return format, nil
	case formatAuto, "":
		if terminal {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or auto)", format)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// findDisk looks a disk up by kernel name or /dev path
func findDisk(disks []*layout.Disk, name string) (*layout.Disk, error) {
	name = strings.TrimPrefix(name, "/dev/")
	for _, d := range disks {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("disk %q not found or in use by the running system", name)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
