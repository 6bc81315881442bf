package layout

import "sync/atomic"

// IDs hands out identifiers for partitions and free-space entries.
//
// Identifiers are only used for lookup, never for ordering. Each Disk keeps
// the allocator it was built with, so tests can use a fresh allocator and get
// deterministic ids. The zero value is ready to use.
type IDs struct {
	next atomic.Uint64
}

// NewIDs returns an allocator whose first id is 1
func NewIDs() *IDs {
	return &IDs{}
}

// Next returns a new identifier
func (a *IDs) Next() uint64 {
	return a.next.Add(1)
}
