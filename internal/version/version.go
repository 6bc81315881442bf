package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of partgod.
// Use semantic versioning: MAJOR.MINOR.PATCH
const Version = "0.4.0"

// Commit is the source revision, set at build time with
// -ldflags "-X github.com/sigreer/partgod/internal/version.Commit=<sha>"
var Commit = ""

// String returns the version line printed by "partgod version"
func String() string {
	if Commit == "" {
		return fmt.Sprintf("partgod %s (%s)", Version, runtime.Version())
	}
	return fmt.Sprintf("partgod %s-%s (%s)", Version, Commit, runtime.Version())
}
