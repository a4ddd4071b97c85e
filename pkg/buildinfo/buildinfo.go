package buildinfo

// Version holds the application's version string.
// It's a `var` so it can be set at compile time using ldflags.
// Example: go build -ldflags="-X github.com/paulschiretz/pgl-sync/pkg/buildinfo.Version=1.0.0"
var Version = "dev"

// Name is the canonical name of the application used for logging.
var Name = "PGL-Sync"

// LockFileName is the name of the advisory lock file placed in a destination root
// while a sync into it is running. The CLI excludes it from every sync.
const LockFileName = ".pgl-sync.lock"
