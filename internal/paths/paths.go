package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	daemonName = "stagehandd"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/stagehandd or /run/user/<uid>/stagehandd
//	macOS:   ~/Library/Caches/stagehandd/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, daemonName)
	}
	return filepath.Join(xdg.CacheHome, daemonName, "run")
}

// Default path to the Unix domain socket for CLI-to-daemon communication.
func Socket() string {
	return filepath.Join(Runtime(), daemonName+".sock")
}

// Default path to the PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), daemonName+".pid")
}

// Default directory for the content-addressed stage cache.
//
//	Linux:   ~/.cache/stagehandd/stages
//	macOS:   ~/Library/Caches/stagehandd/stages
func StageCache() string {
	return filepath.Join(xdg.CacheHome, daemonName, "stages")
}

// Default directory for exported build artifacts.
func Output() string {
	return filepath.Join(xdg.DataHome, daemonName, "images")
}
