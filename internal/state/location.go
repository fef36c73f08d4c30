package state

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultRoot derives the OS-conventional per-user state root (spec §6):
// $XDG_DATA_HOME/criticalup (or ~/.local/share/criticalup) on Linux-like
// systems, ~/Library/Application Support/criticalup on macOS, and the
// roaming AppData directory on Windows.
func DefaultRoot() (*Root, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	switch runtime.GOOS {
	case "darwin":
		return NewRoot(filepath.Join(home, "Library", "Application Support", "criticalup")), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return NewRoot(filepath.Join(appData, "criticalup")), nil
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		return NewRoot(filepath.Join(dataHome, "criticalup")), nil
	}
}
