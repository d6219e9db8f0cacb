package util

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir is where the SQLite database lives: $XDG_DATA_HOME/app, falling
// back to ~/.local/share/app.
func DataDir(app string) string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, app)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", app)
	}
	return filepath.Join(home, ".local", "share", app)
}

// ReportsDir is where PDF reports and exports are written when the
// configuration names no directory.
func ReportsDir(app, configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return expandHome(configured)
	}
	return filepath.Join(DataDir(app), "reports")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
