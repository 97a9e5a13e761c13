// Package config provides configuration management for filedock.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDir is the directory name used under the user's config root.
const AppDir = "filedock"

// ConfigDir returns the per-user configuration directory.
//
// Locations:
//   - Windows: %APPDATA%\filedock
//   - Unix: ~/.config/filedock
func ConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", AppDir)
	}
	return ""
}

// DefaultConfigPath returns the default INI config location.
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.ini")
}

// DefaultTokenPath returns the default session token location.
func DefaultTokenPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "token")
}

// LogDirectory returns the directory used for rotated log files.
func LogDirectory() string {
	dir := ConfigDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "filedock-logs")
	}
	return filepath.Join(dir, "logs")
}
