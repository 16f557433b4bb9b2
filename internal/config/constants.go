package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// AppDirName is the per-application directory under the local data dir.
// It matches the desktop widget so both share one database and secret.
const AppDirName = "com.claude.usage-widget"

// LocalDataDir resolves the platform's per-user local data directory.
func LocalDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" && runtime.GOOS != "windows" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
		return "", errors.New("cannot determine local data directory: LOCALAPPDATA is not set")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("cannot determine local data directory: no home directory")
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("cannot determine local data directory: no home directory")
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}
