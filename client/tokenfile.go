package client

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultTokenPath is the reference client's resume-token persistence
// path (spec §6 CLI section).
const DefaultTokenPath = "/tmp/zellij-spike-resume-token"

// LoadTokenFile reads a previously persisted resume token, returning
// (nil, nil) if the file doesn't exist.
func LoadTokenFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("client: read token file %s: %w", path, err)
	}
	return data, nil
}

// SaveTokenFile persists token to path via temp-file-and-rename, with 0600
// permissions, so a concurrent reader never observes a partial write.
func SaveTokenFile(path string, token []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".resume-token-*")
	if err != nil {
		return fmt.Errorf("client: create temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(token); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("client: write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("client: close temp token file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("client: chmod temp token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("client: rename temp token file: %w", err)
	}
	return nil
}

// ClearTokenFile removes a persisted resume token, if present (spec §6 CLI
// "--clear-token").
func ClearTokenFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("client: remove token file %s: %w", path, err)
	}
	return nil
}

// CheckTokenFilePerms verifies path has 0600 permissions (spec §6 CLI
// "--token-file (must have 0600 perms on POSIX)"), returning an error
// naming the offending mode if not.
func CheckTokenFilePerms(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("client: stat token file %s: %w", path, err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		return fmt.Errorf("client: token file %s has permissions %04o, expected 0600", path, mode)
	}
	return nil
}
