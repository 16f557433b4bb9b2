// Package secret provisions the shared bearer secret for the ingestion gateway.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

// MinLength is the shortest stored secret that is reused as-is.
const MinLength = 32

const randomBytes = 32

// LoadOrCreate returns the secret stored at path, generating and writing a
// new one when the file is missing or holds fewer than MinLength characters.
func LoadOrCreate(path string) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if s := strings.TrimSpace(string(data)); len(s) >= MinLength {
			return s, nil
		}
		logger.Warn("auth secret is too short, regenerating", "path", path)
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	s, err := generate()
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("failed to create secret directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("failed to restrict secret permissions", "path", path, "error", err)
	}

	return s, nil
}

// Ephemeral returns a fresh secret that is never persisted. Reporting hooks
// cannot authenticate across restarts with it.
func Ephemeral() (string, error) {
	return generate()
}

func generate() (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
