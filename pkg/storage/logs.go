package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogStore persists captured step output below BaseDir, one directory per run.
type LogStore struct {
	BaseDir string
}

// NewLogStore creates a log store rooted at baseDir.
func NewLogStore(baseDir string) *LogStore {
	return &LogStore{BaseDir: baseDir}
}

// Save writes the output of one step and returns the file path and the
// SHA-256 digest of its content.
func (s *LogStore) Save(runID string, index int, step string, output []byte) (string, string, error) {
	dir := filepath.Join(s.BaseDir, sanitize(runID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%02d-%s.log", index, sanitize(step)))
	if err := os.WriteFile(path, output, 0o600); err != nil {
		return "", "", fmt.Errorf("writing log file: %w", err)
	}

	return path, Digest(output), nil
}

// Read returns a stored log after checking it lives inside the store and
// still matches digest. An empty digest skips the check.
func (s *LogStore) Read(path, digest string) ([]byte, error) {
	base, err := filepath.Abs(s.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving log directory: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving log path: %w", err)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("log %s is outside %s", path, s.BaseDir)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	if digest != "" && Digest(data) != digest {
		return nil, fmt.Errorf("log %s does not match its recorded digest", path)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// sanitize keeps file names portable.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '/':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "step"
	}
	return b.String()
}
