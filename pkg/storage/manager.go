package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Manager owns the on-disk layout of one board:
// <media_dir>/<board>/<thread_id>_<subject>/<tim><ext>
type Manager struct {
	boardDir   string
	savedFiles atomic.Int64
	savedBytes atomic.Int64
}

// NewManager creates a new storage manager rooted at <mediaDir>/<board>
func NewManager(mediaDir, board string) (*Manager, error) {
	boardDir := filepath.Join(mediaDir, board)
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(boardDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{boardDir: boardDir}, nil
}

// BoardDir returns the board's media directory
func (m *Manager) BoardDir() string {
	return m.boardDir
}

// ThreadDir returns the directory for a thread without creating it
func (m *Manager) ThreadDir(threadID, subject string) string {
	return filepath.Join(m.boardDir, ThreadDirName(threadID, subject))
}

// EnsureThreadDir creates the thread directory if needed and returns it
func (m *Manager) EnsureThreadDir(threadID, subject string) (string, error) {
	dir := m.ThreadDir(threadID, subject)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thread directory: %w", err)
	}
	return dir, nil
}

// AttachmentPath returns where a file is stored inside a thread directory.
// Names that would resolve outside the thread directory are refused.
func (m *Manager) AttachmentPath(threadDir, fileName string) (string, error) {
	path := filepath.Join(threadDir, fileName)
	rel, err := filepath.Rel(threadDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.Dir(rel) != "." {
		return "", fmt.Errorf("attachment name %q escapes thread directory", fileName)
	}
	return path, nil
}

// Exists reports whether a regular file is present at path
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save streams r to path. Data goes to path+".tmp" first and is renamed
// into place only after a successful sync, so the final name never holds a
// partial file.
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	// Create temporary file first
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	// Copy data
	n, err := io.Copy(out, r)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile) // Clean up temp file
		return 0, fmt.Errorf("failed to save file data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile) // Clean up temp file
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile) // Clean up temp file
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.savedFiles.Add(1)
	m.savedBytes.Add(n)
	return n, nil
}

// SavedCount returns the number of files written by this manager
func (m *Manager) SavedCount() int64 {
	return m.savedFiles.Load()
}

// SavedBytes returns the number of bytes written by this manager
func (m *Manager) SavedBytes() int64 {
	return m.savedBytes.Load()
}
