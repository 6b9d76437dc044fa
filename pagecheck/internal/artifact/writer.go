// Package artifact persists verification evidence: screenshots at fixed
// paths and DOM excerpts captured on failure.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer writes artifacts relative to Base (the invocation directory when
// empty). Existing files are overwritten.
type Writer struct {
	Base string
}

// Resolve returns the absolute destination for path.
func (w *Writer) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("artifact: empty path")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Base, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("artifact: resolve %s: %w", path, err)
	}
	return abs, nil
}

// Write stores data at path, creating parent directories. It returns the
// absolute path written.
func (w *Writer) Write(path string, data []byte) (string, error) {
	dst, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("artifact: mkdir: %w", err)
	}
	// Temp file + rename: readers never see a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pagecheck-*")
	if err != nil {
		return "", fmt.Errorf("artifact: create: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact: rename: %w", err)
	}
	return dst, nil
}
