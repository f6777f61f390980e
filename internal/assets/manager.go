// Package assets stores and removes uploaded product images on the local
// filesystem. It has no database awareness; callers hold the only live
// reference to a stored asset.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the upload cap, 5 MiB.
const MaxImageSize = 5 << 20

var (
	// ErrNotFound is returned by Remove when the reference does not exist.
	// Callers treat it as already-clean.
	ErrNotFound = errors.New("asset not found")

	// ErrInvalidImage is returned when the upload fails validation
	// (disallowed content type or size over the cap).
	ErrInvalidImage = errors.New("invalid image: must be JPEG or PNG up to 5 MB")
)

// extensionByType maps allowed sniffed content types to the stored file
// extension. The extension never comes from client input.
var extensionByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Upload is an image candidate: the declared size and the content reader.
type Upload struct {
	Size    int64
	Content io.Reader
}

// Manager owns the physical asset namespace under a single directory.
type Manager struct {
	dir string
}

// NewManager creates a Manager rooted at dir. The directory is created on
// the first Store call, not here.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Store validates the upload and writes it under a collision-free generated
// name, returning the relative reference used for display and later removal.
// The content type is sniffed from the first bytes, never trusted from
// client-declared metadata. On any error no partial file is left behind.
func (m *Manager) Store(up Upload) (string, error) {
	if up.Size <= 0 || up.Size > MaxImageSize {
		return "", ErrInvalidImage
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(up.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	ext, ok := extensionByType[http.DetectContentType(head)]
	if !ok {
		return "", ErrInvalidImage
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}

	name := "img_" + uuid.NewString() + ext
	dest := filepath.Join(m.dir, name)

	// Write to a temp file first and rename into place, so a failed write
	// never leaves a partial asset under the final name.
	tmp, err := os.CreateTemp(m.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// LimitReader guards against bodies longer than the declared size.
	_, err = io.Copy(tmp, io.MultiReader(bytes.NewReader(head), io.LimitReader(up.Content, MaxImageSize)))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, dest)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to store asset: %w", err)
	}

	return name, nil
}

// Remove deletes the referenced asset. Removing a reference that does not
// exist returns ErrNotFound, which callers treat as already-clean, so
// concurrent cleanup of the same stale reference is safe.
func (m *Manager) Remove(ref string) error {
	path, err := m.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove asset: %w", err)
	}
	return nil
}

// Dir returns the root of the asset directory, for static file serving.
func (m *Manager) Dir() string {
	return m.dir
}

// resolve maps a reference to a path inside the asset directory, rejecting
// anything that would escape it.
func (m *Manager) resolve(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if clean == "." || clean == ".." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrNotFound
	}
	return filepath.Join(m.dir, clean), nil
}
