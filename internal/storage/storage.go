package storage

import (
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/config"

	"github.com/gofrs/uuid"
)

// allowedExtensions is the authoritative allow-list for task attachments.
// Order matters for error messages.
var allowedExtensions = []string{"pdf", "jpg", "jpeg", "png", "doc", "docx", "xls", "xlsx"}

var extensionMIME = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ValidateFile checks the file extension against the allow-list. The
// extension is authoritative; the MIME type is checked best-effort and a
// mismatch alone never blocks the upload (clients routinely send generic
// MIME types for office documents).
func ValidateFile(fileName, mimeType string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		return "", apperrors.ErrValidation.WithMessage(
			"file %q has no extension; allowed extensions: %s", fileName, strings.Join(allowedExtensions, ", "))
	}

	allowed := false
	for _, candidate := range allowedExtensions {
		if ext == candidate {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", apperrors.ErrValidation.WithMessage(
			"file extension %q is not allowed; allowed extensions: %s", ext, strings.Join(allowedExtensions, ", "))
	}

	if mimeType != "" {
		if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
			if expected := extensionMIME[ext]; expected != "" && parsed != expected {
				// Extension wins; the mismatch is only informational.
				log.Printf("storage: MIME %q does not match extension %q, accepting by extension", parsed, ext)
			}
		}
	}

	return ext, nil
}

// BuildPath produces the storage path convention <entity-id>/<unix>.<ext>.
func BuildPath(entityID uuid.UUID, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%d.%s", entityID, now.Unix(), ext)
}

// Store is a disk-backed attachment store rooted at one directory.
type Store struct {
	root        string
	maxFileSize int64
}

func NewStore(cfg config.StorageConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: cfg.Root, maxFileSize: cfg.MaxFileSize}, nil
}

// Save validates and writes the file, returning the relative storage path.
func (s *Store) Save(entityID uuid.UUID, fileName, mimeType string, size int64, r io.Reader) (string, error) {
	ext, err := ValidateFile(fileName, mimeType)
	if err != nil {
		return "", err
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return "", apperrors.ErrValidation.WithMessage(
			"file exceeds maximum size of %d bytes", s.maxFileSize)
	}

	relPath := BuildPath(entityID, ext, time.Now())
	fullPath := filepath.Join(s.root, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", apperrors.ErrTransportFailure.WithMessage("storage unavailable: %v", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", apperrors.ErrTransportFailure.WithMessage("storage unavailable: %v", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath)
		return "", apperrors.ErrPartialFailure.WithMessage("file write failed: %v", err)
	}

	return relPath, nil
}

// Open returns a reader for a previously stored path.
func (s *Store) Open(relPath string) (io.ReadCloser, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, apperrors.ErrValidation.WithMessage("invalid storage path")
	}
	f, err := os.Open(filepath.Join(s.root, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrNotFound.WithMessage("file not found")
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes a stored file; removing a missing file is not an error.
func (s *Store) Remove(relPath string) error {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return apperrors.ErrValidation.WithMessage("invalid storage path")
	}
	err := os.Remove(filepath.Join(s.root, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
