package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/config"

	"github.com/gofrs/uuid"
)

func TestValidateFileAllowsPDF(t *testing.T) {
	ext, err := ValidateFile("report.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("expected report.pdf to pass, got %v", err)
	}
	if ext != "pdf" {
		t.Errorf("expected ext pdf, got %s", ext)
	}
}

func TestValidateFileRejectsExecutable(t *testing.T) {
	_, err := ValidateFile("report.exe", "application/octet-stream")
	if err == nil {
		t.Fatal("expected report.exe to be rejected")
	}
	for _, want := range []string{"pdf", "jpg", "jpeg", "png", "doc", "docx", "xls", "xlsx"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error message should name allowed extension %q: %s", want, err.Error())
		}
	}
	if apperrors.Code(err) != apperrors.ErrValidation.Code {
		t.Errorf("expected validation error, got code %q", apperrors.Code(err))
	}
}

func TestValidateFileMIMEMismatchDoesNotBlock(t *testing.T) {
	// Extension is authoritative: a generic MIME type must not block a
	// well-formed docx upload.
	if _, err := ValidateFile("minutes.docx", "application/octet-stream"); err != nil {
		t.Errorf("MIME mismatch alone should not block upload: %v", err)
	}
}

func TestValidateFileCaseInsensitive(t *testing.T) {
	if _, err := ValidateFile("SCAN.PDF", ""); err != nil {
		t.Errorf("uppercase extension should pass: %v", err)
	}
}

func TestBuildPathConvention(t *testing.T) {
	id := uuid.Must(uuid.FromString("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	at := time.Unix(1700000000, 0)
	got := BuildPath(id, "pdf", at)
	want := "6ba7b810-9dad-11d1-80b4-00c04fd430c8/1700000000.pdf"
	if got != want {
		t.Errorf("expected path %q, got %q", want, got)
	}
}

func TestStoreSaveAndOpen(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Root: t.TempDir(), MaxFileSize: 1 << 20})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	taskID := uuid.Must(uuid.NewV4())
	content := []byte("%PDF-1.4 test")
	relPath, err := store.Save(taskID, "report.pdf", "application/pdf", int64(len(content)), bytes.NewReader(content))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(relPath, taskID.String()+"/") {
		t.Errorf("path should start with entity id: %s", relPath)
	}
	if !strings.HasSuffix(relPath, ".pdf") {
		t.Errorf("path should end with extension: %s", relPath)
	}

	f, err := store.Open(relPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()
	got, _ := io.ReadAll(f)
	if !bytes.Equal(got, content) {
		t.Errorf("stored content mismatch")
	}
}

func TestStoreSaveRejectsOversize(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Root: t.TempDir(), MaxFileSize: 4})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	_, err = store.Save(uuid.Must(uuid.NewV4()), "big.pdf", "application/pdf", 10, bytes.NewReader(make([]byte, 10)))
	if apperrors.Code(err) != apperrors.ErrValidation.Code {
		t.Errorf("expected validation error for oversize file, got %v", err)
	}
}

func TestStoreRemoveIdempotent(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Remove("nope/123.pdf"); err != nil {
		t.Errorf("removing a missing file should not error: %v", err)
	}
}
