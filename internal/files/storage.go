// Package files stores supporting documents uploaded for vendor requests.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

// sniffLen is how much of the upload is inspected for its content type.
const sniffLen = 3072

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = fmt.Errorf("%w: file exceeds the upload limit", httpx.ErrValidation)
	// ErrUnsupportedType is returned for content outside the allow list.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", httpx.ErrValidation)
	// ErrNotFound indicates a stored file does not exist.
	ErrNotFound = fmt.Errorf("file %w", httpx.ErrNotFound)
)

// DefaultAllowed lists the document types accepted as supporting evidence.
var DefaultAllowed = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"text/plain",
	"text/csv",
	"application/msword",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
}

// Stored describes a saved upload.
type Stored struct {
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"filePath"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Storage keeps uploads on the local filesystem under random names.
type Storage struct {
	dir      string
	maxBytes int64
	baseURL  string
	allowed  []string
	now      func() time.Time
}

// NewStorage prepares dir and returns a storage rooted there. baseURL is the
// public prefix files are served from, e.g. "https://host/api/files".
func NewStorage(dir string, maxBytes int64, baseURL string, allowed []string) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("files: upload dir required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("files: create upload dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	return &Storage{dir: dir, maxBytes: maxBytes, baseURL: strings.TrimRight(baseURL, "/"), allowed: allowed, now: time.Now}, nil
}

// MaxBytes returns the per-file limit.
func (s *Storage) MaxBytes() int64 {
	return s.maxBytes
}

// Save sniffs the content type of r, rejects disallowed content and writes it
// under a random name keeping the detected extension.
func (s *Storage) Save(ctx context.Context, original string, r io.Reader) (Stored, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Stored{}, fmt.Errorf("files: read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return Stored{}, fmt.Errorf("%w: empty file", httpx.ErrValidation)
	}
	mt := mimetype.Detect(head)
	if !s.accepts(mt) {
		return Stored{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	name := uuid.NewString() + mt.Extension()
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return Stored{}, fmt.Errorf("files: create: %w", err)
	}
	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), io.LimitReader(r, s.maxBytes-int64(n)+1)))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return Stored{}, err
		}
		return Stored{}, fmt.Errorf("files: write: %w", err)
	}
	return Stored{
		FileName:    cleanOriginal(original),
		FilePath:    name,
		URL:         s.baseURL + "/" + url.PathEscape(name),
		Size:        written,
		ContentType: mt.String(),
		UploadedAt:  s.now().UTC(),
	}, nil
}

// Open returns a stored file. Only names produced by Save are accepted.
func (s *Storage) Open(name string) (*os.File, os.FileInfo, error) {
	if !validName(name) {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

func (s *Storage) accepts(mt *mimetype.MIME) bool {
	for _, allowed := range s.allowed {
		if mt.Is(allowed) {
			return true
		}
	}
	return false
}

func validName(name string) bool {
	if name == "" || filepath.Base(name) != name {
		return false
	}
	id := strings.TrimSuffix(name, filepath.Ext(name))
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func cleanOriginal(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
