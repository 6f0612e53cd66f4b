// Package storage provides uniform put/get/delete/list access to the blob
// backends that hold submission attachments and template documents.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/linskybing/club-intake/pkg/metrics"
)

// ErrNotFound is returned by Get when the referenced object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ErrExists is returned by Put when an object with the same name is already
// stored. Backends never overwrite.
var ErrExists = errors.New("storage: object already exists")

const PlaceholderName = "upload"

// Object describes a stored blob. Key is the reference used for Get and
// Delete; for local and MinIO it equals Name, for Drive it is the file id.
type Object struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	WebViewLink string    `json:"webViewLink,omitempty"`
}

//go:generate mockgen -destination=mock/storage.go -package=mock github.com/linskybing/club-intake/pkg/storage Storage

// Storage is implemented by every backend. Implementations are safe for
// concurrent use. Delete of a missing object succeeds and logs a warning.
type Storage interface {
	Put(ctx context.Context, name, mimeType string, r io.Reader, size int64) (Object, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Ping(ctx context.Context) error
	Backend() string
}

// SafeName strips any directory component from a client supplied file name.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return PlaceholderName
	}
	return name
}

type instrumented struct {
	inner Storage
}

// Instrument wraps s so that every call is counted in the storage metrics.
func Instrument(s Storage) Storage {
	return &instrumented{inner: s}
}

func (s *instrumented) Put(ctx context.Context, name, mimeType string, r io.Reader, size int64) (Object, error) {
	start := time.Now()
	obj, err := s.inner.Put(ctx, name, mimeType, r, size)
	metrics.RecordStorageOp(s.inner.Backend(), "put", start, err)
	if err == nil {
		metrics.RecordUploadedBytes(obj.Size)
	}
	return obj, err
}

func (s *instrumented) Get(ctx context.Context, ref string) (io.ReadCloser, Object, error) {
	start := time.Now()
	rc, obj, err := s.inner.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordStorageOp(s.inner.Backend(), "get", start, nil)
	} else {
		metrics.RecordStorageOp(s.inner.Backend(), "get", start, err)
	}
	return rc, obj, err
}

func (s *instrumented) Delete(ctx context.Context, ref string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, ref)
	metrics.RecordStorageOp(s.inner.Backend(), "delete", start, err)
	return err
}

func (s *instrumented) List(ctx context.Context, prefix string) ([]Object, error) {
	start := time.Now()
	objs, err := s.inner.List(ctx, prefix)
	metrics.RecordStorageOp(s.inner.Backend(), "list", start, err)
	return objs, err
}

func (s *instrumented) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *instrumented) Backend() string {
	return s.inner.Backend()
}
