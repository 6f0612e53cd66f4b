package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Local stores objects as flat files under a root directory.
type Local struct {
	root string
	log  *zap.SugaredLogger
}

func NewLocal(root string, log *zap.SugaredLogger) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", root, err)
	}
	return &Local{root: root, log: log}, nil
}

func (l *Local) Backend() string { return "local" }

func (l *Local) path(ref string) string {
	return filepath.Join(l.root, SafeName(ref))
}

func (l *Local) Put(ctx context.Context, name, mimeType string, r io.Reader, size int64) (Object, error) {
	name = SafeName(name)
	p := l.path(name)

	tmp, err := os.CreateTemp(l.root, ".put-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("write %s: %w", name, err)
	}
	err = os.Link(tmp.Name(), p)
	_ = os.Remove(tmp.Name())
	if err != nil {
		if os.IsExist(err) {
			return Object{}, ErrExists
		}
		return Object{}, fmt.Errorf("link %s: %w", name, err)
	}

	info, err := os.Stat(p)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Key:       name,
		Name:      name,
		MimeType:  mimeOr(mimeType, name),
		Size:      n,
		CreatedAt: info.ModTime(),
	}, nil
}

func (l *Local) Get(ctx context.Context, ref string) (io.ReadCloser, Object, error) {
	name := SafeName(ref)
	f, err := os.Open(l.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Object{}, err
	}
	return f, Object{
		Key:       name,
		Name:      name,
		MimeType:  mimeOr("", name),
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	err := os.Remove(l.path(ref))
	if err != nil && os.IsNotExist(err) {
		l.log.Warnw("delete of missing object", "backend", "local", "ref", ref)
		return nil
	}
	return err
}

// List returns regular files whose name starts with prefix, newest first.
func (l *Local) List(ctx context.Context, prefix string) ([]Object, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{
			Key:       e.Name(),
			Name:      e.Name(),
			MimeType:  mimeOr("", e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *Local) Ping(ctx context.Context) error {
	info, err := os.Stat(l.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", l.root)
	}
	return nil
}

func mimeOr(mimeType, name string) string {
	if mimeType != "" {
		return mimeType
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
