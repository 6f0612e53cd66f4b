package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"go.uber.org/zap"
)

// FileSubmissionRepo keeps one pretty-printed JSON document per submission
// under {dir}/{id}.json.
type FileSubmissionRepo struct {
	dir string
	log *zap.SugaredLogger
	mu  sync.Mutex
}

func NewFileSubmissionRepo(dir string, log *zap.SugaredLogger) (*FileSubmissionRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fallback dir %s: %w", dir, err)
	}
	return &FileSubmissionRepo{dir: dir, log: log}, nil
}

func (r *FileSubmissionRepo) Dir() string { return r.dir }

func (r *FileSubmissionRepo) Path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", submission.ErrNotFound
	}
	return filepath.Join(r.dir, id+".json"), nil
}

func (r *FileSubmissionRepo) Create(ctx context.Context, s *submission.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(s)
}

func (r *FileSubmissionRepo) Get(ctx context.Context, id string) (*submission.Submission, error) {
	p, err := r.Path(id)
	if err != nil {
		return nil, err
	}
	return r.read(p)
}

// Query scans the directory, filters in memory and sorts newest first.
func (r *FileSubmissionRepo) Query(ctx context.Context, f submission.Filter) ([]submission.Submission, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]submission.Submission, 0, len(all))
	for i := range all {
		if f.Match(&all[i]) {
			out = append(out, all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *FileSubmissionRepo) UpdateReview(ctx context.Context, id string, patch submission.ReviewPatch) error {
	return r.mutate(id, func(s *submission.Submission) {
		patch.Apply(s)
	})
}

func (r *FileSubmissionRepo) AppendMessage(ctx context.Context, id string, msg submission.Message) error {
	return r.mutate(id, func(s *submission.Submission) {
		msg.ID = 0
		msg.SubmissionID = ""
		s.Messages = append(s.Messages, msg)
		s.UpdatedAt = msg.Timestamp
	})
}

func (r *FileSubmissionRepo) Delete(ctx context.Context, id string) error {
	p, err := r.Path(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return submission.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *FileSubmissionRepo) CountByStatus(ctx context.Context) (submission.Stats, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return submission.Stats{}, err
	}
	var st submission.Stats
	for _, s := range all {
		st.Add(s.Status, 1)
	}
	return st, nil
}

func (r *FileSubmissionRepo) Ping(ctx context.Context) error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", r.dir)
	}
	return nil
}

func (r *FileSubmissionRepo) mutate(id string, fn func(*submission.Submission)) error {
	p, err := r.Path(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.read(p)
	if err != nil {
		return err
	}
	fn(s)
	return r.write(s)
}

func (r *FileSubmissionRepo) scan(ctx context.Context) ([]submission.Submission, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	out := make([]submission.Submission, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		s, err := r.read(filepath.Join(r.dir, e.Name()))
		if err != nil {
			r.log.Warnw("skipping unreadable fallback record", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *FileSubmissionRepo) read(p string) (*submission.Submission, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, submission.ErrNotFound
		}
		return nil, err
	}
	var s submission.Submission
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	s.Normalize()
	return &s, nil
}

// write replaces the file atomically via rename. Caller holds mu.
func (r *FileSubmissionRepo) write(s *submission.Submission) error {
	p, err := r.Path(s.ID)
	if err != nil {
		return fmt.Errorf("invalid submission id %q", s.ID)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
