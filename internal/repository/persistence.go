package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/pkg/metrics"
	"go.uber.org/zap"
)

// SubmissionStore is the single persistence port the services see.
//
// Creates are written to the local JSON directory first and then, when a
// record store is configured, to the store. Reads, reviews, message appends
// and deletes go to the store only; listings and stats fall back to the
// directory when the store errors. The two copies are never reconciled, so
// a record changed through the store keeps its creation-time state on disk.
type SubmissionStore struct {
	primary submission.Repository
	local   *FileSubmissionRepo
	log     *zap.SugaredLogger
}

// NewSubmissionStore wires the port. A nil primary makes the directory the
// only backend.
func NewSubmissionStore(primary submission.Repository, local *FileSubmissionRepo, log *zap.SugaredLogger) *SubmissionStore {
	return &SubmissionStore{primary: primary, local: local, log: log}
}

func (s *SubmissionStore) HasRecordStore() bool {
	return s.primary != nil
}

func (s *SubmissionStore) main() submission.Repository {
	if s.primary != nil {
		return s.primary
	}
	return s.local
}

// Save persists a new submission. It fails only when every path failed.
func (s *SubmissionStore) Save(ctx context.Context, sub *submission.Submission) error {
	localErr := s.local.Create(ctx, sub)
	metrics.RecordPersistence("fallback", localErr)

	if s.primary == nil {
		if localErr != nil {
			return fmt.Errorf("write local record: %w", localErr)
		}
		return nil
	}

	storeErr := s.primary.Create(ctx, sub)
	metrics.RecordPersistence("store", storeErr)

	switch {
	case localErr != nil && storeErr != nil:
		return fmt.Errorf("record store: %v; local fallback: %w", storeErr, localErr)
	case storeErr != nil:
		path, _ := s.local.Path(sub.ID)
		s.log.Warnw("record store write failed, submission kept in local fallback only",
			"submissionId", sub.ID, "path", path, "error", storeErr)
	case localErr != nil:
		s.log.Warnw("local fallback write failed", "submissionId", sub.ID, "error", localErr)
	}
	return nil
}

// Load reads from the record store only.
func (s *SubmissionStore) Load(ctx context.Context, id string) (*submission.Submission, error) {
	return s.main().Get(ctx, id)
}

// List queries the record store, re-deriving the listing from the local
// directory when the store fails.
func (s *SubmissionStore) List(ctx context.Context, f submission.Filter) ([]submission.Submission, error) {
	if s.primary == nil {
		return s.local.Query(ctx, f)
	}
	subs, err := s.primary.Query(ctx, f)
	if err == nil {
		return subs, nil
	}
	s.log.Warnw("record store query failed, listing from local fallback", "error", err)
	metrics.RecordListFallback()
	subs, ferr := s.local.Query(ctx, f)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return subs, nil
}

func (s *SubmissionStore) UpdateReview(ctx context.Context, id string, patch submission.ReviewPatch) error {
	return s.main().UpdateReview(ctx, id, patch)
}

func (s *SubmissionStore) AppendMessage(ctx context.Context, id string, msg submission.Message) error {
	return s.main().AppendMessage(ctx, id, msg)
}

func (s *SubmissionStore) Delete(ctx context.Context, id string) error {
	return s.main().Delete(ctx, id)
}

func (s *SubmissionStore) Stats(ctx context.Context) (submission.Stats, error) {
	if s.primary == nil {
		return s.local.CountByStatus(ctx)
	}
	st, err := s.primary.CountByStatus(ctx)
	if err == nil {
		return st, nil
	}
	s.log.Warnw("record store count failed, counting local fallback", "error", err)
	return s.local.CountByStatus(ctx)
}

// Ping reports the health of the record store, or of the directory when
// no store is configured.
func (s *SubmissionStore) Ping(ctx context.Context) error {
	return s.main().Ping(ctx)
}
