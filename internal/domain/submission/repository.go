package submission

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when no record has the given id.
var ErrNotFound = errors.New("submission not found")

//go:generate mockgen -destination=../../repository/mock/submission.go -package=mock github.com/linskybing/club-intake/internal/domain/submission Repository

// Repository is one backend of the persistence port: the relational store
// or the local JSON directory.
type Repository interface {
	Create(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	Query(ctx context.Context, f Filter) ([]Submission, error)
	UpdateReview(ctx context.Context, id string, patch ReviewPatch) error
	AppendMessage(ctx context.Context, id string, msg Message) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}
