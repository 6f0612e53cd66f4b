package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/linskybing/club-intake/internal/domain/audit"
	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/internal/events"
	"github.com/linskybing/club-intake/internal/repository"
	apperrors "github.com/linskybing/club-intake/pkg/errors"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/linskybing/club-intake/pkg/metrics"
	"github.com/linskybing/club-intake/pkg/storage"
	"go.uber.org/zap"
)

const maxListLimit = 500

var (
	ErrSubmissionNotFound = apperrors.NotFound("Submission not found")
	ErrFileNotFound       = apperrors.NotFound("File not found")
	ErrInvalidStatus      = apperrors.Validation("Invalid status")
	ErrEmptyMessage       = apperrors.Validation("訊息內容不能為空")
	ErrAlreadyReviewed    = apperrors.Validation("Submission has already been reviewed")
	ErrNotOwner           = apperrors.Forbidden("Access denied")
)

type SubmissionService struct {
	store    *repository.SubmissionStore
	files    storage.Storage
	notifier Notifier
	events   events.Publisher
	auditor  Auditor
	log      *zap.SugaredLogger

	maxFileBytes    int64
	maxRequestBytes int64
	maxFiles        int
	now             func() time.Time
}

type SubmissionDeps struct {
	Store        *repository.SubmissionStore
	Files        storage.Storage
	Notifier     Notifier
	Events       events.Publisher
	Auditor      Auditor
	Log          *zap.SugaredLogger
	MaxFileBytes int64
	// MaxRequestBytes caps a whole intake body, MaxFiles its file parts.
	MaxRequestBytes int64
	MaxFiles        int
}

func NewSubmissionService(d SubmissionDeps) *SubmissionService {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.MaxFileBytes <= 0 {
		d.MaxFileBytes = 10 << 20
	}
	if d.MaxRequestBytes < d.MaxFileBytes {
		d.MaxRequestBytes = 5 * d.MaxFileBytes
	}
	if d.MaxFiles <= 0 {
		d.MaxFiles = 20
	}
	return &SubmissionService{
		store:           d.Store,
		files:           d.Files,
		notifier:        d.Notifier,
		events:          d.Events,
		auditor:         d.Auditor,
		log:             d.Log,
		maxFileBytes:    d.MaxFileBytes,
		maxRequestBytes: d.MaxRequestBytes,
		maxFiles:        d.MaxFiles,
		now:             time.Now,
	}
}

// RequestLimit is the largest intake body Ingest should be handed.
func (s *SubmissionService) RequestLimit() int64 {
	return s.maxRequestBytes
}

func (s *SubmissionService) load(ctx context.Context, id string) (*submission.Submission, error) {
	sub, err := s.store.Load(ctx, id)
	if errors.Is(err, submission.ErrNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load submission", err)
	}
	return sub, nil
}

// loadFor returns the submission when actor is an admin or its submitter.
func (s *SubmissionService) loadFor(ctx context.Context, actor Actor, id string) (*submission.Submission, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !sub.OwnedBy(actor.UID) {
		return nil, ErrNotOwner
	}
	return sub, nil
}

func (s *SubmissionService) Get(ctx context.Context, actor Actor, id string) (*submission.Submission, error) {
	return s.loadFor(ctx, actor, id)
}

func (s *SubmissionService) List(ctx context.Context, f submission.Filter) ([]submission.Submission, error) {
	if f.Status != "" {
		if _, ok := submission.ParseStatus(string(f.Status)); !ok {
			return nil, ErrInvalidStatus
		}
	}
	if f.Limit <= 0 {
		f.Limit = submission.DefaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	subs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, apperrors.Internal("failed to list submissions", err)
	}
	return subs, nil
}

func (s *SubmissionService) Stats(ctx context.Context) (submission.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return st, apperrors.Internal("failed to count submissions", err)
	}
	return st, nil
}

// UpdateStatus applies a review. Pending submissions accept any status;
// reviewed ones only accept their current status, which edits the note.
func (s *SubmissionService) UpdateStatus(ctx context.Context, actor Actor, id string, input submission.UpdateStatusDTO) (*submission.Submission, error) {
	status, ok := submission.ParseStatus(input.Status)
	if !ok {
		return nil, ErrInvalidStatus
	}
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminal() && status != sub.Status {
		return nil, ErrAlreadyReviewed
	}

	before := map[string]interface{}{"status": sub.Status, "reviewNote": sub.ReviewNote}
	reviewer := actor.Email
	if reviewer == "" {
		reviewer = actor.UID
	}
	patch := submission.ReviewPatch{
		Status:     status,
		ReviewNote: strings.TrimSpace(input.ReviewNote),
		ReviewedBy: reviewer,
		ReviewedAt: s.now(),
	}
	if err := s.store.UpdateReview(ctx, id, patch); err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, apperrors.Internal("failed to update submission", err)
	}
	patch.Apply(sub)

	metrics.RecordReview(string(status))
	s.audit(AuditEntry{
		Actor:       actor,
		Action:      audit.ActionStatusChange,
		ResourceID:  id,
		Before:      before,
		After:       map[string]interface{}{"status": status, "reviewNote": patch.ReviewNote},
		Description: "status set to " + string(status),
	})
	s.events.Publish(events.Event{Type: events.TypeStatusChanged, SubmissionID: id, Status: string(status)})

	switch status {
	case submission.StatusApproved:
		s.notify(mailer.KindApproval, sub, nil)
	case submission.StatusRejected:
		s.notify(mailer.KindRejection, sub, nil)
	}
	return sub, nil
}

// Delete removes every stored file best-effort, then the record.
func (s *SubmissionService) Delete(ctx context.Context, actor Actor, id string) error {
	sub, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	for field, f := range sub.FileMap() {
		if err := s.files.Delete(ctx, f.Ref()); err != nil {
			s.log.Warnw("file delete failed, continuing", "submissionId", id, "field", field, "ref", f.Ref(), "error", err)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return ErrSubmissionNotFound
		}
		return apperrors.Internal("failed to delete submission", err)
	}

	s.audit(AuditEntry{
		Actor:       actor,
		Action:      audit.ActionDelete,
		ResourceID:  id,
		Before:      sub,
		Description: "submission deleted",
	})
	s.events.Publish(events.Event{Type: events.TypeDeleted, SubmissionID: id})
	return nil
}

// AddMessage appends a trimmed message. Admin messages notify the submitter.
func (s *SubmissionService) AddMessage(ctx context.Context, actor Actor, id, content string) (*submission.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	sub, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	msg := submission.Message{
		From:        "user",
		FromContact: actor.Email,
		Content:     content,
		Timestamp:   s.now(),
	}
	if actor.Admin {
		msg.From = "admin"
	}
	if err := s.store.AppendMessage(ctx, id, msg); err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, apperrors.Internal("failed to add message", err)
	}

	s.events.Publish(events.Event{Type: events.TypeMessage, SubmissionID: id, Status: string(sub.Status)})
	if actor.Admin {
		s.audit(AuditEntry{
			Actor:       actor,
			Action:      audit.ActionMessage,
			ResourceID:  id,
			After:       msg,
			Description: "message sent to submitter",
		})
		s.notify(mailer.KindNewMessage, sub, &msg)
	}
	return &msg, nil
}

func (s *SubmissionService) ListMessages(ctx context.Context, actor Actor, id string) ([]submission.Message, error) {
	sub, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return sub.Messages, nil
}

// OpenFile streams one attachment, looked up by stored name or field name.
func (s *SubmissionService) OpenFile(ctx context.Context, actor Actor, id, name string) (io.ReadCloser, submission.FileRecord, error) {
	sub, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, submission.FileRecord{}, err
	}
	files := sub.FileMap()
	rec, ok := files[name]
	if !ok {
		for _, f := range files {
			if f.StoredName == name {
				rec, ok = f, true
				break
			}
		}
	}
	if !ok {
		return nil, submission.FileRecord{}, ErrFileNotFound
	}

	rc, _, err := s.files.Get(ctx, rec.Ref())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, submission.FileRecord{}, ErrFileNotFound
	}
	if err != nil {
		return nil, submission.FileRecord{}, apperrors.Internal("failed to read file", err)
	}
	return rc, rec, nil
}

func (s *SubmissionService) notify(kind mailer.Kind, sub *submission.Submission, msg *submission.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(kind, sub, msg)
}

func (s *SubmissionService) audit(e AuditEntry) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(e)
}
