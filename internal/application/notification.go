package application

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/linskybing/club-intake/pkg/metrics"
	"go.uber.org/zap"
)

// Sender delivers a rendered message. *mailer.Mailer satisfies it.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Notifier accepts notification requests without blocking the caller.
type Notifier interface {
	Notify(kind mailer.Kind, s *submission.Submission, msg *submission.Message)
}

type notification struct {
	kind mailer.Kind
	to   string
	data mailer.Data
}

// NotificationService renders and sends mail on a single background worker
// fed by a bounded queue. A full queue drops the notification.
type NotificationService struct {
	sender   Sender
	renderer *mailer.Renderer
	queue    chan notification
	log      *zap.SugaredLogger
	timeout  time.Duration

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	started sync.Once
}

func NewNotificationService(sender Sender, renderer *mailer.Renderer, queueSize int, log *zap.SugaredLogger) *NotificationService {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &NotificationService{
		sender:   sender,
		renderer: renderer,
		queue:    make(chan notification, queueSize),
		log:      log,
		timeout:  30 * time.Second,
		done:     make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (s *NotificationService) Start() {
	s.started.Do(func() {
		go s.run()
	})
}

func (s *NotificationService) run() {
	defer close(s.done)
	for n := range s.queue {
		metrics.SetNotificationQueueDepth(len(s.queue))
		s.deliver(n)
	}
}

func (s *NotificationService) deliver(n notification) {
	msg, err := s.renderer.Render(n.kind, n.to, n.data)
	if err != nil {
		metrics.RecordNotification(string(n.kind), "failed")
		s.log.Errorw("render notification failed", "kind", n.kind, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err = s.sender.Send(ctx, msg)
	switch {
	case errors.Is(err, mailer.ErrNotConfigured):
		metrics.RecordNotification(string(n.kind), "skipped")
		s.log.Debugw("mail relay not configured, notification skipped", "kind", n.kind, "submissionId", n.data.SubmissionID)
	case err != nil:
		metrics.RecordNotification(string(n.kind), "failed")
		s.log.Warnw("notification send failed", "kind", n.kind, "submissionId", n.data.SubmissionID, "error", err)
	default:
		metrics.RecordNotification(string(n.kind), "sent")
		s.log.Infow("notification sent", "kind", n.kind, "submissionId", n.data.SubmissionID)
	}
}

// Notify queues a mail about s to its submitter. Submissions without an
// email contact are skipped.
func (s *NotificationService) Notify(kind mailer.Kind, sub *submission.Submission, msg *submission.Message) {
	to := recipient(sub)
	if to == "" {
		metrics.RecordNotification(string(kind), "skipped")
		s.log.Debugw("no email contact, notification skipped", "kind", kind, "submissionId", sub.ID)
		return
	}
	data := mailer.Data{
		TeacherName:  sub.FieldString(submission.FieldTeacherName),
		Club:         sub.FieldString(submission.FieldClub),
		Contact:      sub.SubmitterContact,
		SubmissionID: sub.ID,
		ReviewNote:   sub.ReviewNote,
	}
	if msg != nil {
		data.From = msg.From
		data.Content = msg.Content
	}
	s.enqueue(notification{kind: kind, to: to, data: data})
}

func (s *NotificationService) enqueue(n notification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.RecordNotification(string(n.kind), "dropped")
		return false
	}
	select {
	case s.queue <- n:
		metrics.SetNotificationQueueDepth(len(s.queue))
		return true
	default:
		metrics.RecordNotification(string(n.kind), "dropped")
		s.log.Warnw("notification queue full, dropping", "kind", n.kind, "submissionId", n.data.SubmissionID)
		return false
	}
}

// Shutdown stops intake and waits for queued notifications to drain or for
// ctx to end.
func (s *NotificationService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	s.Start()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recipient prefers the submitter contact, then the form's email field.
func recipient(sub *submission.Submission) string {
	for _, c := range []string{sub.SubmitterContact, sub.FieldString(submission.FieldEmail)} {
		c = strings.TrimSpace(c)
		if c == "" || !strings.Contains(c, "@") {
			continue
		}
		if addr, err := mail.ParseAddress(c); err == nil {
			return addr.Address
		}
	}
	return ""
}
