package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func newNotificationService(t *testing.T, sender Sender, queue int) *NotificationService {
	renderer, err := mailer.NewRenderer()
	require.NoError(t, err)
	return NewNotificationService(sender, renderer, queue, zap.NewNop().Sugar())
}

func shutdown(t *testing.T, svc *NotificationService) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}

func TestNotify_DeliversToSubmitter(t *testing.T) {
	sender := &recordingSender{}
	svc := newNotificationService(t, sender, 10)
	svc.Start()

	s := seededSubmission(nil)
	svc.Notify(mailer.KindConfirmation, s, nil)
	shutdown(t, svc)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, teacherActor.Email, sender.msgs[0].To)
	assert.Contains(t, sender.msgs[0].Text, s.ID)
}

func TestNotify_SkipsNonEmailContact(t *testing.T) {
	sender := &recordingSender{}
	svc := newNotificationService(t, sender, 10)
	svc.Start()

	s := seededSubmission(nil)
	s.SubmitterContact = "line123"
	svc.Notify(mailer.KindApproval, s, nil)
	shutdown(t, svc)

	assert.Zero(t, sender.count())
}

func TestNotify_FallsBackToEmailField(t *testing.T) {
	sender := &recordingSender{}
	svc := newNotificationService(t, sender, 10)
	svc.Start()

	s := seededSubmission(nil)
	s.SubmitterContact = submission.UnknownContact
	s.Fields["email"] = "Wang <wang@tp.edu.tw>"
	svc.Notify(mailer.KindRejection, s, nil)
	shutdown(t, svc)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "wang@tp.edu.tw", sender.msgs[0].To)
}

func TestNotify_FullQueueDrops(t *testing.T) {
	sender := &recordingSender{}
	svc := newNotificationService(t, sender, 1)

	s := seededSubmission(nil)
	svc.Notify(mailer.KindConfirmation, s, nil)
	svc.Notify(mailer.KindApproval, s, nil)
	shutdown(t, svc)

	assert.Equal(t, 1, sender.count())
}

func TestNotify_AfterShutdownIsDropped(t *testing.T) {
	sender := &recordingSender{}
	svc := newNotificationService(t, sender, 4)
	svc.Start()
	shutdown(t, svc)

	svc.Notify(mailer.KindConfirmation, seededSubmission(nil), nil)
	assert.Zero(t, sender.count())
	shutdown(t, svc)
}

func TestNotify_SendFailureDoesNotStopWorker(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay refused")}
	svc := newNotificationService(t, sender, 4)
	svc.Start()

	svc.Notify(mailer.KindConfirmation, seededSubmission(nil), nil)
	svc.Notify(mailer.KindNewMessage, seededSubmission(nil), &submission.Message{From: "admin", Content: "hi"})
	shutdown(t, svc)

	assert.Zero(t, sender.count())
}
