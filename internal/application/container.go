package application

import (
	"time"

	"github.com/linskybing/club-intake/internal/events"
	"github.com/linskybing/club-intake/internal/repository"
	"github.com/linskybing/club-intake/pkg/cache"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/linskybing/club-intake/pkg/storage"
	"go.uber.org/zap"
)

type Services struct {
	Submission   *SubmissionService
	Template     *TemplateService
	Audit        *AuditService
	Notification *NotificationService
}

type Deps struct {
	Repos           *repository.Repos
	Files           storage.Storage
	Templates       storage.Storage
	Cache           cache.Cache
	TemplateTTL     time.Duration
	Sender          Sender
	Renderer        *mailer.Renderer
	Events          events.Publisher
	QueueSize       int
	MaxFileBytes    int64
	MaxRequestBytes int64
	MaxFiles        int
	Log             *zap.SugaredLogger
}

// New wires the services and starts the notification worker.
func New(d Deps) *Services {
	notifications := NewNotificationService(d.Sender, d.Renderer, d.QueueSize, d.Log.Named("notify"))
	notifications.Start()
	auditSvc := NewAuditService(d.Repos.Audit, d.Log.Named("audit"))

	return &Services{
		Submission: NewSubmissionService(SubmissionDeps{
			Store:           d.Repos.Submission,
			Files:           d.Files,
			Notifier:        notifications,
			Events:          d.Events,
			Auditor:         auditSvc,
			Log:             d.Log.Named("submission"),
			MaxFileBytes:    d.MaxFileBytes,
			MaxRequestBytes: d.MaxRequestBytes,
			MaxFiles:        d.MaxFiles,
		}),
		Template:     NewTemplateService(d.Templates, d.Cache, d.TemplateTTL, d.Log.Named("template")),
		Audit:        auditSvc,
		Notification: notifications,
	}
}
