package handlers

import (
	"github.com/linskybing/club-intake/internal/application"
	"github.com/linskybing/club-intake/internal/events"
	"go.uber.org/zap"
)

type Handlers struct {
	Submission *SubmissionHandler
	Template   *TemplateHandler
	Audit      *AuditHandler
	Events     *EventsHandler
	Health     *HealthHandler
}

func New(svc *application.Services, hub *events.Hub, checks map[string]Pinger, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		Submission: NewSubmissionHandler(svc.Submission, log.Named("http")),
		Template:   NewTemplateHandler(svc.Template),
		Audit:      NewAuditHandler(svc.Audit),
		Events:     NewEventsHandler(hub, log.Named("ws")),
		Health:     NewHealthHandler(checks),
	}
}
