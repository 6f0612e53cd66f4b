package application

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/linskybing/club-intake/internal/domain/audit"
	"github.com/linskybing/club-intake/internal/repository"
	"go.uber.org/zap"
)

// Actor is the verified caller plus request metadata used for auditing.
type Actor struct {
	UID       string
	Email     string
	Admin     bool
	IP        string
	UserAgent string
}

type AuditEntry struct {
	Actor       Actor
	Action      string
	ResourceID  string
	Before      interface{}
	After       interface{}
	Description string
}

// Auditor records reviewer actions off the request path.
type Auditor interface {
	Record(entry AuditEntry)
}

type AuditService struct {
	repo repository.AuditRepo
	log  *zap.SugaredLogger
	wg   sync.WaitGroup
}

func NewAuditService(repo repository.AuditRepo, log *zap.SugaredLogger) *AuditService {
	return &AuditService{
		repo: repo,
		log:  log,
	}
}

// Record persists entry in the background. Failures are only logged.
func (s *AuditService) Record(entry AuditEntry) {
	row := &audit.AuditLog{
		Actor:        entry.Actor.UID,
		ActorEmail:   entry.Actor.Email,
		Action:       entry.Action,
		ResourceType: audit.ResourceSubmission,
		ResourceID:   entry.ResourceID,
		OldData:      s.marshal(entry.Before),
		NewData:      s.marshal(entry.After),
		IPAddress:    entry.Actor.IP,
		UserAgent:    entry.Actor.UserAgent,
		Description:  entry.Description,
		CreatedAt:    time.Now(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.CreateAuditLog(ctx, row); err != nil {
			s.log.Warnw("audit log write failed", "action", row.Action, "resourceId", row.ResourceID, "error", err)
		}
	}()
}

func (s *AuditService) marshal(v interface{}) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warnw("audit marshal failed", "error", err)
		return nil
	}
	return b
}

// Wait blocks until every pending Record has finished.
func (s *AuditService) Wait() {
	s.wg.Wait()
}

func (s *AuditService) QueryAuditLogs(ctx context.Context, params repository.AuditQueryParams) ([]audit.AuditLog, error) {
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 100
	}
	return s.repo.GetAuditLogs(ctx, params)
}

func (s *AuditService) CleanupOldLogs(ctx context.Context, days int) (int64, error) {
	return s.repo.DeleteOldAuditLogs(ctx, days)
}
