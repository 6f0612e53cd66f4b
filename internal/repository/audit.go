package repository

import (
	"context"
	"time"

	"github.com/linskybing/club-intake/internal/domain/audit"
	"gorm.io/gorm"
)

type AuditQueryParams struct {
	Actor      *string
	ResourceID *string
	Action     *string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

//go:generate mockgen -destination=mock/audit.go -package=mock github.com/linskybing/club-intake/internal/repository AuditRepo

type AuditRepo interface {
	GetAuditLogs(ctx context.Context, params AuditQueryParams) ([]audit.AuditLog, error)
	CreateAuditLog(ctx context.Context, log *audit.AuditLog) error
	DeleteOldAuditLogs(ctx context.Context, retentionDays int) (int64, error)
}

type DBAuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *DBAuditRepo {
	return &DBAuditRepo{
		db: db,
	}
}

func (r *DBAuditRepo) DeleteOldAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&audit.AuditLog{})
	return res.RowsAffected, res.Error
}

func (r *DBAuditRepo) GetAuditLogs(ctx context.Context, params AuditQueryParams) ([]audit.AuditLog, error) {
	var logs []audit.AuditLog
	query := r.db.WithContext(ctx).Model(&audit.AuditLog{})

	if params.Actor != nil {
		query = query.Where("actor = ?", *params.Actor)
	}
	if params.ResourceID != nil {
		query = query.Where("resource_id = ?", *params.ResourceID)
	}
	if params.Action != nil {
		query = query.Where("action = ?", *params.Action)
	}
	if params.StartTime != nil {
		query = query.Where("created_at >= ?", *params.StartTime)
	}
	if params.EndTime != nil {
		query = query.Where("created_at <= ?", *params.EndTime)
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}

	err := query.Find(&logs).Error
	return logs, err
}

func (r *DBAuditRepo) CreateAuditLog(ctx context.Context, log *audit.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// NopAuditRepo is used when no record store is configured.
type NopAuditRepo struct{}

func (NopAuditRepo) GetAuditLogs(context.Context, AuditQueryParams) ([]audit.AuditLog, error) {
	return []audit.AuditLog{}, nil
}
func (NopAuditRepo) CreateAuditLog(context.Context, *audit.AuditLog) error  { return nil }
func (NopAuditRepo) DeleteOldAuditLogs(context.Context, int) (int64, error) { return 0, nil }
