package repository

import (
	"context"
	"errors"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"gorm.io/gorm"
)

type DBSubmissionRepo struct {
	db *gorm.DB
}

func NewSubmissionRepo(db *gorm.DB) *DBSubmissionRepo {
	return &DBSubmissionRepo{
		db: db,
	}
}

func (r *DBSubmissionRepo) withMessages(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

func (r *DBSubmissionRepo) Create(ctx context.Context, s *submission.Submission) error {
	return r.db.WithContext(ctx).Omit("Messages").Create(s).Error
}

func (r *DBSubmissionRepo) Get(ctx context.Context, id string) (*submission.Submission, error) {
	var s submission.Submission
	err := r.withMessages(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, submission.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Normalize()
	return &s, nil
}

func (r *DBSubmissionRepo) Query(ctx context.Context, f submission.Filter) ([]submission.Submission, error) {
	var subs []submission.Submission
	query := r.withMessages(ctx).Model(&submission.Submission{})

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Club != "" {
		query = query.Where("club = ?", f.Club)
	}

	query = query.Order("created_at DESC")
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Normalize()
	}
	return subs, nil
}

func (r *DBSubmissionRepo) UpdateReview(ctx context.Context, id string, patch submission.ReviewPatch) error {
	res := r.db.WithContext(ctx).Model(&submission.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      patch.Status,
			"review_note": patch.ReviewNote,
			"reviewed_by": patch.ReviewedBy,
			"reviewed_at": patch.ReviewedAt,
			"updated_at":  patch.ReviewedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return submission.ErrNotFound
	}
	return nil
}

// AppendMessage inserts the message row and bumps updated_at in one
// transaction. Inserts never conflict, so concurrent appends all survive.
func (r *DBSubmissionRepo) AppendMessage(ctx context.Context, id string, msg submission.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&submission.Submission{}).
			Where("id = ?", id).
			Update("updated_at", msg.Timestamp)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return submission.ErrNotFound
		}
		msg.ID = 0
		msg.SubmissionID = id
		return tx.Create(&msg).Error
	})
}

func (r *DBSubmissionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&submission.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&submission.Submission{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return submission.ErrNotFound
		}
		return nil
	})
}

func (r *DBSubmissionRepo) CountByStatus(ctx context.Context) (submission.Stats, error) {
	var rows []struct {
		Status submission.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&submission.Submission{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return submission.Stats{}, err
	}
	var st submission.Stats
	for _, row := range rows {
		st.Add(row.Status, row.Count)
	}
	return st, nil
}

func (r *DBSubmissionRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
