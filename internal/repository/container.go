package repository

import (
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Repos struct {
	Submission *SubmissionStore
	Audit      AuditRepo

	db *gorm.DB
}

// New builds the repositories. db may be nil, in which case submissions live
// only in {dataDir}/submissions and audit logging is disabled.
func New(db *gorm.DB, dataDir string, log *zap.SugaredLogger) (*Repos, error) {
	local, err := NewFileSubmissionRepo(filepath.Join(dataDir, "submissions"), log)
	if err != nil {
		return nil, err
	}

	r := &Repos{db: db}
	if db != nil {
		r.Submission = NewSubmissionStore(NewSubmissionRepo(db), local, log)
		r.Audit = NewAuditRepo(db)
	} else {
		r.Submission = NewSubmissionStore(nil, local, log)
		r.Audit = NopAuditRepo{}
	}
	return r, nil
}

func (r *Repos) DB() *gorm.DB {
	return r.db
}
