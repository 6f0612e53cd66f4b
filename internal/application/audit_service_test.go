package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/linskybing/club-intake/internal/domain/audit"
	"github.com/linskybing/club-intake/internal/repository"
	"github.com/linskybing/club-intake/internal/repository/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --------------------- Setup ---------------------
func setupAuditServiceMocks(t *testing.T) (*AuditService, *mock.MockAuditRepo) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	repo := mock.NewMockAuditRepo(ctrl)
	return NewAuditService(repo, zap.NewNop().Sugar()), repo
}

// --------------------- Record ---------------------
func TestRecord_WritesRow(t *testing.T) {
	svc, repo := setupAuditServiceMocks(t)

	repo.EXPECT().CreateAuditLog(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, row *audit.AuditLog) error {
			assert.Equal(t, "admin-1", row.Actor)
			assert.Equal(t, audit.ActionStatusChange, row.Action)
			assert.Equal(t, audit.ResourceSubmission, row.ResourceType)
			var after map[string]string
			require.NoError(t, json.Unmarshal(row.NewData, &after))
			assert.Equal(t, "approved", after["status"])
			assert.Nil(t, row.OldData)
			return nil
		})

	svc.Record(AuditEntry{
		Actor:      adminActor,
		Action:     audit.ActionStatusChange,
		ResourceID: "sub_1_x",
		After:      map[string]string{"status": "approved"},
	})
	svc.Wait()
}

func TestRecord_FailureIsSwallowed(t *testing.T) {
	svc, repo := setupAuditServiceMocks(t)
	repo.EXPECT().CreateAuditLog(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	svc.Record(AuditEntry{Actor: adminActor, Action: audit.ActionDelete, ResourceID: "sub_1_x"})
	svc.Wait()
}

// --------------------- Query ---------------------
func TestQueryAuditLogs_ClampsLimit(t *testing.T) {
	svc, repo := setupAuditServiceMocks(t)

	repo.EXPECT().GetAuditLogs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p repository.AuditQueryParams) ([]audit.AuditLog, error) {
			assert.Equal(t, 100, p.Limit)
			return []audit.AuditLog{{ID: 1}}, nil
		}).Times(2)

	for _, limit := range []int{0, 10000} {
		logs, err := svc.QueryAuditLogs(context.Background(), repository.AuditQueryParams{Limit: limit})
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	svc, repo := setupAuditServiceMocks(t)
	repo.EXPECT().DeleteOldAuditLogs(gomock.Any(), 180).Return(int64(4), nil)

	n, err := svc.CleanupOldLogs(context.Background(), 180)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
