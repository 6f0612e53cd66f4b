package repository

import (
	"context"
	"testing"
	"time"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSubmission(t *testing.T, repo submission.Repository, club string, at time.Time) *submission.Submission {
	t.Helper()
	s := submission.New(submission.NewID(at), map[string]interface{}{
		"club":        club,
		"teacherName": "王老師",
		"items":       []interface{}{"ball"},
	}, at)
	s.SetFiles(map[string]submission.FileRecord{
		"photo": {OriginalName: "a.png", StoredName: "1_a.png", MimeType: "image/png", SizeBytes: 3, UploadedAt: at},
	})
	s.SubmittedBy = submission.Anonymous
	s.SubmitterContact = "abc123"
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

// runRepositoryContract exercises behaviour both backends must share.
func runRepositoryContract(t *testing.T, repo submission.Repository) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	first := seedSubmission(t, repo, "籃球社", base)
	second := seedSubmission(t, repo, "Chess", base.Add(time.Minute))
	third := seedSubmission(t, repo, "籃球社", base.Add(2*time.Minute))

	t.Run("get round trips fields and files", func(t *testing.T) {
		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "籃球社", got.FieldString("club"))
		assert.Equal(t, submission.StatusPending, got.Status)
		assert.Equal(t, "1_a.png", got.FileMap()["photo"].StoredName)
		assert.Empty(t, got.Messages)
		assert.NotNil(t, got.Messages)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "sub_0_missing")
		assert.ErrorIs(t, err, submission.ErrNotFound)
	})

	t.Run("query newest first with filters", func(t *testing.T) {
		all, err := repo.Query(ctx, submission.Filter{Limit: 50})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, third.ID, all[0].ID)
		assert.Equal(t, first.ID, all[2].ID)

		clubs, err := repo.Query(ctx, submission.Filter{Club: "籃球社"})
		require.NoError(t, err)
		assert.Len(t, clubs, 2)

		limited, err := repo.Query(ctx, submission.Filter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, third.ID, limited[0].ID)
	})

	t.Run("update review", func(t *testing.T) {
		at := base.Add(time.Hour)
		err := repo.UpdateReview(ctx, second.ID, submission.ReviewPatch{
			Status: submission.StatusApproved, ReviewNote: "ok", ReviewedBy: "admin@tp.edu.tw", ReviewedAt: at,
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusApproved, got.Status)
		assert.Equal(t, "ok", got.ReviewNote)
		assert.Equal(t, "admin@tp.edu.tw", got.ReviewedBy)
		require.NotNil(t, got.ReviewedAt)
		assert.True(t, got.ReviewedAt.Equal(at))

		approved, err := repo.Query(ctx, submission.Filter{Status: submission.StatusApproved})
		require.NoError(t, err)
		require.Len(t, approved, 1)

		err = repo.UpdateReview(ctx, "sub_0_missing", submission.ReviewPatch{Status: submission.StatusApproved, ReviewedAt: at})
		assert.ErrorIs(t, err, submission.ErrNotFound)
	})

	t.Run("append keeps order", func(t *testing.T) {
		for i, content := range []string{"one", "two", "three"} {
			err := repo.AppendMessage(ctx, first.ID, submission.Message{
				From: "admin", FromContact: "admin@tp.edu.tw", Content: content,
				Timestamp: base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}
		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 3)
		assert.Equal(t, "one", got.Messages[0].Content)
		assert.Equal(t, "three", got.Messages[2].Content)

		err = repo.AppendMessage(ctx, "sub_0_missing", submission.Message{Content: "x", Timestamp: base})
		assert.ErrorIs(t, err, submission.ErrNotFound)
	})

	t.Run("count by status", func(t *testing.T) {
		st, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, submission.Stats{Pending: 2, Approved: 1, Total: 3}, st)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, first.ID))
		_, err := repo.Get(ctx, first.ID)
		assert.ErrorIs(t, err, submission.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, first.ID), submission.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

func TestDBSubmissionRepo_SQLite(t *testing.T) {
	runRepositoryContract(t, NewSubmissionRepo(testutils.NewSQLite(t)))
}

func TestDBSubmissionRepo_Postgres(t *testing.T) {
	runRepositoryContract(t, NewSubmissionRepo(testutils.SetupPostgresForIntegration(t)))
}
