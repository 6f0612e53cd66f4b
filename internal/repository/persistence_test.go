package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/internal/repository"
	"github.com/linskybing/club-intake/internal/repository/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --------------------- Setup ---------------------
func setupStoreMocks(t *testing.T) (*repository.SubmissionStore, *mock.MockRepository, *repository.FileSubmissionRepo) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	primary := mock.NewMockRepository(ctrl)
	local, err := repository.NewFileSubmissionRepo(filepath.Join(t.TempDir(), "submissions"), zap.NewNop().Sugar())
	require.NoError(t, err)
	return repository.NewSubmissionStore(primary, local, zap.NewNop().Sugar()), primary, local
}

func newSub() *submission.Submission {
	now := time.Now()
	return submission.New(submission.NewID(now), map[string]interface{}{"club": "籃球社"}, now)
}

// --------------------- Save ---------------------
func TestSave_WritesLocalThenStore(t *testing.T) {
	store, primary, local := setupStoreMocks(t)
	s := newSub()

	primary.EXPECT().Create(gomock.Any(), s).DoAndReturn(func(ctx context.Context, got *submission.Submission) error {
		_, err := local.Get(ctx, got.ID)
		assert.NoError(t, err, "local copy must exist before the store write")
		return nil
	})

	require.NoError(t, store.Save(context.Background(), s))
}

func TestSave_StoreFailureIsSwallowed(t *testing.T) {
	store, primary, local := setupStoreMocks(t)
	s := newSub()
	primary.EXPECT().Create(gomock.Any(), s).Return(errors.New("firestore down"))

	require.NoError(t, store.Save(context.Background(), s))
	_, err := local.Get(context.Background(), s.ID)
	assert.NoError(t, err)
}

func TestSave_BothFail(t *testing.T) {
	store, primary, _ := setupStoreMocks(t)
	s := newSub()
	s.ID = "../bad"
	primary.EXPECT().Create(gomock.Any(), s).Return(errors.New("down"))

	assert.Error(t, store.Save(context.Background(), s))
}

func TestSave_NoRecordStore(t *testing.T) {
	local, err := repository.NewFileSubmissionRepo(filepath.Join(t.TempDir(), "submissions"), zap.NewNop().Sugar())
	require.NoError(t, err)
	store := repository.NewSubmissionStore(nil, local, zap.NewNop().Sugar())
	s := newSub()

	require.NoError(t, store.Save(context.Background(), s))
	got, err := store.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.False(t, store.HasRecordStore())
}

// --------------------- Load / List ---------------------
func TestLoad_HasNoFallbackRead(t *testing.T) {
	store, primary, _ := setupStoreMocks(t)
	s := newSub()
	primary.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("down"))
	require.NoError(t, store.Save(context.Background(), s))

	primary.EXPECT().Get(gomock.Any(), s.ID).Return(nil, submission.ErrNotFound)
	_, err := store.Load(context.Background(), s.ID)
	assert.ErrorIs(t, err, submission.ErrNotFound)
}

func TestList_FallsBackToLocalScan(t *testing.T) {
	store, primary, _ := setupStoreMocks(t)
	primary.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	a := newSub()
	b := newSub()
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	b.Fields["club"] = "Chess"
	require.NoError(t, store.Save(context.Background(), a))
	require.NoError(t, store.Save(context.Background(), b))

	primary.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("unavailable")).Times(2)

	subs, err := store.List(context.Background(), submission.Filter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, b.ID, subs[0].ID)

	subs, err = store.List(context.Background(), submission.Filter{Club: "Chess"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, b.ID, subs[0].ID)
}

func TestList_UsesStoreWhenHealthy(t *testing.T) {
	store, primary, _ := setupStoreMocks(t)
	want := []submission.Submission{*newSub()}
	primary.EXPECT().Query(gomock.Any(), submission.Filter{Limit: 5}).Return(want, nil)

	got, err := store.List(context.Background(), submission.Filter{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStats_FallsBack(t *testing.T) {
	store, primary, _ := setupStoreMocks(t)
	primary.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, store.Save(context.Background(), newSub()))

	primary.EXPECT().CountByStatus(gomock.Any()).Return(submission.Stats{}, errors.New("down"))
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Pending)
}

// --------------------- Mutations ---------------------
func TestMutationsGoToPrimaryOnly(t *testing.T) {
	store, primary, _ := setupStoreMocks(t)
	ctx := context.Background()
	patch := submission.ReviewPatch{Status: submission.StatusApproved, ReviewedAt: time.Now()}
	msg := submission.Message{Content: "hi", Timestamp: time.Now()}

	primary.EXPECT().UpdateReview(ctx, "id1", patch).Return(nil)
	primary.EXPECT().AppendMessage(ctx, "id1", msg).Return(nil)
	primary.EXPECT().Delete(ctx, "id1").Return(nil)

	assert.NoError(t, store.UpdateReview(ctx, "id1", patch))
	assert.NoError(t, store.AppendMessage(ctx, "id1", msg))
	assert.NoError(t, store.Delete(ctx, "id1"))
}
