package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	apperrors "github.com/linskybing/club-intake/pkg/errors"
	"github.com/linskybing/club-intake/pkg/storage"
	storagemock "github.com/linskybing/club-intake/pkg/storage/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memCache is an in-process cache.Cache for tests.
type memCache struct {
	data map[string][]byte
}

func (m *memCache) GetJSON(_ context.Context, key string, v interface{}) bool {
	b, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

func (m *memCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) {
	b, err := json.Marshal(v)
	if err == nil {
		m.data[key] = b
	}
}

func (m *memCache) InvalidatePrefix(_ context.Context, prefix string) {
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
}

func setupTemplateService(t *testing.T) (*TemplateService, *storagemock.MockStorage) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })
	src := storagemock.NewMockStorage(ctrl)
	svc := NewTemplateService(src, &memCache{data: map[string][]byte{}}, time.Minute, zap.NewNop().Sugar())
	return svc, src
}

func TestTemplateList_CachedAfterFirstCall(t *testing.T) {
	svc, src := setupTemplateService(t)
	created := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	src.EXPECT().List(gomock.Any(), "").Return([]storage.Object{
		{Key: "f1", Name: "社團申請表.docx", MimeType: "application/vnd.google-apps.document", CreatedAt: created},
	}, nil).Times(1)

	for i := 0; i < 2; i++ {
		got, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "/api/templates/download/f1", got[0].DownloadURL)
		assert.True(t, created.Equal(got[0].CreatedTime))
	}
}

func TestTemplateList_InvalidateRefetches(t *testing.T) {
	svc, src := setupTemplateService(t)
	src.EXPECT().List(gomock.Any(), "").Return(nil, nil).Times(2)

	_, err := svc.List(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())
	_, err = svc.List(context.Background())
	require.NoError(t, err)
}

func TestTemplateList_SourceError(t *testing.T) {
	svc, src := setupTemplateService(t)
	src.EXPECT().List(gomock.Any(), "").Return(nil, errors.New("drive quota"))

	_, err := svc.List(context.Background())
	assert.Equal(t, apperrors.ErrCodeInternalError, apperrors.CodeOf(err))
}

func TestTemplateOpen(t *testing.T) {
	svc, src := setupTemplateService(t)
	src.EXPECT().Get(gomock.Any(), "f1").
		Return(io.NopCloser(strings.NewReader("doc")), storage.Object{Key: "f1", Name: "表單.docx"}, nil)
	src.EXPECT().Get(gomock.Any(), "nope").Return(nil, storage.Object{}, storage.ErrNotFound)

	rc, tpl, err := svc.Open(context.Background(), "f1")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "表單.docx", tpl.Filename)

	_, _, err = svc.Open(context.Background(), "nope")
	assert.Equal(t, ErrTemplateNotFound, err)
}
