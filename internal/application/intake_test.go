package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/linskybing/club-intake/internal/domain/submission"
	apperrors "github.com/linskybing/club-intake/pkg/errors"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/linskybing/club-intake/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type formPart struct {
	name     string
	filename *string
	body     string
}

func textPart(name, body string) formPart { return formPart{name: name, body: body} }

func filePart(name, filename, body string) formPart {
	return formPart{name: name, filename: &filename, body: body}
}

func multipartBody(t *testing.T, parts ...formPart) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		var (
			pw  io.Writer
			err error
		)
		if p.filename != nil {
			pw, err = w.CreateFormFile(p.name, *p.filename)
		} else {
			pw, err = w.CreateFormField(p.name)
		}
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return multipart.NewReader(&buf, w.Boundary())
}

func expectPut(f *serviceFixture, names *[]string) *gomock.Call {
	return f.files.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, name, _ string, r io.Reader, size int64) (storage.Object, error) {
			b, _ := io.ReadAll(r)
			if int64(len(b)) != size {
				return storage.Object{}, errors.New("size mismatch")
			}
			*names = append(*names, name)
			return storage.Object{Key: name, Name: name, Size: size}, nil
		})
}

var storedNamePattern = regexp.MustCompile(`^\d{13}_`)

// --------------------- Ingest ---------------------
func TestIngest_FieldsAndFiles(t *testing.T) {
	f := setupSubmissionService(t, false)
	var names []string
	expectPut(f, &names).Times(2)

	mr := multipartBody(t,
		textPart("club", "熱音社"),
		textPart("teacherName", "王老師"),
		textPart("email", "wang@tp.edu.tw"),
		textPart("items", `[{"name":"鼓棒","qty":2}]`),
		textPart("note", ""),
		filePart("poster", "poster.png", "\x89PNG...."),
		filePart("plan", "企劃 書.pdf", "%PDF-1.4"),
	)

	sub, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	require.NoError(t, err)

	assert.Equal(t, "熱音社", sub.FieldString(submission.FieldClub))
	assert.Equal(t, "", sub.Fields["note"])
	items, ok := sub.Fields["items"].([]interface{})
	require.True(t, ok, "items should be parsed JSON")
	assert.Len(t, items, 1)

	files := sub.FileMap()
	require.Len(t, files, 2)
	assert.Equal(t, "poster.png", files["poster"].OriginalName)
	assert.Equal(t, int64(8), files["poster"].SizeBytes)
	for _, n := range names {
		assert.Regexp(t, storedNamePattern, n)
	}
	assert.NotEqual(t, files["poster"].StoredName, files["plan"].StoredName)

	assert.Equal(t, submission.Anonymous, sub.SubmittedBy)
	assert.Equal(t, "wang@tp.edu.tw", sub.SubmitterContact)
	assert.Equal(t, submission.StatusPending, sub.Status)
	assert.Equal(t, []mailer.Kind{mailer.KindConfirmation}, f.notifier.kinds())

	saved, err := f.local.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, files["plan"].StoredName, saved.FileMap()["plan"].StoredName)
}

func TestIngest_IdentityWinsContact(t *testing.T) {
	f := setupSubmissionService(t, false)

	mr := multipartBody(t, textPart("club", "棋藝社"), textPart("lineId", "line123"))
	sub, err := f.svc.Ingest(context.Background(), teacherActor, mr)
	require.NoError(t, err)
	assert.Equal(t, teacherActor.UID, sub.SubmittedBy)
	assert.Equal(t, teacherActor.Email, sub.SubmitterContact)
}

func TestIngest_LineIDFallbackContact(t *testing.T) {
	f := setupSubmissionService(t, false)

	mr := multipartBody(t, textPart("lineId", "line123"))
	sub, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	require.NoError(t, err)
	assert.Equal(t, "line123", sub.SubmitterContact)
}

func TestIngest_InvalidItemsKeptRaw(t *testing.T) {
	f := setupSubmissionService(t, false)

	mr := multipartBody(t, textPart("items", "鼓棒 x2"))
	sub, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	require.NoError(t, err)
	assert.Equal(t, "鼓棒 x2", sub.Fields["items"])
}

func TestIngest_EmptyFilenameGetsPlaceholder(t *testing.T) {
	f := setupSubmissionService(t, false)
	var names []string
	expectPut(f, &names)

	mr := multipartBody(t, filePart("receipt", "", "data"))
	sub, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	require.NoError(t, err)
	assert.Equal(t, storage.PlaceholderName, sub.FileMap()["receipt"].OriginalName)
	require.Len(t, names, 1)
	assert.Regexp(t, `_upload$`, names[0])
}

func TestIngest_OversizedFileCleansUp(t *testing.T) {
	f := setupSubmissionService(t, false)
	f.svc.maxFileBytes = 8
	var names []string
	expectPut(f, &names)
	f.files.EXPECT().Delete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ref string) error {
			assert.Equal(t, names[0], ref)
			return nil
		})

	mr := multipartBody(t,
		filePart("small", "a.txt", "tiny"),
		filePart("big", "b.txt", "this is far too large"),
	)
	_, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePayloadTooLarge, apperrors.CodeOf(err))
	assert.Empty(t, f.notifier.kinds())
}

func TestIngest_StorageFailure(t *testing.T) {
	f := setupSubmissionService(t, false)
	f.files.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(storage.Object{}, errors.New("bucket unavailable"))

	mr := multipartBody(t, textPart("club", "x"), filePart("f", "a.txt", "abc"))
	_, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	assert.Equal(t, apperrors.ErrCodeInternalError, apperrors.CodeOf(err))
}

func TestIngest_ReplacedFieldDeletesPrevious(t *testing.T) {
	f := setupSubmissionService(t, false)
	var names []string
	expectPut(f, &names).Times(2)
	f.files.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	mr := multipartBody(t,
		filePart("poster", "v1.png", "one"),
		filePart("poster", "v2.png", "two"),
	)
	sub, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	require.NoError(t, err)
	assert.Equal(t, "v2.png", sub.FileMap()["poster"].OriginalName)
}

func TestIngest_MalformedBody(t *testing.T) {
	f := setupSubmissionService(t, false)

	mr := multipart.NewReader(bytes.NewBufferString("not a multipart body"), "xyz")
	_, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	assert.True(t, apperrors.IsValidation(err))
}

func TestIngest_TakenNameMovesToNextMillisecond(t *testing.T) {
	f := setupSubmissionService(t, false)
	f.svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	var names []string
	f.files.EXPECT().Put(gomock.Any(), "1700000000000_plan.pdf", gomock.Any(), gomock.Any(), gomock.Any()).
		Return(storage.Object{}, storage.ErrExists)
	expectPut(f, &names)

	sub, err := f.svc.Ingest(context.Background(), Actor{}, multipartBody(t, filePart("plan", "plan.pdf", "x")))
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000001_plan.pdf"}, names)
	assert.Equal(t, "1700000000001_plan.pdf", sub.FileMap()["plan"].StoredName)
}

func TestIngest_ConcurrentSameNameKeepsBothFiles(t *testing.T) {
	f := setupSubmissionService(t, false)
	log := zap.NewNop().Sugar()
	files, err := storage.NewLocal(t.TempDir(), log)
	require.NoError(t, err)
	f.svc.files = files
	f.svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ctx := context.Background()

	a, err := f.svc.Ingest(ctx, Actor{}, multipartBody(t, textPart("club", "A"), filePart("plan", "plan.pdf", "applicant-A")))
	require.NoError(t, err)
	b, err := f.svc.Ingest(ctx, Actor{}, multipartBody(t, textPart("club", "B"), filePart("plan", "plan.pdf", "applicant-B")))
	require.NoError(t, err)
	assert.NotEqual(t, a.FileMap()["plan"].StoredName, b.FileMap()["plan"].StoredName)

	read := func(id string) string {
		rc, _, err := f.svc.OpenFile(ctx, adminActor, id, "plan")
		require.NoError(t, err)
		defer rc.Close()
		body, _ := io.ReadAll(rc)
		return string(body)
	}
	assert.Equal(t, "applicant-A", read(a.ID))
	assert.Equal(t, "applicant-B", read(b.ID))

	require.NoError(t, f.svc.Delete(ctx, adminActor, b.ID))
	assert.Equal(t, "applicant-A", read(a.ID))
}

func TestIngest_TooManyFilesCleansUp(t *testing.T) {
	f := setupSubmissionService(t, false)
	f.svc.maxFiles = 2
	var names []string
	expectPut(f, &names).Times(2)
	f.files.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	mr := multipartBody(t,
		filePart("a", "a.txt", "1"),
		filePart("b", "b.txt", "2"),
		filePart("c", "c.txt", "3"),
	)
	_, err := f.svc.Ingest(context.Background(), Actor{}, mr)
	assert.Equal(t, apperrors.ErrCodePayloadTooLarge, apperrors.CodeOf(err))
	assert.Len(t, names, 2)
}

func TestIngest_RequestCapIsPayloadTooLarge(t *testing.T) {
	f := setupSubmissionService(t, false)
	var names []string
	expectPut(f, &names).AnyTimes()
	f.files.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		pw, err := w.CreateFormFile(name, name)
		require.NoError(t, err)
		_, err = pw.Write(bytes.Repeat([]byte("x"), 1000))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	body := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(&buf), 1500)

	_, err := f.svc.Ingest(context.Background(), Actor{}, multipart.NewReader(body, w.Boundary()))
	assert.Equal(t, apperrors.ErrCodePayloadTooLarge, apperrors.CodeOf(err))
	assert.Less(t, len(names), 3)
}
