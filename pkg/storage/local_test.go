package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocal(t *testing.T) *Local {
	l, err := NewLocal(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	return l
}

func TestLocal_PutGetDelete(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	obj, err := l.Put(ctx, "1700000000000_plan.pdf", "application/pdf", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000_plan.pdf", obj.Key)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "application/pdf", obj.MimeType)

	rc, got, err := l.Get(ctx, obj.Key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), got.Size)

	require.NoError(t, l.Delete(ctx, obj.Key))
	_, _, err = l.Get(ctx, obj.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_DeleteMissingIsSuccess(t *testing.T) {
	l := newTestLocal(t)
	assert.NoError(t, l.Delete(context.Background(), "does-not-exist.txt"))
}

func TestLocal_GetMissing(t *testing.T) {
	l := newTestLocal(t)
	_, _, err := l.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_PathTraversalIsContained(t *testing.T) {
	l := newTestLocal(t)
	obj, err := l.Put(context.Background(), "../../etc/passwd", "", strings.NewReader("x"), 1)
	require.NoError(t, err)
	assert.Equal(t, "passwd", obj.Key)
}

func TestLocal_PutRefusesOverwrite(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	_, err := l.Put(ctx, "1700000000000_plan.pdf", "", strings.NewReader("first"), 5)
	require.NoError(t, err)
	_, err = l.Put(ctx, "1700000000000_plan.pdf", "", strings.NewReader("second"), 6)
	assert.ErrorIs(t, err, ErrExists)

	rc, _, err := l.Get(ctx, "1700000000000_plan.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "first", string(body))

	objs, err := l.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objs, 1)
}

func TestLocal_ListPrefix(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	_, err := l.Put(ctx, "a_one.txt", "", strings.NewReader("1"), 1)
	require.NoError(t, err)
	_, err = l.Put(ctx, "b_two.txt", "", strings.NewReader("2"), 1)
	require.NoError(t, err)

	objs, err := l.List(ctx, "a_")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "a_one.txt", objs[0].Name)
	assert.Equal(t, "text/plain; charset=utf-8", objs[0].MimeType)
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"":                 PlaceholderName,
		"  ":               PlaceholderName,
		"..":               PlaceholderName,
		"report.docx":      "report.docx",
		`C:\tmp\photo.jpg`: "photo.jpg",
		"dir/sub/file.txt": "file.txt",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeName(in), "input %q", in)
	}
}
