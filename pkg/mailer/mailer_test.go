package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_NotConfigured(t *testing.T) {
	m := New(Config{})
	assert.False(t, m.Configured())
	err := m.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuild_MultipartAlternative(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", From: "noreply@example.com", FromName: "建中社團系統"})
	raw, err := m.build(Message{To: "a@example.com", Subject: "測試", Text: "plain", HTML: "<p>rich</p>"})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "To: a@example.com\r\n")
	assert.Contains(t, s, "Subject: =?UTF-8?b?")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "text/plain; charset=UTF-8")
	assert.Contains(t, s, "text/html; charset=UTF-8")
	assert.True(t, strings.Contains(s, "<noreply@example.com>"))
}
