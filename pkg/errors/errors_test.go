package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("missing"), http.StatusNotFound},
		{Validation("bad"), http.StatusBadRequest},
		{Forbidden("no"), http.StatusForbidden},
		{Unauthorized("who"), http.StatusUnauthorized},
		{New(ErrCodePayloadTooLarge, "big"), http.StatusRequestEntityTooLarge},
		{Internal("boom", io.EOF), http.StatusInternalServerError},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("submission not found"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "submission not found", PublicMessage(err))
}

func TestPublicMessage_InternalPassthrough(t *testing.T) {
	err := Internal("failed to save submission", io.ErrClosedPipe)
	assert.Equal(t, "failed to save submission: io: read/write on closed pipe", PublicMessage(err))
}
