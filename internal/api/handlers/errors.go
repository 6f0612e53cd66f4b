package handlers

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/internal/application"
	apperrors "github.com/linskybing/club-intake/pkg/errors"
	"github.com/linskybing/club-intake/pkg/response"
	"github.com/linskybing/club-intake/pkg/utils"
)

// respondError writes err with the status its code maps to.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, response.ErrorResponse{
		Error:   http.StatusText(status),
		Message: apperrors.PublicMessage(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: http.StatusText(http.StatusBadRequest), Message: msg})
}

// actorFrom builds the application actor from the verified identity, which
// is empty on public routes without a token.
func actorFrom(c *gin.Context) application.Actor {
	id := utils.OptionalIdentity(c)
	return application.Actor{
		UID:       id.UID,
		Email:     id.Email,
		Admin:     id.IsAdmin(),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
