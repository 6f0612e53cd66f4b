package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/pkg/response"
	"github.com/linskybing/club-intake/pkg/utils"
)

// Me godoc
// @Summary Current identity
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.UserResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/me [get]
func Me(c *gin.Context) {
	id, err := utils.GetIdentityFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, response.UserResponse{Success: true, User: id})
}
