package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/internal/application"
	"github.com/linskybing/club-intake/internal/repository"
	"github.com/linskybing/club-intake/pkg/response"
)

type AuditHandler struct {
	svc *application.AuditService
}

func NewAuditHandler(svc *application.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GetAuditLogs godoc
// @Summary      Query review audit logs
// @Description  Filter by actor, submission, action and time range, with pagination.
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        actor        query     string   false  "Actor uid"
// @Param        resource_id  query     string   false  "Submission ID"
// @Param        action       query     string   false  "status_change, delete or message"
// @Param        start_time   query     string   false  "RFC3339 start" example("2024-01-01T00:00:00Z")
// @Param        end_time     query     string   false  "RFC3339 end" example("2024-02-01T00:00:00Z")
// @Param        limit        query     int      false  "Max records (default 100, max 500)"
// @Param        offset       query     int      false  "Offset for pagination"
// @Success      200 {object}  response.ListResponse
// @Failure      400 {object}  response.ErrorResponse "Invalid query parameters"
// @Failure      500 {object}  response.ErrorResponse
// @Router       /audit/logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	var params repository.AuditQueryParams

	if v := c.Query("actor"); v != "" {
		params.Actor = &v
	}
	if v := c.Query("resource_id"); v != "" {
		params.ResourceID = &v
	}
	if v := c.Query("action"); v != "" {
		params.Action = &v
	}

	if start := c.Query("start_time"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			badRequest(c, "Invalid start_time")
			return
		}
		params.StartTime = &t
	}
	if end := c.Query("end_time"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			badRequest(c, "Invalid end_time")
			return
		}
		params.EndTime = &t
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		badRequest(c, "Invalid limit")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "Invalid offset")
		return
	}
	params.Limit = limit
	params.Offset = offset

	logs, err := h.svc.QueryAuditLogs(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.ListResponse{Success: true, Count: len(logs), Data: logs})
}
