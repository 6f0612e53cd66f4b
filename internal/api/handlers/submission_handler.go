package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/internal/application"
	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/pkg/response"
	"go.uber.org/zap"
)

type SubmissionHandler struct {
	svc *application.SubmissionService
	log *zap.SugaredLogger
}

func NewSubmissionHandler(svc *application.SubmissionService, log *zap.SugaredLogger) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, log: log}
}

// CreateSubmission godoc
// @Summary Submit the intake form
// @Description Multipart form; file parts become attachments, text parts become fields.
// @Tags submissions
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} response.CreatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.svc.RequestLimit())
	mr, err := c.Request.MultipartReader()
	if err != nil {
		badRequest(c, "request must be multipart/form-data: "+err.Error())
		return
	}

	sub, err := h.svc.Ingest(c.Request.Context(), actorFrom(c), mr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.CreatedResponse{Success: true, SubmissionID: sub.ID, Data: sub})
}

// ListSubmissions godoc
// @Summary List submissions
// @Tags submissions
// @Security BearerAuth
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param club query string false "Club name"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {object} response.ListResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /submissions [get]
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	f := submission.Filter{
		Status: submission.Status(c.Query("status")),
		Club:   c.Query("club"),
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, "Invalid limit")
			return
		}
		f.Limit = n
	}

	subs, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.ListResponse{Success: true, Count: len(subs), Data: subs})
}

// GetStats godoc
// @Summary Submission counts per status
// @Tags submissions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.SuccessResponse
// @Router /submissions/stats [get]
func (h *SubmissionHandler) GetStats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Data: st})
}

// GetSubmission godoc
// @Summary Get a submission
// @Tags submissions
// @Security BearerAuth
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	sub, err := h.svc.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Success: true, Data: sub})
}

// UpdateStatus godoc
// @Summary Review a submission
// @Tags submissions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param input body submission.UpdateStatusDTO true "New status and optional note"
// @Success 200 {object} response.MessageResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id} [patch]
func (h *SubmissionHandler) UpdateStatus(c *gin.Context) {
	var input submission.UpdateStatusDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	if _, err := h.svc.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("id"), input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{Success: true, Message: "Submission updated"})
}

// DeleteSubmission godoc
// @Summary Delete a submission and its files
// @Tags submissions
// @Security BearerAuth
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) DeleteSubmission(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{Success: true, Message: "Submission deleted"})
}

// DownloadFile godoc
// @Summary Download one attachment
// @Tags submissions
// @Security BearerAuth
// @Produce octet-stream
// @Param id path string true "Submission ID"
// @Param filename path string true "Stored name or field name"
// @Success 200 {file} file
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id}/files/{filename} [get]
func (h *SubmissionHandler) DownloadFile(c *gin.Context) {
	rc, rec, err := h.svc.OpenFile(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("filename"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	size := rec.SizeBytes
	if size <= 0 {
		size = -1
	}
	mimeType := rec.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, size, mimeType, rc, map[string]string{
		"Content-Disposition": attachment(rec.OriginalName),
	})
}

// DownloadAll godoc
// @Summary Download every attachment as a zip
// @Tags submissions
// @Security BearerAuth
// @Produce application/zip
// @Param id path string true "Submission ID"
// @Success 200 {file} file
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id}/download-all [get]
func (h *SubmissionHandler) DownloadAll(c *gin.Context) {
	ctx := c.Request.Context()
	sub, name, err := h.svc.PrepareArchive(ctx, actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", attachment(name))
	c.Status(http.StatusOK)

	n, err := h.svc.WriteArchive(ctx, sub, c.Writer)
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		h.log.Warnw("archive stream aborted", "submissionId", sub.ID, "entries", n, "error", err)
		c.Abort()
		return
	}
	h.log.Infow("archive sent", "submissionId", sub.ID, "entries", n)
}

// CreateMessage godoc
// @Summary Post a message on a submission
// @Tags messages
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param input body submission.CreateMessageDTO true "Message"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id}/messages [post]
func (h *SubmissionHandler) CreateMessage(c *gin.Context) {
	var input submission.CreateMessageDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.svc.AddMessage(c.Request.Context(), actorFrom(c), c.Param("id"), input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.SuccessResponse{Success: true, Data: msg})
}

// ListMessages godoc
// @Summary List the messages of a submission
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.ListResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /submissions/{id}/messages [get]
func (h *SubmissionHandler) ListMessages(c *gin.Context) {
	msgs, err := h.svc.ListMessages(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []submission.Message{}
	}
	c.JSON(http.StatusOK, response.ListResponse{Success: true, Count: len(msgs), Data: msgs})
}
