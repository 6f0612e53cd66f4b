package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/internal/application"
	"github.com/linskybing/club-intake/pkg/response"
)

type TemplateHandler struct {
	svc *application.TemplateService
}

func NewTemplateHandler(svc *application.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// ListTemplates godoc
// @Summary List downloadable form templates
// @Tags templates
// @Produce json
// @Success 200 {object} response.TemplateListResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	tpls, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.TemplateListResponse{Success: true, Templates: tpls, Count: len(tpls)})
}

// RefreshTemplates godoc
// @Summary Drop the cached template listing and reload it
// @Tags templates
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.TemplateListResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /templates/refresh [post]
func (h *TemplateHandler) RefreshTemplates(c *gin.Context) {
	h.svc.Invalidate(c.Request.Context())
	h.ListTemplates(c)
}

// DownloadTemplate godoc
// @Summary Download a template
// @Description Google-native documents are exported to docx, xlsx or pptx.
// @Tags templates
// @Produce octet-stream
// @Param id path string true "Template ID"
// @Success 200 {file} file
// @Failure 404 {object} response.ErrorResponse
// @Router /templates/download/{id} [get]
func (h *TemplateHandler) DownloadTemplate(c *gin.Context) {
	rc, tpl, err := h.svc.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	mimeType := tpl.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, mimeType, rc, map[string]string{
		"Content-Disposition": attachment(tpl.Filename),
	})
}
