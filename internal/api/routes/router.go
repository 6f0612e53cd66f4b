package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/internal/api/handlers"
	"github.com/linskybing/club-intake/internal/api/middleware"
	"github.com/linskybing/club-intake/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/linskybing/club-intake/docs"
)

// NewEngine returns a gin engine with the shared middleware chain. Localhost
// origins are only trusted in development.
func NewEngine(corsOrigins []string, development bool, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.CORSMiddleware(corsOrigins, development))
	r.Use(metrics.GinMiddleware())
	return r
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, auth *middleware.Authenticator, limiter *middleware.RateLimiter) {
	r.GET("/health", h.Health.Health)
	r.GET("/health/ready", h.Health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/ws/submissions", auth.JWT(), middleware.Admin(), h.Events.StreamSubmissions)

	api := r.Group("/api")

	// public
	api.POST("/submissions", limiter.Middleware(), auth.Optional(), h.Submission.CreateSubmission)
	templates := api.Group("/templates")
	{
		templates.GET("", h.Template.ListTemplates)
		templates.GET("/download/:id", h.Template.DownloadTemplate)
	}

	authed := api.Group("")
	authed.Use(auth.JWT())
	{
		authed.GET("/auth/me", handlers.Me)
		authed.GET("/audit/logs", middleware.Admin(), h.Audit.GetAuditLogs)
		authed.POST("/templates/refresh", middleware.Admin(), h.Template.RefreshTemplates)

		subs := authed.Group("/submissions")
		{
			subs.GET("", middleware.Admin(), h.Submission.ListSubmissions)
			subs.GET("/stats", middleware.Admin(), h.Submission.GetStats)
			subs.GET("/:id", h.Submission.GetSubmission)
			subs.PATCH("/:id", middleware.Admin(), h.Submission.UpdateStatus)
			subs.DELETE("/:id", middleware.Admin(), h.Submission.DeleteSubmission)
			subs.GET("/:id/files/:filename", h.Submission.DownloadFile)
			subs.GET("/:id/download-all", middleware.Admin(), h.Submission.DownloadAll)
			subs.GET("/:id/messages", h.Submission.ListMessages)
			subs.POST("/:id/messages", h.Submission.CreateMessage)
		}
	}
}
