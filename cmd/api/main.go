// @title Club Intake API
// @version 1.0
// @description Club activity submission intake and review service.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/internal/api/handlers"
	"github.com/linskybing/club-intake/internal/api/middleware"
	"github.com/linskybing/club-intake/internal/api/routes"
	"github.com/linskybing/club-intake/internal/application"
	"github.com/linskybing/club-intake/internal/config"
	"github.com/linskybing/club-intake/internal/config/db"
	"github.com/linskybing/club-intake/internal/cron"
	"github.com/linskybing/club-intake/internal/events"
	"github.com/linskybing/club-intake/internal/repository"
	"github.com/linskybing/club-intake/pkg/cache"
	"github.com/linskybing/club-intake/pkg/logger"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/linskybing/club-intake/pkg/storage"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Path:        cfg.Log.Path,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	sugar := zl.Sugar()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb := openRecordStore(cfg, zl)
	defer func() {
		if err := db.Close(gdb); err != nil {
			sugar.Warnw("closing record store", "error", err)
		}
	}()

	repos, err := repository.New(gdb, cfg.DataDir, sugar.Named("repository"))
	if err != nil {
		return err
	}

	files, templates, err := buildStorage(ctx, cfg, sugar.Named("storage"))
	if err != nil {
		return err
	}

	redis := cache.NewRedis(cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, sugar.Named("cache"))
	defer func() { _ = redis.Close() }()
	var templateCache cache.Cache = cache.Noop{}
	if redis != nil {
		templateCache = redis
	}

	renderer, err := mailer.NewRenderer()
	if err != nil {
		return err
	}
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Pass,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		TLS:      cfg.SMTP.TLS,
	})
	if !mail.Configured() {
		sugar.Warnw("SMTP not configured, notifications will be skipped")
	}

	hub := events.NewHub(32, sugar.Named("events"))
	svc := application.New(application.Deps{
		Repos:           repos,
		Files:           files,
		Templates:       templates,
		Cache:           templateCache,
		TemplateTTL:     cfg.Storage.TemplateCacheTTL,
		Sender:          mail,
		Renderer:        renderer,
		Events:          hub,
		QueueSize:       cfg.Notify.QueueSize,
		MaxFileBytes:    cfg.MaxUploadBytes,
		MaxRequestBytes: cfg.MaxRequestBytes,
		MaxFiles:        cfg.MaxFiles,
		Log:             sugar,
	})

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewEngine(cfg.CORSAllowedOrigins, cfg.IsDevelopment(), sugar.Named("http"))
	h := handlers.New(svc, hub, map[string]handlers.Pinger{
		"records":   repos.Submission,
		"storage":   files,
		"templates": templates,
	}, sugar)
	authn := middleware.NewAuthenticator(cfg.Auth, cfg.IsDevelopment(), sugar.Named("auth"))
	if cfg.IsDevelopment() && cfg.Auth.DevBypassToken != "" {
		sugar.Warnw("development bypass token enabled")
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	go limiter.Run(ctx, 0)
	routes.RegisterRoutes(router, h, authn, limiter)

	cleanupDone := cron.StartCleanupTask(ctx, svc.Audit, cfg.AuditRetentionDays, sugar.Named("cron"))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		sugar.Infow("starting API server", "addr", srv.Addr, "env", cfg.Env,
			"storage", files.Backend(), "recordStore", repos.Submission.HasRecordStore())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		sugar.Infow("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("http shutdown", "error", err)
	}
	if err := svc.Notification.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("notification queue not drained", "error", err)
	}
	svc.Audit.Wait()
	stop()
	<-cleanupDone
	sugar.Infow("server stopped")
	return nil
}

// openRecordStore returns nil when the store is disabled or unreachable;
// submissions then live in the local directory only.
func openRecordStore(cfg *config.Config, zl *zap.Logger) *gorm.DB {
	gdb, err := db.Open(cfg.DB, zl)
	switch {
	case errors.Is(err, db.ErrDisabled):
		zl.Info("record store disabled, using local files only")
		return nil
	case err != nil:
		zl.Warn("record store unavailable, using local files only", zap.Error(err))
		return nil
	}
	return gdb
}

// buildStorage returns the attachment store and the template source.
// Templates come from Drive when a templates folder is configured, otherwise
// from TEMPLATES_DIR.
func buildStorage(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (storage.Storage, storage.Storage, error) {
	sc := cfg.Storage

	var driveSrv *drive.Service
	if sc.DriveCredentialsFile != "" {
		srv, err := storage.NewDriveService(ctx, sc.DriveCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		driveSrv = srv
	}

	var files storage.Storage
	switch sc.Backend {
	case "minio":
		m, err := storage.NewMinio(ctx, storage.MinioOptions{
			Endpoint:  sc.MinioEndpoint,
			AccessKey: sc.MinioAccessKey,
			SecretKey: sc.MinioSecretKey,
			Bucket:    sc.MinioBucket,
			UseSSL:    sc.MinioUseSSL,
			Prefix:    "submissions/",
		}, sugar.Named("minio"))
		if err != nil {
			return nil, nil, err
		}
		files = m
	case "drive":
		files = storage.NewDrive(driveSrv, sc.DriveFolderIDSubmissions, sugar.Named("drive"))
	default:
		l, err := storage.NewLocal(filepath.Join(cfg.DataDir, "files"), sugar.Named("local"))
		if err != nil {
			return nil, nil, err
		}
		files = l
	}

	var templates storage.Storage
	if driveSrv != nil && sc.DriveFolderIDTemplates != "" {
		templates = storage.NewDrive(driveSrv, sc.DriveFolderIDTemplates, sugar.Named("drive-templates"))
	} else {
		l, err := storage.NewLocal(sc.TemplatesDir, sugar.Named("templates"))
		if err != nil {
			return nil, nil, err
		}
		templates = l
	}

	return storage.Instrument(files), storage.Instrument(templates), nil
}
