package application

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/linskybing/club-intake/internal/domain/template"
	"github.com/linskybing/club-intake/pkg/cache"
	apperrors "github.com/linskybing/club-intake/pkg/errors"
	"github.com/linskybing/club-intake/pkg/storage"
	"go.uber.org/zap"
)

const templateListKey = "templates:list"

var ErrTemplateNotFound = apperrors.NotFound("Template not found")

// TemplateService lists and serves the downloadable form templates.
type TemplateService struct {
	source storage.Storage
	cache  cache.Cache
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewTemplateService(source storage.Storage, c cache.Cache, ttl time.Duration, log *zap.SugaredLogger) *TemplateService {
	if c == nil {
		c = cache.Noop{}
	}
	return &TemplateService{source: source, cache: c, ttl: ttl, log: log}
}

// List returns templates newest first. Results are cached for the configured TTL.
func (s *TemplateService) List(ctx context.Context) ([]template.Template, error) {
	var cached []template.Template
	if s.cache.GetJSON(ctx, templateListKey, &cached) {
		return cached, nil
	}

	objs, err := s.source.List(ctx, "")
	if err != nil {
		return nil, apperrors.Internal("failed to list templates", err)
	}
	out := make([]template.Template, 0, len(objs))
	for _, o := range objs {
		out = append(out, toTemplate(o))
	}
	s.cache.SetJSON(ctx, templateListKey, out, s.ttl)
	return out, nil
}

// Open streams a template. Native documents come back already exported.
func (s *TemplateService) Open(ctx context.Context, id string) (io.ReadCloser, template.Template, error) {
	rc, obj, err := s.source.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, template.Template{}, ErrTemplateNotFound
	}
	if err != nil {
		return nil, template.Template{}, apperrors.Internal("failed to download template", err)
	}
	return rc, toTemplate(obj), nil
}

// Invalidate drops the cached listing.
func (s *TemplateService) Invalidate(ctx context.Context) {
	s.cache.InvalidatePrefix(ctx, "templates:")
}

func toTemplate(o storage.Object) template.Template {
	return template.Template{
		ID:          o.Key,
		Name:        o.Name,
		Filename:    o.Name,
		MimeType:    o.MimeType,
		Size:        o.Size,
		CreatedTime: o.CreatedAt,
		WebViewLink: o.WebViewLink,
		DownloadURL: "/api/templates/download/" + o.Key,
	}
}
