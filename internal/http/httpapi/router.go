package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"visuallab/internal/http/handlers"
	"visuallab/internal/middleware"
)

// Options configures the middleware stack.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
}

// NewRouter mounts the API routes. ctx bounds the lifetime of the rate limiter
// janitor.
func NewRouter(ctx context.Context, app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, opts.RateLimitPerMin, time.Minute))

		r.Route("/v1/scenes", func(r chi.Router) {
			r.Get("/", app.ListScenes)
			r.Post("/", app.CreateScenes)
			r.Delete("/", app.ClearScenes)
			r.Post("/analyze", app.AnalyzeAll)
			r.Delete("/{id}", app.DeleteScene)
			r.Post("/{id}/analyze", app.AnalyzeScene)
		})

		r.Route("/v1/aggregate", func(r chi.Router) {
			r.Post("/narrative", app.Narrative)
			r.Post("/story-arc", app.StoryArc)
			r.Post("/refined-prompt", app.RefinedPrompt)
			r.Post("/image", app.GenerateImage)
		})

		r.Route("/v1/artifacts", func(r chi.Router) {
			r.Get("/text", app.TextArtifact)
			r.Get("/text/download", app.DownloadText)
			r.Get("/image", app.ImageArtifact)
			r.Get("/bundle", app.Bundle)
			r.Post("/export", app.ExportArtifacts)
		})

		r.Get("/v1/notices", app.ListNotices)
	})

	return r
}
