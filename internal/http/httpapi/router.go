package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videochain/internal/http/handlers"
	"videochain/internal/infra"
	"videochain/internal/middleware"
)

// Options configures the HTTP surface around the handlers.
type Options struct {
	Logger             infra.Logger
	JWTSecret          string
	GeneratedRoot      string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	DefaultLocale      string
	CountryLookup      middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.GeneratedRoot != "" {
		files := http.StripPrefix("/generated/", http.FileServer(http.Dir(opts.GeneratedRoot)))
		r.Handle("/generated/*", files)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		limit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
		r.Get("/v1/videos", app.MyVideos)
		r.Route("/v1/videos/chain", func(r chi.Router) {
			r.With(limit).Post("/", app.ChainGenerate)
			r.With(limit).Post("/jobs", app.ChainEnqueue)
			r.Get("/jobs/{job_id}", app.ChainJobStatus)
			r.Get("/jobs/{job_id}/ws", app.ChainJobStream)
		})
	})

	return r
}
