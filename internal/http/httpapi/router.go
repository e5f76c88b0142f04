package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mohaweel/internal/http/handlers"
	"mohaweel/internal/middleware"
)

// Options carries the router's optional collaborators.
type Options struct {
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Put("/image", app.PutImage)
			r.Delete("/image", app.DeleteImage)
			r.Put("/prompt", app.SetPrompt)
			r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).Post("/generate", app.Generate)
			r.Post("/reset", app.ResetSession)
			r.Get("/download", app.Download)
		})
	})

	return r
}
