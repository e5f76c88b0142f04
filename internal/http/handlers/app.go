package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"mohaweel/internal/domain"
	"mohaweel/internal/infra"
	"mohaweel/internal/messages"
	"mohaweel/internal/middleware"
	"mohaweel/internal/session"
)

type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Sessions *session.Store

	background sync.WaitGroup
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, sessions *session.Store) *App {
	if cfg == nil {
		cfg = &infra.Config{}
	}
	return &App{Config: cfg, Logger: logger, Sessions: sessions}
}

// Wait blocks until background generations started with ?async=1 finish.
func (a *App) Wait() {
	a.background.Wait()
}

func (a *App) generateTimeout() time.Duration {
	if a.Config != nil && a.Config.GeminiTimeout > 0 {
		return a.Config.GeminiTimeout + 5*time.Second
	}
	return 65 * time.Second
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// error writes a localized request-level failure.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, map[string]errorBody{
		"error": {Code: code, Message: messages.Text(locale, code)},
	})
}

// domainError writes a localized *domain.Error, falling back to the generic
// message for anything else.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, status int, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	body := errorBody{Code: "unknown", Message: messages.Render(locale, err)}
	var de *domain.Error
	if errors.As(err, &de) {
		body.Code = de.Code
		body.Kind = string(de.Kind)
	}
	a.json(w, status, map[string]errorBody{"error": body})
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (string, *session.Controller, bool) {
	id := chi.URLParam(r, "id")
	ctrl, err := a.Sessions.Get(id)
	if err != nil {
		a.error(w, r, http.StatusNotFound, messages.CodeSessionNotFound)
		return "", nil, false
	}
	return id, ctrl, true
}

// logger returns the app logger tagged with the request id.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	l := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	return &l
}
