package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"model":             a.Config.GeminiModel,
		"gemini_configured": a.Config.GeminiAPIKey != "",
		"sessions":          a.Sessions.Len(),
	})
}
