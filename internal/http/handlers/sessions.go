package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mohaweel/internal/messages"
)

const maxPromptBody = 64 << 10

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl := a.Sessions.Create()
	a.logger(r).Debug().Str("session_id", id).Msg("session created")
	a.writeView(w, r, http.StatusCreated, id, ctrl.Snapshot())
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}
	a.writeView(w, r, http.StatusOK, id, ctrl.Snapshot())
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.Sessions.Delete(chi.URLParam(r, "id")) {
		a.error(w, r, http.StatusNotFound, messages.CodeSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPrompt stores the edit instruction verbatim; blank prompts are only
// rejected when generating.
func (a *App) SetPrompt(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}
	var req promptRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPromptBody)).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, messages.CodeBadRequest)
		return
	}
	a.writeView(w, r, http.StatusOK, id, ctrl.SetPrompt(req.Prompt))
}

func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}
	a.writeView(w, r, http.StatusOK, id, ctrl.Reset())
}
