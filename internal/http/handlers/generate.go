package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"mohaweel/internal/domain"
	"mohaweel/internal/session"
)

// Generate runs a transformation for the session. By default it blocks and
// answers with the final view; generation failures are part of the view and
// still answer 200, validation failures answer 422. With ?async=1 it answers
// 202 in loading mode and the outcome is read back with GET.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}
	log := a.logger(r).With().Str("session_id", id).Logger()

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		run, err := ctrl.Start()
		if err != nil {
			a.writeView(w, r, http.StatusUnprocessableEntity, id, ctrl.Snapshot())
			return
		}
		loading := ctrl.Snapshot()
		ctx, cancel := a.generateContext(r)
		a.background.Add(1)
		go func() {
			defer a.background.Done()
			defer cancel()
			logOutcome(log, run(ctx))
		}()
		a.writeView(w, r, http.StatusAccepted, id, loading)
		return
	}

	ctx, cancel := a.generateContext(r)
	defer cancel()
	err := ctrl.Generate(ctx)
	logOutcome(log, err)
	status := http.StatusOK
	if errors.Is(err, domain.ErrValidation) {
		status = http.StatusUnprocessableEntity
	}
	a.writeView(w, r, status, id, ctrl.Snapshot())
}

// generateContext detaches the model call from the client connection: a
// disconnect must not turn a good result into a transport failure.
func (a *App) generateContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), a.generateTimeout())
}

func logOutcome(log zerolog.Logger, err error) {
	switch {
	case err == nil:
		log.Info().Msg("generation completed")
	case errors.Is(err, session.ErrStale):
		log.Info().Msg("generation superseded")
	case errors.Is(err, domain.ErrValidation):
		log.Debug().Err(err).Msg("generation rejected")
	default:
		log.Warn().Err(err).Msg("generation failed")
	}
}
