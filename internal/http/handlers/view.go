package handlers

import (
	"net/http"
	"time"

	"mohaweel/internal/domain"
	"mohaweel/internal/messages"
	"mohaweel/internal/middleware"
	"mohaweel/internal/session"
)

type resultView struct {
	Original     string    `json:"original"`
	Generated    string    `json:"generated"`
	Prompt       string    `json:"prompt"`
	CreatedAt    time.Time `json:"created_at"`
	DownloadName string    `json:"download_name"`
}

type sessionView struct {
	ID     string       `json:"id"`
	Mode   session.Mode `json:"mode"`
	Prompt string       `json:"prompt"`
	Image  string       `json:"image,omitempty"`
	Result *resultView  `json:"result,omitempty"`
	Error  *errorBody   `json:"error,omitempty"`
}

func renderView(id string, st session.State, locale string) sessionView {
	v := sessionView{ID: id, Mode: st.Mode(), Prompt: st.Prompt}
	if st.Image != nil {
		v.Image = st.Image.DataURL()
	}
	if res, ok := st.Result(); ok {
		v.Result = &resultView{
			Original:     res.Original.DataURL(),
			Generated:    res.Generated.DataURL(),
			Prompt:       res.Prompt,
			CreatedAt:    res.CreatedAt,
			DownloadName: domain.DownloadName(res.CreatedAt),
		}
	}
	if err := st.Err(); err != nil {
		v.Error = &errorBody{
			Code:    err.Code,
			Kind:    string(err.Kind),
			Message: messages.Render(locale, err),
		}
	}
	return v
}

func (a *App) writeView(w http.ResponseWriter, r *http.Request, status int, id string, st session.State) {
	a.json(w, status, renderView(id, st, middleware.LocaleFromContext(r.Context())))
}
