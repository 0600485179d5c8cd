package handlers

import (
	"net/http"
)

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (a *App) SaveCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Commands.SaveCredential(r.Context(), req.APIKey); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}

func (a *App) ChangeCredential(w http.ResponseWriter, r *http.Request) {
	if err := a.Commands.ChangeCredential(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}
