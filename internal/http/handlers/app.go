package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studio/internal/imagegen"
	"studio/internal/orchestrator"
)

// App translates HTTP requests from the page into orchestrator commands.
type App struct {
	Commands     orchestrator.Commands
	Logger       zerolog.Logger
	MaxMaskBytes int64
}

func NewApp(commands orchestrator.Commands, logger zerolog.Logger, maxMaskBytes int64) *App {
	if maxMaskBytes <= 0 {
		maxMaskBytes = 10 << 20
	}
	return &App{Commands: commands, Logger: logger, MaxMaskBytes: maxMaskBytes}
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"upstream_status,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) writeError(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Kind: kind, Message: message})
}

// fail writes err using the taxonomy: local failures are 400, an occupied
// action is 409, anything the remote API reported is 502.
func (a *App) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestrator.ErrBusy) {
		a.writeError(w, http.StatusConflict, "busy", "This action is already running")
		return
	}
	var apiErr *imagegen.Error
	if !errors.As(err, &apiErr) {
		a.Logger.Error().Err(err).Msg("unclassified command failure")
		a.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong")
		return
	}
	code := http.StatusBadGateway
	if apiErr.Kind.Local() {
		code = http.StatusBadRequest
	}
	a.json(w, code, errorResponse{Kind: string(apiErr.Kind), Message: apiErr.Message, Status: apiErr.Status})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, string(imagegen.KindInvalidInput), "invalid payload")
		return false
	}
	return true
}

func (a *App) state(w http.ResponseWriter) {
	a.json(w, http.StatusOK, a.Commands.Snapshot())
}
