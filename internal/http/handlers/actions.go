package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"studio/internal/imagegen"
	"studio/internal/orchestrator"
	"studio/internal/session"
)

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var form orchestrator.GenerateForm
	if !a.decode(w, r, &form) {
		return
	}
	if err := a.Commands.Generate(r.Context(), form); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}

func (a *App) Upscale(w http.ResponseWriter, r *http.Request) {
	var form orchestrator.UpscaleForm
	if !a.decode(w, r, &form) {
		return
	}
	if err := a.Commands.Upscale(r.Context(), form); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}

func (a *App) Edit(w http.ResponseWriter, r *http.Request) {
	var form orchestrator.EditForm
	if !a.decode(w, r, &form) {
		return
	}
	if err := a.Commands.Edit(r.Context(), form); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}

type modalRequest struct {
	Modal string `json:"modal"`
	Index int    `json:"index"`
}

func (a *App) OpenModal(w http.ResponseWriter, r *http.Request) {
	var req modalRequest
	if !a.decode(w, r, &req) {
		return
	}
	m, ok := session.ParseModal(strings.ToLower(strings.TrimSpace(req.Modal)))
	if !ok {
		a.writeError(w, http.StatusBadRequest, string(imagegen.KindInvalidInput), "unknown modal")
		return
	}
	if err := a.Commands.OpenModal(m, req.Index); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}

func (a *App) CloseModal(w http.ResponseWriter, r *http.Request) {
	a.Commands.CloseModal()
	a.state(w)
}

type zoomRequest struct {
	Op string `json:"op"`
}

func (a *App) Zoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if !a.decode(w, r, &req) {
		return
	}
	z, err := a.Commands.Zoom(orchestrator.ZoomOp(strings.ToLower(req.Op)))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]float64{"zoom": z})
}

// UploadMask accepts a multipart upload in the "mask" field.
func (a *App) UploadMask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxMaskBytes+(1<<20))
	if err := r.ParseMultipartForm(a.MaxMaskBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			a.writeError(w, http.StatusRequestEntityTooLarge, string(imagegen.KindInvalidInput), "mask file is too large")
			return
		}
		a.writeError(w, http.StatusBadRequest, string(imagegen.KindInvalidInput), "invalid upload")
		return
	}
	file, header, err := r.FormFile("mask")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, string(imagegen.KindInvalidInput), "mask file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, a.MaxMaskBytes+1))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, string(imagegen.KindInvalidInput), "could not read mask file")
		return
	}
	if int64(len(data)) > a.MaxMaskBytes {
		a.writeError(w, http.StatusRequestEntityTooLarge, string(imagegen.KindInvalidInput), "mask file is too large")
		return
	}
	if err := a.Commands.UploadMask(header.Filename, data); err != nil {
		a.fail(w, err)
		return
	}
	a.state(w)
}
