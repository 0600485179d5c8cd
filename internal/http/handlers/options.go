package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studio/internal/imagegen"
)

type option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type optionsResponse struct {
	Models       []option `json:"models"`
	StylePresets []option `json:"style_presets"`
	Formats      []option `json:"formats"`
	Scales       []option `json:"upscale_scales"`
	EditModes    []option `json:"edit_modes"`
	Model        string   `json:"model"`
}

// label turns an API id like "flux-dev" into "Flux Dev". Values that already
// carry capitals are left alone.
func label(value string) string {
	if value != strings.ToLower(value) {
		return value
	}
	return cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(value))
}

// Options lists the selector values. Models come from the traits fetched at
// start-up when available, otherwise from the built-in list.
func (a *App) Options(w http.ResponseWriter, r *http.Request) {
	snap := a.Commands.Snapshot()
	models := snap.TraitModels
	if len(models) == 0 {
		models = imagegen.Models
	}

	resp := optionsResponse{Model: snap.Model}
	for _, m := range models {
		resp.Models = append(resp.Models, option{Value: m, Label: label(m)})
	}
	for _, p := range imagegen.StylePresets {
		resp.StylePresets = append(resp.StylePresets, option{Value: p, Label: label(p)})
	}
	for _, f := range imagegen.Formats {
		resp.Formats = append(resp.Formats, option{Value: string(f), Label: strings.ToUpper(string(f))})
	}
	for _, s := range imagegen.UpscaleScales {
		resp.Scales = append(resp.Scales, option{Value: s, Label: s + "x"})
	}
	for _, m := range imagegen.EditModes {
		resp.EditModes = append(resp.EditModes, option{Value: string(m), Label: label(string(m))})
	}
	a.json(w, http.StatusOK, resp)
}
