package handlers

import (
	"embed"
	"net/http"
)

//go:embed web/index.html
var webFS embed.FS

// Page serves the single-screen UI.
func (a *App) Page(w http.ResponseWriter, r *http.Request) {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "internal", "page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(page)
}
