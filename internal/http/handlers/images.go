package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studio/internal/imagegen"
	"studio/pkg/zip"
)

// DownloadImage serves one image of the current batch as an attachment.
// The path index is zero-based.
func (a *App) DownloadImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		a.writeError(w, http.StatusBadRequest, string(imagegen.KindInvalidInput), "invalid image index")
		return
	}
	data, format, err := a.Commands.Image(index)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="image-%d.%s"`, index+1, format.Extension()))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// DownloadArchive bundles the whole current batch into a zip.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	count := len(a.Commands.Snapshot().Images)
	if count == 0 {
		a.writeError(w, http.StatusNotFound, string(imagegen.KindInvalidInput), "no images to download")
		return
	}
	assets := make([]zip.Asset, 0, count)
	for i := 0; i < count; i++ {
		data, format, err := a.Commands.Image(i)
		if err != nil {
			// the batch was replaced while collecting
			a.fail(w, err)
			return
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("image-%d.%s", i+1, format.Extension()),
			MIME:     format.ContentType(),
			Data:     data,
		})
	}
	var buf bytes.Buffer
	if err := zip.WriteArchive(&buf, assets); err != nil {
		a.Logger.Error().Err(err).Msg("build archive")
		a.writeError(w, http.StatusInternalServerError, "internal", "could not build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="images.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
