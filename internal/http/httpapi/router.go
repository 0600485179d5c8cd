package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"studio/internal/http/handlers"
	appmw "studio/internal/middleware"
)

// Options configures the router.
type Options struct {
	App             *handlers.App
	Socket          http.Handler
	Logger          zerolog.Logger
	RateLimitPerMin int
}

func NewRouter(opts Options) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		appmw.Logger(opts.Logger),
	)

	r.Get("/", app.Page)
	r.Get("/v1/healthz", app.Health)
	if opts.Socket != nil {
		r.Handle("/ws", opts.Socket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(appmw.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Get("/state", app.State)
		r.Get("/options", app.Options)

		r.Post("/credential", app.SaveCredential)
		r.Delete("/credential", app.ChangeCredential)

		r.Post("/generate", app.Generate)
		r.Post("/upscale", app.Upscale)
		r.Post("/edit", app.Edit)

		r.Post("/modal", app.OpenModal)
		r.Delete("/modal", app.CloseModal)
		r.Post("/zoom", app.Zoom)
		r.Post("/mask", app.UploadMask)

		r.Get("/images/archive", app.DownloadArchive)
		r.Get("/images/{index}/download", app.DownloadImage)
	})

	return r
}
