package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes constructs the chi router containing all registry endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/components", a.handleListComponents)
	r.Get("/components/{slug}", a.handleGetComponent)
	r.Get("/render/{slug}/{version}", a.handleRender)
	r.Post("/upload", a.handleUpload)
	r.Get("/cdn/components/{slug}/{version}/{file}", a.handleCDNAsset)

	return r
}
