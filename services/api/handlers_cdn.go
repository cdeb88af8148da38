package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// handleCDNAsset serves a published public asset with a content type
// inferred from its extension and long-lived immutable caching: published
// (slug, version) artifacts are never mutated in place.
func (a *API) handleCDNAsset(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	version := chi.URLParam(r, "version")
	file := chi.URLParam(r, "file")

	path, err := a.store.CDNFilePath(slug, version, file)
	if err != nil {
		respondError(w, http.StatusNotFound, errors.New("asset not found"))
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeFile(w, r, path)
}
