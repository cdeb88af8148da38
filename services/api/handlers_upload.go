package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"microfe/services/registry"
)

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadBytes)

	if err := r.ParseMultipartForm(a.config.MaxUploadBytes); err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed multipart request", registry.ErrValidation))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, errors.New("no file uploaded"))
		return
	}
	defer file.Close()

	archive, err := io.ReadAll(file)
	if err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, fmt.Errorf("%w: read upload: %v", registry.ErrValidation, err))
		return
	}

	result, err := a.uploads.Upload(r.Context(), archive, r.FormValue("name"))
	if err != nil {
		if errors.Is(err, registry.ErrValidation) {
			uploadsTotal.WithLabelValues("invalid").Inc()
			respondError(w, http.StatusBadRequest, err)
			return
		}
		uploadsTotal.WithLabelValues("error").Inc()
		a.logger.Printf("ERROR upload: %v", err)
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"component": result,
	})
}
