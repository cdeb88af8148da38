package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microfe/services/registry"
)

func (a *API) handleRender(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	version := chi.URLParam(r, "version")

	props := map[string]any{}
	if raw := r.URL.Query().Get("props"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &props); err != nil {
			rendersTotal.WithLabelValues("invalid").Inc()
			respondError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed props JSON", registry.ErrValidation))
			return
		}
	}

	record, err := a.store.Get(slug)
	if err != nil {
		rendersTotal.WithLabelValues("not_found").Inc()
		respondError(w, http.StatusNotFound, registry.ErrNotFound)
		return
	}

	vr := record.FindVersion(version)
	if vr == nil {
		rendersTotal.WithLabelValues("not_found").Inc()
		respondError(w, http.StatusNotFound, errors.New("version not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.config.RenderTimeout)
	defer cancel()

	html, err := a.renders.Render(ctx, vr.SSRPath, props)
	if err != nil {
		rendersTotal.WithLabelValues("error").Inc()
		a.logger.Printf("ERROR render %s@%s: %v", slug, version, err)
		// Internal locators must not leak; the taxonomy error is enough.
		switch {
		case errors.Is(err, registry.ErrArtifactMissing):
			respondError(w, http.StatusInternalServerError, registry.ErrArtifactMissing)
		case errors.Is(err, registry.ErrInvalidArtifact):
			respondError(w, http.StatusInternalServerError, registry.ErrInvalidArtifact)
		default:
			respondError(w, http.StatusInternalServerError, errors.New("failed to render component"))
		}
		return
	}

	rendersTotal.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"html":  html,
		"props": props,
	})
}
