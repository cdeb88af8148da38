package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"microfe/services/registry"
)

// componentSummary is the listing projection. Artifact locators are never
// exposed through the API.
type componentSummary struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	LatestVersion string `json:"latestVersion"`
	Description   string `json:"description"`
	Status        string `json:"status"`
}

type versionDetail struct {
	Version     string                `json:"version"`
	PropsSchema *registry.PropsSchema `json:"propsSchema"`
	CreatedAt   time.Time             `json:"createdAt"`
	Status      string                `json:"status"`
}

type componentDetail struct {
	componentSummary
	Versions  []versionDetail `json:"versions"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func summarize(c *registry.Component) componentSummary {
	return componentSummary{
		Name:          c.Name,
		Slug:          c.Slug,
		LatestVersion: c.LatestVersion,
		Description:   c.Description,
		Status:        c.Status,
	}
}

func (a *API) handleListComponents(w http.ResponseWriter, r *http.Request) {
	components, err := a.store.ListAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]componentSummary, 0, len(components))
	for _, c := range components {
		summaries = append(summaries, summarize(c))
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (a *API) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	record, err := a.store.Get(slug)
	if err != nil {
		respondError(w, http.StatusNotFound, registry.ErrNotFound)
		return
	}

	detail := componentDetail{
		componentSummary: summarize(record),
		Versions:         make([]versionDetail, 0, len(record.Versions)),
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
	for _, v := range record.Versions {
		detail.Versions = append(detail.Versions, versionDetail{
			Version:     v.Version,
			PropsSchema: v.PropsSchema,
			CreatedAt:   v.CreatedAt,
			Status:      v.Status,
		})
	}
	respondJSON(w, http.StatusOK, detail)
}
