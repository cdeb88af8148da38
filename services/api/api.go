// Package api exposes the registry's HTTP surface: component listing and
// detail, server-side render, archive upload, and public CDN assets.
package api

import (
	"context"
	"errors"
	"log"

	"microfe/services/registry"
	"microfe/services/uploader"
)

// Uploader runs the upload pipeline for one archive.
type Uploader interface {
	Upload(ctx context.Context, archive []byte, name string) (uploader.Result, error)
}

// Renderer executes a stored SSR adapter against caller props.
type Renderer interface {
	Render(ctx context.Context, ssrPath string, props map[string]any) (string, error)
}

// API wires the store, pipeline, and configuration for the HTTP handlers.
type API struct {
	store   *registry.Store
	uploads Uploader
	renders Renderer
	config  Config
	logger  *log.Logger
}

// New initialises the API layer.
func New(store *registry.Store, uploads Uploader, renders Renderer, cfg Config, logger *log.Logger) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if uploads == nil {
		return nil, errors.New("uploader is required")
	}
	if renders == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &API{
		store:   store,
		uploads: uploads,
		renders: renders,
		config:  cfg,
		logger:  logger,
	}, nil
}
