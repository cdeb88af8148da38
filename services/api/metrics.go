package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microfe_uploads_total",
		Help: "Component upload requests by outcome.",
	}, []string{"status"})

	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microfe_renders_total",
		Help: "Server-side render requests by outcome.",
	}, []string{"status"})
)
