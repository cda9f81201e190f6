package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requests counts query endpoint requests by endpoint and status
	// code.
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netgauge_api_requests_total",
		Help: "Total number of API requests by endpoint and status code.",
	}, []string{"endpoint", "status"})

	// liveMeasurements counts live measurements by outcome.
	liveMeasurements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netgauge_live_measurements_total",
		Help: "Total number of live measurements by outcome.",
	}, []string{"outcome"})

	// archiveErrors counts failed archival data file writes.
	archiveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netgauge_archive_errors_total",
		Help: "Total number of failed archival data file writes.",
	})
)
