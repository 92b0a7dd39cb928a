package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ElementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osm2ogr_elements_total",
			Help: "Total number of OSM elements read",
		},
		[]string{"type"},
	)

	FeaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osm2ogr_features_total",
			Help: "Total number of features written",
		},
		[]string{"layer"},
	)

	InvalidGeometriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osm2ogr_invalid_geometries_total",
			Help: "Total number of skipped objects with invalid geometries",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osm2ogr_memory_sys_bytes",
			Help: "Memory obtained from the OS in bytes",
		},
	)
)
