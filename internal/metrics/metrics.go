// Package metrics exposes Prometheus metrics for lookups, sheet parsing and
// reference-table loading.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom registry served at /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// LookupTotal counts lookups by outcome (ok, or the error code).
var LookupTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "oncall",
	Name:      "lookup_total",
	Help:      "Lookups by outcome",
}, []string{"outcome"})

// LookupFallbackTotal counts lookups that needed a fallback tier.
var LookupFallbackTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "oncall",
	Name:      "lookup_fallback_total",
	Help:      "Lookups answered by a fallback search tier",
}, []string{"tier"})

var LookupConfidenceTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "oncall",
	Name:      "lookup_confidence_total",
	Help:      "Resolved lookups by confidence rating",
}, []string{"confidence"})

var ParserDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "oncall",
	Name:      "parser_duration_seconds",
	Help:      "Time spent parsing uploaded sheets",
	Buckets:   prometheus.DefBuckets,
}, []string{"parser"})

var ParserErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "oncall",
	Name:      "parser_errors_total",
	Help:      "Sheet parses that failed",
}, []string{"parser"})

// RefdataRows is the row count of each loaded reference table.
var RefdataRows = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "oncall",
	Name:      "refdata_rows",
	Help:      "Rows in each loaded reference table",
}, []string{"table"})

// RefdataFallbackTotal counts provider failures that fell through to the
// next source.
var RefdataFallbackTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "oncall",
	Name:      "refdata_fallback_total",
	Help:      "Reference-table fetches that fell back to the next provider",
}, []string{"table", "provider"})
