// Package metrics holds the Prometheus instruments for SQL statements and
// store operations. A CLI run is short-lived, so the registry is pushed to a
// Pushgateway instead of being scraped.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Skryldev/people/internal/errors"
)

// Collector owns a private registry so several instances can coexist.
type Collector struct {
	registry *prometheus.Registry

	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec

	opDuration *prometheus.HistogramVec
	opTotal    *prometheus.CounterVec
}

// New returns a Collector with every instrument registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "people_sql_query_duration_seconds",
			Help:    "Time spent in the SQL driver per statement.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"statement"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "people_sql_query_errors_total",
			Help: "SQL statements that returned an error.",
		}, []string{"statement"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "people_store_operation_duration_seconds",
			Help:    "Duration of store operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"backend", "operation"}),
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "people_store_operations_total",
			Help: "Store operations by outcome.",
		}, []string{"backend", "operation", "outcome"}),
	}
	c.registry.MustRegister(c.queryDuration, c.queryErrors, c.opDuration, c.opTotal)
	return c
}

// Registry exposes the registry for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordQuery implements db.MetricsCollector. Statements are labelled by
// their leading keyword to keep cardinality bounded.
func (c *Collector) RecordQuery(query string, d time.Duration, success bool) {
	stmt := statementKind(query)
	c.queryDuration.WithLabelValues(stmt).Observe(d.Seconds())
	if !success {
		c.queryErrors.WithLabelValues(stmt).Inc()
	}
}

// RecordOperation counts one store operation. outcome is "ok" or "error"
// or a domain outcome such as "duplicate".
func (c *Collector) RecordOperation(backend, operation, outcome string, d time.Duration) {
	c.opDuration.WithLabelValues(backend, operation).Observe(d.Seconds())
	c.opTotal.WithLabelValues(backend, operation, outcome).Inc()
}

// Push sends the registry to a Pushgateway under job.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(c.registry).PushContext(ctx)
	return errors.Wrapf(err, "push metrics to %s", url)
}

func statementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	switch kind := strings.ToLower(fields[0]); kind {
	case "select", "insert", "update", "delete", "create", "drop", "alter", "begin", "commit", "rollback":
		return kind
	default:
		return "other"
	}
}
