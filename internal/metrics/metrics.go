// Package metrics provides Prometheus metrics instrumentation for the controller.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector provides metrics recording interface.
// This allows components to record metrics without direct prometheus dependency.
type Collector interface {
	// Reconcile metrics
	RecordReconcileDuration(ctx context.Context, status string, duration time.Duration)
	RecordGeneratedRoutes(ctx context.Context, routeType string, count int)
	RecordReconcileError(ctx context.Context, errorType string)
	RecordOrphanedRoutesDeleted(ctx context.Context, count int)

	// Kubernetes apply metrics
	RecordApplyOperation(ctx context.Context, operation, routeType, status string, duration time.Duration)
	RecordApplyError(ctx context.Context, operation, errorType string)

	// Conversion metrics
	RecordConversionDuration(ctx context.Context, duration time.Duration)
	RecordConversionWarning(ctx context.Context, reason string)
	RecordMalformedIngress(ctx context.Context)
}

// prometheusCollector implements Collector using Prometheus metrics.
type prometheusCollector struct {
	// Reconcile metrics
	reconcileDuration    *prometheus.HistogramVec
	generatedRoutes      *prometheus.GaugeVec
	reconcileErrorsTotal *prometheus.CounterVec
	orphanedRoutesTotal  prometheus.Counter

	// Kubernetes apply metrics
	applyDuration    *prometheus.HistogramVec
	applyOpsTotal    *prometheus.CounterVec
	applyErrorsTotal *prometheus.CounterVec

	// Conversion metrics
	conversionDuration      prometheus.Histogram
	conversionWarningsTotal *prometheus.CounterVec
	malformedIngressesTotal prometheus.Counter
}

// NewCollector creates a new Prometheus metrics collector and registers metrics.
func NewCollector(reg prometheus.Registerer) Collector {
	c := &prometheusCollector{}
	c.initReconcileMetrics()
	c.initApplyMetrics()
	c.initConversionMetrics()
	c.register(reg)

	return c
}

// RecordReconcileDuration records the duration of one reconcile pass.
func (c *prometheusCollector) RecordReconcileDuration(_ context.Context, status string, duration time.Duration) {
	c.reconcileDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordGeneratedRoutes records the number of generated routes by type.
func (c *prometheusCollector) RecordGeneratedRoutes(_ context.Context, routeType string, count int) {
	c.generatedRoutes.WithLabelValues(routeType).Set(float64(count))
}

// RecordReconcileError records a reconcile error by type.
func (c *prometheusCollector) RecordReconcileError(_ context.Context, errorType string) {
	c.reconcileErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordOrphanedRoutesDeleted records routes removed because their source
// Ingress is gone or no longer translated.
func (c *prometheusCollector) RecordOrphanedRoutesDeleted(_ context.Context, count int) {
	c.orphanedRoutesTotal.Add(float64(count))
}

// RecordApplyOperation records a route create, update, or delete.
func (c *prometheusCollector) RecordApplyOperation(
	_ context.Context,
	operation, routeType, status string,
	duration time.Duration,
) {
	c.applyDuration.WithLabelValues(operation).Observe(duration.Seconds())
	c.applyOpsTotal.WithLabelValues(operation, routeType, status).Inc()
}

// RecordApplyError records an apply error by type.
func (c *prometheusCollector) RecordApplyError(_ context.Context, operation, errorType string) {
	c.applyErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordConversionDuration records the duration of one Ingress conversion.
func (c *prometheusCollector) RecordConversionDuration(_ context.Context, duration time.Duration) {
	c.conversionDuration.Observe(duration.Seconds())
}

// RecordConversionWarning records a skipped rule or backend by reason.
func (c *prometheusCollector) RecordConversionWarning(_ context.Context, reason string) {
	c.conversionWarningsTotal.WithLabelValues(reason).Inc()
}

// RecordMalformedIngress records a conversion rejected as malformed.
func (c *prometheusCollector) RecordMalformedIngress(_ context.Context) {
	c.malformedIngressesTotal.Inc()
}

func (c *prometheusCollector) initReconcileMetrics() {
	c.reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "i2g_reconcile_duration_seconds",
			Help:    "Duration of Ingress reconcile passes",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
	c.generatedRoutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "i2g_generated_routes",
			Help: "Number of generated routes by type",
		},
		[]string{"type"},
	)
	c.reconcileErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "i2g_reconcile_errors_total",
			Help: "Total reconcile errors by type",
		},
		[]string{"error_type"},
	)
	c.orphanedRoutesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "i2g_orphaned_routes_deleted_total",
			Help: "Total generated routes deleted after their Ingress was removed or opted out",
		},
	)
}

func (c *prometheusCollector) initApplyMetrics() {
	c.applyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "i2g_apply_duration_seconds",
			Help:    "Duration of route apply operations",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
	c.applyOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "i2g_apply_operations_total",
			Help: "Total route apply operations",
		},
		[]string{"operation", "type", "status"},
	)
	c.applyErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "i2g_apply_errors_total",
			Help: "Total route apply errors by type",
		},
		[]string{"operation", "error_type"},
	)
}

func (c *prometheusCollector) initConversionMetrics() {
	c.conversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "i2g_conversion_duration_seconds",
			Help:    "Duration of Ingress to route conversion",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
	c.conversionWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "i2g_conversion_warnings_total",
			Help: "Total conversion warnings by reason",
		},
		[]string{"reason"},
	)
	c.malformedIngressesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "i2g_malformed_ingresses_total",
			Help: "Total Ingresses rejected as malformed",
		},
	)
}

func (c *prometheusCollector) register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.reconcileDuration,
		c.generatedRoutes,
		c.reconcileErrorsTotal,
		c.orphanedRoutesTotal,
		c.applyDuration,
		c.applyOpsTotal,
		c.applyErrorsTotal,
		c.conversionDuration,
		c.conversionWarningsTotal,
		c.malformedIngressesTotal,
	)
}

// NoopCollector is a no-op implementation of Collector for testing.
type NoopCollector struct{}

// NewNoopCollector creates a new no-op collector.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordReconcileDuration is a no-op.
func (c *NoopCollector) RecordReconcileDuration(_ context.Context, _ string, _ time.Duration) {}

// RecordGeneratedRoutes is a no-op.
func (c *NoopCollector) RecordGeneratedRoutes(_ context.Context, _ string, _ int) {}

// RecordReconcileError is a no-op.
func (c *NoopCollector) RecordReconcileError(_ context.Context, _ string) {}

// RecordOrphanedRoutesDeleted is a no-op.
func (c *NoopCollector) RecordOrphanedRoutesDeleted(_ context.Context, _ int) {}

// RecordApplyOperation is a no-op.
func (c *NoopCollector) RecordApplyOperation(_ context.Context, _, _, _ string, _ time.Duration) {}

// RecordApplyError is a no-op.
func (c *NoopCollector) RecordApplyError(_ context.Context, _, _ string) {}

// RecordConversionDuration is a no-op.
func (c *NoopCollector) RecordConversionDuration(_ context.Context, _ time.Duration) {}

// RecordConversionWarning is a no-op.
func (c *NoopCollector) RecordConversionWarning(_ context.Context, _ string) {}

// RecordMalformedIngress is a no-op.
func (c *NoopCollector) RecordMalformedIngress(_ context.Context) {}
