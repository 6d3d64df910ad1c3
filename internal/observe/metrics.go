// Package observe provides the observability primitives of transcorrect:
// OpenTelemetry metrics, tracing, trace-aware structured logging, and the HTTP
// middleware that serves the metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all transcorrect metrics.
const meterName = "github.com/MrWong99/transcorrect"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks the latency of a single correction-model call.
	LLMDuration metric.Float64Histogram

	// BlockDuration tracks the wall time of a block including retries and
	// persistence.
	BlockDuration metric.Float64Histogram

	// HTTPRequestDuration tracks operational endpoint latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// Blocks counts finished blocks. Use with attribute:
	//   attribute.String("status", "completed"|"error"|"reused")
	Blocks metric.Int64Counter

	// BlockRetries counts block retries. Use with attribute:
	//   attribute.String("reason", "validation"|"error")
	BlockRetries metric.Int64Counter

	// ValidationIssues counts validation findings on model answers. Use with
	// attribute:
	//   attribute.String("kind", ...)
	ValidationIssues metric.Int64Counter

	// PersistErrors counts block upserts that failed after all retries.
	PersistErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveFiles tracks the number of files currently being corrected.
	ActiveFiles metric.Int64UpDownCounter
}

// llmBuckets defines histogram bucket boundaries (in seconds) for correction
// calls, which answer whole blocks and routinely take tens of seconds.
var llmBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("transcorrect.llm.duration",
		metric.WithDescription("Latency of a correction-model call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(llmBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BlockDuration, err = m.Float64Histogram("transcorrect.block.duration",
		metric.WithDescription("Wall time of one block including retries and persistence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(llmBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("transcorrect.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Blocks, err = m.Int64Counter("transcorrect.blocks",
		metric.WithDescription("Finished blocks by status."),
	); err != nil {
		return nil, err
	}
	if met.BlockRetries, err = m.Int64Counter("transcorrect.block.retries",
		metric.WithDescription("Block retries by reason."),
	); err != nil {
		return nil, err
	}
	if met.ValidationIssues, err = m.Int64Counter("transcorrect.validation.issues",
		metric.WithDescription("Validation findings on model answers by kind."),
	); err != nil {
		return nil, err
	}
	if met.PersistErrors, err = m.Int64Counter("transcorrect.persist.errors",
		metric.WithDescription("Block upserts that failed after all retries."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveFiles, err = m.Int64UpDownCounter("transcorrect.files.active",
		metric.WithDescription("Number of files currently being corrected."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordBlock records a finished block with its status.
func (m *Metrics) RecordBlock(ctx context.Context, status string) {
	m.Blocks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRetry records a block retry with its reason.
func (m *Metrics) RecordRetry(ctx context.Context, reason string) {
	m.BlockRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordValidationIssue records one validation finding of the given kind.
func (m *Metrics) RecordValidationIssue(ctx context.Context, kind string) {
	m.ValidationIssues.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
