// Package observe holds the OpenTelemetry metric instruments for the
// speech-practice backend and the Prometheus bridge that exposes them on
// /metrics.
//
// Services record through [DefaultMetrics]; tests build their own instance
// with [NewMetrics] and a ManualReader.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "speech-practice"

// Metrics holds every instrument the application records. The OTel types are
// safe for concurrent use.
type Metrics struct {
	// SessionCompletions counts complete-session calls. Attribute: status.
	SessionCompletions metric.Int64Counter

	// ResultsRecorded counts game results persisted by completed sessions.
	// Attribute: user_response.
	ResultsRecorded metric.Int64Counter

	// AssessmentDuration tracks pronunciation provider latency.
	AssessmentDuration metric.Float64Histogram

	// AssessmentRequests counts provider calls. Attributes: provider, status.
	AssessmentRequests metric.Int64Counter

	// StorageOperations counts object store calls. Attributes: op, status.
	StorageOperations metric.Int64Counter

	// ImportedSpeeches counts speeches created by CSV imports.
	ImportedSpeeches metric.Int64Counter

	// ImportRowErrors counts CSV rows rejected during validation.
	ImportRowErrors metric.Int64Counter

	// UploadSessionsPurged counts expired upload sessions removed by the sweep.
	UploadSessionsPurged metric.Int64Counter

	// HTTPRequestDuration tracks request latency. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionCompletions, err = m.Int64Counter("speech_practice.session.completions",
		metric.WithDescription("Complete-session calls by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ResultsRecorded, err = m.Int64Counter("speech_practice.session.results",
		metric.WithDescription("Game results persisted by user response."),
	); err != nil {
		return nil, err
	}
	if met.AssessmentDuration, err = m.Float64Histogram("speech_practice.assessment.duration",
		metric.WithDescription("Latency of pronunciation assessment calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AssessmentRequests, err = m.Int64Counter("speech_practice.assessment.requests",
		metric.WithDescription("Pronunciation assessment calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.StorageOperations, err = m.Int64Counter("speech_practice.storage.operations",
		metric.WithDescription("Object storage calls by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.ImportedSpeeches, err = m.Int64Counter("speech_practice.import.speeches",
		metric.WithDescription("Speeches created by CSV import."),
	); err != nil {
		return nil, err
	}
	if met.ImportRowErrors, err = m.Int64Counter("speech_practice.import.row_errors",
		metric.WithDescription("CSV rows rejected by import validation."),
	); err != nil {
		return nil, err
	}
	if met.UploadSessionsPurged, err = m.Int64Counter("speech_practice.upload_sessions.purged",
		metric.WithDescription("Expired upload sessions removed from the registry."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("speech_practice.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// meter provider. Panics if instrument creation fails.
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
