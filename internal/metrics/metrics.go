// Package metrics provides OpenTelemetry metric instruments for the Keran
// voice gateway.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all gateway metrics.
const meterName = "github.com/keranlabs/keran"

// Metrics holds all metric instruments for the gateway. All fields are safe
// for concurrent use.
type Metrics struct {
	// RecognitionDuration tracks speech recognition session length.
	RecognitionDuration metric.Float64Histogram

	// SynthesisDuration tracks speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// BackendDuration tracks portal backend call latency. Use with
	// attributes: attribute.String("op", ...), attribute.String("status", ...)
	BackendDuration metric.Float64Histogram

	// BackendRequests counts portal backend calls by operation and status.
	BackendRequests metric.Int64Counter

	// Utterances counts synthesized utterances by completion outcome.
	// Use with attribute: attribute.String("outcome", "complete" | "canceled")
	Utterances metric.Int64Counter

	// Transcripts counts final recognition results by capture mode.
	Transcripts metric.Int64Counter

	// ActiveClients tracks the number of connected websocket clients.
	ActiveClients metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries in seconds, tuned for
// speech and backend latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecognitionDuration, err = m.Float64Histogram("keran.recognition.duration",
		metric.WithDescription("Length of speech recognition sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("keran.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("keran.backend.duration",
		metric.WithDescription("Portal backend call latency by operation and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendRequests, err = m.Int64Counter("keran.backend.requests",
		metric.WithDescription("Total portal backend calls by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("keran.utterances",
		metric.WithDescription("Total synthesized utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("keran.transcripts",
		metric.WithDescription("Total final recognition results by capture mode."),
	); err != nil {
		return nil, err
	}
	if met.ActiveClients, err = m.Int64UpDownCounter("keran.active_clients",
		metric.WithDescription("Number of connected websocket clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordBackendRequest records one backend call with its latency.
func (m *Metrics) RecordBackendRequest(ctx context.Context, op, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	)
	m.BackendRequests.Add(ctx, 1, attrs)
	m.BackendDuration.Record(ctx, seconds, attrs)
}

// RecordUtterance records one synthesized utterance outcome.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordTranscript records one final recognition result.
func (m *Metrics) RecordTranscript(ctx context.Context, mode string) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
