// Package observe provides the OpenTelemetry metric instruments used across
// medassist and the Prometheus bridge that exposes them on /metrics.
//
// Tests should build a [Metrics] with [NewMetrics] over a ManualReader-backed
// provider so instrument state does not leak between tests.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all medassist metrics.
const meterName = "github.com/ehr/medassist"

// Metrics holds all OpenTelemetry metric instruments for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// EntriesCreated counts history entries by title and initial status.
	EntriesCreated metric.Int64Counter

	// StatusUpdates counts entry updates by the status written.
	StatusUpdates metric.Int64Counter

	// EntriesDeleted counts removed entries. Use with attribute
	//   attribute.String("reason", "single"|"bulk_open"|"reset")
	EntriesDeleted metric.Int64Counter

	// DictationDuration tracks the time from dictation start to letter ready.
	DictationDuration metric.Float64Histogram

	// DictationQueueDepth tracks tasks waiting for the letter worker.
	DictationQueueDepth metric.Int64UpDownCounter

	// ProfileActivations counts successful profile activations.
	ProfileActivations metric.Int64Counter

	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram

	meter metric.Meter
}

var dictationBuckets = []float64{0.5, 1, 2, 3, 4, 5, 7.5, 10, 30}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.EntriesCreated, err = m.Int64Counter("medassist.history.entries_created",
		metric.WithDescription("History entries created by title and status."),
	); err != nil {
		return nil, err
	}
	if met.StatusUpdates, err = m.Int64Counter("medassist.history.status_updates",
		metric.WithDescription("History entry updates by resulting status."),
	); err != nil {
		return nil, err
	}
	if met.EntriesDeleted, err = m.Int64Counter("medassist.history.entries_deleted",
		metric.WithDescription("History entries removed by reason."),
	); err != nil {
		return nil, err
	}
	if met.DictationDuration, err = m.Float64Histogram("medassist.dictation.duration",
		metric.WithDescription("Time from dictation start until the letter is ready."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(dictationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DictationQueueDepth, err = m.Int64UpDownCounter("medassist.dictation.queue_depth",
		metric.WithDescription("Dictation tasks waiting for letter generation."),
	); err != nil {
		return nil, err
	}
	if met.ProfileActivations, err = m.Int64Counter("medassist.profile.activations",
		metric.WithDescription("Successful profile activations."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("medassist.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// ObserveStatusCounts registers an asynchronous gauge reporting the dashboard
// tallies. fn is called on every collection.
func (m *Metrics) ObserveStatusCounts(fn func(ctx context.Context) (open, saved, sent int64)) error {
	if m == nil {
		return nil
	}
	gauge, err := m.meter.Int64ObservableGauge("medassist.history.status_count",
		metric.WithDescription("Current history tally per status."),
	)
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		open, saved, sent := fn(ctx)
		o.ObserveInt64(gauge, open, metric.WithAttributes(attribute.String("status", "open")))
		o.ObserveInt64(gauge, saved, metric.WithAttributes(attribute.String("status", "saved")))
		o.ObserveInt64(gauge, sent, metric.WithAttributes(attribute.String("status", "sent")))
		return nil
	}, gauge)
	return err
}

// RecordEntryCreated increments EntriesCreated.
func (m *Metrics) RecordEntryCreated(ctx context.Context, title, status string) {
	if m == nil {
		return
	}
	m.EntriesCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("title", title),
		attribute.String("status", status),
	))
}

// RecordStatusUpdate increments StatusUpdates.
func (m *Metrics) RecordStatusUpdate(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.StatusUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordEntriesDeleted adds n to EntriesDeleted. n <= 0 is ignored.
func (m *Metrics) RecordEntriesDeleted(ctx context.Context, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EntriesDeleted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDictation observes one completed dictation.
func (m *Metrics) RecordDictation(ctx context.Context, seconds float64, outcome string) {
	if m == nil {
		return
	}
	m.DictationDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// AddQueueDepth moves the queue depth gauge by delta.
func (m *Metrics) AddQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.DictationQueueDepth.Add(ctx, delta)
}

// RecordProfileActivation increments ProfileActivations.
func (m *Metrics) RecordProfileActivation(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProfileActivations.Add(ctx, 1)
}
