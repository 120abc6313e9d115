// Package observe provides the observability primitives shared by the
// pipeline, the providers and the HTTP host: OpenTelemetry metrics,
// tracing, trace-aware logging and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// scraping through a Prometheus exporter bridge set up by [InitProvider].
// [DefaultMetrics] returns a package-level instance bound to the global
// meter provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider].
package observe

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every salesnote metric.
const meterName = "github.com/MrWong99/salesnote"

// Metrics holds the OpenTelemetry instruments of the application. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// CompletionDuration tracks completion service latency.
	CompletionDuration metric.Float64Histogram

	// TranscriptionDuration tracks transcription service latency.
	TranscriptionDuration metric.Float64Histogram

	// ProviderRequests counts provider calls by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// ProcessingRuns counts finished note processing runs by source
	// (model|fallback) and status.
	ProcessingRuns metric.Int64Counter

	// ParseSectionsMissing counts reply sections the parser did not find.
	ParseSectionsMissing metric.Int64Counter

	// Resolutions counts name resolutions by entity (customer|product) and
	// outcome (exact|fuzzy|unresolved).
	Resolutions metric.Int64Counter

	// LineItemValidations counts validated items by outcome
	// (valid|warning|not_found).
	LineItemValidations metric.Int64Counter

	// LedgerWrites counts ledger writes by kind (order|task) and status.
	LedgerWrites metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes.
	BreakerTransitions metric.Int64Counter

	// ActiveDrafts tracks drafts that are processing or awaiting
	// confirmation.
	ActiveDrafts metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds sized for remote model
// calls, which take from a few hundred milliseconds to tens of seconds.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// instruments creates instruments on one meter and keeps the first error,
// so NewMetrics reads as a flat list of definitions.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.keep(err)
	return c
}

func (in *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.keep(err)
	return g
}

func (in *instruments) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.keep(err)
	return h
}

func (in *instruments) keep(err error) {
	if err != nil && in.err == nil {
		in.err = err
	}
}

// NewMetrics creates a [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}
	met := &Metrics{
		CompletionDuration:    in.seconds("salesnote.completion.duration", "Latency of completion service calls.", latencyBuckets),
		TranscriptionDuration: in.seconds("salesnote.transcription.duration", "Latency of transcription service calls.", latencyBuckets),
		ProviderRequests:      in.counter("salesnote.provider.requests", "Provider calls by provider, kind and status."),
		ProviderErrors:        in.counter("salesnote.provider.errors", "Provider failures by provider and kind."),
		ProcessingRuns:        in.counter("salesnote.pipeline.runs", "Note processing runs by extraction source and status."),
		ParseSectionsMissing:  in.counter("salesnote.parse.sections_missing", "Reply sections the parser could not find."),
		Resolutions:           in.counter("salesnote.resolve.outcomes", "Name resolutions by entity and outcome."),
		LineItemValidations:   in.counter("salesnote.validate.outcomes", "Validated line items by outcome."),
		LedgerWrites:          in.counter("salesnote.ledger.writes", "Ledger writes by record kind and status."),
		BreakerTransitions:    in.counter("salesnote.circuit_breaker.transitions", "Circuit breaker state changes by breaker and target state."),
		ActiveDrafts:          in.gauge("salesnote.active_drafts", "Drafts that are processing or awaiting confirmation."),
		HTTPRequestDuration:   in.seconds("salesnote.http.request.duration", "HTTP request latency by method, route and status.", nil),
	}
	if in.err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", in.err)
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. It panics if instrument creation fails,
// which does not happen with the global provider.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// count adds one to c with string attributes given as key, value pairs.
func count(ctx context.Context, c metric.Int64Counter, kv ...string) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	count(ctx, m.ProviderRequests, "provider", provider, "kind", kind, "status", status)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	count(ctx, m.ProviderErrors, "provider", provider, "kind", kind)
}

// RecordRun counts one finished processing run.
func (m *Metrics) RecordRun(ctx context.Context, source, status string) {
	count(ctx, m.ProcessingRuns, "source", source, "status", status)
}

// RecordMissingSection counts one reply section the parser did not find.
func (m *Metrics) RecordMissingSection(ctx context.Context, section string) {
	count(ctx, m.ParseSectionsMissing, "section", section)
}

// RecordResolution counts one name resolution.
func (m *Metrics) RecordResolution(ctx context.Context, entity, outcome string) {
	count(ctx, m.Resolutions, "entity", entity, "outcome", outcome)
}

// RecordValidation counts one validated line item.
func (m *Metrics) RecordValidation(ctx context.Context, outcome string) {
	count(ctx, m.LineItemValidations, "outcome", outcome)
}

// RecordLedgerWrite counts one ledger write.
func (m *Metrics) RecordLedgerWrite(ctx context.Context, kind, status string) {
	count(ctx, m.LedgerWrites, "kind", kind, "status", status)
}

// RecordBreakerTransition counts one circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	count(ctx, m.BreakerTransitions, "breaker", breaker, "state", to)
}
