// Package telemetry records detector metrics through the OpenTelemetry
// metric API. Instruments come from the global meter provider, which is a
// no-op unless the host installs one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scope = "github.com/straja-ai/aidetect"

// Config controls telemetry setup.
type Config struct {
	Enabled bool
}

// Provider holds the detector's instruments. A nil *Provider records nothing.
type Provider struct {
	Enabled bool
	meter   metric.Meter

	analysesCounter   metric.Int64Counter
	inferenceDuration metric.Float64Histogram
	reloadsCounter    metric.Int64Counter
}

// NewProvider returns a Provider backed by the global meter provider, or by
// a no-op meter when disabled.
func NewProvider(cfg Config) *Provider {
	if !cfg.Enabled {
		return NewProviderWithMeter(noop.NewMeterProvider().Meter(""), false)
	}
	return NewProviderWithMeter(otel.GetMeterProvider().Meter(scope), true)
}

// NewProviderWithMeter builds instruments on m.
func NewProviderWithMeter(m metric.Meter, enabled bool) *Provider {
	p := &Provider{Enabled: enabled, meter: m}
	p.initInstruments()
	return p
}

func (p *Provider) initInstruments() {
	// Instrument errors leave a nil instrument; recording is best-effort.
	p.analysesCounter, _ = p.meter.Int64Counter("aidetect_analyses_total",
		metric.WithDescription("Analysis calls by entry point and outcome."))
	p.inferenceDuration, _ = p.meter.Float64Histogram("aidetect_inference_duration_ms",
		metric.WithDescription("Wall time of one analysis call."),
		metric.WithUnit("ms"))
	p.reloadsCounter, _ = p.meter.Int64Counter("aidetect_model_reloads_total",
		metric.WithDescription("Model reload attempts by outcome."))
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return noop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// RecordAnalysis counts one analysis and records its duration.
func (p *Provider) RecordAnalysis(ctx context.Context, entry, outcome string, durMs float64) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("aidetect.entry", entry),
		attribute.String("aidetect.outcome", outcome),
	)
	if p.analysesCounter != nil {
		p.analysesCounter.Add(ctx, 1, attrs)
	}
	if p.inferenceDuration != nil {
		p.inferenceDuration.Record(ctx, durMs, attrs)
	}
}

// RecordReload counts one reload attempt. Only the outcome and the typed
// layout attributes are recorded; model references never become attributes.
func (p *Provider) RecordReload(ctx context.Context, outcome string, layout ...attribute.KeyValue) {
	if p == nil || p.reloadsCounter == nil {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("aidetect.outcome", outcome)}, layout...)
	p.reloadsCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// LayoutAttributes describes a freshly resolved input layout.
func LayoutAttributes(inputs int, resolved bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("aidetect.inputs", inputs),
		attribute.Bool("aidetect.resolved", resolved),
	}
}
