package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestProviderRecordsAnalysisAndReload(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	p := NewProviderWithMeter(mp.Meter("test"), true)

	ctx := context.Background()
	p.RecordAnalysis(ctx, "tokens", "ok", 3.5)
	p.RecordAnalysis(ctx, "tokens", "ok", 1.5)
	p.RecordReload(ctx, "load")
	p.RecordReload(ctx, "ok", LayoutAttributes(2, true)...)

	data := collect(t, reader)

	analyses, ok := data["aidetect_analyses_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, analyses.DataPoints, 1)
	assert.Equal(t, int64(2), analyses.DataPoints[0].Value)

	hist, ok := data["aidetect_inference_duration_ms"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 5.0, hist.DataPoints[0].Sum, 1e-9)

	reloads, ok := data["aidetect_model_reloads_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, reloads.DataPoints, 2)
	byOutcome := map[string]metricdata.DataPoint[int64]{}
	for _, dp := range reloads.DataPoints {
		outcome, _ := dp.Attributes.Value("aidetect.outcome")
		byOutcome[outcome.AsString()] = dp
	}

	failed := byOutcome["load"]
	assert.Equal(t, 1, failed.Attributes.Len())

	loaded := byOutcome["ok"]
	inputs, found := loaded.Attributes.Value("aidetect.inputs")
	require.True(t, found)
	assert.Equal(t, int64(2), inputs.AsInt64())
	resolved, found := loaded.Attributes.Value("aidetect.resolved")
	require.True(t, found)
	assert.True(t, resolved.AsBool())
}

func TestNilProviderIsSafe(t *testing.T) {
	var p *Provider
	assert.NotPanics(t, func() {
		p.RecordAnalysis(context.Background(), "text", "ok", 1)
		p.RecordReload(context.Background(), "ok", LayoutAttributes(1, false)...)
	})
	assert.NotNil(t, p.Meter())
}

func TestDisabledProvider(t *testing.T) {
	p := NewProvider(Config{})
	assert.False(t, p.Enabled)
	assert.NotPanics(t, func() { p.RecordAnalysis(context.Background(), "text", "ok", 1) })
}
