package surveillance

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineBatch(base time.Time) Batch {
	return Batch{
		Orders: layeringFixture(base),
		Trades: washPair(base),
	}
}

func TestEngineMergesAnalyzerResults(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	detectedAt := base.Add(10 * time.Minute)

	engine, err := NewEngine(
		DefaultDetectionConfig(),
		pairGraph{"acct-wt-1", "acct-wt-2"},
		emptyBaselines{},
		testLogger(),
		WithClock(func() time.Time { return detectedAt }),
	)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), engineBatch(base))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, detectedAt, result.StartedAt)
	require.Len(t, result.Detections, 2)
	assert.Empty(t, result.Skipped)

	// Merge order is deterministic: patterns sort lexically.
	assert.Equal(t, PatternLayering, result.Detections[0].Base().Pattern)
	assert.Equal(t, PatternWashTrading, result.Detections[1].Base().Pattern)
	for _, d := range result.Detections {
		assert.Equal(t, detectedAt, d.Base().DetectedAt)
	}
}

func TestEngineRunsAreDeterministic(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return base.Add(10 * time.Minute) }

	type row struct {
		pattern, trader, security, severity string
		confidence                          string
	}
	run := func() []row {
		engine, err := NewEngine(
			DefaultDetectionConfig(),
			pairGraph{"acct-wt-1", "acct-wt-2"},
			emptyBaselines{},
			testLogger(),
			WithClock(clock),
		)
		require.NoError(t, err)
		result, err := engine.Run(context.Background(), engineBatch(base))
		require.NoError(t, err)

		rows := make([]row, 0, len(result.Detections))
		for _, d := range result.Detections {
			b := d.Base()
			rows = append(rows, row{b.Pattern, b.TraderID, b.SecurityID, b.Severity, b.Confidence.String()})
		}
		return rows
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestEngineConfidenceAlwaysInRange(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, err := NewEngine(
		DefaultDetectionConfig(),
		pairGraph{"acct-wt-1", "acct-wt-2"},
		fixedBaselines{mean: decimal.NewFromInt(100), stddev: decimal.NewFromInt(10)},
		testLogger(),
	)
	require.NoError(t, err)

	batch := engineBatch(base)
	batch.Trades = append(batch.Trades, pumpDumpTape(base)...)
	batch.Quotes = quoteBurst(base, 25, 0)

	result, err := engine.Run(context.Background(), batch)
	require.NoError(t, err)
	require.NotEmpty(t, result.Detections)

	for _, d := range result.Detections {
		c := d.Base().Confidence
		assert.False(t, c.IsNegative(), "%s confidence below 0", d.Base().Pattern)
		assert.True(t, c.LessThanOrEqual(hundred), "%s confidence above 100", d.Base().Pattern)
		assert.NotEmpty(t, d.Base().Severity)
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultDetectionConfig()
	cfg.WashTrading.PriceTolerance = decimal.NewFromInt(2)

	_, err := NewEngine(cfg, nil, nil, testLogger())
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEngineNilCollaborators(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, err := NewEngine(DefaultDetectionConfig(), nil, nil, testLogger())
	require.NoError(t, err)

	// Wash trading and pump-and-dump need their collaborators; everything
	// else still runs.
	result, err := engine.Run(context.Background(), engineBatch(base))
	require.NoError(t, err)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, PatternLayering, result.Detections[0].Base().Pattern)
}

func TestEngineEmptyBatch(t *testing.T) {
	engine, err := NewEngine(DefaultDetectionConfig(), nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), Batch{})
	require.NoError(t, err)
	assert.Empty(t, result.Detections)
	assert.Empty(t, result.Skipped)
}

func TestEngineWithMetrics(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	metrics := NewMetrics(prometheus.NewRegistry())

	engine, err := NewEngine(
		DefaultDetectionConfig(),
		pairGraph{"acct-wt-1", "acct-wt-2"},
		nil,
		testLogger(),
		WithMetrics(metrics),
	)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), engineBatch(base))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Detections)
}
