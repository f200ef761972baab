package surveillance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewatch/surveil/internal/model"
)

// fixedBaselines serves one baseline for every security.
type fixedBaselines struct {
	mean, stddev decimal.Decimal
}

func (b fixedBaselines) VolumeBaseline(string) (decimal.Decimal, decimal.Decimal, bool) {
	return b.mean, b.stddev, true
}

// emptyBaselines has no data for any security.
type emptyBaselines struct{}

func (emptyBaselines) VolumeBaseline(string) (decimal.Decimal, decimal.Decimal, bool) {
	return decimal.Zero, decimal.Zero, false
}

// pumpDumpTape builds a rise to a peak followed by a decline. Quantities sum
// well above the fixed baseline so the volume z-score gate passes.
func pumpDumpTape(base time.Time) []*model.Trade {
	prices := []string{"100.00", "105.00", "112.00", "118.00", "110.00", "104.00"}
	var trades []*model.Trade
	for i, p := range prices {
		trades = append(trades, model.NewTradeForTest("pd-1", "ACME", model.SideBuy,
			p, "400", base.Add(time.Duration(i)*time.Minute)))
	}
	return trades
}

func TestPumpDumpFiresWhenPeakPrecedesDecline(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	baselines := fixedBaselines{mean: decimal.NewFromInt(1000), stddev: decimal.NewFromInt(100)}
	detector := NewPumpDumpDetector(DefaultDetectionConfig().PumpDump, baselines, testLogger())

	detections, skips := detector.Detect(pumpDumpTape(base), base.Add(time.Hour))
	require.Empty(t, skips)
	require.Len(t, detections, 1)

	d, ok := detections[0].(*PumpDumpDetection)
	require.True(t, ok)
	// volume 2400, z = (2400-1000)/100 = 14
	assert.True(t, d.VolumeZScore.Equal(decimal.NewFromInt(14)), "got %s", d.VolumeZScore)
	// rise 100 -> 118 = 18%, decline 118 -> 104 ~ 11.9%
	assert.InDelta(t, 0.18, d.PriceRise.InexactFloat64(), 1e-9)
	assert.InDelta(t, (118.0-104.0)/118.0, d.PriceDecline.InexactFloat64(), 1e-9)
	assert.Equal(t, base.Add(3*time.Minute), d.PeakAt)
}

func TestPumpDumpRequiresDeclineAfterPeak(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	baselines := fixedBaselines{mean: decimal.NewFromInt(1000), stddev: decimal.NewFromInt(100)}
	detector := NewPumpDumpDetector(DefaultDetectionConfig().PumpDump, baselines, testLogger())

	// Monotonic rise: peak is the last trade, so there is no dump phase.
	prices := []string{"100.00", "105.00", "112.00", "118.00"}
	var trades []*model.Trade
	for i, p := range prices {
		trades = append(trades, model.NewTradeForTest("pd-1", "ACME", model.SideBuy,
			p, "600", base.Add(time.Duration(i)*time.Minute)))
	}

	detections, _ := detector.Detect(trades, base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestPumpDumpRequiresVolumeSpike(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	// Baseline so high the batch volume is unremarkable.
	baselines := fixedBaselines{mean: decimal.NewFromInt(100000), stddev: decimal.NewFromInt(50000)}
	detector := NewPumpDumpDetector(DefaultDetectionConfig().PumpDump, baselines, testLogger())

	detections, _ := detector.Detect(pumpDumpTape(base), base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestPumpDumpSkipsSecuritiesWithoutBaseline(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	detector := NewPumpDumpDetector(DefaultDetectionConfig().PumpDump, emptyBaselines{}, testLogger())

	detections, skips := detector.Detect(pumpDumpTape(base), base.Add(time.Hour))
	assert.Empty(t, detections)
	assert.Empty(t, skips, "missing baseline is insufficient data, not an error")
}

func TestPumpDumpNilProviderNeverFires(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	detector := NewPumpDumpDetector(DefaultDetectionConfig().PumpDump, nil, testLogger())

	detections, _ := detector.Detect(pumpDumpTape(base), base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestCorneringFlagsDominantTrader(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	cfg := CorneringConfig{MinTrades: 3, MinVolumeShare: decimal.NewFromFloat(0.6)}
	detector := NewCorneringDetector(cfg, testLogger())

	var trades []*model.Trade
	for i := 0; i < 4; i++ {
		trades = append(trades, model.NewTradeForTest("big", "ACME", model.SideBuy,
			"20.00", "1000", base.Add(time.Duration(i)*time.Minute)))
	}
	trades = append(trades, model.NewTradeForTest("small", "ACME", model.SideSell,
		"20.00", "500", base.Add(10*time.Minute)))

	detections, skips := detector.Detect(trades, base.Add(time.Hour))
	require.Empty(t, skips)
	require.Len(t, detections, 1)

	d, ok := detections[0].(*CorneringDetection)
	require.True(t, ok)
	assert.Equal(t, "big", d.Base().TraderID)
	// 4000 of 4500 total
	assert.InDelta(t, 4000.0/4500.0, d.VolumeShare.InexactFloat64(), 1e-9)
	assert.Equal(t, 4, d.TradeCount)
}

func TestCorneringBelowShareDoesNotFire(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	cfg := CorneringConfig{MinTrades: 3, MinVolumeShare: decimal.NewFromFloat(0.6)}
	detector := NewCorneringDetector(cfg, testLogger())

	var trades []*model.Trade
	for i := 0; i < 3; i++ {
		trades = append(trades, model.NewTradeForTest("a", "ACME", model.SideBuy,
			"20.00", "1000", base.Add(time.Duration(i)*time.Minute)))
		trades = append(trades, model.NewTradeForTest("b", "ACME", model.SideSell,
			"20.00", "1000", base.Add(time.Duration(i)*time.Minute)))
	}

	detections, _ := detector.Detect(trades, base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestRampingDetectsUpwardPressure(t *testing.T) {
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	cfg := RampingConfig{
		MinTrades:            5,
		MinPriceRise:         decimal.NewFromFloat(0.05),
		MinDirectionalRatio:  decimal.NewFromFloat(0.8),
		MaxTimeWindowSeconds: 1800,
	}
	detector := NewRampingDetector(cfg, testLogger())

	prices := []string{"100.00", "102.00", "104.00", "106.00", "108.00"}
	var trades []*model.Trade
	for i, p := range prices {
		trades = append(trades, model.NewTradeForTest("ramp-1", "ACME", model.SideBuy,
			p, "200", base.Add(time.Duration(i)*2*time.Minute)))
	}

	detections, skips := detector.Detect(trades, base.Add(time.Hour))
	require.Empty(t, skips)
	require.Len(t, detections, 1)

	d, ok := detections[0].(*RampingDetection)
	require.True(t, ok)
	assert.InDelta(t, 0.08, d.PriceRise.InexactFloat64(), 1e-9)
	assert.True(t, d.DirectionalRatio.Equal(decimal.NewFromInt(1)), "all trades are buys")
}

func TestRampingDetectsDownwardPressure(t *testing.T) {
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	cfg := RampingConfig{
		MinTrades:            5,
		MinPriceRise:         decimal.NewFromFloat(0.05),
		MinDirectionalRatio:  decimal.NewFromFloat(0.8),
		MaxTimeWindowSeconds: 1800,
	}
	detector := NewRampingDetector(cfg, testLogger())

	prices := []string{"100.00", "98.00", "96.00", "94.00", "92.00"}
	var trades []*model.Trade
	for i, p := range prices {
		trades = append(trades, model.NewTradeForTest("ramp-2", "ACME", model.SideSell,
			p, "200", base.Add(time.Duration(i)*2*time.Minute)))
	}

	detections, _ := detector.Detect(trades, base.Add(time.Hour))
	require.Len(t, detections, 1)

	d := detections[0].(*RampingDetection)
	assert.True(t, d.PriceRise.IsNegative())
	assert.True(t, d.DirectionalRatio.Equal(decimal.NewFromInt(1)), "all trades are sells")
}

func TestRampingMixedFlowDoesNotFire(t *testing.T) {
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	cfg := RampingConfig{
		MinTrades:            5,
		MinPriceRise:         decimal.NewFromFloat(0.05),
		MinDirectionalRatio:  decimal.NewFromFloat(0.8),
		MaxTimeWindowSeconds: 1800,
	}
	detector := NewRampingDetector(cfg, testLogger())

	// Price rises but flow is 60/40: below the directional ratio.
	prices := []string{"100.00", "102.00", "104.00", "106.00", "108.00"}
	var trades []*model.Trade
	for i, p := range prices {
		side := model.SideBuy
		if i%2 == 1 {
			side = model.SideSell
		}
		trades = append(trades, model.NewTradeForTest("ramp-3", "ACME", side,
			p, "200", base.Add(time.Duration(i)*2*time.Minute)))
	}

	detections, _ := detector.Detect(trades, base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestDominantTraderPicksLargestVolume(t *testing.T) {
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	trades := []*model.Trade{
		model.NewTradeForTest("a", "ACME", model.SideBuy, "10", "100", base),
		model.NewTradeForTest("b", "ACME", model.SideBuy, "10", "300", base),
		model.NewTradeForTest("a", "ACME", model.SideBuy, "10", "100", base),
	}
	trader, account := dominantTrader(trades)
	assert.Equal(t, "b", trader)
	assert.Equal(t, "acct-b", account)
}
