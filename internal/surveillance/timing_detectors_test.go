package surveillance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewatch/surveil/internal/model"
)

func TestFrontRunningDetectsPriorTrades(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cfg := DefaultDetectionConfig().FrontRunning // min client value 50000
	detector := NewFrontRunningDetector(cfg, testLogger())

	// Client buys 2000 @ 50 = 100,000 at t=60s.
	client := model.NewOrderForTest("client-1", "ACME", model.SideBuy, "50.00", "2000", base.Add(time.Minute))

	// Another trader bought the same security 5 seconds earlier, three times.
	var tape []*model.Trade
	for i := 0; i < 3; i++ {
		tape = append(tape, model.NewTradeForTest("runner-1", "ACME", model.SideBuy,
			"50.00", "100", base.Add(55*time.Second).Add(time.Duration(i)*time.Second)))
	}

	detections, skips := detector.Detect([]*model.Order{client}, tape, base.Add(time.Hour))
	require.Empty(t, skips)
	require.Len(t, detections, 1)

	d, ok := detections[0].(*FrontRunningDetection)
	require.True(t, ok)
	assert.Equal(t, "runner-1", d.Base().TraderID)
	assert.Equal(t, client.ID.String(), d.ClientOrderID)
	assert.Equal(t, 5*time.Second, d.TimeAdvantage)
	assert.Equal(t, "strong", d.EvidenceStrength)
	// 60 + 20 (strong) + 10 (>= 3 trades)
	assert.True(t, d.Base().Confidence.Equal(decimal.NewFromInt(90)), "got %s", d.Base().Confidence)
}

func TestFrontRunningModerateAdvantage(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	detector := NewFrontRunningDetector(DefaultDetectionConfig().FrontRunning, testLogger())

	client := model.NewOrderForTest("client-1", "ACME", model.SideBuy, "50.00", "2000", base.Add(time.Minute))
	tape := []*model.Trade{
		model.NewTradeForTest("runner-1", "ACME", model.SideBuy, "50.00", "100", base.Add(20*time.Second)),
	}

	detections, _ := detector.Detect([]*model.Order{client}, tape, base.Add(time.Hour))
	require.Len(t, detections, 1)

	d := detections[0].(*FrontRunningDetection)
	assert.Equal(t, 40*time.Second, d.TimeAdvantage)
	assert.Equal(t, "moderate", d.EvidenceStrength)
}

func TestFrontRunningIgnoresSmallOrders(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	detector := NewFrontRunningDetector(DefaultDetectionConfig().FrontRunning, testLogger())

	small := model.NewOrderForTest("client-1", "ACME", model.SideBuy, "50.00", "10", base.Add(time.Minute))
	tape := []*model.Trade{
		model.NewTradeForTest("runner-1", "ACME", model.SideBuy, "50.00", "100", base.Add(55*time.Second)),
	}

	detections, _ := detector.Detect([]*model.Order{small}, tape, base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestFrontRunningIgnoresOppositeSideAndLateTrades(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	detector := NewFrontRunningDetector(DefaultDetectionConfig().FrontRunning, testLogger())

	client := model.NewOrderForTest("client-1", "ACME", model.SideBuy, "50.00", "2000", base.Add(2*time.Minute))
	tape := []*model.Trade{
		// Opposite side.
		model.NewTradeForTest("runner-1", "ACME", model.SideSell, "50.00", "100", base.Add(115*time.Second)),
		// After the order.
		model.NewTradeForTest("runner-2", "ACME", model.SideBuy, "50.00", "100", base.Add(3*time.Minute)),
		// Before the 60-second lookback.
		model.NewTradeForTest("runner-3", "ACME", model.SideBuy, "50.00", "100", base),
		// The client's own trade.
		model.NewTradeForTest("client-1", "ACME", model.SideBuy, "50.00", "100", base.Add(115*time.Second)),
	}

	detections, _ := detector.Detect([]*model.Order{client}, tape, base.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestInsiderTimingFlagsPreAnnouncementBuying(t *testing.T) {
	announce := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	cfg := DefaultDetectionConfig().InsiderTrading // 30d window, profit >= 10000, timing >= 60
	detector := NewInsiderTradingDetector(cfg, testLogger())

	// One trader buys 1000 @ 50 a day before a +30% announcement.
	tape := []*model.Trade{
		model.NewTradeForTest("ins-1", "ACME", model.SideBuy, "50.00", "1000", announce.AddDate(0, 0, -1)),
	}
	events := []model.MaterialEvent{{
		SecurityID:  "ACME",
		EventType:   "merger",
		AnnouncedAt: announce,
		PriceMove:   decimal.NewFromFloat(0.30),
	}}

	detections, skips := detector.Detect(tape, events, announce.Add(time.Hour))
	require.Empty(t, skips)
	require.Len(t, detections, 1)

	d, ok := detections[0].(*InsiderTradingPattern)
	require.True(t, ok)
	assert.Equal(t, "ins-1", d.Base().TraderID)
	assert.Equal(t, "merger", d.EventType)
	// 1000 * 50 * 0.30
	assert.True(t, d.EstimatedProfit.Equal(decimal.NewFromInt(15000)), "got %s", d.EstimatedProfit)
	// One day into a 30-day window: ~96.7.
	assert.InDelta(t, 100*(1-1.0/30.0), d.TimingScore.InexactFloat64(), 0.01)
	// No history on the security.
	assert.True(t, d.BehaviorScore.Equal(hundred))
}

func TestInsiderTimingSmallProfitDoesNotFire(t *testing.T) {
	announce := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	detector := NewInsiderTradingDetector(DefaultDetectionConfig().InsiderTrading, testLogger())

	tape := []*model.Trade{
		model.NewTradeForTest("ins-1", "ACME", model.SideBuy, "50.00", "10", announce.AddDate(0, 0, -1)),
	}
	events := []model.MaterialEvent{{
		SecurityID: "ACME", EventType: "earnings",
		AnnouncedAt: announce, PriceMove: decimal.NewFromFloat(0.30),
	}}

	detections, _ := detector.Detect(tape, events, announce.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestInsiderTimingEarlyTradesScoreLow(t *testing.T) {
	announce := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	detector := NewInsiderTradingDetector(DefaultDetectionConfig().InsiderTrading, testLogger())

	// A trade 25 days out scores ~16.7 on timing, far below the 60 floor.
	tape := []*model.Trade{
		model.NewTradeForTest("ins-1", "ACME", model.SideBuy, "50.00", "1000", announce.AddDate(0, 0, -25)),
	}
	events := []model.MaterialEvent{{
		SecurityID: "ACME", EventType: "earnings",
		AnnouncedAt: announce, PriceMove: decimal.NewFromFloat(0.30),
	}}

	detections, _ := detector.Detect(tape, events, announce.Add(time.Hour))
	assert.Empty(t, detections)
}

func TestInsiderTimingKnownTraderScoresLowerBehavior(t *testing.T) {
	announce := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	detector := NewInsiderTradingDetector(DefaultDetectionConfig().InsiderTrading, testLogger())

	tape := []*model.Trade{
		// History well before the window.
		model.NewTradeForTest("ins-1", "ACME", model.SideBuy, "45.00", "100", announce.AddDate(0, 0, -90)),
		model.NewTradeForTest("ins-1", "ACME", model.SideBuy, "50.00", "1000", announce.AddDate(0, 0, -1)),
	}
	events := []model.MaterialEvent{{
		SecurityID: "ACME", EventType: "merger",
		AnnouncedAt: announce, PriceMove: decimal.NewFromFloat(0.30),
	}}

	detections, _ := detector.Detect(tape, events, announce.Add(time.Hour))
	require.Len(t, detections, 1)

	d := detections[0].(*InsiderTradingPattern)
	assert.True(t, d.BehaviorScore.Equal(decimal.NewFromInt(30)), "got %s", d.BehaviorScore)
}

func TestEstimatedProfitSides(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	buy := model.NewTradeForTest("x", "ACME", model.SideBuy, "100", "10", at)
	sell := model.NewTradeForTest("x", "ACME", model.SideSell, "100", "10", at)

	up := decimal.NewFromFloat(0.1)
	assert.True(t, estimatedProfit([]*model.Trade{buy}, up).Equal(decimal.NewFromInt(100)))
	// Selling ahead of a positive move loses the move.
	assert.True(t, estimatedProfit([]*model.Trade{sell}, up).Equal(decimal.NewFromInt(-100)))
	// Selling ahead of a drop profits.
	down := decimal.NewFromFloat(-0.1)
	assert.True(t, estimatedProfit([]*model.Trade{sell}, down).Equal(decimal.NewFromInt(100)))
}
