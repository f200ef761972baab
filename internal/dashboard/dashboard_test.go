package dashboard

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewatch/surveil/internal/alert"
	"github.com/tradewatch/surveil/internal/model"
)

func testPeriod() Period {
	return Period{
		Start: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	}
}

func mkAlert(alertType, severity, status, trader string, tradeIDs ...string) *alert.Alert {
	return &alert.Alert{
		ID:              uuid.New(),
		Type:            alertType,
		Severity:        severity,
		Status:          status,
		MatchScore:      decimal.NewFromInt(70),
		TraderID:        trader,
		SecurityID:      "ACME",
		RelatedTradeIDs: tradeIDs,
	}
}

func TestGenerateEmptyPeriod(t *testing.T) {
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	s := Generate(nil, nil, testPeriod(), now)

	assert.Equal(t, 0, s.TotalAlerts)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0, s.OpenAlerts)
	assert.Equal(t, 0, s.ClosedAlerts)
	assert.True(t, s.TradeFlagRate.IsZero(), "no trades must yield a zero rate, not a division error")
	assert.Empty(t, s.TopTraders)
	assert.Empty(t, s.TopVenues)
	assert.NotNil(t, s.AlertsByType)
	assert.Equal(t, now, s.GeneratedAt)
}

func TestGenerateCountsAndFlagRate(t *testing.T) {
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	trades := []*model.Trade{
		model.NewTradeForTest("t1", "ACME", model.SideBuy, "50", "100", base),
		model.NewTradeForTest("t2", "ACME", model.SideSell, "50", "100", base),
		model.NewTradeForTest("t3", "ACME", model.SideBuy, "50", "100", base),
		model.NewTradeForTest("t4", "ACME", model.SideSell, "50", "100", base),
	}

	alerts := []*alert.Alert{
		mkAlert("WASH_TRADING", alert.SeverityHigh, alert.StatusNew, "t1",
			trades[0].ID.String(), trades[1].ID.String()),
		mkAlert("LAYERING", alert.SeverityMedium, alert.StatusInvestigating, "t1"),
		mkAlert("WASH_TRADING", alert.SeverityCritical, alert.StatusResolved, "t2"),
	}

	s := Generate(alerts, trades, testPeriod(), now)

	assert.Equal(t, 3, s.TotalAlerts)
	assert.Equal(t, 2, s.AlertsByType["WASH_TRADING"])
	assert.Equal(t, 1, s.AlertsByType["LAYERING"])
	assert.Equal(t, 1, s.AlertsBySeverity[alert.SeverityCritical])
	assert.Equal(t, 1, s.AlertsByStatus[alert.StatusNew])
	assert.Equal(t, 2, s.OpenAlerts)
	assert.Equal(t, 1, s.ClosedAlerts)

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.FlaggedTrades)
	assert.True(t, s.TradeFlagRate.Equal(decimal.NewFromFloat(0.5)), "got %s", s.TradeFlagRate)
}

func TestGenerateTopTradersRanking(t *testing.T) {
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)

	var alerts []*alert.Alert
	for i := 0; i < 3; i++ {
		alerts = append(alerts, mkAlert("LAYERING", alert.SeverityMedium, alert.StatusNew, "busy"))
	}
	alerts = append(alerts, mkAlert("SPOOFING", alert.SeverityMedium, alert.StatusNew, "quiet"))

	s := Generate(alerts, nil, testPeriod(), now)
	require.Len(t, s.TopTraders, 2)
	assert.Equal(t, RankEntry{Key: "busy", Count: 3}, s.TopTraders[0])
	assert.Equal(t, RankEntry{Key: "quiet", Count: 1}, s.TopTraders[1])
}

func TestGenerateRankingTiesKeepEncounterOrder(t *testing.T) {
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)

	alerts := []*alert.Alert{
		mkAlert("LAYERING", alert.SeverityMedium, alert.StatusNew, "zeta"),
		mkAlert("LAYERING", alert.SeverityMedium, alert.StatusNew, "alpha"),
	}

	s := Generate(alerts, nil, testPeriod(), now)
	require.Len(t, s.TopTraders, 2)
	assert.Equal(t, "zeta", s.TopTraders[0].Key, "ties keep first-encounter order")
	assert.Equal(t, "alpha", s.TopTraders[1].Key)
}

func TestGenerateTopNTruncation(t *testing.T) {
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	var trades []*model.Trade
	for i := 0; i < 15; i++ {
		tr := model.NewTradeForTest("t1", "ACME", model.SideBuy, "50", "100", base)
		tr.Venue = "V" + string(rune('A'+i))
		trades = append(trades, tr)
	}

	s := Generate(nil, trades, testPeriod(), now)
	assert.Len(t, s.TopVenues, 10)
}

func TestGenerateSkipsBlankVenues(t *testing.T) {
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tr := model.NewTradeForTest("t1", "ACME", model.SideBuy, "50", "100", base)
	tr.Venue = ""

	s := Generate(nil, []*model.Trade{tr}, testPeriod(), now)
	assert.Equal(t, 1, s.TotalTrades)
	assert.Empty(t, s.TopVenues)
}
