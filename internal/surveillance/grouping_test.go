package surveillance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewatch/surveil/internal/model"
)

func TestGroupOrdersByTraderSecurityPreservesOrder(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	orders := []*model.Order{
		model.NewOrderForTest("t1", "AAPL", model.SideBuy, "100", "10", base),
		model.NewOrderForTest("t2", "AAPL", model.SideBuy, "100", "10", base.Add(time.Second)),
		model.NewOrderForTest("t1", "AAPL", model.SideSell, "101", "10", base.Add(2*time.Second)),
		model.NewOrderForTest("t1", "MSFT", model.SideBuy, "300", "5", base.Add(3*time.Second)),
	}

	groups := GroupOrdersByTraderSecurity(orders)
	require.Len(t, groups, 3)

	g := groups[TraderSecurityKey{TraderID: "t1", SecurityID: "AAPL"}]
	require.Len(t, g, 2)
	assert.Equal(t, orders[0].ID, g[0].ID)
	assert.Equal(t, orders[2].ID, g[1].ID)
}

func TestGroupingEmptyInput(t *testing.T) {
	assert.Empty(t, GroupOrdersByTraderSecurity(nil))
	assert.Empty(t, GroupTradesBySecurity(nil))
	assert.Empty(t, GroupTradesByTrader(nil))
	assert.Empty(t, GroupQuotesByTraderSecurity(nil))
	assert.Empty(t, WindowQuotes(nil, 60))
	assert.Empty(t, WindowTrades(nil, 60))
}

func TestWindowQuotesAlignment(t *testing.T) {
	// 10:00:30 and 10:00:45 share the 10:00:00 window; 10:01:10 starts the
	// next one.
	mk := func(sec int) *model.Quote {
		return &model.Quote{
			TraderID:   "t1",
			SecurityID: "AAPL",
			Status:     model.QuoteStatusActive,
			QuotedAt:   time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second),
		}
	}
	quotes := []*model.Quote{mk(70), mk(30), mk(45)} // unsorted on purpose

	windows := WindowQuotes(quotes, 60)
	require.Len(t, windows, 2)

	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), windows[0].Start)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 1, 0, 0, time.UTC), windows[0].End)
	assert.Len(t, windows[0].Quotes, 2)
	assert.Len(t, windows[1].Quotes, 1)
}

func TestWindowTradesContiguousNonOverlapping(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	trades := []*model.Trade{
		model.NewTradeForTest("t1", "AAPL", model.SideBuy, "100", "10", base.Add(5*time.Second)),
		model.NewTradeForTest("t1", "AAPL", model.SideBuy, "100", "10", base.Add(65*time.Second)),
		model.NewTradeForTest("t1", "AAPL", model.SideBuy, "100", "10", base.Add(125*time.Second)),
	}

	windows := WindowTrades(trades, 60)
	require.Len(t, windows, 3)
	for i := 1; i < len(windows); i++ {
		assert.False(t, windows[i].Start.Before(windows[i-1].End))
	}
}
