package surveillance

import (
	"sort"
	"time"

	"github.com/tradewatch/surveil/internal/model"
)

// TraderSecurityKey identifies one trader's activity on one security.
type TraderSecurityKey struct {
	TraderID   string
	SecurityID string
}

// GroupOrdersByTraderSecurity partitions orders by (trader, security),
// preserving the relative order of each sub-sequence.
func GroupOrdersByTraderSecurity(orders []*model.Order) map[TraderSecurityKey][]*model.Order {
	groups := make(map[TraderSecurityKey][]*model.Order, len(orders))
	for _, o := range orders {
		key := TraderSecurityKey{TraderID: o.TraderID, SecurityID: o.SecurityID}
		groups[key] = append(groups[key], o)
	}
	return groups
}

// GroupTradesBySecurity partitions trades by security, preserving input order.
func GroupTradesBySecurity(trades []*model.Trade) map[string][]*model.Trade {
	groups := make(map[string][]*model.Trade, len(trades))
	for _, t := range trades {
		groups[t.SecurityID] = append(groups[t.SecurityID], t)
	}
	return groups
}

// GroupTradesByTrader partitions trades by trader, preserving input order.
func GroupTradesByTrader(trades []*model.Trade) map[string][]*model.Trade {
	groups := make(map[string][]*model.Trade, len(trades))
	for _, t := range trades {
		groups[t.TraderID] = append(groups[t.TraderID], t)
	}
	return groups
}

// GroupQuotesByTraderSecurity partitions quotes by (trader, security),
// preserving input order.
func GroupQuotesByTraderSecurity(quotes []*model.Quote) map[TraderSecurityKey][]*model.Quote {
	groups := make(map[TraderSecurityKey][]*model.Quote, len(quotes))
	for _, q := range quotes {
		key := TraderSecurityKey{TraderID: q.TraderID, SecurityID: q.SecurityID}
		groups[key] = append(groups[key], q)
	}
	return groups
}

// QuoteWindow is one fixed time bucket of quote activity.
type QuoteWindow struct {
	Start  time.Time
	End    time.Time
	Quotes []*model.Quote
}

// WindowQuotes partitions quotes into contiguous non-overlapping windows of
// windowSeconds, aligned to floor(ts/window)*window. Quotes are sorted by
// timestamp internally; the input slice is not modified.
func WindowQuotes(quotes []*model.Quote, windowSeconds int) []QuoteWindow {
	if len(quotes) == 0 || windowSeconds <= 0 {
		return nil
	}

	sorted := make([]*model.Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QuotedAt.Before(sorted[j].QuotedAt)
	})

	window := int64(windowSeconds)
	var out []QuoteWindow
	var cur *QuoteWindow
	for _, q := range sorted {
		bucket := q.QuotedAt.Unix() / window * window
		start := time.Unix(bucket, 0).UTC()
		if cur == nil || !cur.Start.Equal(start) {
			out = append(out, QuoteWindow{
				Start: start,
				End:   start.Add(time.Duration(windowSeconds) * time.Second),
			})
			cur = &out[len(out)-1]
		}
		cur.Quotes = append(cur.Quotes, q)
	}
	return out
}

// TradeWindow is one fixed time bucket of trade activity.
type TradeWindow struct {
	Start  time.Time
	End    time.Time
	Trades []*model.Trade
}

// WindowTrades partitions trades into contiguous non-overlapping windows of
// windowSeconds, aligned like WindowQuotes.
func WindowTrades(trades []*model.Trade, windowSeconds int) []TradeWindow {
	if len(trades) == 0 || windowSeconds <= 0 {
		return nil
	}

	sorted := make([]*model.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
	})

	window := int64(windowSeconds)
	var out []TradeWindow
	var cur *TradeWindow
	for _, t := range sorted {
		bucket := t.ExecutedAt.Unix() / window * window
		start := time.Unix(bucket, 0).UTC()
		if cur == nil || !cur.Start.Equal(start) {
			out = append(out, TradeWindow{
				Start: start,
				End:   start.Add(time.Duration(windowSeconds) * time.Second),
			})
			cur = &out[len(out)-1]
		}
		cur.Trades = append(cur.Trades, t)
	}
	return out
}

// sortedKeys returns trader/security group keys in deterministic order so
// detection output is reproducible run to run.
func sortedKeys[V any](groups map[TraderSecurityKey]V) []TraderSecurityKey {
	keys := make([]TraderSecurityKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TraderID != keys[j].TraderID {
			return keys[i].TraderID < keys[j].TraderID
		}
		return keys[i].SecurityID < keys[j].SecurityID
	})
	return keys
}

// sortedStringKeys returns map keys in deterministic order.
func sortedStringKeys[V any](groups map[string]V) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
