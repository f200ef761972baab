// Package dashboard rolls alert and trade activity up into summary
// statistics for a reporting period. Everything here is a pure computation
// over in-memory slices.
package dashboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewatch/surveil/internal/alert"
	"github.com/tradewatch/surveil/internal/model"
)

// topN is the fixed size of the actor and venue rankings.
const topN = 10

// Period bounds one reporting window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RankEntry is one row of a count ranking. Ties keep encounter order.
type RankEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary is the rolled-up view of a period.
type Summary struct {
	Period Period `json:"period"`

	TotalAlerts      int            `json:"total_alerts"`
	AlertsByType     map[string]int `json:"alerts_by_type"`
	AlertsBySeverity map[string]int `json:"alerts_by_severity"`
	AlertsByStatus   map[string]int `json:"alerts_by_status"`
	OpenAlerts       int            `json:"open_alerts"`
	ClosedAlerts     int            `json:"closed_alerts"`

	TotalTrades   int             `json:"total_trades"`
	FlaggedTrades int             `json:"flagged_trades"`
	TradeFlagRate decimal.Decimal `json:"trade_flag_rate"` // 0 when no trades, never NaN

	TopTraders []RankEntry `json:"top_traders"`
	TopVenues  []RankEntry `json:"top_venues"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Generate computes the summary for a period. Zero alerts or zero trades
// produce zero counts and zero rates; no division ever happens on an empty
// set.
func Generate(alerts []*alert.Alert, trades []*model.Trade, period Period, now time.Time) *Summary {
	s := &Summary{
		Period:           period,
		AlertsByType:     make(map[string]int),
		AlertsBySeverity: make(map[string]int),
		AlertsByStatus:   make(map[string]int),
		TradeFlagRate:    decimal.Zero,
		GeneratedAt:      now,
	}

	flagged := make(map[string]struct{})
	traderCounts := newRanker()
	for _, a := range alerts {
		s.TotalAlerts++
		s.AlertsByType[a.Type]++
		s.AlertsBySeverity[a.Severity]++
		s.AlertsByStatus[a.Status]++
		if a.IsTerminal() {
			s.ClosedAlerts++
		} else {
			s.OpenAlerts++
		}
		traderCounts.add(a.TraderID)
		for _, id := range a.RelatedTradeIDs {
			flagged[id] = struct{}{}
		}
	}

	venueCounts := newRanker()
	for _, t := range trades {
		s.TotalTrades++
		venueCounts.add(t.Venue)
		if _, ok := flagged[t.ID.String()]; ok {
			s.FlaggedTrades++
		}
	}
	if s.TotalTrades > 0 {
		s.TradeFlagRate = decimal.NewFromInt(int64(s.FlaggedTrades)).
			Div(decimal.NewFromInt(int64(s.TotalTrades)))
	}

	s.TopTraders = traderCounts.top(topN)
	s.TopVenues = venueCounts.top(topN)
	return s
}

// ranker counts keys while remembering first-encounter order so ranking
// ties are stable.
type ranker struct {
	counts map[string]int
	order  []string
}

func newRanker() *ranker {
	return &ranker{counts: make(map[string]int)}
}

func (r *ranker) add(key string) {
	if key == "" {
		return
	}
	if _, seen := r.counts[key]; !seen {
		r.order = append(r.order, key)
	}
	r.counts[key]++
}

func (r *ranker) top(n int) []RankEntry {
	entries := make([]RankEntry, 0, len(r.order))
	for _, key := range r.order {
		entries = append(entries, RankEntry{Key: key, Count: r.counts[key]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
