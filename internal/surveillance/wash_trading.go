package surveillance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// AccountGraph answers whether two accounts share common beneficial
// ownership. The core treats it as an opaque boolean oracle.
type AccountGraph interface {
	Related(accountA, accountB string) bool
}

// WashTradingDetector matches opposite-side trade pairs on the same security
// within tight time, price and quantity tolerances, then confirms common
// ownership through the account graph.
//
// The pairwise comparison is O(n^2) per security group by design:
// surveillance batches are bounded per run, and correctness requires the
// full tolerance check regardless of any indexing shortcut.
type WashTradingDetector struct {
	config   WashTradingConfig
	logger   *zap.SugaredLogger
	accounts AccountGraph
}

// NewWashTradingDetector creates a new wash trading detector.
func NewWashTradingDetector(config WashTradingConfig, accounts AccountGraph, logger *zap.SugaredLogger) *WashTradingDetector {
	return &WashTradingDetector{config: config, logger: logger, accounts: accounts}
}

// Detect analyzes trades grouped by security. Pair evaluation is symmetric:
// swapping the two trades in the input cannot change whether a pair fires.
func (wtd *WashTradingDetector) Detect(trades []*model.Trade, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupTradesBySecurity(trades)

	var detections []Detection
	var skips []SkipReport
	for _, securityID := range sortedStringKeys(groups) {
		securityID := securityID
		group := groups[securityID]
		guardGroup(PatternWashTrading, securityID, wtd.logger, &skips, func() {
			detections = append(detections, wtd.evaluateGroup(securityID, group, at)...)
		})
	}
	return detections, skips
}

func (wtd *WashTradingDetector) evaluateGroup(securityID string, trades []*model.Trade, at time.Time) []Detection {
	var out []Detection
	for i := 0; i < len(trades); i++ {
		for j := i + 1; j < len(trades); j++ {
			if d := wtd.evaluatePair(trades[i], trades[j], at); d != nil {
				out = append(out, d)
			}
		}
	}
	return out
}

// evaluatePair checks one unordered pair. All conditions are conjunctive.
func (wtd *WashTradingDetector) evaluatePair(a, b *model.Trade, at time.Time) *WashTradeIdentification {
	if a.Side == b.Side {
		return nil
	}
	if a.AccountID == b.AccountID {
		// Same account trading against itself is handled upstream by the
		// matching venue; the wash pattern of interest is related accounts.
		return nil
	}

	timeDiff := absDuration(a.ExecutedAt.Sub(b.ExecutedAt))
	maxDiff := time.Duration(wtd.config.MaxTimeDifferenceSeconds) * time.Second
	if timeDiff > maxDiff {
		return nil
	}

	if a.Price.IsZero() || b.Price.IsZero() || a.Quantity.IsZero() || b.Quantity.IsZero() {
		return nil // insufficient data for the relative tolerance checks
	}

	// Both tolerance gates divide by max() so they are pure functions of the
	// unordered pair: swapping a and b cannot move a pair across a boundary.
	priceDiff := a.Price.Sub(b.Price).Abs()
	relPriceDiff := priceDiff.Div(decimal.Max(a.Price, b.Price))
	if relPriceDiff.GreaterThan(wtd.config.PriceTolerance) {
		return nil
	}

	qtyDeviation := a.Quantity.Sub(b.Quantity).Abs().Div(decimal.Max(a.Quantity, b.Quantity))
	if qtyDeviation.GreaterThan(wtd.config.QuantityTolerance) {
		return nil
	}

	if wtd.accounts == nil || !wtd.accounts.Related(a.AccountID, b.AccountID) {
		return nil
	}

	// Normalize subject/counterparty by execution time so the detection is
	// identical whichever way the pair arrived.
	subject, counterparty := a, b
	if b.ExecutedAt.Before(a.ExecutedAt) ||
		(b.ExecutedAt.Equal(a.ExecutedAt) && b.AccountID < a.AccountID) {
		subject, counterparty = b, a
	}

	qtyRatio := subject.Quantity.Div(counterparty.Quantity)

	score := newScore(60).
		addIf(qtyDeviation.LessThanOrEqual(decimal.NewFromFloat(0.001)), 10).
		addIf(relPriceDiff.LessThanOrEqual(wtd.config.PriceTolerance.Div(decimal.NewFromInt(10))), 10).
		addIf(timeDiff <= maxDiff/2, 5).
		value()

	return &WashTradeIdentification{
		DetectionBase: DetectionBase{
			ID:         uuid.New(),
			Pattern:    PatternWashTrading,
			TraderID:   subject.TraderID,
			AccountID:  subject.AccountID,
			SecurityID: subject.SecurityID,
			Confidence: score,
			Severity:   severityForConfidence(score),
			DetectedAt: at,
		},
		CounterpartyAccountID: counterparty.AccountID,
		TradeIDs:              []string{subject.ID.String(), counterparty.ID.String()},
		TimeDifference:        timeDiff,
		PriceDifference:       priceDiff,
		QuantityRatio:         qtyRatio,
		SuspicionScore:        score,
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
