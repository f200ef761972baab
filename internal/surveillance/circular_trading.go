package surveillance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// CircularTradingDetector flags volume cycling inside a small closed set of
// accounts: each participant's bought and sold quantity on the security
// nets out to roughly zero while gross volume keeps churning.
type CircularTradingDetector struct {
	config CircularTradingConfig
	logger *zap.SugaredLogger
}

// NewCircularTradingDetector creates a new circular trading detector.
func NewCircularTradingDetector(config CircularTradingConfig, logger *zap.SugaredLogger) *CircularTradingDetector {
	return &CircularTradingDetector{config: config, logger: logger}
}

// Detect analyzes trades grouped by security.
func (ctd *CircularTradingDetector) Detect(trades []*model.Trade, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupTradesBySecurity(trades)

	var detections []Detection
	var skips []SkipReport
	for _, securityID := range sortedStringKeys(groups) {
		securityID := securityID
		group := groups[securityID]
		guardGroup(PatternCircularTrading, securityID, ctd.logger, &skips, func() {
			if d := ctd.evaluateGroup(securityID, group, at); d != nil {
				detections = append(detections, d)
			}
		})
	}
	return detections, skips
}

type accountFlow struct {
	bought decimal.Decimal
	sold   decimal.Decimal
	trades []*model.Trade
}

func (ctd *CircularTradingDetector) evaluateGroup(securityID string, trades []*model.Trade, at time.Time) *CircularTradingDetection {
	flows := make(map[string]*accountFlow)
	for _, t := range trades {
		f := flows[t.AccountID]
		if f == nil {
			f = &accountFlow{}
			flows[t.AccountID] = f
		}
		if t.Side == model.SideBuy {
			f.bought = f.bought.Add(t.Quantity)
		} else {
			f.sold = f.sold.Add(t.Quantity)
		}
		f.trades = append(f.trades, t)
	}

	// An account is cycling when its buys and sells net to ~zero relative
	// to gross turnover.
	var members []string
	var cycleTrades []*model.Trade
	var cycleVolume decimal.Decimal
	for _, account := range sortedStringKeys(flows) {
		f := flows[account]
		gross := f.bought.Add(f.sold)
		if gross.IsZero() || f.bought.IsZero() || f.sold.IsZero() {
			continue
		}
		imbalance := f.bought.Sub(f.sold).Abs().Div(gross)
		if imbalance.GreaterThan(ctd.config.QuantityTolerance) {
			continue
		}
		members = append(members, account)
		cycleTrades = append(cycleTrades, f.trades...)
		cycleVolume = cycleVolume.Add(gross)
	}

	if len(members) < 2 || len(members) > ctd.config.MaxAccounts {
		return nil
	}
	if len(cycleTrades) < ctd.config.MinCycleTrades {
		return nil
	}

	confidence := newScore(60).
		addIf(len(cycleTrades) >= 2*ctd.config.MinCycleTrades, 20).
		addIf(len(members) >= 3, 10).
		value()

	return &CircularTradingDetection{
		DetectionBase: DetectionBase{
			ID:         uuid.New(),
			Pattern:    PatternCircularTrading,
			TraderID:   cycleTrades[0].TraderID,
			AccountID:  members[0],
			SecurityID: securityID,
			Confidence: confidence,
			Severity:   severityForConfidence(confidence),
			DetectedAt: at,
		},
		AccountIDs:  members,
		CycleTrades: len(cycleTrades),
		CycleVolume: cycleVolume,
		TradeIDs:    tradeIDs(cycleTrades),
	}
}
