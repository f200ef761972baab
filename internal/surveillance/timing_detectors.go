package surveillance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// frontRunLookback is the fixed window scanned before each client order.
const frontRunLookback = 60 * time.Second

// strongAdvantage is the cutoff below which the timing evidence is rated
// "strong" rather than "moderate".
const strongAdvantage = 10 * time.Second

// =======================
// FRONT RUNNING DETECTOR
// =======================

// FrontRunningDetector looks for trades by other parties on the same
// security in the 60 seconds preceding each sizable client order.
type FrontRunningDetector struct {
	config FrontRunningConfig
	logger *zap.SugaredLogger
}

// NewFrontRunningDetector creates a new front running detector.
func NewFrontRunningDetector(config FrontRunningConfig, logger *zap.SugaredLogger) *FrontRunningDetector {
	return &FrontRunningDetector{config: config, logger: logger}
}

// Detect scans each client order against the trade tape.
func (frd *FrontRunningDetector) Detect(orders []*model.Order, trades []*model.Trade, at time.Time) ([]Detection, []SkipReport) {
	tradesBySecurity := GroupTradesBySecurity(trades)

	var detections []Detection
	var skips []SkipReport
	for _, order := range orders {
		order := order
		value := order.Quantity.Mul(order.Price)
		if value.LessThan(frd.config.MinClientOrderValue) {
			continue
		}
		guardGroup(PatternFrontRunning, order.ID.String(), frd.logger, &skips, func() {
			detections = append(detections, frd.evaluateOrder(order, tradesBySecurity[order.SecurityID], at)...)
		})
	}
	return detections, skips
}

func (frd *FrontRunningDetector) evaluateOrder(order *model.Order, tape []*model.Trade, at time.Time) []Detection {
	windowStart := order.CreatedAt.Add(-frontRunLookback)

	// Prior same-side trades by other parties, grouped by trader.
	prior := make(map[string][]*model.Trade)
	for _, t := range tape {
		if t.TraderID == order.TraderID {
			continue
		}
		if t.Side != order.Side {
			continue
		}
		if t.ExecutedAt.Before(windowStart) || !t.ExecutedAt.Before(order.CreatedAt) {
			continue
		}
		prior[t.TraderID] = append(prior[t.TraderID], t)
	}

	var out []Detection
	for _, trader := range sortedStringKeys(prior) {
		runs := prior[trader]
		earliest := runs[0].ExecutedAt
		for _, t := range runs {
			if t.ExecutedAt.Before(earliest) {
				earliest = t.ExecutedAt
			}
		}
		advantage := order.CreatedAt.Sub(earliest)

		strength := "moderate"
		if advantage < strongAdvantage {
			strength = "strong"
		}

		confidence := newScore(60).
			addIf(strength == "strong", 20).
			addIf(len(runs) >= 3, 10).
			value()

		out = append(out, &FrontRunningDetection{
			DetectionBase: DetectionBase{
				ID:         uuid.New(),
				Pattern:    PatternFrontRunning,
				TraderID:   trader,
				AccountID:  runs[0].AccountID,
				SecurityID: order.SecurityID,
				Confidence: confidence,
				Severity:   severityForConfidence(confidence),
				DetectedAt: at,
			},
			ClientOrderID:    order.ID.String(),
			FrontRunTradeIDs: tradeIDs(runs),
			TimeAdvantage:    advantage,
			EvidenceStrength: strength,
		})
	}
	return out
}

// =======================
// INSIDER TIMING DETECTOR
// =======================

// InsiderTradingDetector scores pre-announcement trading on timing, size,
// and behavior, aggregating per trader. A pattern is only emitted when the
// timing score clears its floor and the estimated profit clears the
// configured threshold.
type InsiderTradingDetector struct {
	config InsiderTradingConfig
	logger *zap.SugaredLogger
}

// NewInsiderTradingDetector creates a new insider timing detector.
func NewInsiderTradingDetector(config InsiderTradingConfig, logger *zap.SugaredLogger) *InsiderTradingDetector {
	return &InsiderTradingDetector{config: config, logger: logger}
}

// Detect evaluates every material event against the trade tape.
func (itd *InsiderTradingDetector) Detect(trades []*model.Trade, events []model.MaterialEvent, at time.Time) ([]Detection, []SkipReport) {
	bySecurity := GroupTradesBySecurity(trades)

	var detections []Detection
	var skips []SkipReport
	for _, ev := range events {
		ev := ev
		guardGroup(PatternInsiderTrading, ev.SecurityID+"/"+ev.EventType, itd.logger, &skips, func() {
			detections = append(detections, itd.evaluateEvent(ev, bySecurity[ev.SecurityID], at)...)
		})
	}
	return detections, skips
}

func (itd *InsiderTradingDetector) evaluateEvent(ev model.MaterialEvent, tape []*model.Trade, at time.Time) []Detection {
	if itd.config.MaxDaysBeforeEvent <= 0 {
		return nil
	}
	windowStart := ev.AnnouncedAt.AddDate(0, 0, -itd.config.MaxDaysBeforeEvent)

	inWindow := make(map[string][]*model.Trade)
	tradedBefore := make(map[string]bool)
	for _, t := range tape {
		if t.ExecutedAt.Before(windowStart) {
			tradedBefore[t.TraderID] = true
			continue
		}
		if !t.ExecutedAt.Before(ev.AnnouncedAt) {
			continue
		}
		inWindow[t.TraderID] = append(inWindow[t.TraderID], t)
	}

	// Cross-trader average quantity in the window serves as the size
	// baseline for the "multiple of historical average" score.
	var totalQty decimal.Decimal
	var totalCount int64
	for _, trades := range inWindow {
		for _, t := range trades {
			totalQty = totalQty.Add(t.Quantity)
			totalCount++
		}
	}
	if totalCount == 0 {
		return nil
	}
	avgQty := totalQty.Div(decimal.NewFromInt(totalCount))

	var out []Detection
	for _, trader := range sortedStringKeys(inWindow) {
		trades := inWindow[trader]
		timing := itd.timingScore(trades, ev, windowStart)
		if timing.LessThan(itd.config.MinTimingScore) {
			continue
		}

		profit := estimatedProfit(trades, ev.PriceMove)
		if profit.LessThan(itd.config.MinProfitThreshold) {
			continue
		}

		size := sizeScore(trades, avgQty)
		behavior := decimal.NewFromInt(30)
		if !tradedBefore[trader] {
			behavior = decimal.NewFromInt(100) // first time trading this security
		}

		// Weighted composite: timing carries half the score.
		confidence := clampScore(
			timing.Mul(decimal.NewFromFloat(0.5)).
				Add(size.Mul(decimal.NewFromFloat(0.25))).
				Add(behavior.Mul(decimal.NewFromFloat(0.25))))

		out = append(out, &InsiderTradingPattern{
			DetectionBase: DetectionBase{
				ID:         uuid.New(),
				Pattern:    PatternInsiderTrading,
				TraderID:   trader,
				AccountID:  trades[0].AccountID,
				SecurityID: ev.SecurityID,
				Confidence: confidence,
				Severity:   severityForConfidence(confidence),
				DetectedAt: at,
			},
			EventType:       ev.EventType,
			AnnouncedAt:     ev.AnnouncedAt,
			TimingScore:     timing,
			SizeScore:       size,
			BehaviorScore:   behavior,
			EstimatedProfit: profit,
			TradeIDs:        tradeIDs(trades),
		})
	}
	return out
}

// timingScore averages per-trade proximity to the announcement: a trade at
// the announcement scores 100, a trade at the window edge scores 0.
func (itd *InsiderTradingDetector) timingScore(trades []*model.Trade, ev model.MaterialEvent, windowStart time.Time) decimal.Decimal {
	window := ev.AnnouncedAt.Sub(windowStart)
	if window <= 0 || len(trades) == 0 {
		return decimal.Zero
	}

	var total decimal.Decimal
	for _, t := range trades {
		lead := ev.AnnouncedAt.Sub(t.ExecutedAt)
		proximity := decimal.NewFromInt(1).Sub(
			decimal.NewFromFloat(lead.Seconds() / window.Seconds()))
		total = total.Add(proximity.Mul(hundred))
	}
	return clampScore(total.Div(decimal.NewFromInt(int64(len(trades)))))
}

// sizeScore rates average trade quantity as a multiple of the window-wide
// average; 3x or more saturates the score.
func sizeScore(trades []*model.Trade, baseline decimal.Decimal) decimal.Decimal {
	if baseline.IsZero() || len(trades) == 0 {
		return decimal.Zero
	}
	var total decimal.Decimal
	for _, t := range trades {
		total = total.Add(t.Quantity)
	}
	avg := total.Div(decimal.NewFromInt(int64(len(trades))))
	ratio := avg.Div(baseline)
	return clampScore(ratio.Div(decimal.NewFromInt(3)).Mul(hundred))
}

// estimatedProfit values each trade against the post-announcement move:
// buys profit from a positive move, sells from a negative one.
func estimatedProfit(trades []*model.Trade, priceMove decimal.Decimal) decimal.Decimal {
	var profit decimal.Decimal
	for _, t := range trades {
		gain := t.Value().Mul(priceMove)
		if t.Side == model.SideSell {
			gain = gain.Neg()
		}
		profit = profit.Add(gain)
	}
	return profit
}
