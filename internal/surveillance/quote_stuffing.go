package surveillance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// QuoteStuffingDetector measures quote submission and cancellation rates
// over fixed time windows. A window fires only when both the quote rate and
// the cancel rate exceed their configured minimums.
type QuoteStuffingDetector struct {
	config QuoteStuffingConfig
	logger *zap.SugaredLogger
}

// NewQuoteStuffingDetector creates a new quote stuffing detector.
func NewQuoteStuffingDetector(config QuoteStuffingConfig, logger *zap.SugaredLogger) *QuoteStuffingDetector {
	return &QuoteStuffingDetector{config: config, logger: logger}
}

// Detect analyzes quotes grouped by trader and security, windowed by the
// configured window size.
func (qsd *QuoteStuffingDetector) Detect(quotes []*model.Quote, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupQuotesByTraderSecurity(quotes)

	var detections []Detection
	var skips []SkipReport
	for _, key := range sortedKeys(groups) {
		key := key
		group := groups[key]
		guardGroup(PatternQuoteStuffing, key.TraderID+"/"+key.SecurityID, qsd.logger, &skips, func() {
			detections = append(detections, qsd.evaluateGroup(key, group, at)...)
		})
	}
	return detections, skips
}

func (qsd *QuoteStuffingDetector) evaluateGroup(key TraderSecurityKey, quotes []*model.Quote, at time.Time) []Detection {
	if qsd.config.TimeWindowSeconds <= 0 {
		return nil
	}

	windowSecs := decimal.NewFromInt(int64(qsd.config.TimeWindowSeconds))
	var out []Detection
	for _, w := range WindowQuotes(quotes, qsd.config.TimeWindowSeconds) {
		count := len(w.Quotes)
		if count == 0 {
			continue
		}

		quoteRate := decimal.NewFromInt(int64(count)).Div(windowSecs)
		if quoteRate.LessThan(qsd.config.MinQuoteRate) {
			continue
		}

		cancelled := 0
		for _, q := range w.Quotes {
			if q.Status == model.QuoteStatusCancelled {
				cancelled++
			}
		}
		cancelRate := decimal.NewFromInt(int64(cancelled)).Div(decimal.NewFromInt(int64(count)))
		if cancelRate.LessThan(qsd.config.MinCancelRate) {
			continue
		}

		confidence := newScore(60).
			addIf(cancelRate.GreaterThan(decimal.NewFromFloat(0.95)), 15).
			addIf(quoteRate.GreaterThanOrEqual(qsd.config.MinQuoteRate.Mul(decimal.NewFromInt(2))), 20).
			value()

		// Extreme quote rates degrade competitor latency regardless of the
		// confidence band.
		severity := severityForConfidence(confidence)
		if quoteRate.GreaterThanOrEqual(qsd.config.MinQuoteRate.Mul(decimal.NewFromInt(2))) {
			severity = "CRITICAL"
		}

		out = append(out, &QuoteStuffingDetection{
			DetectionBase: DetectionBase{
				ID:         uuid.New(),
				Pattern:    PatternQuoteStuffing,
				TraderID:   key.TraderID,
				AccountID:  w.Quotes[0].AccountID,
				SecurityID: key.SecurityID,
				Confidence: confidence,
				Severity:   severity,
				DetectedAt: at,
			},
			WindowStart: w.Start,
			WindowEnd:   w.End,
			QuoteCount:  count,
			QuoteRate:   quoteRate,
			CancelRate:  cancelRate,
		})
	}
	return out
}
