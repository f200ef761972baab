package surveillance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// =======================
// LAYERING DETECTOR
// =======================

// LayeringDetector flags traders who place many orders on one security and
// cancel most of them inside a short window. Layering is purely volume and
// cancellation-rate driven; there is no order-size filter (that distinction
// belongs to spoofing).
type LayeringDetector struct {
	config LayeringConfig
	logger *zap.SugaredLogger
}

// NewLayeringDetector creates a new layering detector.
func NewLayeringDetector(config LayeringConfig, logger *zap.SugaredLogger) *LayeringDetector {
	return &LayeringDetector{config: config, logger: logger}
}

// Detect analyzes orders grouped by trader and security. All configured
// conditions must hold for a group to fire.
func (ld *LayeringDetector) Detect(orders []*model.Order, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupOrdersByTraderSecurity(orders)

	var detections []Detection
	var skips []SkipReport
	for _, key := range sortedKeys(groups) {
		key := key
		group := groups[key]
		guardGroup(PatternLayering, key.TraderID+"/"+key.SecurityID, ld.logger, &skips, func() {
			if d := ld.evaluateGroup(key, group, at); d != nil {
				detections = append(detections, d)
			}
		})
	}
	return detections, skips
}

func (ld *LayeringDetector) evaluateGroup(key TraderSecurityKey, orders []*model.Order, at time.Time) *LayeringDetection {
	if len(orders) < ld.config.MinOrders {
		return nil
	}

	pattern := summarizeOrders(orders)
	if pattern.TotalOrders == 0 {
		return nil
	}
	if pattern.CancellationRate.LessThan(ld.config.MinCancellationRate) {
		return nil
	}

	maxWindow := time.Duration(ld.config.MaxTimeWindowSeconds) * time.Second
	if pattern.TimeSpan > maxWindow {
		return nil
	}

	confidence := newScore(50).
		addIf(pattern.CancellationRate.GreaterThan(decimal.NewFromFloat(0.9)), 25).
		addIf(pattern.TotalOrders > 20, 15).
		addIf(pattern.DistinctPriceLvls >= 5, 10).
		value()

	return &LayeringDetection{
		DetectionBase: DetectionBase{
			ID:         uuid.New(),
			Pattern:    PatternLayering,
			TraderID:   key.TraderID,
			AccountID:  orders[0].AccountID,
			SecurityID: key.SecurityID,
			Confidence: confidence,
			Severity:   severityForConfidence(confidence),
			DetectedAt: at,
		},
		Pattern:  pattern,
		OrderIDs: orderIDs(orders),
	}
}

// =======================
// SPOOFING DETECTOR
// =======================

// SpoofingDetector flags large orders that are cancelled quickly. The size
// gate (quantity >= MinOrderSize) and the time-to-cancel gate are what
// distinguish spoofing from layering.
type SpoofingDetector struct {
	config SpoofingConfig
	logger *zap.SugaredLogger
}

// NewSpoofingDetector creates a new spoofing detector.
func NewSpoofingDetector(config SpoofingConfig, logger *zap.SugaredLogger) *SpoofingDetector {
	return &SpoofingDetector{config: config, logger: logger}
}

// Detect analyzes orders grouped by trader and security.
func (sd *SpoofingDetector) Detect(orders []*model.Order, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupOrdersByTraderSecurity(orders)

	var detections []Detection
	var skips []SkipReport
	for _, key := range sortedKeys(groups) {
		key := key
		group := groups[key]
		guardGroup(PatternSpoofing, key.TraderID+"/"+key.SecurityID, sd.logger, &skips, func() {
			if d := sd.evaluateGroup(key, group, at); d != nil {
				detections = append(detections, d)
			}
		})
	}
	return detections, skips
}

func (sd *SpoofingDetector) evaluateGroup(key TraderSecurityKey, orders []*model.Order, at time.Time) *SpoofingDetection {
	if len(orders) < sd.config.MinOrders {
		return nil
	}

	maxTTC := time.Duration(sd.config.MaxTimeToCancelMs) * time.Millisecond

	// Spoofing only counts large orders; their cancellation behavior is
	// what matters.
	var large []*model.Order
	quickCancels := 0
	for _, o := range orders {
		if o.Quantity.LessThan(sd.config.MinOrderSize) {
			continue
		}
		large = append(large, o)
		if o.IsCancelled() && o.TimeToCancel() <= maxTTC {
			quickCancels++
		}
	}
	if len(large) == 0 {
		return nil
	}

	cancelRate := decimal.NewFromInt(int64(quickCancels)).
		Div(decimal.NewFromInt(int64(len(large))))
	if cancelRate.LessThan(sd.config.MinCancellationRate) {
		return nil
	}

	pattern := summarizeOrders(large)
	confidence := newScore(55).
		addIf(cancelRate.GreaterThan(decimal.NewFromFloat(0.9)), 25).
		addIf(len(large) > 10, 10).
		addIf(pattern.AvgTimeToCancel > 0 && pattern.AvgTimeToCancel <= maxTTC/2, 10).
		value()

	return &SpoofingDetection{
		DetectionBase: DetectionBase{
			ID:         uuid.New(),
			Pattern:    PatternSpoofing,
			TraderID:   key.TraderID,
			AccountID:  large[0].AccountID,
			SecurityID: key.SecurityID,
			Confidence: confidence,
			Severity:   severityForConfidence(confidence),
			DetectedAt: at,
		},
		Pattern:     pattern,
		LargeOrders: len(large),
		OrderIDs:    orderIDs(large),
	}
}

// summarizeOrders computes the order statistics reported by order-based
// detections. A group with no orders yields a zero pattern, never an error.
func summarizeOrders(orders []*model.Order) OrderPattern {
	p := OrderPattern{TotalOrders: len(orders)}
	if len(orders) == 0 {
		return p
	}

	var totalSize decimal.Decimal
	var totalTTC time.Duration
	cancelledWithTTC := 0
	priceLevels := make(map[string]struct{}, len(orders))
	first, last := orders[0].CreatedAt, orders[0].CreatedAt

	for _, o := range orders {
		totalSize = totalSize.Add(o.Quantity)
		priceLevels[o.Price.String()] = struct{}{}
		if o.IsCancelled() {
			p.CancelledOrders++
			if ttc := o.TimeToCancel(); ttc > 0 {
				totalTTC += ttc
				cancelledWithTTC++
			}
		}
		if o.IsExecuted() {
			p.ExecutedOrders++
		}
		if o.CreatedAt.Before(first) {
			first = o.CreatedAt
		}
		if o.CreatedAt.After(last) {
			last = o.CreatedAt
		}
	}

	total := decimal.NewFromInt(int64(len(orders)))
	p.CancellationRate = decimal.NewFromInt(int64(p.CancelledOrders)).Div(total)
	p.AverageSize = totalSize.Div(total)
	if cancelledWithTTC > 0 {
		p.AvgTimeToCancel = totalTTC / time.Duration(cancelledWithTTC)
	}
	p.DistinctPriceLvls = len(priceLevels)
	p.TimeSpan = last.Sub(first)
	return p
}

func orderIDs(orders []*model.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
	}
	return ids
}

func tradeIDs(trades []*model.Trade) []string {
	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.ID.String()
	}
	return ids
}
