package surveillance

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// BaselineProvider supplies per-security historical volume statistics for
// anomaly comparison. Treated as an opaque lookup; ok=false means no
// baseline exists and the security is skipped as insufficient data.
type BaselineProvider interface {
	VolumeBaseline(securityID string) (mean, stddev decimal.Decimal, ok bool)
}

// =======================
// PUMP AND DUMP DETECTOR
// =======================

// PumpDumpDetector requires a volume spike over the historical baseline and
// a rapid price rise whose peak precedes a decline within the same batch.
type PumpDumpDetector struct {
	config    PumpDumpConfig
	logger    *zap.SugaredLogger
	baselines BaselineProvider
}

// NewPumpDumpDetector creates a new pump-and-dump detector.
func NewPumpDumpDetector(config PumpDumpConfig, baselines BaselineProvider, logger *zap.SugaredLogger) *PumpDumpDetector {
	return &PumpDumpDetector{config: config, logger: logger, baselines: baselines}
}

// Detect analyzes trades grouped by security.
func (pd *PumpDumpDetector) Detect(trades []*model.Trade, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupTradesBySecurity(trades)

	var detections []Detection
	var skips []SkipReport
	for _, securityID := range sortedStringKeys(groups) {
		securityID := securityID
		group := groups[securityID]
		guardGroup(PatternPumpDump, securityID, pd.logger, &skips, func() {
			if d := pd.evaluateGroup(securityID, group, at); d != nil {
				detections = append(detections, d)
			}
		})
	}
	return detections, skips
}

func (pd *PumpDumpDetector) evaluateGroup(securityID string, trades []*model.Trade, at time.Time) *PumpDumpDetection {
	if len(trades) < 3 || pd.baselines == nil {
		return nil
	}

	mean, stddev, ok := pd.baselines.VolumeBaseline(securityID)
	if !ok || stddev.IsZero() {
		return nil // no usable baseline, insufficient data
	}

	var volume decimal.Decimal
	for _, t := range trades {
		volume = volume.Add(t.Quantity)
	}
	zScore := volume.Sub(mean).Div(stddev)
	if zScore.LessThan(pd.config.MinVolumeZScore) {
		return nil
	}

	sorted := make([]*model.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
	})

	first := sorted[0].Price
	if first.IsZero() {
		return nil
	}

	// Temporal order matters: the rise's peak must precede the decline.
	peakIdx := 0
	for i, t := range sorted {
		if t.Price.GreaterThan(sorted[peakIdx].Price) {
			peakIdx = i
		}
	}
	if peakIdx == len(sorted)-1 {
		return nil // no decline after the peak
	}

	peak := sorted[peakIdx].Price
	last := sorted[len(sorted)-1].Price
	rise := peak.Sub(first).Div(first)
	if rise.LessThanOrEqual(pd.config.MinPriceRise) {
		return nil
	}
	decline := peak.Sub(last).Div(peak)
	if decline.LessThanOrEqual(pd.config.MinPriceDecline) {
		return nil
	}

	trader, account := dominantTrader(sorted)
	confidence := newScore(65).
		addIf(zScore.GreaterThan(decimal.NewFromInt(5)), 15).
		addIf(rise.GreaterThan(decimal.NewFromFloat(0.2)), 10).
		addIf(decline.GreaterThan(decimal.NewFromFloat(0.1)), 10).
		value()

	return &PumpDumpDetection{
		DetectionBase: DetectionBase{
			ID:         uuid.New(),
			Pattern:    PatternPumpDump,
			TraderID:   trader,
			AccountID:  account,
			SecurityID: securityID,
			Confidence: confidence,
			Severity:   severityForConfidence(confidence),
			DetectedAt: at,
		},
		VolumeZScore: zScore,
		PriceRise:    rise,
		PriceDecline: decline,
		PeakAt:       sorted[peakIdx].ExecutedAt,
		TradeIDs:     tradeIDs(sorted),
	}
}

// =======================
// CORNERING DETECTOR
// =======================

// CorneringDetector flags a single trader taking a dominant share of a
// security's traded volume within the batch.
type CorneringDetector struct {
	config CorneringConfig
	logger *zap.SugaredLogger
}

// NewCorneringDetector creates a new cornering detector.
func NewCorneringDetector(config CorneringConfig, logger *zap.SugaredLogger) *CorneringDetector {
	return &CorneringDetector{config: config, logger: logger}
}

// Detect analyzes trades grouped by security.
func (cd *CorneringDetector) Detect(trades []*model.Trade, at time.Time) ([]Detection, []SkipReport) {
	groups := GroupTradesBySecurity(trades)

	var detections []Detection
	var skips []SkipReport
	for _, securityID := range sortedStringKeys(groups) {
		securityID := securityID
		group := groups[securityID]
		guardGroup(PatternCornering, securityID, cd.logger, &skips, func() {
			detections = append(detections, cd.evaluateGroup(securityID, group, at)...)
		})
	}
	return detections, skips
}

func (cd *CorneringDetector) evaluateGroup(securityID string, trades []*model.Trade, at time.Time) []Detection {
	var totalVolume decimal.Decimal
	byTrader := make(map[string][]*model.Trade)
	for _, t := range trades {
		totalVolume = totalVolume.Add(t.Quantity)
		byTrader[t.TraderID] = append(byTrader[t.TraderID], t)
	}
	if totalVolume.IsZero() {
		return nil
	}

	var out []Detection
	for _, trader := range sortedStringKeys(byTrader) {
		own := byTrader[trader]
		if len(own) < cd.config.MinTrades {
			continue
		}
		var ownVolume decimal.Decimal
		for _, t := range own {
			ownVolume = ownVolume.Add(t.Quantity)
		}
		share := ownVolume.Div(totalVolume)
		if share.LessThan(cd.config.MinVolumeShare) {
			continue
		}

		confidence := newScore(55).
			addIf(share.GreaterThan(decimal.NewFromFloat(0.8)), 25).
			addIf(len(own) > 2*cd.config.MinTrades, 10).
			value()

		out = append(out, &CorneringDetection{
			DetectionBase: DetectionBase{
				ID:         uuid.New(),
				Pattern:    PatternCornering,
				TraderID:   trader,
				AccountID:  own[0].AccountID,
				SecurityID: securityID,
				Confidence: confidence,
				Severity:   severityForConfidence(confidence),
				DetectedAt: at,
			},
			VolumeShare: share,
			TradeCount:  len(own),
			TradeIDs:    tradeIDs(own),
		})
	}
	return out
}

// =======================
// RAMPING DETECTOR
// =======================

// RampingDetector flags persistent one-sided pressure moving the price in
// one direction within a bounded window. Both upward (buy-driven) and
// downward (sell-driven) ramps are covered.
type RampingDetector struct {
	config RampingConfig
	logger *zap.SugaredLogger
}

// NewRampingDetector creates a new ramping detector.
func NewRampingDetector(config RampingConfig, logger *zap.SugaredLogger) *RampingDetector {
	return &RampingDetector{config: config, logger: logger}
}

// Detect analyzes trades grouped by trader and security.
func (rd *RampingDetector) Detect(trades []*model.Trade, at time.Time) ([]Detection, []SkipReport) {
	byTrader := make(map[TraderSecurityKey][]*model.Trade)
	for _, t := range trades {
		key := TraderSecurityKey{TraderID: t.TraderID, SecurityID: t.SecurityID}
		byTrader[key] = append(byTrader[key], t)
	}

	var detections []Detection
	var skips []SkipReport
	for _, key := range sortedKeys(byTrader) {
		key := key
		group := byTrader[key]
		guardGroup(PatternRamping, key.TraderID+"/"+key.SecurityID, rd.logger, &skips, func() {
			if d := rd.evaluateGroup(key, group, at); d != nil {
				detections = append(detections, d)
			}
		})
	}
	return detections, skips
}

func (rd *RampingDetector) evaluateGroup(key TraderSecurityKey, trades []*model.Trade, at time.Time) *RampingDetection {
	if len(trades) < rd.config.MinTrades {
		return nil
	}

	sorted := make([]*model.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
	})

	span := sorted[len(sorted)-1].ExecutedAt.Sub(sorted[0].ExecutedAt)
	if span > time.Duration(rd.config.MaxTimeWindowSeconds)*time.Second {
		return nil
	}

	first, last := sorted[0].Price, sorted[len(sorted)-1].Price
	if first.IsZero() {
		return nil
	}
	move := last.Sub(first).Div(first)

	buys := 0
	for _, t := range sorted {
		if t.Side == model.SideBuy {
			buys++
		}
	}
	total := decimal.NewFromInt(int64(len(sorted)))
	buyRatio := decimal.NewFromInt(int64(buys)).Div(total)
	sellRatio := one.Sub(buyRatio)

	var directional decimal.Decimal
	switch {
	case move.GreaterThanOrEqual(rd.config.MinPriceRise) && buyRatio.GreaterThanOrEqual(rd.config.MinDirectionalRatio):
		directional = buyRatio
	case move.Neg().GreaterThanOrEqual(rd.config.MinPriceRise) && sellRatio.GreaterThanOrEqual(rd.config.MinDirectionalRatio):
		directional = sellRatio
	default:
		return nil
	}

	confidence := newScore(55).
		addIf(move.Abs().GreaterThan(rd.config.MinPriceRise.Mul(decimal.NewFromInt(2))), 20).
		addIf(directional.GreaterThan(decimal.NewFromFloat(0.95)), 15).
		value()

	return &RampingDetection{
		DetectionBase: DetectionBase{
			ID:         uuid.New(),
			Pattern:    PatternRamping,
			TraderID:   key.TraderID,
			AccountID:  sorted[0].AccountID,
			SecurityID: key.SecurityID,
			Confidence: confidence,
			Severity:   severityForConfidence(confidence),
			DetectedAt: at,
		},
		PriceRise:        move,
		DirectionalRatio: directional,
		TradeCount:       len(sorted),
		TradeIDs:         tradeIDs(sorted),
	}
}

// dominantTrader returns the trader contributing the largest share of a
// trade group's quantity, with its account.
func dominantTrader(trades []*model.Trade) (trader, account string) {
	volumes := make(map[string]decimal.Decimal)
	accounts := make(map[string]string)
	for _, t := range trades {
		volumes[t.TraderID] = volumes[t.TraderID].Add(t.Quantity)
		accounts[t.TraderID] = t.AccountID
	}
	var best decimal.Decimal
	for _, id := range sortedStringKeys(volumes) {
		if volumes[id].GreaterThan(best) {
			best = volumes[id]
			trader = id
		}
	}
	return trader, accounts[trader]
}
