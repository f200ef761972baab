package surveillance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pattern type identifiers shared by detections and alerts.
const (
	PatternLayering        = "LAYERING"
	PatternSpoofing        = "SPOOFING"
	PatternWashTrading     = "WASH_TRADING"
	PatternPumpDump        = "PUMP_AND_DUMP"
	PatternQuoteStuffing   = "QUOTE_STUFFING"
	PatternCornering       = "CORNERING"
	PatternRamping         = "RAMPING"
	PatternCircularTrading = "CIRCULAR_TRADING"
	PatternFrontRunning    = "FRONT_RUNNING"
	PatternInsiderTrading  = "INSIDER_TRADING"
)

// DetectionBase carries the fields common to every detection record.
// Detections are created once per analyzer invocation and never mutated.
type DetectionBase struct {
	ID         uuid.UUID       `json:"id"`
	Pattern    string          `json:"pattern"`
	TraderID   string          `json:"trader_id"`
	AccountID  string          `json:"account_id,omitempty"`
	SecurityID string          `json:"security_id"`
	Confidence decimal.Decimal `json:"confidence"` // 0-100
	Severity   string          `json:"severity"`
	DetectedAt time.Time       `json:"detected_at"`
}

// Detection is the read-only view the engine and alert layer share over
// analyzer-specific detection records.
type Detection interface {
	Base() DetectionBase
	// Evidence returns the analyzer-specific evidence fields for the alert
	// payload.
	Evidence() map[string]interface{}
	// RelatedOrderIDs and RelatedTradeIDs identify the events behind the
	// detection; either may be empty depending on the analyzer.
	RelatedOrderIDs() []string
	RelatedTradeIDs() []string
}

// OrderPattern summarizes the order statistics behind an order-based
// detection (layering, spoofing).
type OrderPattern struct {
	TotalOrders       int             `json:"total_orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	ExecutedOrders    int             `json:"executed_orders"`
	CancellationRate  decimal.Decimal `json:"cancellation_rate"`
	AverageSize       decimal.Decimal `json:"average_size"`
	AvgTimeToCancel   time.Duration   `json:"avg_time_to_cancel"`
	DistinctPriceLvls int             `json:"distinct_price_levels"`
	TimeSpan          time.Duration   `json:"time_span"`
}

// LayeringDetection records a layering finding for one trader/security group.
type LayeringDetection struct {
	DetectionBase
	Pattern  OrderPattern `json:"order_pattern"`
	OrderIDs []string     `json:"order_ids"`
}

func (d *LayeringDetection) Base() DetectionBase { return d.DetectionBase }
func (d *LayeringDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"total_orders":          d.Pattern.TotalOrders,
		"cancelled_orders":      d.Pattern.CancelledOrders,
		"cancellation_rate":     d.Pattern.CancellationRate.String(),
		"average_size":          d.Pattern.AverageSize.String(),
		"distinct_price_levels": d.Pattern.DistinctPriceLvls,
		"time_span_seconds":     d.Pattern.TimeSpan.Seconds(),
	}
}
func (d *LayeringDetection) RelatedOrderIDs() []string { return d.OrderIDs }
func (d *LayeringDetection) RelatedTradeIDs() []string { return nil }

// SpoofingDetection records a spoofing finding: large orders cancelled fast.
type SpoofingDetection struct {
	DetectionBase
	Pattern     OrderPattern `json:"order_pattern"`
	LargeOrders int          `json:"large_orders"`
	OrderIDs    []string     `json:"order_ids"`
}

func (d *SpoofingDetection) Base() DetectionBase { return d.DetectionBase }
func (d *SpoofingDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"total_orders":          d.Pattern.TotalOrders,
		"large_orders":          d.LargeOrders,
		"cancellation_rate":     d.Pattern.CancellationRate.String(),
		"avg_time_to_cancel_ms": d.Pattern.AvgTimeToCancel.Milliseconds(),
	}
}
func (d *SpoofingDetection) RelatedOrderIDs() []string { return d.OrderIDs }
func (d *SpoofingDetection) RelatedTradeIDs() []string { return nil }

// WashTradeIdentification records one matched opposite-side trade pair with
// confirmed common beneficial ownership.
type WashTradeIdentification struct {
	DetectionBase
	CounterpartyAccountID string          `json:"counterparty_account_id"`
	TradeIDs              []string        `json:"trade_ids"`
	TimeDifference        time.Duration   `json:"time_difference"`
	PriceDifference       decimal.Decimal `json:"price_difference"`
	QuantityRatio         decimal.Decimal `json:"quantity_ratio"`
	SuspicionScore        decimal.Decimal `json:"suspicion_score"`
}

func (d *WashTradeIdentification) Base() DetectionBase { return d.DetectionBase }
func (d *WashTradeIdentification) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"counterparty_account":    d.CounterpartyAccountID,
		"time_difference_seconds": d.TimeDifference.Seconds(),
		"price_difference":        d.PriceDifference.String(),
		"quantity_ratio":          d.QuantityRatio.String(),
	}
}
func (d *WashTradeIdentification) RelatedOrderIDs() []string { return nil }
func (d *WashTradeIdentification) RelatedTradeIDs() []string { return d.TradeIDs }

// PumpDumpDetection records a volume-spike pump followed by a dump.
type PumpDumpDetection struct {
	DetectionBase
	VolumeZScore decimal.Decimal `json:"volume_z_score"`
	PriceRise    decimal.Decimal `json:"price_rise"`
	PriceDecline decimal.Decimal `json:"price_decline"`
	PeakAt       time.Time       `json:"peak_at"`
	TradeIDs     []string        `json:"trade_ids"`
}

func (d *PumpDumpDetection) Base() DetectionBase { return d.DetectionBase }
func (d *PumpDumpDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"volume_z_score": d.VolumeZScore.String(),
		"price_rise":     d.PriceRise.String(),
		"price_decline":  d.PriceDecline.String(),
		"peak_at":        d.PeakAt,
	}
}
func (d *PumpDumpDetection) RelatedOrderIDs() []string { return nil }
func (d *PumpDumpDetection) RelatedTradeIDs() []string { return d.TradeIDs }

// QuoteStuffingDetection records excessive quote submission within one window.
type QuoteStuffingDetection struct {
	DetectionBase
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	QuoteCount  int             `json:"quote_count"`
	QuoteRate   decimal.Decimal `json:"quote_rate"` // quotes per second
	CancelRate  decimal.Decimal `json:"cancel_rate"`
}

func (d *QuoteStuffingDetection) Base() DetectionBase { return d.DetectionBase }
func (d *QuoteStuffingDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"window_start": d.WindowStart,
		"window_end":   d.WindowEnd,
		"quote_count":  d.QuoteCount,
		"quote_rate":   d.QuoteRate.String(),
		"cancel_rate":  d.CancelRate.String(),
	}
}
func (d *QuoteStuffingDetection) RelatedOrderIDs() []string { return nil }
func (d *QuoteStuffingDetection) RelatedTradeIDs() []string { return nil }

// CorneringDetection records one trader dominating volume in a security.
type CorneringDetection struct {
	DetectionBase
	VolumeShare decimal.Decimal `json:"volume_share"`
	TradeCount  int             `json:"trade_count"`
	TradeIDs    []string        `json:"trade_ids"`
}

func (d *CorneringDetection) Base() DetectionBase { return d.DetectionBase }
func (d *CorneringDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"volume_share": d.VolumeShare.String(),
		"trade_count":  d.TradeCount,
	}
}
func (d *CorneringDetection) RelatedOrderIDs() []string { return nil }
func (d *CorneringDetection) RelatedTradeIDs() []string { return d.TradeIDs }

// RampingDetection records persistent one-sided price pressure.
type RampingDetection struct {
	DetectionBase
	PriceRise        decimal.Decimal `json:"price_rise"`
	DirectionalRatio decimal.Decimal `json:"directional_ratio"`
	TradeCount       int             `json:"trade_count"`
	TradeIDs         []string        `json:"trade_ids"`
}

func (d *RampingDetection) Base() DetectionBase { return d.DetectionBase }
func (d *RampingDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"price_rise":        d.PriceRise.String(),
		"directional_ratio": d.DirectionalRatio.String(),
		"trade_count":       d.TradeCount,
	}
}
func (d *RampingDetection) RelatedOrderIDs() []string { return nil }
func (d *RampingDetection) RelatedTradeIDs() []string { return d.TradeIDs }

// CircularTradingDetection records volume cycling inside a closed account set.
type CircularTradingDetection struct {
	DetectionBase
	AccountIDs  []string        `json:"account_ids"`
	CycleTrades int             `json:"cycle_trades"`
	CycleVolume decimal.Decimal `json:"cycle_volume"`
	TradeIDs    []string        `json:"trade_ids"`
}

func (d *CircularTradingDetection) Base() DetectionBase { return d.DetectionBase }
func (d *CircularTradingDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"accounts":     d.AccountIDs,
		"cycle_trades": d.CycleTrades,
		"cycle_volume": d.CycleVolume.String(),
	}
}
func (d *CircularTradingDetection) RelatedOrderIDs() []string { return nil }
func (d *CircularTradingDetection) RelatedTradeIDs() []string { return d.TradeIDs }

// FrontRunningDetection records trading ahead of a client order.
type FrontRunningDetection struct {
	DetectionBase
	ClientOrderID    string        `json:"client_order_id"`
	FrontRunTradeIDs []string      `json:"front_run_trade_ids"`
	TimeAdvantage    time.Duration `json:"time_advantage"`
	EvidenceStrength string        `json:"evidence_strength"` // "strong" or "moderate"
}

func (d *FrontRunningDetection) Base() DetectionBase { return d.DetectionBase }
func (d *FrontRunningDetection) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"client_order_id":        d.ClientOrderID,
		"time_advantage_seconds": d.TimeAdvantage.Seconds(),
		"evidence_strength":      d.EvidenceStrength,
	}
}
func (d *FrontRunningDetection) RelatedOrderIDs() []string { return []string{d.ClientOrderID} }
func (d *FrontRunningDetection) RelatedTradeIDs() []string { return d.FrontRunTradeIDs }

// InsiderTradingPattern records suspicious pre-announcement trading.
type InsiderTradingPattern struct {
	DetectionBase
	EventType       string          `json:"event_type"`
	AnnouncedAt     time.Time       `json:"announced_at"`
	TimingScore     decimal.Decimal `json:"timing_score"`
	SizeScore       decimal.Decimal `json:"size_score"`
	BehaviorScore   decimal.Decimal `json:"behavior_score"`
	EstimatedProfit decimal.Decimal `json:"estimated_profit"`
	TradeIDs        []string        `json:"trade_ids"`
}

func (d *InsiderTradingPattern) Base() DetectionBase { return d.DetectionBase }
func (d *InsiderTradingPattern) Evidence() map[string]interface{} {
	return map[string]interface{}{
		"event_type":       d.EventType,
		"announced_at":     d.AnnouncedAt,
		"timing_score":     d.TimingScore.String(),
		"size_score":       d.SizeScore.String(),
		"behavior_score":   d.BehaviorScore.String(),
		"estimated_profit": d.EstimatedProfit.String(),
	}
}
func (d *InsiderTradingPattern) RelatedOrderIDs() []string { return nil }
func (d *InsiderTradingPattern) RelatedTradeIDs() []string { return d.TradeIDs }
