package surveillance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DetectionConfig bundles the per-pattern thresholds for one detection run.
// A config is validated once up front and treated as read-only by every
// analyzer; callers may swap in a new config between runs.
type DetectionConfig struct {
	Layering        LayeringConfig        `json:"layering" mapstructure:"layering"`
	Spoofing        SpoofingConfig        `json:"spoofing" mapstructure:"spoofing"`
	WashTrading     WashTradingConfig     `json:"wash_trading" mapstructure:"wash_trading"`
	PumpDump        PumpDumpConfig        `json:"pump_dump" mapstructure:"pump_dump"`
	QuoteStuffing   QuoteStuffingConfig   `json:"quote_stuffing" mapstructure:"quote_stuffing"`
	Cornering       CorneringConfig       `json:"cornering" mapstructure:"cornering"`
	Ramping         RampingConfig         `json:"ramping" mapstructure:"ramping"`
	CircularTrading CircularTradingConfig `json:"circular_trading" mapstructure:"circular_trading"`
	FrontRunning    FrontRunningConfig    `json:"front_running" mapstructure:"front_running"`
	InsiderTrading  InsiderTradingConfig  `json:"insider_trading" mapstructure:"insider_trading"`
}

// LayeringConfig controls layering detection. Layering is volume and
// cancellation-rate driven; unlike spoofing there is no order-size filter.
type LayeringConfig struct {
	MinOrders            int             `json:"min_orders" mapstructure:"min_orders"`
	MinCancellationRate  decimal.Decimal `json:"min_cancellation_rate" mapstructure:"min_cancellation_rate"`
	MaxTimeWindowSeconds int             `json:"max_time_window_seconds" mapstructure:"max_time_window_seconds"`
}

// SpoofingConfig controls spoofing detection: large orders cancelled quickly.
type SpoofingConfig struct {
	MinOrders           int             `json:"min_orders" mapstructure:"min_orders"`
	MinOrderSize        decimal.Decimal `json:"min_order_size" mapstructure:"min_order_size"`
	MinCancellationRate decimal.Decimal `json:"min_cancellation_rate" mapstructure:"min_cancellation_rate"`
	MaxTimeToCancelMs   int64           `json:"max_time_to_cancel_ms" mapstructure:"max_time_to_cancel_ms"`
}

// WashTradingConfig controls pairwise wash-trade matching.
type WashTradingConfig struct {
	MaxTimeDifferenceSeconds int             `json:"max_time_difference_seconds" mapstructure:"max_time_difference_seconds"`
	PriceTolerance           decimal.Decimal `json:"price_tolerance" mapstructure:"price_tolerance"`
	QuantityTolerance        decimal.Decimal `json:"quantity_tolerance" mapstructure:"quantity_tolerance"`
}

// PumpDumpConfig controls pump-and-dump detection.
type PumpDumpConfig struct {
	MinVolumeZScore decimal.Decimal `json:"min_volume_z_score" mapstructure:"min_volume_z_score"`
	MinPriceRise    decimal.Decimal `json:"min_price_rise" mapstructure:"min_price_rise"`
	MinPriceDecline decimal.Decimal `json:"min_price_decline" mapstructure:"min_price_decline"`
}

// QuoteStuffingConfig controls windowed quote-rate detection.
type QuoteStuffingConfig struct {
	MinQuoteRate      decimal.Decimal `json:"min_quote_rate" mapstructure:"min_quote_rate"` // quotes per second
	MinCancelRate     decimal.Decimal `json:"min_cancel_rate" mapstructure:"min_cancel_rate"`
	TimeWindowSeconds int             `json:"time_window_seconds" mapstructure:"time_window_seconds"`
}

// CorneringConfig controls market-cornering detection.
type CorneringConfig struct {
	MinTrades      int             `json:"min_trades" mapstructure:"min_trades"`
	MinVolumeShare decimal.Decimal `json:"min_volume_share" mapstructure:"min_volume_share"`
}

// RampingConfig controls price-ramping detection.
type RampingConfig struct {
	MinTrades            int             `json:"min_trades" mapstructure:"min_trades"`
	MinPriceRise         decimal.Decimal `json:"min_price_rise" mapstructure:"min_price_rise"`
	MinDirectionalRatio  decimal.Decimal `json:"min_directional_ratio" mapstructure:"min_directional_ratio"`
	MaxTimeWindowSeconds int             `json:"max_time_window_seconds" mapstructure:"max_time_window_seconds"`
}

// CircularTradingConfig controls closed-loop volume cycling detection.
type CircularTradingConfig struct {
	MinCycleTrades    int             `json:"min_cycle_trades" mapstructure:"min_cycle_trades"`
	MaxAccounts       int             `json:"max_accounts" mapstructure:"max_accounts"`
	QuantityTolerance decimal.Decimal `json:"quantity_tolerance" mapstructure:"quantity_tolerance"`
}

// FrontRunningConfig controls front-running detection. The lookback window
// is fixed at 60 seconds; only the client-order size gate is configurable.
type FrontRunningConfig struct {
	MinClientOrderValue decimal.Decimal `json:"min_client_order_value" mapstructure:"min_client_order_value"`
}

// InsiderTradingConfig controls pre-announcement timing analysis.
type InsiderTradingConfig struct {
	MaxDaysBeforeEvent int             `json:"max_days_before_event" mapstructure:"max_days_before_event"`
	MinProfitThreshold decimal.Decimal `json:"min_profit_threshold" mapstructure:"min_profit_threshold"`
	MinTimingScore     decimal.Decimal `json:"min_timing_score" mapstructure:"min_timing_score"`
}

// ConfigError describes a malformed threshold in a DetectionConfig.
// It is fatal for the run: no analyzer executes against a bad config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("detection config: %s: %s", e.Field, e.Reason)
}

var (
	one = decimal.NewFromInt(1)
)

// Validate checks the invariants shared by all threshold bundles: rates in
// [0,1], counts and durations non-negative.
func (c *DetectionConfig) Validate() error {
	for _, check := range []struct {
		field string
		rate  decimal.Decimal
	}{
		{"layering.min_cancellation_rate", c.Layering.MinCancellationRate},
		{"spoofing.min_cancellation_rate", c.Spoofing.MinCancellationRate},
		{"wash_trading.price_tolerance", c.WashTrading.PriceTolerance},
		{"wash_trading.quantity_tolerance", c.WashTrading.QuantityTolerance},
		{"pump_dump.min_price_rise", c.PumpDump.MinPriceRise},
		{"pump_dump.min_price_decline", c.PumpDump.MinPriceDecline},
		{"quote_stuffing.min_cancel_rate", c.QuoteStuffing.MinCancelRate},
		{"cornering.min_volume_share", c.Cornering.MinVolumeShare},
		{"ramping.min_directional_ratio", c.Ramping.MinDirectionalRatio},
	} {
		if check.rate.IsNegative() || check.rate.GreaterThan(one) {
			return &ConfigError{Field: check.field, Reason: "rate must be within [0,1]"}
		}
	}

	for _, check := range []struct {
		field string
		count int
	}{
		{"layering.min_orders", c.Layering.MinOrders},
		{"layering.max_time_window_seconds", c.Layering.MaxTimeWindowSeconds},
		{"spoofing.min_orders", c.Spoofing.MinOrders},
		{"wash_trading.max_time_difference_seconds", c.WashTrading.MaxTimeDifferenceSeconds},
		{"quote_stuffing.time_window_seconds", c.QuoteStuffing.TimeWindowSeconds},
		{"cornering.min_trades", c.Cornering.MinTrades},
		{"ramping.min_trades", c.Ramping.MinTrades},
		{"ramping.max_time_window_seconds", c.Ramping.MaxTimeWindowSeconds},
		{"circular_trading.min_cycle_trades", c.CircularTrading.MinCycleTrades},
		{"circular_trading.max_accounts", c.CircularTrading.MaxAccounts},
		{"insider_trading.max_days_before_event", c.InsiderTrading.MaxDaysBeforeEvent},
	} {
		if check.count < 0 {
			return &ConfigError{Field: check.field, Reason: "count must be non-negative"}
		}
	}

	if c.Spoofing.MaxTimeToCancelMs < 0 {
		return &ConfigError{Field: "spoofing.max_time_to_cancel_ms", Reason: "duration must be non-negative"}
	}
	if c.Spoofing.MinOrderSize.IsNegative() {
		return &ConfigError{Field: "spoofing.min_order_size", Reason: "size must be non-negative"}
	}
	if c.PumpDump.MinVolumeZScore.IsNegative() {
		return &ConfigError{Field: "pump_dump.min_volume_z_score", Reason: "z-score must be non-negative"}
	}
	if c.QuoteStuffing.MinQuoteRate.IsNegative() {
		return &ConfigError{Field: "quote_stuffing.min_quote_rate", Reason: "rate must be non-negative"}
	}
	if c.FrontRunning.MinClientOrderValue.IsNegative() {
		return &ConfigError{Field: "front_running.min_client_order_value", Reason: "value must be non-negative"}
	}
	if c.InsiderTrading.MinProfitThreshold.IsNegative() {
		return &ConfigError{Field: "insider_trading.min_profit_threshold", Reason: "threshold must be non-negative"}
	}
	return nil
}

// DefaultDetectionConfig returns the threshold bundle used when the caller
// supplies no overrides.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Layering: LayeringConfig{
			MinOrders:            10,
			MinCancellationRate:  decimal.NewFromFloat(0.8),
			MaxTimeWindowSeconds: 300,
		},
		Spoofing: SpoofingConfig{
			MinOrders:           5,
			MinOrderSize:        decimal.NewFromInt(10000),
			MinCancellationRate: decimal.NewFromFloat(0.7),
			MaxTimeToCancelMs:   5000,
		},
		WashTrading: WashTradingConfig{
			MaxTimeDifferenceSeconds: 300,
			PriceTolerance:           decimal.NewFromFloat(0.005),
			QuantityTolerance:        decimal.NewFromFloat(0.01),
		},
		PumpDump: PumpDumpConfig{
			MinVolumeZScore: decimal.NewFromInt(3),
			MinPriceRise:    decimal.NewFromFloat(0.10),
			MinPriceDecline: decimal.NewFromFloat(0.05),
		},
		QuoteStuffing: QuoteStuffingConfig{
			MinQuoteRate:      decimal.NewFromInt(10),
			MinCancelRate:     decimal.NewFromFloat(0.9),
			TimeWindowSeconds: 60,
		},
		Cornering: CorneringConfig{
			MinTrades:      20,
			MinVolumeShare: decimal.NewFromFloat(0.6),
		},
		Ramping: RampingConfig{
			MinTrades:            15,
			MinPriceRise:         decimal.NewFromFloat(0.05),
			MinDirectionalRatio:  decimal.NewFromFloat(0.8),
			MaxTimeWindowSeconds: 1800,
		},
		CircularTrading: CircularTradingConfig{
			MinCycleTrades:    6,
			MaxAccounts:       4,
			QuantityTolerance: decimal.NewFromFloat(0.01),
		},
		FrontRunning: FrontRunningConfig{
			MinClientOrderValue: decimal.NewFromInt(50000),
		},
		InsiderTrading: InsiderTradingConfig{
			MaxDaysBeforeEvent: 30,
			MinProfitThreshold: decimal.NewFromInt(10000),
			MinTimingScore:     decimal.NewFromInt(60),
		},
	}
}
