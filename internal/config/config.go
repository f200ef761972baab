// Package config loads runner configuration from YAML and environment
// variables and converts it into the explicit threshold objects the
// detection engine consumes. There is no package-level default state;
// callers hold the loaded config and thread it through.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/tradewatch/surveil/internal/surveillance"
)

// Config is the full runner configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Detection DetectionConfig `mapstructure:"detection"`

	// Jurisdictions stamped onto every alert created by the runner.
	Jurisdictions []string `mapstructure:"jurisdictions"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig selects the alert store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "postgres" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

// DetectionConfig mirrors surveillance.DetectionConfig with plain numeric
// types so it decodes cleanly from YAML/env; Thresholds() converts.
type DetectionConfig struct {
	Layering struct {
		MinOrders            int     `mapstructure:"min_orders"`
		MinCancellationRate  float64 `mapstructure:"min_cancellation_rate"`
		MaxTimeWindowSeconds int     `mapstructure:"max_time_window_seconds"`
	} `mapstructure:"layering"`
	Spoofing struct {
		MinOrders           int     `mapstructure:"min_orders"`
		MinOrderSize        float64 `mapstructure:"min_order_size"`
		MinCancellationRate float64 `mapstructure:"min_cancellation_rate"`
		MaxTimeToCancelMs   int64   `mapstructure:"max_time_to_cancel_ms"`
	} `mapstructure:"spoofing"`
	WashTrading struct {
		MaxTimeDifferenceSeconds int     `mapstructure:"max_time_difference_seconds"`
		PriceTolerance           float64 `mapstructure:"price_tolerance"`
		QuantityTolerance        float64 `mapstructure:"quantity_tolerance"`
	} `mapstructure:"wash_trading"`
	PumpDump struct {
		MinVolumeZScore float64 `mapstructure:"min_volume_z_score"`
		MinPriceRise    float64 `mapstructure:"min_price_rise"`
		MinPriceDecline float64 `mapstructure:"min_price_decline"`
	} `mapstructure:"pump_dump"`
	QuoteStuffing struct {
		MinQuoteRate      float64 `mapstructure:"min_quote_rate"`
		MinCancelRate     float64 `mapstructure:"min_cancel_rate"`
		TimeWindowSeconds int     `mapstructure:"time_window_seconds"`
	} `mapstructure:"quote_stuffing"`
	Cornering struct {
		MinTrades      int     `mapstructure:"min_trades"`
		MinVolumeShare float64 `mapstructure:"min_volume_share"`
	} `mapstructure:"cornering"`
	Ramping struct {
		MinTrades            int     `mapstructure:"min_trades"`
		MinPriceRise         float64 `mapstructure:"min_price_rise"`
		MinDirectionalRatio  float64 `mapstructure:"min_directional_ratio"`
		MaxTimeWindowSeconds int     `mapstructure:"max_time_window_seconds"`
	} `mapstructure:"ramping"`
	CircularTrading struct {
		MinCycleTrades    int     `mapstructure:"min_cycle_trades"`
		MaxAccounts       int     `mapstructure:"max_accounts"`
		QuantityTolerance float64 `mapstructure:"quantity_tolerance"`
	} `mapstructure:"circular_trading"`
	FrontRunning struct {
		MinClientOrderValue float64 `mapstructure:"min_client_order_value"`
	} `mapstructure:"front_running"`
	InsiderTrading struct {
		MaxDaysBeforeEvent int     `mapstructure:"max_days_before_event"`
		MinProfitThreshold float64 `mapstructure:"min_profit_threshold"`
		MinTimingScore     float64 `mapstructure:"min_timing_score"`
	} `mapstructure:"insider_trading"`
}

// Load reads the config file at path (optional) plus SURVEIL_* environment
// overrides, seeded with the default detection thresholds.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SURVEIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "surveil.db")
	v.SetDefault("jurisdictions", []string{"SEC"})

	d := surveillance.DefaultDetectionConfig()
	v.SetDefault("detection.layering.min_orders", d.Layering.MinOrders)
	v.SetDefault("detection.layering.min_cancellation_rate", d.Layering.MinCancellationRate.InexactFloat64())
	v.SetDefault("detection.layering.max_time_window_seconds", d.Layering.MaxTimeWindowSeconds)
	v.SetDefault("detection.spoofing.min_orders", d.Spoofing.MinOrders)
	v.SetDefault("detection.spoofing.min_order_size", d.Spoofing.MinOrderSize.InexactFloat64())
	v.SetDefault("detection.spoofing.min_cancellation_rate", d.Spoofing.MinCancellationRate.InexactFloat64())
	v.SetDefault("detection.spoofing.max_time_to_cancel_ms", d.Spoofing.MaxTimeToCancelMs)
	v.SetDefault("detection.wash_trading.max_time_difference_seconds", d.WashTrading.MaxTimeDifferenceSeconds)
	v.SetDefault("detection.wash_trading.price_tolerance", d.WashTrading.PriceTolerance.InexactFloat64())
	v.SetDefault("detection.wash_trading.quantity_tolerance", d.WashTrading.QuantityTolerance.InexactFloat64())
	v.SetDefault("detection.pump_dump.min_volume_z_score", d.PumpDump.MinVolumeZScore.InexactFloat64())
	v.SetDefault("detection.pump_dump.min_price_rise", d.PumpDump.MinPriceRise.InexactFloat64())
	v.SetDefault("detection.pump_dump.min_price_decline", d.PumpDump.MinPriceDecline.InexactFloat64())
	v.SetDefault("detection.quote_stuffing.min_quote_rate", d.QuoteStuffing.MinQuoteRate.InexactFloat64())
	v.SetDefault("detection.quote_stuffing.min_cancel_rate", d.QuoteStuffing.MinCancelRate.InexactFloat64())
	v.SetDefault("detection.quote_stuffing.time_window_seconds", d.QuoteStuffing.TimeWindowSeconds)
	v.SetDefault("detection.cornering.min_trades", d.Cornering.MinTrades)
	v.SetDefault("detection.cornering.min_volume_share", d.Cornering.MinVolumeShare.InexactFloat64())
	v.SetDefault("detection.ramping.min_trades", d.Ramping.MinTrades)
	v.SetDefault("detection.ramping.min_price_rise", d.Ramping.MinPriceRise.InexactFloat64())
	v.SetDefault("detection.ramping.min_directional_ratio", d.Ramping.MinDirectionalRatio.InexactFloat64())
	v.SetDefault("detection.ramping.max_time_window_seconds", d.Ramping.MaxTimeWindowSeconds)
	v.SetDefault("detection.circular_trading.min_cycle_trades", d.CircularTrading.MinCycleTrades)
	v.SetDefault("detection.circular_trading.max_accounts", d.CircularTrading.MaxAccounts)
	v.SetDefault("detection.circular_trading.quantity_tolerance", d.CircularTrading.QuantityTolerance.InexactFloat64())
	v.SetDefault("detection.front_running.min_client_order_value", d.FrontRunning.MinClientOrderValue.InexactFloat64())
	v.SetDefault("detection.insider_trading.max_days_before_event", d.InsiderTrading.MaxDaysBeforeEvent)
	v.SetDefault("detection.insider_trading.min_profit_threshold", d.InsiderTrading.MinProfitThreshold.InexactFloat64())
	v.SetDefault("detection.insider_trading.min_timing_score", d.InsiderTrading.MinTimingScore.InexactFloat64())
}

// Thresholds converts the decoded numeric config into the decimal-based
// threshold bundle the engine validates and consumes.
func (c *Config) Thresholds() surveillance.DetectionConfig {
	return surveillance.DetectionConfig{
		Layering: surveillance.LayeringConfig{
			MinOrders:            c.Detection.Layering.MinOrders,
			MinCancellationRate:  decimal.NewFromFloat(c.Detection.Layering.MinCancellationRate),
			MaxTimeWindowSeconds: c.Detection.Layering.MaxTimeWindowSeconds,
		},
		Spoofing: surveillance.SpoofingConfig{
			MinOrders:           c.Detection.Spoofing.MinOrders,
			MinOrderSize:        decimal.NewFromFloat(c.Detection.Spoofing.MinOrderSize),
			MinCancellationRate: decimal.NewFromFloat(c.Detection.Spoofing.MinCancellationRate),
			MaxTimeToCancelMs:   c.Detection.Spoofing.MaxTimeToCancelMs,
		},
		WashTrading: surveillance.WashTradingConfig{
			MaxTimeDifferenceSeconds: c.Detection.WashTrading.MaxTimeDifferenceSeconds,
			PriceTolerance:           decimal.NewFromFloat(c.Detection.WashTrading.PriceTolerance),
			QuantityTolerance:        decimal.NewFromFloat(c.Detection.WashTrading.QuantityTolerance),
		},
		PumpDump: surveillance.PumpDumpConfig{
			MinVolumeZScore: decimal.NewFromFloat(c.Detection.PumpDump.MinVolumeZScore),
			MinPriceRise:    decimal.NewFromFloat(c.Detection.PumpDump.MinPriceRise),
			MinPriceDecline: decimal.NewFromFloat(c.Detection.PumpDump.MinPriceDecline),
		},
		QuoteStuffing: surveillance.QuoteStuffingConfig{
			MinQuoteRate:      decimal.NewFromFloat(c.Detection.QuoteStuffing.MinQuoteRate),
			MinCancelRate:     decimal.NewFromFloat(c.Detection.QuoteStuffing.MinCancelRate),
			TimeWindowSeconds: c.Detection.QuoteStuffing.TimeWindowSeconds,
		},
		Cornering: surveillance.CorneringConfig{
			MinTrades:      c.Detection.Cornering.MinTrades,
			MinVolumeShare: decimal.NewFromFloat(c.Detection.Cornering.MinVolumeShare),
		},
		Ramping: surveillance.RampingConfig{
			MinTrades:            c.Detection.Ramping.MinTrades,
			MinPriceRise:         decimal.NewFromFloat(c.Detection.Ramping.MinPriceRise),
			MinDirectionalRatio:  decimal.NewFromFloat(c.Detection.Ramping.MinDirectionalRatio),
			MaxTimeWindowSeconds: c.Detection.Ramping.MaxTimeWindowSeconds,
		},
		CircularTrading: surveillance.CircularTradingConfig{
			MinCycleTrades:    c.Detection.CircularTrading.MinCycleTrades,
			MaxAccounts:       c.Detection.CircularTrading.MaxAccounts,
			QuantityTolerance: decimal.NewFromFloat(c.Detection.CircularTrading.QuantityTolerance),
		},
		FrontRunning: surveillance.FrontRunningConfig{
			MinClientOrderValue: decimal.NewFromFloat(c.Detection.FrontRunning.MinClientOrderValue),
		},
		InsiderTrading: surveillance.InsiderTradingConfig{
			MaxDaysBeforeEvent: c.Detection.InsiderTrading.MaxDaysBeforeEvent,
			MinProfitThreshold: decimal.NewFromFloat(c.Detection.InsiderTrading.MinProfitThreshold),
			MinTimingScore:     decimal.NewFromFloat(c.Detection.InsiderTrading.MinTimingScore),
		},
	}
}
