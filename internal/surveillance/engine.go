package surveillance

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/model"
)

// Batch is one bounded slice of market activity, e.g. a venue-day or a
// trading session. The engine only reads it.
type Batch struct {
	Orders []*model.Order
	Trades []*model.Trade
	Quotes []*model.Quote
	Events []model.MaterialEvent
}

// Result carries everything a run successfully computed plus the explicit
// list of groups and analyzers that were skipped and why.
type Result struct {
	Detections []Detection   `json:"detections"`
	Skipped    []SkipReport  `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Engine fans the full analyzer set out over a batch and joins the results.
// Analyzers share no mutable state, so they run as independent goroutines.
type Engine struct {
	config  DetectionConfig
	logger  *zap.SugaredLogger
	metrics *Metrics

	layering  *LayeringDetector
	spoofing  *SpoofingDetector
	wash      *WashTradingDetector
	pumpDump  *PumpDumpDetector
	stuffing  *QuoteStuffingDetector
	cornering *CorneringDetector
	ramping   *RampingDetector
	circular  *CircularTradingDetector
	frontRun  *FrontRunningDetector
	insider   *InsiderTradingDetector

	// now is injectable so detection timestamps are deterministic in tests.
	now func() time.Time
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithClock overrides the wall clock used to stamp detections.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine validates the config and builds the analyzer set. The accounts
// oracle serves wash-trade ownership checks; baselines serves volume-anomaly
// comparisons. Either collaborator may be nil, in which case the analyzers
// that need it simply never fire.
func NewEngine(config DetectionConfig, accounts AccountGraph, baselines BaselineProvider, logger *zap.SugaredLogger, opts ...EngineOption) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:    config,
		logger:    logger,
		layering:  NewLayeringDetector(config.Layering, logger),
		spoofing:  NewSpoofingDetector(config.Spoofing, logger),
		wash:      NewWashTradingDetector(config.WashTrading, accounts, logger),
		pumpDump:  NewPumpDumpDetector(config.PumpDump, baselines, logger),
		stuffing:  NewQuoteStuffingDetector(config.QuoteStuffing, logger),
		cornering: NewCorneringDetector(config.Cornering, logger),
		ramping:   NewRampingDetector(config.Ramping, logger),
		circular:  NewCircularTradingDetector(config.CircularTrading, logger),
		frontRun:  NewFrontRunningDetector(config.FrontRunning, logger),
		insider:   NewInsiderTradingDetector(config.InsiderTrading, logger),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type analyzerRun struct {
	name string
	run  func(at time.Time) ([]Detection, []SkipReport)
}

type analyzerResult struct {
	name       string
	detections []Detection
	skips      []SkipReport
}

// Run executes every analyzer against the batch and merges the results.
// A failing analyzer contributes a skip entry instead of aborting the run;
// ctx cancellation stops the collection early and returns ctx.Err().
func (e *Engine) Run(ctx context.Context, batch Batch) (*Result, error) {
	startedAt := e.now()
	at := startedAt
	wallStart := time.Now()

	analyzers := []analyzerRun{
		{PatternLayering, func(at time.Time) ([]Detection, []SkipReport) { return e.layering.Detect(batch.Orders, at) }},
		{PatternSpoofing, func(at time.Time) ([]Detection, []SkipReport) { return e.spoofing.Detect(batch.Orders, at) }},
		{PatternWashTrading, func(at time.Time) ([]Detection, []SkipReport) { return e.wash.Detect(batch.Trades, at) }},
		{PatternPumpDump, func(at time.Time) ([]Detection, []SkipReport) { return e.pumpDump.Detect(batch.Trades, at) }},
		{PatternQuoteStuffing, func(at time.Time) ([]Detection, []SkipReport) { return e.stuffing.Detect(batch.Quotes, at) }},
		{PatternCornering, func(at time.Time) ([]Detection, []SkipReport) { return e.cornering.Detect(batch.Trades, at) }},
		{PatternRamping, func(at time.Time) ([]Detection, []SkipReport) { return e.ramping.Detect(batch.Trades, at) }},
		{PatternCircularTrading, func(at time.Time) ([]Detection, []SkipReport) { return e.circular.Detect(batch.Trades, at) }},
		{PatternFrontRunning, func(at time.Time) ([]Detection, []SkipReport) {
			return e.frontRun.Detect(batch.Orders, batch.Trades, at)
		}},
		{PatternInsiderTrading, func(at time.Time) ([]Detection, []SkipReport) {
			return e.insider.Detect(batch.Trades, batch.Events, at)
		}},
	}

	results := make(chan analyzerResult, len(analyzers))
	var wg sync.WaitGroup
	for _, a := range analyzers {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			var res analyzerResult
			res.name = a.name
			// An analyzer-level panic becomes a skip for the whole
			// analyzer; the other analyzers still complete.
			guardGroup(a.name, "*", e.logger, &res.skips, func() {
				res.detections, res.skips = a.run(at)
			})
			if e.metrics != nil {
				e.metrics.AnalyzerDuration.WithLabelValues(a.name).Observe(time.Since(started).Seconds())
			}
			results <- res
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := &Result{StartedAt: startedAt}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, open := <-results:
			if !open {
				e.finish(out, wallStart)
				return out, nil
			}
			out.Detections = append(out.Detections, res.detections...)
			out.Skipped = append(out.Skipped, res.skips...)
			if e.metrics != nil {
				for _, d := range res.detections {
					base := d.Base()
					e.metrics.DetectionsEmitted.WithLabelValues(base.Pattern, base.Severity).Inc()
				}
				e.metrics.GroupsSkipped.WithLabelValues(res.name).Add(float64(len(res.skips)))
			}
		}
	}
}

func (e *Engine) finish(out *Result, wallStart time.Time) {
	// Deterministic merge order regardless of goroutine scheduling.
	sort.SliceStable(out.Detections, func(i, j int) bool {
		a, b := out.Detections[i].Base(), out.Detections[j].Base()
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		if a.TraderID != b.TraderID {
			return a.TraderID < b.TraderID
		}
		return a.SecurityID < b.SecurityID
	})
	sort.SliceStable(out.Skipped, func(i, j int) bool {
		if out.Skipped[i].Analyzer != out.Skipped[j].Analyzer {
			return out.Skipped[i].Analyzer < out.Skipped[j].Analyzer
		}
		return out.Skipped[i].GroupKey < out.Skipped[j].GroupKey
	})

	out.Elapsed = time.Since(wallStart)
	if e.metrics != nil {
		e.metrics.BatchesProcessed.Inc()
	}
	if e.logger != nil {
		e.logger.Infow("surveillance batch complete",
			"detections", len(out.Detections),
			"skipped", len(out.Skipped),
			"elapsed", out.Elapsed,
		)
	}
}
