// Package cashflow computes deterministic financial-health metrics for a
// small business from its daily revenue history and fixed-cost profile.
package cashflow

import (
	"fmt"
	"log/slog"
	"math"
)

// Threshold constants shared by the metrics engine and the rent simulator.
const (
	VolatilityCaution  = 0.3 // coefficient of variation > 30%
	VolatilityCritical = 0.5 // coefficient of variation > 50%
	BurdenCaution      = 0.7 // fixed costs > 70% of revenue
	BurdenCritical     = 0.9 // fixed costs > 90% of revenue
	RunwayCriticalDays = 30.0
	RunwayCautionDays  = 60.0

	// Gross-profit burden thresholds, applied only when a variable cost
	// rate is in effect.
	GrossBurdenCritical = 1.0
	GrossBurdenCaution  = 0.8

	// DefaultDaysPerMonth converts monthly fixed costs to a daily figure.
	DefaultDaysPerMonth = 30.4
)

// Engine computes metrics snapshots. It is stateless and safe for concurrent
// use from any number of goroutines.
type Engine struct {
	daysPerMonth float64
	logger       *slog.Logger
}

// NewEngine creates a metrics engine with default settings.
func NewEngine() *Engine {
	return &Engine{daysPerMonth: DefaultDaysPerMonth, logger: slog.Default()}
}

// WithDaysPerMonth overrides the days-per-month constant.
func (e *Engine) WithDaysPerMonth(days float64) *Engine {
	e.daysPerMonth = days
	return e
}

// WithLogger overrides the logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Compute derives a MetricsSnapshot from an ordered revenue series and a cost
// profile. variableCostRate is the fraction of revenue consumed by COGS/fees
// and must be in [0, 1].
func (e *Engine) Compute(samples []RevenueSample, costs FixedCostProfile, variableCostRate float64) (*MetricsSnapshot, error) {
	if len(samples) == 0 {
		return nil, ErrNoData
	}
	if !(variableCostRate >= 0 && variableCostRate <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrRateOutOfRange, variableCostRate)
	}

	amounts := make([]float64, len(samples))
	for i, s := range samples {
		if s.Amount == nil {
			return nil, fmt.Errorf("sample %d (%s): %w", i, s.Date.Format("2006-01-02"), ErrMalformedSample)
		}
		amounts[i] = *s.Amount
	}

	dataDays := len(amounts)
	avgDaily := mean(amounts)
	avgDailyGross := avgDaily * (1.0 - variableCostRate)
	avgMonthly := avgDaily * e.daysPerMonth
	avgMonthlyGross := avgDailyGross * e.daysPerMonth

	volatility := 0.0
	if avgDaily > 0 {
		volatility = stddev(amounts) / avgDaily
	}

	totalFixed := costs.TotalMonthly()

	burdenRevenue := math.Inf(1)
	if avgMonthly > 0 {
		burdenRevenue = totalFixed / avgMonthly
	}
	burdenGross := math.Inf(1)
	if avgMonthlyGross > 0 {
		burdenGross = totalFixed / avgMonthlyGross
	}

	// Net cash flow after variable costs and fixed costs, per day.
	dailyFixed := totalFixed / e.daysPerMonth
	netDailyCashFlow := avgDailyGross - dailyFixed

	var runwayDays *float64
	if costs.CashOnHand != nil && netDailyCashFlow < 0 {
		burn := math.Abs(netDailyCashFlow)
		runway := *costs.CashOnHand / burn
		runwayDays = &runway
	}

	trend30 := trend(amounts, 30)

	snapshot := &MetricsSnapshot{
		AvgDailyRevenue:            avgDaily,
		AvgDailyGrossProfit:        avgDailyGross,
		Trend7d:                    trend(amounts, 7),
		Trend14d:                   trend(amounts, 14),
		Trend30d:                   trend30,
		Volatility:                 volatility,
		FixedCostBurdenRevenue:     burdenRevenue,
		FixedCostBurdenGrossProfit: burdenGross,
		RunwayDays:                 runwayDays,
		RiskHorizonDays:            riskHorizon(volatility, trend30),
		Confidence:                 confidence(dataDays, volatility),
		DataDays:                   dataDays,
	}
	snapshot.RiskState = ClassifyRisk(RiskInputs{
		VariableCostRate:  variableCostRate,
		BurdenRevenue:     burdenRevenue,
		BurdenGrossProfit: burdenGross,
		NetDailyCashFlow:  netDailyCashFlow,
		RunwayDays:        runwayDays,
		Volatility:        volatility,
		Trend30d:          trend30,
	})

	return snapshot, nil
}

// trend measures the percentage change between the older and newer half of
// the last `window` samples. The newer half takes the extra element when the
// window is odd. Returns 0 when fewer than 2 samples are available or the
// older half averages to zero.
func trend(amounts []float64, window int) float64 {
	n := len(amounts)
	if n == 0 {
		return 0
	}
	if window > n {
		window = n
	}
	if window < 2 {
		return 0
	}

	recent := amounts[n-window:]
	older := recent[:window/2]
	newer := recent[window/2:]

	avgOlder := mean(older)
	avgNewer := mean(newer)
	if avgOlder == 0 {
		return 0
	}
	return (avgNewer - avgOlder) / avgOlder * 100.0
}

// riskHorizon decides how many days ahead to monitor.
func riskHorizon(volatility, trend30 float64) int {
	horizon := 14
	if volatility > VolatilityCritical {
		horizon = 30
	} else if volatility > VolatilityCaution {
		horizon = 21
	}
	if trend30 < -10 {
		horizon += 7
	}
	return horizon
}

// confidence scores data quality in [0, 1]: a data-quantity component worth
// up to 0.7 plus a volatility component worth up to 0.3.
func confidence(dataDays int, volatility float64) float64 {
	var dataConfidence float64
	switch {
	case dataDays >= 90:
		dataConfidence = 0.7
	case dataDays >= 30:
		dataConfidence = 0.5 + float64(dataDays-30)/60.0*0.2
	default:
		dataConfidence = 0.3 + float64(dataDays)/30.0*0.2
	}

	var volatilityConfidence float64
	switch {
	case volatility < 0.2:
		volatilityConfidence = 0.3
	case volatility < 0.4:
		volatilityConfidence = 0.2
	default:
		volatilityConfidence = 0.1
	}

	return math.Min(dataConfidence+volatilityConfidence, 1.0)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
