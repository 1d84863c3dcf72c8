package cashflow

import (
	"encoding/json"
	"math"
	"time"
)

// RiskState is the categorical health label for a business.
type RiskState string

const (
	RiskHealthy  RiskState = "healthy"
	RiskCaution  RiskState = "caution"
	RiskCritical RiskState = "critical"
)

// RevenueSample is one day of revenue. Callers supply samples in ascending
// date order; the engine trusts that ordering and never re-sorts. Amount is a
// pointer so a sample that arrived without one can be rejected instead of
// silently reading as zero.
type RevenueSample struct {
	Date   time.Time `json:"date"`
	Amount *float64  `json:"amount"`
}

// Sample builds a RevenueSample for a date and amount.
func Sample(date time.Time, amount float64) RevenueSample {
	return RevenueSample{Date: date, Amount: &amount}
}

// FixedCostProfile holds monthly fixed costs. CashOnHand is optional and
// controls whether runway can be computed at all.
type FixedCostProfile struct {
	Rent       float64  `json:"rent"`
	Payroll    float64  `json:"payroll"`
	Other      float64  `json:"other"`
	CashOnHand *float64 `json:"cash_on_hand,omitempty"`
}

// TotalMonthly returns rent + payroll + other.
func (f FixedCostProfile) TotalMonthly() float64 {
	return f.Rent + f.Payroll + f.Other
}

// MetricsSnapshot is the derived health snapshot. It is a value computed once
// per call and never mutated in place.
//
// Burden fields use +Inf as the sentinel for "no revenue base to divide by".
// RunwayDays is nil when cash on hand is unknown or the business is not
// burning cash on average.
type MetricsSnapshot struct {
	AvgDailyRevenue            float64   `json:"avg_daily_revenue"`
	AvgDailyGrossProfit        float64   `json:"avg_daily_gross_profit"`
	Trend7d                    float64   `json:"trend_7d"`
	Trend14d                   float64   `json:"trend_14d"`
	Trend30d                   float64   `json:"trend_30d"`
	Volatility                 float64   `json:"volatility"`
	FixedCostBurdenRevenue     float64   `json:"fixed_cost_burden_revenue"`
	FixedCostBurdenGrossProfit float64   `json:"fixed_cost_burden_gross_profit"`
	RunwayDays                 *float64  `json:"runway_days"`
	RiskHorizonDays            int       `json:"risk_horizon_days"`
	RiskState                  RiskState `json:"risk_state"`
	Confidence                 float64   `json:"confidence"`
	DataDays                   int       `json:"data_days"`
}

// MarshalJSON renders infinite burden ratios as null so snapshots stay valid
// JSON for the CLI and for cache fingerprinting.
func (m MetricsSnapshot) MarshalJSON() ([]byte, error) {
	type alias MetricsSnapshot
	out := struct {
		alias
		FixedCostBurdenRevenue     *float64 `json:"fixed_cost_burden_revenue"`
		FixedCostBurdenGrossProfit *float64 `json:"fixed_cost_burden_gross_profit"`
	}{alias: alias(m)}
	if !math.IsInf(m.FixedCostBurdenRevenue, 0) {
		v := m.FixedCostBurdenRevenue
		out.FixedCostBurdenRevenue = &v
	}
	if !math.IsInf(m.FixedCostBurdenGrossProfit, 0) {
		v := m.FixedCostBurdenGrossProfit
		out.FixedCostBurdenGrossProfit = &v
	}
	return json.Marshal(out)
}
