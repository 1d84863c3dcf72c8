package rent

import "cashflow-calm/internal/cashflow"

// RunwayTransition says how the runway changed category under the scenario.
type RunwayTransition string

const (
	TransitionNone             RunwayTransition = "none"
	TransitionInfiniteToFinite RunwayTransition = "infinite_to_finite"
	TransitionFiniteToInfinite RunwayTransition = "finite_to_infinite"
)

// ScenarioResult is the outcome of a rent-change simulation.
//
// NewFixedCostBurden is nil when average revenue is insufficient to form the
// ratio (RevenueInsufficient is then true, and the burden is treated as
// infinite for risk classification). RunwayImpactDays is set only when both
// the current and the new runway are finite. The market_* fields are present
// only when the scenario supplied a reference year and the baseline
// comparison succeeded.
type ScenarioResult struct {
	OldRent      float64 `json:"old_rent"`
	NewRent      float64 `json:"new_rent"`
	DeltaMonthly float64 `json:"delta_monthly"`
	DeltaPct     float64 `json:"delta_pct"`

	NewFixedCostBurden  *float64 `json:"new_fixed_cost_burden"`
	RevenueInsufficient bool     `json:"revenue_insufficient"`

	CurrentRiskState cashflow.RiskState `json:"current_risk_state"`
	NewRiskState     cashflow.RiskState `json:"new_risk_state"`

	RunwayImpactDays *float64         `json:"runway_impact_days"`
	RunwayTransition RunwayTransition `json:"runway_transition"`
	RunwayIsInfinite bool             `json:"runway_is_infinite"`

	MarketExpectedPrice *float64 `json:"market_expected_price,omitempty"`
	MarketDeltaMonthly  *float64 `json:"market_delta_monthly,omitempty"`
	MarketDeltaPct      *float64 `json:"market_delta_pct,omitempty"`
	MarketZScore        *float64 `json:"market_z_score,omitempty"`
}
