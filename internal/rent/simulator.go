// Package rent simulates the impact of a rent change on a business's
// cashflow metrics and compares the proposed rent to the market baseline.
package rent

import (
	"errors"
	"log/slog"
	"math"

	"cashflow-calm/internal/baseline"
	"cashflow-calm/internal/cashflow"
)

// ErrMissingParameter means the scenario named neither an increase percentage
// nor an absolute new rent.
var ErrMissingParameter = errors.New("must provide either increase_pct or new_rent")

// monthDays is the revenue-proxy month length the simulator uses. The
// original wire format rounds to 30 here rather than the engine's 30.4.
const monthDays = 30.0

// Scenario describes a proposed rent change. Exactly one of IncreasePct or
// NewRent is required; NewRent wins when both are set. Year enables the
// market baseline comparison; ObservedYoYPct overrides the z-scored YoY.
type Scenario struct {
	IncreasePct    *float64
	NewRent        *float64
	Year           *int
	ObservedYoYPct *float64
}

// Simulator re-derives risk state under a perturbed cost profile. It is pure
// over its inputs and safe for concurrent use.
type Simulator struct {
	baseline *baseline.Baseline
	logger   *slog.Logger
}

// NewSimulator creates a simulator. The baseline may be nil, in which case
// market comparisons are skipped.
func NewSimulator(b *baseline.Baseline) *Simulator {
	return &Simulator{baseline: b, logger: slog.Default()}
}

// WithLogger overrides the logger.
func (s *Simulator) WithLogger(logger *slog.Logger) *Simulator {
	s.logger = logger
	return s
}

// Simulate computes the scenario result for a rent change against the current
// snapshot and cost profile.
func (s *Simulator) Simulate(snapshot *cashflow.MetricsSnapshot, costs cashflow.FixedCostProfile, sc Scenario) (*ScenarioResult, error) {
	if sc.IncreasePct == nil && sc.NewRent == nil {
		return nil, ErrMissingParameter
	}

	currentRent := costs.Rent

	var newRent, deltaPct float64
	if sc.NewRent != nil {
		newRent = *sc.NewRent
		if currentRent > 0 {
			deltaPct = (newRent - currentRent) / currentRent * 100.0
		}
	} else {
		newRent = currentRent * (1.0 + *sc.IncreasePct/100.0)
		deltaPct = *sc.IncreasePct
	}

	result := &ScenarioResult{
		OldRent:          currentRent,
		NewRent:          newRent,
		DeltaMonthly:     newRent - currentRent,
		DeltaPct:         deltaPct,
		CurrentRiskState: snapshot.RiskState,
		RunwayTransition: TransitionNone,
	}

	// Fixed cost burden against the monthly revenue proxy.
	newTotalFixed := newRent + costs.Payroll + costs.Other
	avgMonthlyRevenue := snapshot.AvgDailyRevenue * monthDays
	if avgMonthlyRevenue <= 0 {
		result.RevenueInsufficient = true
	} else {
		burden := newTotalFixed / avgMonthlyRevenue
		result.NewFixedCostBurden = &burden
	}

	// Runway under the new fixed costs, when the cash position is known.
	var newRunway *float64
	if costs.CashOnHand != nil {
		net := snapshot.AvgDailyRevenue - newTotalFixed/monthDays
		if net > 0 {
			result.RunwayIsInfinite = true
		} else if burn := math.Abs(net); burn > 0 {
			runway := *costs.CashOnHand / burn
			newRunway = &runway
		}

		switch {
		case snapshot.RunwayDays == nil && newRunway != nil:
			result.RunwayTransition = TransitionInfiniteToFinite
		case snapshot.RunwayDays != nil && newRunway == nil:
			result.RunwayTransition = TransitionFiniteToInfinite
		case snapshot.RunwayDays != nil && newRunway != nil:
			impact := *newRunway - *snapshot.RunwayDays
			result.RunwayImpactDays = &impact
		}
	}

	// Re-classify with the canonical cascade on a revenue basis. An unknown
	// burden is the worst case, not a pass.
	burdenForRisk := math.Inf(1)
	if result.NewFixedCostBurden != nil {
		burdenForRisk = *result.NewFixedCostBurden
	}
	result.NewRiskState = cashflow.ClassifyRisk(cashflow.RiskInputs{
		BurdenRevenue: burdenForRisk,
		RunwayDays:    newRunway,
		Volatility:    snapshot.Volatility,
		Trend30d:      snapshot.Trend30d,
	})

	if sc.Year != nil {
		s.compareToMarket(result, sc)
	}

	return result, nil
}

// compareToMarket fills the market_* fields. Any problem with the baseline is
// logged and the fields are omitted; the simulation itself never fails here.
func (s *Simulator) compareToMarket(result *ScenarioResult, sc Scenario) {
	if s.baseline == nil {
		s.logger.Warn("market baseline comparison skipped: no baseline configured", "year", *sc.Year)
		return
	}

	expected := s.baseline.Predict(*sc.Year)
	if math.IsNaN(expected) || math.IsInf(expected, 0) {
		s.logger.Warn("market baseline comparison skipped: prediction not finite",
			"year", *sc.Year, "source", s.baseline.SourceName)
		return
	}

	deltaMonthly := result.NewRent - expected
	result.MarketExpectedPrice = &expected
	result.MarketDeltaMonthly = &deltaMonthly
	if expected > 0 {
		pct := deltaMonthly / expected * 100.0
		result.MarketDeltaPct = &pct
	}

	yoy := result.DeltaPct
	if sc.ObservedYoYPct != nil {
		yoy = *sc.ObservedYoYPct
	}
	z := s.baseline.ZScore(yoy)
	result.MarketZScore = &z
}
