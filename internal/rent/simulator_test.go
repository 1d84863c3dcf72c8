package rent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow-calm/internal/baseline"
	"cashflow-calm/internal/cashflow"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// healthySnapshot is a business comfortably covering its costs: $500/day
// against $2000 rent + $1500 payroll.
func healthySnapshot() *cashflow.MetricsSnapshot {
	return &cashflow.MetricsSnapshot{
		AvgDailyRevenue:     500,
		AvgDailyGrossProfit: 500,
		Volatility:          0.1,
		RiskState:           cashflow.RiskHealthy,
	}
}

func healthyCosts() cashflow.FixedCostProfile {
	return cashflow.FixedCostProfile{Rent: 2000, Payroll: 1500}
}

func TestSimulate_MissingParameter(t *testing.T) {
	_, err := NewSimulator(nil).Simulate(healthySnapshot(), healthyCosts(), Scenario{})
	require.ErrorIs(t, err, ErrMissingParameter)
}

func TestSimulate_IncreasePct(t *testing.T) {
	result, err := NewSimulator(nil).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(15)})
	require.NoError(t, err)

	assert.Equal(t, 2000.0, result.OldRent)
	assert.InDelta(t, 2300.0, result.NewRent, 1e-9)
	assert.InDelta(t, 300.0, result.DeltaMonthly, 1e-9)
	assert.InDelta(t, 15.0, result.DeltaPct, 1e-9)

	// (2300 + 1500) / (500 * 30) monthly revenue proxy.
	require.NotNil(t, result.NewFixedCostBurden)
	assert.InDelta(t, 3800.0/15000.0, *result.NewFixedCostBurden, 1e-9)
	assert.False(t, result.RevenueInsufficient)
	assert.Equal(t, cashflow.RiskHealthy, result.NewRiskState)
}

// TestSimulate_NewRentPrecedence verifies that an absolute new rent wins over
// a simultaneous increase percentage, and that the delta is derived from the
// rents rather than taken from the ignored percentage.
func TestSimulate_NewRentPrecedence(t *testing.T) {
	result, err := NewSimulator(nil).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(50), NewRent: fptr(2200)})
	require.NoError(t, err)

	assert.InDelta(t, 2200.0, result.NewRent, 1e-9)
	assert.InDelta(t, 10.0, result.DeltaPct, 1e-9)
}

func TestSimulate_NewRentWithZeroCurrentRent(t *testing.T) {
	costs := cashflow.FixedCostProfile{Rent: 0, Payroll: 1500}
	result, err := NewSimulator(nil).Simulate(healthySnapshot(), costs,
		Scenario{NewRent: fptr(1000)})
	require.NoError(t, err)

	assert.InDelta(t, 1000.0, result.NewRent, 1e-9)
	assert.Zero(t, result.DeltaPct) // no base to express a percentage against
	assert.InDelta(t, 1000.0, result.DeltaMonthly, 1e-9)
}

func TestSimulate_RentDecrease(t *testing.T) {
	result, err := NewSimulator(nil).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(-10)})
	require.NoError(t, err)

	assert.InDelta(t, 1800.0, result.NewRent, 1e-9)
	assert.InDelta(t, -200.0, result.DeltaMonthly, 1e-9)
}

// TestSimulate_RevenueInsufficient verifies the no-revenue degradation: the
// burden is unknown, flagged, and treated as worst case by the classifier.
func TestSimulate_RevenueInsufficient(t *testing.T) {
	snapshot := &cashflow.MetricsSnapshot{AvgDailyRevenue: 0}
	result, err := NewSimulator(nil).Simulate(snapshot, healthyCosts(),
		Scenario{IncreasePct: fptr(10)})
	require.NoError(t, err)

	assert.True(t, result.RevenueInsufficient)
	assert.Nil(t, result.NewFixedCostBurden)
	assert.Equal(t, cashflow.RiskCritical, result.NewRiskState)
}

func TestSimulate_RunwayFiniteToInfinite(t *testing.T) {
	// Currently burning cash, but the rent cut flips daily net positive:
	// 100/day revenue against (2000+1500)/30 ≈ 116.7 now, 80/day after.
	cash := 3000.0
	snapshot := &cashflow.MetricsSnapshot{
		AvgDailyRevenue: 100,
		RunwayDays:      fptr(40),
	}
	costs := cashflow.FixedCostProfile{Rent: 2000, Payroll: 1500, CashOnHand: &cash}

	result, err := NewSimulator(nil).Simulate(snapshot, costs, Scenario{NewRent: fptr(900)})
	require.NoError(t, err)

	assert.True(t, result.RunwayIsInfinite)
	assert.Equal(t, TransitionFiniteToInfinite, result.RunwayTransition)
	assert.Nil(t, result.RunwayImpactDays)
}

func TestSimulate_RunwayInfiniteToFinite(t *testing.T) {
	// Currently net positive, and the increase flips it negative:
	// 120/day revenue, (2000+1500)/30 ≈ 116.7 now, (2300+1500)/30 ≈ 126.7 after.
	cash := 6000.0
	snapshot := &cashflow.MetricsSnapshot{AvgDailyRevenue: 120}
	costs := cashflow.FixedCostProfile{Rent: 2000, Payroll: 1500, CashOnHand: &cash}

	result, err := NewSimulator(nil).Simulate(snapshot, costs, Scenario{IncreasePct: fptr(15)})
	require.NoError(t, err)

	assert.False(t, result.RunwayIsInfinite)
	assert.Equal(t, TransitionInfiniteToFinite, result.RunwayTransition)
}

func TestSimulate_RunwayImpact(t *testing.T) {
	// Burning cash before and after: impact is the signed day difference.
	cash := 9000.0
	snapshot := &cashflow.MetricsSnapshot{
		AvgDailyRevenue: 100,
		RunwayDays:      fptr(9000.0 / (3500.0/30.0 - 100.0)),
	}
	costs := cashflow.FixedCostProfile{Rent: 2000, Payroll: 1500, CashOnHand: &cash}

	result, err := NewSimulator(nil).Simulate(snapshot, costs, Scenario{IncreasePct: fptr(15)})
	require.NoError(t, err)

	assert.Equal(t, TransitionNone, result.RunwayTransition)
	require.NotNil(t, result.RunwayImpactDays)
	assert.Negative(t, *result.RunwayImpactDays)

	newBurn := (2300.0+1500.0)/30.0 - 100.0
	oldBurn := 3500.0/30.0 - 100.0
	assert.InDelta(t, 9000.0/newBurn-9000.0/oldBurn, *result.RunwayImpactDays, 1e-6)
}

func TestSimulate_NoRunwayWithoutCash(t *testing.T) {
	result, err := NewSimulator(nil).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(10)})
	require.NoError(t, err)

	assert.Equal(t, TransitionNone, result.RunwayTransition)
	assert.Nil(t, result.RunwayImpactDays)
	assert.False(t, result.RunwayIsInfinite)
}

// TestSimulate_MarketComparison verifies the market_* fields against a known
// linear baseline.
func TestSimulate_MarketComparison(t *testing.T) {
	b := baseline.Load(context.Background(), nil, baseline.BuildOptions{}, nil)
	require.True(t, b.Fallback)

	result, err := NewSimulator(b).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(15), Year: iptr(2025)})
	require.NoError(t, err)

	require.NotNil(t, result.MarketExpectedPrice)
	assert.InDelta(t, b.Predict(2025), *result.MarketExpectedPrice, 1e-9)

	require.NotNil(t, result.MarketDeltaMonthly)
	assert.InDelta(t, result.NewRent-b.Predict(2025), *result.MarketDeltaMonthly, 1e-9)

	require.NotNil(t, result.MarketDeltaPct)
	require.NotNil(t, result.MarketZScore)
	assert.InDelta(t, b.ZScore(15), *result.MarketZScore, 1e-9)
}

func TestSimulate_MarketObservedYoYOverride(t *testing.T) {
	b := baseline.Load(context.Background(), nil, baseline.BuildOptions{}, nil)

	result, err := NewSimulator(b).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(15), Year: iptr(2025), ObservedYoYPct: fptr(8)})
	require.NoError(t, err)

	require.NotNil(t, result.MarketZScore)
	assert.InDelta(t, b.ZScore(8), *result.MarketZScore, 1e-9)
}

// TestSimulate_MarketSkippedWithoutBaseline verifies the comparison degrades
// to omission, never to a failure.
func TestSimulate_MarketSkippedWithoutBaseline(t *testing.T) {
	result, err := NewSimulator(nil).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(15), Year: iptr(2025)})
	require.NoError(t, err)

	assert.Nil(t, result.MarketExpectedPrice)
	assert.Nil(t, result.MarketDeltaMonthly)
	assert.Nil(t, result.MarketDeltaPct)
	assert.Nil(t, result.MarketZScore)
}

func TestSimulate_MarketSkippedWithoutYear(t *testing.T) {
	b := baseline.Load(context.Background(), nil, baseline.BuildOptions{}, nil)
	result, err := NewSimulator(b).Simulate(healthySnapshot(), healthyCosts(),
		Scenario{IncreasePct: fptr(15)})
	require.NoError(t, err)

	assert.Nil(t, result.MarketExpectedPrice)
	assert.Nil(t, result.MarketZScore)
}
