package cashflow

// RiskInputs feeds the canonical risk classifier. The rent simulator reuses
// it with a zero variable cost rate and a revenue-basis burden, which skips
// the gross-profit branches and leaves the revenue-only ladder.
type RiskInputs struct {
	VariableCostRate  float64
	BurdenRevenue     float64 // +Inf when no revenue base
	BurdenGrossProfit float64 // +Inf when no gross-profit base
	NetDailyCashFlow  float64
	RunwayDays        *float64
	Volatility        float64
	Trend30d          float64
}

// ClassifyRisk runs the first-match-wins risk cascade. Evaluation order
// matters: structural unprofitability at current margins outranks runway,
// runway outranks burden, burden outranks volatility and trend.
func ClassifyRisk(in RiskInputs) RiskState {
	marginAware := in.VariableCostRate > 0

	if marginAware && in.BurdenGrossProfit >= GrossBurdenCritical {
		return RiskCritical
	}
	if marginAware && in.NetDailyCashFlow < 0 && in.BurdenGrossProfit >= GrossBurdenCaution {
		return RiskCaution
	}
	if in.RunwayDays != nil && *in.RunwayDays < RunwayCriticalDays {
		return RiskCritical
	}
	if !marginAware && in.BurdenRevenue > BurdenCritical {
		return RiskCritical
	}
	if in.Volatility > VolatilityCritical && in.Trend30d < -15 {
		return RiskCritical
	}

	if in.RunwayDays != nil && *in.RunwayDays < RunwayCautionDays {
		return RiskCaution
	}
	if !marginAware && in.BurdenRevenue > BurdenCaution {
		return RiskCaution
	}
	if in.Volatility > VolatilityCaution {
		return RiskCaution
	}
	if in.Trend30d < -10 {
		return RiskCaution
	}

	return RiskHealthy
}
