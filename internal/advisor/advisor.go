// Package advisor turns a metrics snapshot into product-facing advice: a
// plain-language state, the factual drivers behind it, and recommended
// actions. Numbers come only from the engine; the optional narrative layer
// rephrases them but never computes.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"cashflow-calm/internal/cashflow"
)

// State is the product-language health label.
type State string

const (
	StateStable       State = "stable"
	StateWatchClosely State = "watch_closely"
	StateActionNeeded State = "action_needed"
)

// Action is one recommended step.
type Action struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Advice is the advisor output.
type Advice struct {
	State           State                     `json:"state"`
	RunwayDays      *float64                  `json:"runway_days"`
	RiskHorizonDays int                       `json:"risk_horizon_days"`
	Confidence      float64                   `json:"confidence"`
	Drivers         []string                  `json:"drivers"`
	Actions         []Action                  `json:"actions"`
	Note            string                    `json:"note,omitempty"`
	Metrics         *cashflow.MetricsSnapshot `json:"metrics,omitempty"`
	Narrative       json.RawMessage           `json:"narrative,omitempty"`
}

// Config tunes output sizing and the data-sufficiency note.
type Config struct {
	MaxDrivers                int
	MaxActions                int
	MinDaysForConfidentAdvice int
	IncludeMetricsBlock       bool
}

// DefaultConfig returns the standard advisor configuration.
func DefaultConfig() Config {
	return Config{
		MaxDrivers:                3,
		MaxActions:                5,
		MinDaysForConfidentAdvice: 14,
		IncludeMetricsBlock:       true,
	}
}

// Advisor composes the metrics engine with rules-based advice generation and
// optional memoized narration.
type Advisor struct {
	engine   *cashflow.Engine
	config   Config
	narrator Narrator
	logger   *slog.Logger
}

// New creates an advisor over a metrics engine.
func New(engine *cashflow.Engine, config Config) *Advisor {
	return &Advisor{engine: engine, config: config, logger: slog.Default()}
}

// WithNarrator attaches a narrative generator. Narration is best-effort: a
// failure is logged and the advice goes out without it.
func (a *Advisor) WithNarrator(n Narrator) *Advisor {
	a.narrator = n
	return a
}

// WithLogger overrides the logger.
func (a *Advisor) WithLogger(logger *slog.Logger) *Advisor {
	a.logger = logger
	return a
}

// Advise computes metrics and generates advice for them.
func (a *Advisor) Advise(ctx context.Context, samples []cashflow.RevenueSample, costs cashflow.FixedCostProfile, variableCostRate float64) (*Advice, error) {
	snapshot, err := a.engine.Compute(samples, costs, variableCostRate)
	if err != nil {
		return nil, err
	}

	advice := &Advice{
		State:           mapState(snapshot.RiskState),
		RunwayDays:      snapshot.RunwayDays,
		RiskHorizonDays: snapshot.RiskHorizonDays,
		Confidence:      snapshot.Confidence,
		Drivers:         truncateStrings(buildDrivers(snapshot, variableCostRate), a.config.MaxDrivers),
		Actions:         truncateActions(buildActions(snapshot, variableCostRate), a.config.MaxActions),
	}
	if a.config.IncludeMetricsBlock {
		advice.Metrics = snapshot
	}
	if snapshot.DataDays < a.config.MinDaysForConfidentAdvice {
		advice.Note = fmt.Sprintf(
			"Advice is based on %d days of revenue data. For more reliable guidance, upload ~30+ days.",
			snapshot.DataDays)
	}

	if a.narrator != nil {
		narrative, err := a.narrator.Narrate(ctx, advice)
		if err != nil {
			a.logger.Warn("narration failed, returning advice without it", "error", err)
		} else {
			advice.Narrative = narrative
		}
	}

	return advice, nil
}

// mapState translates the engine's risk state into product language.
func mapState(risk cashflow.RiskState) State {
	switch risk {
	case cashflow.RiskCritical:
		return StateActionNeeded
	case cashflow.RiskCaution:
		return StateWatchClosely
	default:
		return StateStable
	}
}

// buildDrivers generates short, factual "why" statements, most important
// first: runway, then burden, variable costs, trend, volatility.
func buildDrivers(m *cashflow.MetricsSnapshot, variableCostRate float64) []string {
	var drivers []string

	if m.RunwayDays == nil {
		drivers = append(drivers, "On average, your cash flow is not negative (no near-term runway risk detected).")
	} else {
		drivers = append(drivers, fmt.Sprintf("At the current average burn, runway is about %.0f days.", *m.RunwayDays))
	}

	if math.IsInf(m.FixedCostBurdenRevenue, 0) {
		drivers = append(drivers, "Fixed-cost burden couldn't be computed reliably from the current inputs.")
	} else {
		drivers = append(drivers, fmt.Sprintf("Fixed costs are about %.0f%% of average monthly sales.", m.FixedCostBurdenRevenue*100))
	}

	if variableCostRate > 0 {
		drivers = append(drivers, fmt.Sprintf("Variable costs (COGS/fees) reduce usable cash from sales by ~%.0f%% on average.", variableCostRate*100))
	}

	switch {
	case m.Trend30d <= -10:
		drivers = append(drivers, fmt.Sprintf("Sales trend is down ~%.0f%% over the last 30 days.", math.Abs(m.Trend30d)))
	case m.Trend30d >= 10:
		drivers = append(drivers, fmt.Sprintf("Sales trend is up ~%.0f%% over the last 30 days.", m.Trend30d))
	default:
		drivers = append(drivers, "Sales trend over the last 30 days is relatively flat.")
	}

	switch {
	case m.Volatility >= cashflow.VolatilityCritical:
		drivers = append(drivers, "Day-to-day sales vary a lot, which increases cash risk in a bad week.")
	case m.Volatility >= cashflow.VolatilityCaution:
		drivers = append(drivers, "Day-to-day sales are somewhat volatile; planning should use a safety buffer.")
	default:
		drivers = append(drivers, "Sales volatility appears manageable based on the recent data.")
	}

	return drivers
}

// buildActions generates practical, safe actions keyed off the same
// thresholds the engine classifies with.
func buildActions(m *cashflow.MetricsSnapshot, variableCostRate float64) []Action {
	actions := []Action{{
		Title: "Set a weekly cash checkpoint",
		Detail: "Once per week, review: cash balance, last-7-day sales, and upcoming fixed payments. " +
			"This catches problems early without needing dashboards.",
	}}

	if m.RunwayDays != nil && *m.RunwayDays < cashflow.RunwayCautionDays {
		actions = append(actions,
			Action{
				Title: "Reduce fixed commitments by 5-10%",
				Detail: "Look for fast changes: pause non-essential subscriptions, renegotiate vendor minimums, " +
					"tighten scheduling to demand, and delay discretionary purchases for 30 days.",
			},
			Action{
				Title:  "Pull some cash forward",
				Detail: "Consider gift cards, pre-paid bundles, or deposits (if appropriate). Keep terms clear and deliverable.",
			})
	}

	if !math.IsInf(m.FixedCostBurdenRevenue, 0) && m.FixedCostBurdenRevenue > cashflow.BurdenCaution {
		actions = append(actions, Action{
			Title: "Rebalance fixed vs. flexible costs",
			Detail: "If fixed costs are consuming most sales, prioritize changes that convert fixed to flexible: " +
				"align labor hours with demand, adjust operating hours, or shift some spend to performance-based channels.",
		})
	}

	if m.Trend30d <= -10 {
		actions = append(actions, Action{
			Title: "Run a 2-week sales lift experiment",
			Detail: "Pick one lever for 2 weeks: a slow-weekday promo, a bundle of best-sellers, or a partnership with a nearby business. " +
				"Compare results to your normal weekday baseline.",
		})
	}

	if m.Volatility >= cashflow.VolatilityCaution {
		actions = append(actions, Action{
			Title:  "Plan using a safety buffer",
			Detail: "Use below-average weeks (not just the mean) for planning. Hold a buffer before committing to new spend.",
		})
	}

	if variableCostRate >= 0.30 {
		actions = append(actions, Action{
			Title: "Improve margin on top items",
			Detail: "Review your top 10 items/services. Look for supplier swaps, portion control, small price adjustments, " +
				"or steering customers toward higher-margin options.",
		})
	}

	return actions
}

func truncateStrings(s []string, max int) []string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

func truncateActions(s []Action, max int) []Action {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
