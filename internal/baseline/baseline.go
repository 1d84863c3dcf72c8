// Package baseline fits a linear market-rent baseline (price vs. year) from a
// historical dataset and scores observed year-over-year changes against it.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// DefaultStdYoYPct is the assumed standard deviation of market YoY price
// inflation, in percentage points. It is a configured assumption, not derived
// from the dataset.
const DefaultStdYoYPct = 0.3

// ErrNotEnoughData means the dataset yielded fewer than 2 usable rows.
var ErrNotEnoughData = errors.New("need at least 2 usable (year, price) rows")

// Row is one usable dataset row. YoY is the optional year-over-year
// percentage change reported alongside the price.
type Row struct {
	Year  int
	Price float64
	YoY   *float64
}

// Source yields dataset rows. Implementations: CSVSource, the warehouse
// source in db/clickhouse, and the embedded fallback.
type Source interface {
	Name() string
	Rows(ctx context.Context) ([]Row, error)
}

// BuildOptions tunes the fit.
type BuildOptions struct {
	// StdYoYPct overrides DefaultStdYoYPct when > 0.
	StdYoYPct float64
}

func (o BuildOptions) stdYoY() float64 {
	if o.StdYoYPct > 0 {
		return o.StdYoYPct
	}
	return DefaultStdYoYPct
}

// Baseline is an immutable linear fit of price vs. year. Build it once and
// pass it by reference; a reload replaces the whole pointer, never individual
// fields, so readers always see a consistent fit.
type Baseline struct {
	Slope      float64 `json:"slope"`
	Intercept  float64 `json:"intercept"`
	YearMin    int     `json:"year_min"`
	YearMax    int     `json:"year_max"`
	MeanYoYPct float64 `json:"mean_yoy_pct"`
	StdYoYPct  float64 `json:"std_yoy_pct"`

	// Provenance. Fallback is true when the embedded series was used
	// instead of a real dataset; FallbackReason says why.
	SourceName     string `json:"source"`
	Fallback       bool   `json:"fallback"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Build fits a baseline from a source. It fails rather than degrading; use
// Load for the fallback behavior.
func Build(ctx context.Context, src Source, opts BuildOptions) (*Baseline, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", src.Name(), err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("dataset %s: %w (got %d)", src.Name(), ErrNotEnoughData, len(rows))
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	slope, intercept := leastSquares(sorted)

	b := &Baseline{
		Slope:      slope,
		Intercept:  intercept,
		YearMin:    sorted[0].Year,
		YearMax:    sorted[len(sorted)-1].Year,
		MeanYoYPct: meanYoY(sorted),
		StdYoYPct:  opts.stdYoY(),
		SourceName: src.Name(),
	}
	return b, nil
}

// Load builds a baseline from src, substituting the embedded fallback series
// when src is nil or the build fails. The degradation is recorded on the
// returned baseline and logged, never raised.
func Load(ctx context.Context, src Source, opts BuildOptions, logger *slog.Logger) *Baseline {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		logger.Warn("no market dataset configured, using embedded fallback series")
		return fallbackBaseline(opts, "no dataset configured")
	}

	b, err := Build(ctx, src, opts)
	if err != nil {
		logger.Warn("market dataset build failed, using embedded fallback series",
			"source", src.Name(), "error", err)
		return fallbackBaseline(opts, err.Error())
	}
	logger.Info("market baseline loaded", "source", src.Name(),
		"years", fmt.Sprintf("%d-%d", b.YearMin, b.YearMax), "slope", b.Slope)
	return b
}

// Predict returns the expected market price for a year.
func (b *Baseline) Predict(year int) float64 {
	return b.Slope*float64(year) + b.Intercept
}

// ZScore scores an observed YoY percentage against the baseline distribution.
// Returns 0 when the configured deviation is not positive.
func (b *Baseline) ZScore(observedPct float64) float64 {
	if b.StdYoYPct <= 0 {
		return 0
	}
	return (observedPct - b.MeanYoYPct) / b.StdYoYPct
}

// leastSquares fits price = slope*year + intercept. When every year is the
// same the fit degenerates to a flat line through the mean.
func leastSquares(rows []Row) (slope, intercept float64) {
	n := float64(len(rows))

	var xMean, yMean float64
	for _, r := range rows {
		xMean += float64(r.Year)
		yMean += r.Price
	}
	xMean /= n
	yMean /= n

	var num, den float64
	for _, r := range rows {
		dx := float64(r.Year) - xMean
		num += dx * (r.Price - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0, yMean
	}
	slope = num / den
	return slope, yMean - slope*xMean
}

// meanYoY averages the reported YoY column when any row carries it, otherwise
// derives consecutive percentage changes from the year-sorted prices.
func meanYoY(sorted []Row) float64 {
	var reported []float64
	for _, r := range sorted {
		if r.YoY != nil {
			reported = append(reported, *r.YoY)
		}
	}
	if len(reported) > 0 {
		return meanOf(reported)
	}

	var derived []float64
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Price
		if prev == 0 {
			continue
		}
		derived = append(derived, (sorted[i].Price-prev)/prev*100.0)
	}
	if len(derived) == 0 {
		return 0
	}
	return meanOf(derived)
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
