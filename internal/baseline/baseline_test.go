package baseline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource serves fixed rows (or a fixed error) for fit tests.
type stubSource struct {
	rows []Row
	err  error
}

func (s stubSource) Name() string                            { return "stub" }
func (s stubSource) Rows(_ context.Context) ([]Row, error) { return s.rows, s.err }

func yoy(v float64) *float64 { return &v }

func TestBuild_LinearFit(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2020, Price: 100},
		{Year: 2021, Price: 110},
		{Year: 2022, Price: 120},
		{Year: 2023, Price: 130},
	}}

	b, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 10.0, b.Slope, 1e-9)
	assert.Equal(t, 2020, b.YearMin)
	assert.Equal(t, 2023, b.YearMax)
	assert.Equal(t, "stub", b.SourceName)
	assert.False(t, b.Fallback)

	// Consecutive predictions differ by exactly the slope.
	assert.InDelta(t, b.Slope, b.Predict(2026)-b.Predict(2025), 1e-9)
	assert.InDelta(t, 130.0, b.Predict(2023), 1e-9)
}

func TestBuild_UnsortedInput(t *testing.T) {
	shuffled := stubSource{rows: []Row{
		{Year: 2023, Price: 130},
		{Year: 2020, Price: 100},
		{Year: 2022, Price: 120},
		{Year: 2021, Price: 110},
	}}

	b, err := Build(context.Background(), shuffled, BuildOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, b.Slope, 1e-9)
	assert.Equal(t, 2020, b.YearMin)
	assert.Equal(t, 2023, b.YearMax)
}

func TestBuild_NotEnoughData(t *testing.T) {
	_, err := Build(context.Background(), stubSource{rows: []Row{{Year: 2020, Price: 100}}}, BuildOptions{})
	require.ErrorIs(t, err, ErrNotEnoughData)

	_, err = Build(context.Background(), stubSource{}, BuildOptions{})
	require.ErrorIs(t, err, ErrNotEnoughData)
}

func TestBuild_SourceError(t *testing.T) {
	srcErr := errors.New("connection refused")
	_, err := Build(context.Background(), stubSource{err: srcErr}, BuildOptions{})
	require.ErrorIs(t, err, srcErr)
}

// TestBuild_IdenticalYears pins the degenerate fit: every row in the same
// year flattens to slope 0 through the mean price.
func TestBuild_IdenticalYears(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2022, Price: 100},
		{Year: 2022, Price: 200},
	}}

	b, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)
	assert.Zero(t, b.Slope)
	assert.InDelta(t, 150.0, b.Intercept, 1e-9)
	assert.InDelta(t, 150.0, b.Predict(2030), 1e-9)
}

func TestBuild_MeanYoYFromReportedColumn(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2020, Price: 100, YoY: yoy(4)},
		{Year: 2021, Price: 110, YoY: yoy(6)},
	}}

	b, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, b.MeanYoYPct, 1e-9)
}

func TestBuild_MeanYoYDerivedFromPrices(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2020, Price: 100},
		{Year: 2021, Price: 110}, // +10%
		{Year: 2022, Price: 132}, // +20%
	}}

	b, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, b.MeanYoYPct, 1e-9)
}

func TestBuild_StdYoYIsConfiguredNotDerived(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2020, Price: 100, YoY: yoy(1)},
		{Year: 2021, Price: 200, YoY: yoy(99)},
	}}

	b, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultStdYoYPct, b.StdYoYPct)

	b, err = Build(context.Background(), src, BuildOptions{StdYoYPct: 2.5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, b.StdYoYPct)
}

func TestZScore(t *testing.T) {
	b := &Baseline{MeanYoYPct: 5, StdYoYPct: 0.5}

	assert.Zero(t, b.ZScore(5))
	assert.InDelta(t, 2.0, b.ZScore(6), 1e-9)
	assert.InDelta(t, -4.0, b.ZScore(3), 1e-9)
}

func TestZScore_NonPositiveStd(t *testing.T) {
	b := &Baseline{MeanYoYPct: 5, StdYoYPct: 0}
	assert.Zero(t, b.ZScore(100))

	b.StdYoYPct = -1
	assert.Zero(t, b.ZScore(100))
}

// TestLoad_FallbackOnNilSource verifies provenance when nothing is configured.
func TestLoad_FallbackOnNilSource(t *testing.T) {
	b := Load(context.Background(), nil, BuildOptions{}, nil)

	assert.True(t, b.Fallback)
	assert.Equal(t, "no dataset configured", b.FallbackReason)
	assert.Equal(t, "embedded-fallback", b.SourceName)
	assert.Equal(t, 2015, b.YearMin)
	assert.Equal(t, 2024, b.YearMax)
	assert.Positive(t, b.Slope)
}

func TestLoad_FallbackOnBuildFailure(t *testing.T) {
	b := Load(context.Background(), stubSource{err: errors.New("boom")}, BuildOptions{}, nil)

	assert.True(t, b.Fallback)
	assert.Contains(t, b.FallbackReason, "boom")
	assert.Equal(t, "embedded-fallback", b.SourceName)
}

func TestLoad_RealSourcePreferred(t *testing.T) {
	src := stubSource{rows: []Row{
		{Year: 2020, Price: 100},
		{Year: 2021, Price: 110},
	}}
	b := Load(context.Background(), src, BuildOptions{}, nil)

	assert.False(t, b.Fallback)
	assert.Empty(t, b.FallbackReason)
	assert.Equal(t, "stub", b.SourceName)
}
