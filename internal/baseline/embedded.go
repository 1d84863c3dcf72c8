package baseline

import "context"

// fallbackSeries is a demo-safe 2015-2024 land-equivalent series used when no
// real dataset can be loaded.
var fallbackSeries = []struct {
	year  int
	price float64
	yoy   float64
}{
	{2015, 2100.0, 4.8},
	{2016, 2200.0, 4.9},
	{2017, 2305.0, 4.8},
	{2018, 2415.0, 4.9},
	{2019, 2530.0, 4.8},
	{2020, 2480.0, -2.0},
	{2021, 2620.0, 5.6},
	{2022, 2850.0, 8.8},
	{2023, 3100.0, 8.7},
	{2024, 3350.0, 7.0},
}

// EmbeddedSource serves the fallback series through the regular Source
// interface so the fallback path exercises the same build code.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded-fallback" }

func (EmbeddedSource) Rows(_ context.Context) ([]Row, error) {
	rows := make([]Row, 0, len(fallbackSeries))
	for _, e := range fallbackSeries {
		yoy := e.yoy
		rows = append(rows, Row{Year: e.year, Price: e.price, YoY: &yoy})
	}
	return rows, nil
}

func fallbackBaseline(opts BuildOptions, reason string) *Baseline {
	// The embedded series is static and well-formed, so this cannot fail.
	b, err := Build(context.Background(), EmbeddedSource{}, opts)
	if err != nil {
		panic("embedded fallback series failed to build: " + err.Error())
	}
	b.Fallback = true
	b.FallbackReason = reason
	return b
}
