package baseline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Recognized column names, matched case-insensitively. The target column is
// a land-equivalent / rent proxy; spreadsheets in the wild disagree on what
// to call it.
var (
	dateColumns  = []string{"date", "event_date", "start_date", "start"}
	priceColumns = []string{"avg_land_price_usd", "avg_land_price", "avg_monthly_rent_usd", "avg_rent", "rent", "price"}
	yoyColumns   = []string{"land_yoy_pct", "yoy_pct"}
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CSVSource reads dataset rows from a CSV file. Rows with a missing or
// unparseable year or price are skipped, not fatal; a missing header or
// column is fatal.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return s.Path }

func (s CSVSource) Rows(_ context.Context) ([]Row, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	yearIdx, hasYear := cols["year"]
	dateIdx, hasDate := findColumn(cols, dateColumns)
	priceIdx, hasPrice := findColumn(cols, priceColumns)
	yoyIdx, hasYoY := findColumn(cols, yoyColumns)

	if !hasPrice {
		return nil, fmt.Errorf("no usable target column, expected one of: %s", strings.Join(priceColumns, ", "))
	}
	if !hasYear && !hasDate {
		return nil, fmt.Errorf("no 'year' column and no date-like column to derive it from")
	}

	var rows []Row
	for {
		record, err := r.Read()
		if err != nil {
			break
		}

		year, ok := parseYear(record, yearIdx, hasYear, dateIdx, hasDate)
		if !ok {
			continue
		}
		price, ok := parseMoney(field(record, priceIdx))
		if !ok {
			continue
		}

		row := Row{Year: year, Price: price}
		if hasYoY {
			if v, ok := parseMoney(field(record, yoyIdx)); ok {
				row.YoY = &v
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func findColumn(cols map[string]int, candidates []string) (int, bool) {
	for _, name := range candidates {
		if idx, ok := cols[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseYear(record []string, yearIdx int, hasYear bool, dateIdx int, hasDate bool) (int, bool) {
	if hasYear {
		if raw := field(record, yearIdx); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				return int(v), true
			}
			return 0, false
		}
	}
	if hasDate {
		return yearFromDate(field(record, dateIdx))
	}
	return 0, false
}

// yearFromDate tries the common layouts, then falls back to a leading
// 4-digit prefix.
func yearFromDate(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	if len(raw) > 19 {
		raw = raw[:19]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Year(), true
		}
	}
	if len(raw) >= 4 {
		if v, err := strconv.Atoi(raw[:4]); err == nil {
			return v, true
		}
	}
	return 0, false
}

// parseMoney accepts plain numbers as well as the "$1,234.50" style that
// rent spreadsheets tend to contain.
func parseMoney(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	cleaned := strings.ReplaceAll(strings.TrimPrefix(raw, "$"), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}
