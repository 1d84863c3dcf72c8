// Package clickhouse provides a warehouse-backed baseline.Source reading the
// historical market-rent series from a ClickHouse table.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"cashflow-calm/internal/baseline"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Table    string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "cashflow",
		Username: "default",
		Password: "",
		Table:    "market_rents",
	}
}

// RentSource reads (year, price, yoy) rows from the configured table.
// Expected columns: year (integer), avg_rent (float), yoy_pct (nullable
// float).
type RentSource struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewRentSource connects to ClickHouse.
func NewRentSource(cfg *Config) (*RentSource, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &RentSource{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *RentSource) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *RentSource) Close() error {
	return s.conn.Close()
}

func (s *RentSource) Name() string {
	return fmt.Sprintf("clickhouse:%s.%s", s.cfg.Database, s.cfg.Table)
}

func (s *RentSource) Rows(ctx context.Context) ([]baseline.Row, error) {
	query := fmt.Sprintf(`
		SELECT toInt32(year), toFloat64(avg_rent), yoy_pct
		FROM %s
		ORDER BY year`, s.cfg.Table)

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query market rents: %w", err)
	}
	defer rows.Close()

	var out []baseline.Row
	for rows.Next() {
		var (
			year  int32
			price float64
			yoy   *float64
		)
		if err := rows.Scan(&year, &price, &yoy); err != nil {
			return nil, fmt.Errorf("failed to scan market rent row: %w", err)
		}
		out = append(out, baseline.Row{Year: int(year), Price: price, YoY: yoy})
	}
	return out, rows.Err()
}
