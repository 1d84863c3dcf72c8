// Cashflow CLI - Financial Health Intelligence for Small Businesses
//
// Usage:
//   cashflow analyze --revenue revenue.json --rent 3000 --payroll 2000 [options]
//   cashflow rent --revenue revenue.json --rent 3000 --increase-pct 15
//   cashflow baseline predict --year 2026
//   cashflow cache cleanup --postgres-dsn "postgres://..."
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"cashflow-calm/db/clickhouse"
	"cashflow-calm/db/postgres"
	"cashflow-calm/internal/advisor"
	"cashflow-calm/internal/baseline"
	"cashflow-calm/internal/cache"
	"cashflow-calm/internal/cashflow"
	"cashflow-calm/internal/rent"
	"cashflow-calm/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	platform.LoadDotEnv()
	logger := platform.InitLogger()

	app := &cli.App{
		Name:    "cashflow",
		Usage:   "Financial Health Intelligence - cash runway, rent stress tests, and market baselines for small businesses",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host for the market-rent series",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "cashflow",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "Postgres DSN for the narrative cache",
				EnvVars: []string{"POSTGRES_DSN"},
			},
		},

		Commands: []*cli.Command{
			analyzeCommand(),
			rentCommand(),
			baselineCommand(),
			cacheCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// ANALYZE COMMAND
// =============================================================================

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Compute the financial health snapshot from a revenue series",
		Flags: append(revenueFlags(), costFlags()...),
		Action: func(c *cli.Context) error {
			samples, err := loadRevenue(c.String("revenue"))
			if err != nil {
				return err
			}
			costs, rate := costsFromFlags(c)

			engine := cashflow.NewEngine()
			if dpm := c.Float64("days-per-month"); dpm > 0 {
				engine = engine.WithDaysPerMonth(dpm)
			}

			if c.Bool("advise") {
				return runAdvise(c, engine, samples, costs, rate)
			}

			snapshot, err := engine.Compute(samples, costs, rate)
			if err != nil {
				return err
			}

			switch c.String("format") {
			case "table":
				return snapshotTable(snapshot)
			default:
				return outputJSON(snapshot)
			}
		},
	}
}

func runAdvise(c *cli.Context, engine *cashflow.Engine, samples []cashflow.RevenueSample, costs cashflow.FixedCostProfile, rate float64) error {
	ctx := context.Background()

	store, closeStore, err := openCacheStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	narrator := advisor.NewCachedNarrator(
		advisor.TemplateNarrator{}, store, "template-v1", 24*time.Hour)

	adv := advisor.New(engine, advisor.DefaultConfig()).WithNarrator(narrator)
	advice, err := adv.Advise(ctx, samples, costs, rate)
	if err != nil {
		return err
	}
	return outputJSON(advice)
}

// =============================================================================
// RENT COMMAND
// =============================================================================

func rentCommand() *cli.Command {
	flags := append(revenueFlags(), costFlags()...)
	flags = append(flags,
		&cli.Float64Flag{
			Name:  "increase-pct",
			Usage: "Rent increase to simulate, in percent (e.g. 15)",
		},
		&cli.Float64Flag{
			Name:  "new-rent",
			Usage: "Absolute new monthly rent to simulate (takes precedence over --increase-pct)",
		},
		&cli.IntFlag{
			Name:  "year",
			Usage: "Year for the market comparison (defaults to the current year)",
		},
		&cli.Float64Flag{
			Name:  "observed-yoy",
			Usage: "Observed year-over-year rent change in percent, for the market z-score",
		},
		&cli.BoolFlag{
			Name:  "skip-market",
			Usage: "Skip the market baseline comparison",
		},
	)

	return &cli.Command{
		Name:  "rent",
		Usage: "Simulate a rent change against the current financial snapshot",
		Flags: flags,
		Action: func(c *cli.Context) error {
			ctx := context.Background()

			samples, err := loadRevenue(c.String("revenue"))
			if err != nil {
				return err
			}
			costs, rate := costsFromFlags(c)

			snapshot, err := cashflow.NewEngine().Compute(samples, costs, rate)
			if err != nil {
				return err
			}

			sim := rent.NewSimulator(nil)
			if !c.Bool("skip-market") {
				b, err := loadBaseline(ctx, c)
				if err != nil {
					return err
				}
				sim = rent.NewSimulator(b)
			}

			sc := rent.Scenario{}
			if c.IsSet("increase-pct") {
				v := c.Float64("increase-pct")
				sc.IncreasePct = &v
			}
			if c.IsSet("new-rent") {
				v := c.Float64("new-rent")
				sc.NewRent = &v
			}
			if c.IsSet("year") {
				y := c.Int("year")
				sc.Year = &y
			}
			if c.IsSet("observed-yoy") {
				v := c.Float64("observed-yoy")
				sc.ObservedYoYPct = &v
			}

			result, err := sim.Simulate(snapshot, costs, sc)
			if err != nil {
				return err
			}

			switch c.String("format") {
			case "table":
				return scenarioTable(result)
			default:
				return outputJSON(result)
			}
		},
	}
}

// =============================================================================
// BASELINE COMMAND
// =============================================================================

func baselineCommand() *cli.Command {
	datasetFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "dataset",
			Usage:   "Path to a market-rent CSV dataset (falls back to the embedded series)",
			EnvVars: []string{"CASHFLOW_DATASET"},
		},
		&cli.BoolFlag{
			Name:    "from-clickhouse",
			Usage:   "Load the market-rent series from ClickHouse instead of a CSV file",
			EnvVars: []string{"CASHFLOW_FROM_CLICKHOUSE"},
		},
	}

	return &cli.Command{
		Name:  "baseline",
		Usage: "Inspect the market-rent regression baseline",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the fitted baseline parameters and provenance",
				Flags: datasetFlags,
				Action: func(c *cli.Context) error {
					b, err := loadBaseline(context.Background(), c)
					if err != nil {
						return err
					}
					return outputJSON(b)
				},
			},
			{
				Name:  "predict",
				Usage: "Predict the expected market rent for a year",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:     "year",
						Usage:    "Year to predict",
						Required: true,
					},
				}, datasetFlags...),
				Action: func(c *cli.Context) error {
					b, err := loadBaseline(context.Background(), c)
					if err != nil {
						return err
					}
					year := c.Int("year")
					return outputJSON(map[string]any{
						"year":           year,
						"expected_rent":  b.Predict(year),
						"source":         b.SourceName,
						"fallback":       b.Fallback,
						"mean_yoy_pct":   b.MeanYoYPct,
						"std_yoy_pct":    b.StdYoYPct,
						"fit_year_range": fmt.Sprintf("%d-%d", b.YearMin, b.YearMax),
					})
				},
			},
		},
	}
}

// =============================================================================
// CACHE COMMAND
// =============================================================================

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Maintain the narrative cache",
		Subcommands: []*cli.Command{
			{
				Name:  "cleanup",
				Usage: "Delete every expired cache entry once and report the count",
				Action: func(c *cli.Context) error {
					ctx := context.Background()
					store, closeStore, err := openPostgresStore(ctx, c)
					if err != nil {
						return err
					}
					defer closeStore()

					count, err := store.CleanupExpired(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("Removed %d expired cache entries\n", count)
					return nil
				},
			},
			{
				Name:  "janitor",
				Usage: "Run the expired-entry sweeper on a schedule until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "schedule",
						Value:   "@hourly",
						Usage:   "Cron schedule for the sweep",
						EnvVars: []string{"CASHFLOW_JANITOR_SCHEDULE"},
					},
				},
				Action: func(c *cli.Context) error {
					ctx := context.Background()
					logger := platform.InitLogger()

					store, closeStore, err := openPostgresStore(ctx, c)
					if err != nil {
						return err
					}
					defer closeStore()

					scheduler := cron.New()
					_, err = scheduler.AddFunc(c.String("schedule"), func() {
						if _, err := store.CleanupExpired(context.Background()); err != nil {
							logger.Error("cache sweep failed", "error", err)
						}
					})
					if err != nil {
						return fmt.Errorf("failed to schedule cache sweep: %w", err)
					}

					scheduler.Start()
					logger.Info("cache janitor started", "schedule", c.String("schedule"))

					quit := make(chan os.Signal, 1)
					signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
					<-quit

					scheduler.Stop()
					logger.Info("cache janitor stopped")
					return nil
				},
			},
		},
	}
}

// =============================================================================
// SHARED FLAGS AND LOADERS
// =============================================================================

func revenueFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "revenue",
			Aliases:  []string{"r"},
			Usage:    "Path to the revenue series JSON (array of {date, amount})",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "json",
			Usage:   "Output format (json, table)",
		},
		&cli.BoolFlag{
			Name:  "advise",
			Usage: "Include plain-language advice with the snapshot",
		},
	}
}

func costFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:     "rent",
			Usage:    "Monthly rent",
			Required: true,
		},
		&cli.Float64Flag{
			Name:  "payroll",
			Usage: "Monthly payroll",
		},
		&cli.Float64Flag{
			Name:  "other-fixed",
			Usage: "Other monthly fixed costs",
		},
		&cli.Float64Flag{
			Name:  "cash-on-hand",
			Usage: "Current cash on hand (enables runway computation)",
		},
		&cli.Float64Flag{
			Name:  "variable-cost-rate",
			Usage: "Variable cost rate in [0,1] (COGS, fees) applied to revenue",
		},
		&cli.Float64Flag{
			Name:  "days-per-month",
			Usage: "Days-per-month constant used to convert monthly costs to daily",
		},
	}
}

func costsFromFlags(c *cli.Context) (cashflow.FixedCostProfile, float64) {
	costs := cashflow.FixedCostProfile{
		Rent:    c.Float64("rent"),
		Payroll: c.Float64("payroll"),
		Other:   c.Float64("other-fixed"),
	}
	if c.IsSet("cash-on-hand") {
		v := c.Float64("cash-on-hand")
		costs.CashOnHand = &v
	}
	return costs, c.Float64("variable-cost-rate")
}

// revenueRecord is the wire shape of one revenue sample in the input file.
type revenueRecord struct {
	Date   string   `json:"date"`
	Amount *float64 `json:"amount"`
}

var revenueDateLayouts = []string{"2006-01-02", time.RFC3339}

func loadRevenue(path string) ([]cashflow.RevenueSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read revenue file: %w", err)
	}

	var records []revenueRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse revenue file: %w", err)
	}

	samples := make([]cashflow.RevenueSample, 0, len(records))
	for _, rec := range records {
		var parsed time.Time
		var parseErr error
		for _, layout := range revenueDateLayouts {
			parsed, parseErr = time.Parse(layout, rec.Date)
			if parseErr == nil {
				break
			}
		}
		// An unparseable date flows through as the zero time so the
		// engine reports it as a malformed sample with its index.
		samples = append(samples, cashflow.RevenueSample{Date: parsed, Amount: rec.Amount})
	}
	return samples, nil
}

func loadBaseline(ctx context.Context, c *cli.Context) (*baseline.Baseline, error) {
	opts := baseline.BuildOptions{}

	if path := c.String("dataset"); path != "" {
		return baseline.Load(ctx, &baseline.CSVSource{Path: path}, opts, nil), nil
	}

	if c.Bool("from-clickhouse") {
		src, err := clickhouse.NewRentSource(&clickhouse.Config{
			Host:     c.String("clickhouse-host"),
			Port:     c.Int("clickhouse-port"),
			Database: c.String("clickhouse-database"),
			Username: c.String("clickhouse-user"),
			Password: c.String("clickhouse-password"),
			Table:    "market_rents",
		})
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return baseline.Load(ctx, src, opts, nil), nil
	}

	return baseline.Load(ctx, nil, opts, nil), nil
}

// openCacheStore returns a Postgres-backed store when a DSN is configured,
// falling back to in-process memory so advice works without infrastructure.
func openCacheStore(ctx context.Context, c *cli.Context) (*cache.Store, func(), error) {
	if c.String("postgres-dsn") == "" {
		return cache.NewStore(cache.NewMemoryBackend()), func() {}, nil
	}
	return openPostgresStore(ctx, c)
}

func openPostgresStore(ctx context.Context, c *cli.Context) (*cache.Store, func(), error) {
	dsn := c.String("postgres-dsn")
	if dsn == "" {
		return nil, nil, fmt.Errorf("postgres DSN is required (--postgres-dsn or POSTGRES_DSN)")
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	backend := postgres.NewCacheBackend(db)
	if err := backend.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return cache.NewStore(backend), func() { db.Close() }, nil
}

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snapshotTable(m *cashflow.MetricsSnapshot) error {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                  💵 FINANCIAL HEALTH SNAPSHOT                 ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Avg Daily Revenue:      $%-35.2f ║\n", m.AvgDailyRevenue)
	fmt.Printf("║  Avg Daily Gross Profit: $%-35.2f ║\n", m.AvgDailyGrossProfit)
	fmt.Printf("║  Trend (7d / 30d):       %-36s ║\n",
		fmt.Sprintf("%+.1f%% / %+.1f%%", m.Trend7d, m.Trend30d))
	fmt.Printf("║  Volatility:             %-36.2f ║\n", m.Volatility)
	fmt.Printf("║  Fixed-Cost Burden:      %-36s ║\n", formatBurden(m.FixedCostBurdenRevenue))
	fmt.Printf("║  Runway:                 %-36s ║\n", formatRunway(m.RunwayDays))
	fmt.Printf("║  Risk State:             %-36s ║\n", riskIcon(m.RiskState))
	fmt.Printf("║  Risk Horizon:           %-36s ║\n", fmt.Sprintf("%d days", m.RiskHorizonDays))
	fmt.Printf("║  Confidence:             %-36s ║\n", fmt.Sprintf("%.0f%%", m.Confidence*100))
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func scenarioTable(r *rent.ScenarioResult) error {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    🏠 RENT SCENARIO IMPACT                    ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Current Rent:           $%-35.2f ║\n", r.OldRent)
	fmt.Printf("║  New Rent:               $%-35.2f ║\n", r.NewRent)
	fmt.Printf("║  Change:                 %-36s ║\n",
		fmt.Sprintf("%+.2f (%+.1f%%)", r.DeltaMonthly, r.DeltaPct))
	fmt.Printf("║  New Fixed-Cost Burden:  %-36s ║\n", formatScenarioBurden(r))
	fmt.Printf("║  Runway Impact:          %-36s ║\n", formatRunwayImpact(r))
	fmt.Printf("║  Risk:                   %-36s ║\n",
		fmt.Sprintf("%s → %s", r.CurrentRiskState, r.NewRiskState))
	if r.MarketExpectedPrice != nil {
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Market Expected Rent:   $%-35.2f ║\n", *r.MarketExpectedPrice)
		if r.MarketDeltaPct != nil {
			fmt.Printf("║  vs. Market:             %-36s ║\n", fmt.Sprintf("%+.1f%%", *r.MarketDeltaPct))
		}
		if r.MarketZScore != nil {
			fmt.Printf("║  Increase Z-Score:       %-36.2f ║\n", *r.MarketZScore)
		}
	}
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func formatScenarioBurden(r *rent.ScenarioResult) string {
	if r.RevenueInsufficient || r.NewFixedCostBurden == nil {
		return "n/a (insufficient revenue)"
	}
	return fmt.Sprintf("%.0f%%", *r.NewFixedCostBurden*100)
}

func formatRunwayImpact(r *rent.ScenarioResult) string {
	switch {
	case r.RunwayIsInfinite:
		return "not at risk under new rent"
	case r.RunwayTransition == rent.TransitionInfiniteToFinite:
		return "now finite (was not at risk)"
	case r.RunwayImpactDays != nil:
		return fmt.Sprintf("%+.0f days", *r.RunwayImpactDays)
	default:
		return "unchanged"
	}
}

func formatBurden(v float64) string {
	if math.IsInf(v, 0) {
		return "n/a (no revenue)"
	}
	return fmt.Sprintf("%.0f%%", v*100)
}

func formatRunway(days *float64) string {
	if days == nil {
		return "not at risk"
	}
	return fmt.Sprintf("%.0f days", *days)
}

func riskIcon(state cashflow.RiskState) string {
	switch state {
	case cashflow.RiskCritical:
		return "❌ critical"
	case cashflow.RiskCaution:
		return "⚠️  caution"
	default:
		return "✅ healthy"
	}
}
