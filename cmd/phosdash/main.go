// phosdash — Phosphate Rock Commodity Dashboard
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/phoslab/phosdash/api"
	"github.com/phoslab/phosdash/internal/config"
	"github.com/phoslab/phosdash/internal/datasource"
	"github.com/phoslab/phosdash/internal/providers/usgs"
	"github.com/phoslab/phosdash/internal/providers/worldbank"
	"github.com/phoslab/phosdash/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "phosdash",
	Short: "phosdash — Phosphate Rock Commodity Dashboard",
	Long: `phosdash (Phosphate Rock Dashboard)
A Go data pipeline for the phosphate rock commodity dashboard: World Bank
"Pink Sheet" monthly prices, USGS Mineral Commodity Summaries world mine
production, derived metrics, and a small JSON API on top.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		setupLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./phosdash.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(statusCmd)
}

// setupLogging configures the global zerolog logger; console output is
// the default, JSON is opt-in for log shippers.
func setupLogging(lc config.LoggingConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newAggregator wires the upstream sources from the loaded config.
// Empty URL settings keep the provider built-ins.
func newAggregator() *datasource.Aggregator {
	client := &http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSec) * time.Second}

	prices := worldbank.New(cfg.Sources.PriceURLs, client)
	if cfg.Sources.DiscoverMirrors {
		prices.EnableMirrorDiscovery(cfg.Sources.MirrorPage)
	}

	var bulletins datasource.BulletinSource
	if cfg.Bulletins.Enabled {
		if len(cfg.Bulletins.Feeds) == 0 {
			bulletins = datasource.NewBulletins()
		} else {
			feeds := make([]datasource.Feed, 0, len(cfg.Bulletins.Feeds))
			for _, f := range cfg.Bulletins.Feeds {
				feeds = append(feeds, datasource.Feed{Source: f.Source, URL: f.URL})
			}
			bulletins = datasource.NewBulletinsWithFeeds(feeds)
		}
	}

	return datasource.NewAggregator(datasource.AggregatorConfig{
		Prices:        prices,
		Production:    usgs.New(cfg.Sources.ProductionURL, client),
		Bulletins:     bulletins,
		TTL:           time.Duration(cfg.Cache.TTLHours) * time.Hour,
		BulletinLimit: cfg.Bulletins.Limit,
	})
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("phosdash %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting phosdash API server on %s\n", addr)
		return api.NewServer(cfg, newAggregator()).ListenAndServe(addr)
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [dataset]",
	Short: "Fetch one dataset and print it to stdout",
	Long: `Fetch one dataset and print it to stdout.

Datasets:
  prices      World Bank Pink Sheet monthly price series
  production  USGS MCS world mine production table
  metrics     derived point-in-time price metrics
  dashboard   full dashboard envelope (dataset failures become warnings)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		agg := newAggregator()
		ctx := context.Background()

		switch args[0] {
		case "prices":
			series, err := agg.PriceSeries(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(series)
			}
			printPrices(series)
		case "production":
			records, err := agg.ProductionTable(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(records)
			}
			printProduction(records)
		case "metrics":
			m, err := agg.Metrics(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(m)
			}
			printMetrics(m)
		case "dashboard":
			d := agg.Dashboard(ctx)
			if asJSON {
				return printJSON(d)
			}
			printDashboard(d)
		default:
			return fmt.Errorf("unknown dataset %q (expected prices, production, metrics, or dashboard)", args[0])
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Bool("json", false, "print raw JSON instead of a summary")
}

// printJSON renders a payload as indented JSON on stdout.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printPrices(series []models.PricePoint) {
	if len(series) == 0 {
		fmt.Println("No price points extracted.")
		return
	}
	first, last := series[0], series[len(series)-1]
	fmt.Printf("📈 Phosphate rock, monthly price (USD/t) — %d months, %s to %s\n",
		len(series), first.Date.Format("2006-01"), last.Date.Format("2006-01"))
	tail := series
	if len(tail) > 12 {
		fmt.Println("   (last 12 shown; use --json for the full series)")
		tail = tail[len(tail)-12:]
	}
	for _, p := range tail {
		fmt.Printf("   %s  %8.2f\n", p.Date.Format("2006-01"), p.Price)
	}
}

func printProduction(records []models.ProductionRecord) {
	if len(records) == 0 {
		fmt.Println("No production rows extracted.")
		return
	}
	fmt.Printf("⛏️  Phosphate rock, mine production (kt) — %d rows\n", len(records))
	for _, r := range records {
		fmt.Printf("   %-24s %6d %12.0f\n", r.Country, r.Year, r.Production)
	}
}

func printMetrics(m *models.DerivedMetrics) {
	if m == nil {
		fmt.Println("Metrics undefined: empty price series.")
		return
	}
	fmt.Printf("📊 Latest price: %.2f USD/t (%s)\n", m.Latest.Price, m.Latest.Date.Format("2006-01"))
	fmt.Printf("   MoM change:   %s USD/t (%s)\n", fmtMetric(m.MoMDelta, "%+.2f"), fmtMetric(m.MoMPct, "%+.2f%%"))
	fmt.Printf("   YoY change:   %s\n", fmtMetric(m.YoYPct, "%+.2f%%"))
}

// fmtMetric renders an optional metric, "n/a" when undefined.
func fmtMetric(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func printDashboard(d *models.Dashboard) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Println("  phosdash — Dashboard")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Generated:    %s\n", d.GeneratedAt.Format(time.RFC3339))
	if d.Metrics != nil {
		fmt.Printf("  Latest price: %.2f USD/t (%s)\n",
			d.Metrics.Latest.Price, d.Metrics.Latest.Date.Format("2006-01"))
	}
	fmt.Printf("  Price months: %d\n", len(d.Prices))
	fmt.Printf("  Production:   %d rows\n", len(d.Production))
	if d.ProducerYear != 0 {
		fmt.Printf("  Top producers (%d):\n", d.ProducerYear)
		for i, p := range d.TopProducers {
			fmt.Printf("    %2d. %-24s %12.0f kt\n", i+1, p.Country, p.Production)
		}
	}
	if len(d.Bulletins) > 0 {
		fmt.Printf("  Bulletins:    %d\n", len(d.Bulletins))
		for _, b := range d.Bulletins {
			fmt.Printf("    [%s] %s (%s)\n", b.Source, b.Title, b.PublishedAt.Format("2006-01-02"))
		}
	}
	for _, w := range d.Warnings {
		fmt.Printf("  ⚠️  %s\n", w)
	}
	fmt.Println("═══════════════════════════════════════")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and source reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  phosdash — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:  %s (%s)\n", version, commit)
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    API Server:  %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Cache TTL:   %dh\n", cfg.Cache.TTLHours)
		fmt.Printf("    Bulletins:   enabled=%v limit=%d\n", cfg.Bulletins.Enabled, cfg.Bulletins.Limit)
		fmt.Println()

		// Source reachability
		fmt.Println("  Sources:")
		for _, src := range newAggregator().Sources() {
			status := "✅ reachable"
			if err := src.Ping(ctx); err != nil {
				status = fmt.Sprintf("❌ %v", err)
			}
			fmt.Printf("    %-12s %s\n", src.Name()+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
