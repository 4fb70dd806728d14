// Package datasource assembles the canonical datasets behind the entry
// points the rest of the system calls: the cached price series and
// production table, the derived metrics, and the partial-failure
// dashboard envelope.
package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/phoslab/phosdash/internal/infra"
	"github.com/phoslab/phosdash/internal/metrics"
	"github.com/phoslab/phosdash/internal/provider"
	"github.com/phoslab/phosdash/pkg/models"
)

// DefaultTTL is how long a fetched dataset stays fresh. Both upstream
// publications change at most monthly, so a daily refresh is generous.
const DefaultTTL = 24 * time.Hour

// Cache keys, one per logical dataset. Each key's population is
// independent; there is no cross-key coupling.
const (
	priceCacheKey      = "worldbank:prices"
	productionCacheKey = "usgs:production"
)

// PriceSource yields the canonical monthly price series.
type PriceSource interface {
	provider.Provider
	Series(ctx context.Context) ([]models.PricePoint, error)
}

// ProductionSource yields the canonical country/year production table.
type ProductionSource interface {
	provider.Provider
	Table(ctx context.Context) ([]models.ProductionRecord, error)
}

// BulletinSource yields upstream publication notices.
type BulletinSource interface {
	Latest(ctx context.Context, limit int) ([]models.Bulletin, error)
}

// AggregatorConfig wires an Aggregator. Prices and Production are
// required; everything else has a sensible zero value.
type AggregatorConfig struct {
	Prices     PriceSource
	Production ProductionSource
	Bulletins  BulletinSource // nil disables the bulletins panel

	// Cache overrides the internally built cache; tests inject one with
	// a fake clock. TTL applies to both dataset keys (0 = DefaultTTL).
	Cache *infra.Cache
	TTL   time.Duration

	// TopN bounds the producers ranking (0 = metrics.DefaultTopN).
	TopN int

	// BulletinLimit caps bulletin requests that don't name their own
	// limit (0 = the source default).
	BulletinLimit int
}

// Aggregator owns the dataset cache and the upstream sources. All
// methods are safe for concurrent use; concurrent cache misses on the
// same dataset collapse into one upstream fetch.
type Aggregator struct {
	cache         *infra.Cache
	ttl           time.Duration
	prices        PriceSource
	production    ProductionSource
	bulletins     BulletinSource
	topN          int
	bulletinLimit int
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := cfg.Cache
	if cache == nil {
		cache = infra.NewCache(ttl)
	}
	return &Aggregator{
		cache:         cache,
		ttl:           ttl,
		prices:        cfg.Prices,
		production:    cfg.Production,
		bulletins:     cfg.Bulletins,
		topN:          cfg.TopN,
		bulletinLimit: cfg.BulletinLimit,
	}
}

// Sources returns the wired dataset sources, for status reporting.
func (a *Aggregator) Sources() []provider.Provider {
	return []provider.Provider{a.prices, a.production}
}

// PriceSeries returns the canonical price series, fetching from the
// source on a cache miss. Failures are never cached; the next call
// retries immediately.
func (a *Aggregator) PriceSeries(ctx context.Context) ([]models.PricePoint, error) {
	v, err := a.cache.GetOrPopulate(priceCacheKey, a.ttl, func() (any, error) {
		return a.prices.Series(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.PricePoint), nil
}

// ProductionTable returns the canonical production table under the same
// caching contract as PriceSeries.
func (a *Aggregator) ProductionTable(ctx context.Context) ([]models.ProductionRecord, error) {
	v, err := a.cache.GetOrPopulate(productionCacheKey, a.ttl, func() (any, error) {
		return a.production.Table(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ProductionRecord), nil
}

// Metrics derives the point-in-time readings from the price series.
// The series fetch is cache-subject; the computation itself is cheap,
// deterministic, and recomputed on every call.
func (a *Aggregator) Metrics(ctx context.Context) (*models.DerivedMetrics, error) {
	series, err := a.PriceSeries(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.Compute(series), nil
}

// TopProducers ranks producing countries for the given year (0 = the
// latest year in the table). It returns the ranking and the year it
// covers; a year absent from the table yields an empty ranking.
func (a *Aggregator) TopProducers(ctx context.Context, year, n int) ([]models.CountryProduction, int, error) {
	records, err := a.ProductionTable(ctx)
	if err != nil {
		return nil, 0, err
	}
	if year == 0 {
		latest, ok := metrics.LatestYear(records)
		if !ok {
			return nil, 0, nil
		}
		year = latest
	}
	if n <= 0 {
		n = a.topN
	}
	return metrics.TopProducers(records, year, n), year, nil
}

// Bulletins returns recent upstream publication notices. Without a
// configured bulletin source the list is empty, not an error. A
// non-positive limit falls back to the configured default, then to the
// source's own.
func (a *Aggregator) Bulletins(ctx context.Context, limit int) ([]models.Bulletin, error) {
	if a.bulletins == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = a.bulletinLimit
	}
	return a.bulletins.Latest(ctx, limit)
}

// Dashboard assembles everything in one envelope. The datasets are
// fetched concurrently; each failure contributes a warning naming the
// dataset while the others populate normally, so one source's outage
// never blanks the whole dashboard. Even the degenerate everything-
// failed case is a success envelope carrying only warnings.
func (a *Aggregator) Dashboard(ctx context.Context) *models.Dashboard {
	var (
		series    []models.PricePoint
		priceErr  error
		records   []models.ProductionRecord
		prodErr   error
		bulletins []models.Bulletin
		bullErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		series, priceErr = a.PriceSeries(gctx)
		return nil
	})
	g.Go(func() error {
		records, prodErr = a.ProductionTable(gctx)
		return nil
	})
	g.Go(func() error {
		bulletins, bullErr = a.Bulletins(gctx, 0)
		return nil
	})
	g.Wait() //nolint:errcheck // per-dataset errors are handled below

	// Assemble in a fixed order so the envelope is deterministic
	// regardless of which fetch finished first.
	d := &models.Dashboard{GeneratedAt: time.Now().UTC()}
	if priceErr != nil {
		d.Warnings = append(d.Warnings, warning("prices", priceErr))
	} else {
		d.Prices = series
		d.Metrics = metrics.Compute(series)
	}
	if prodErr != nil {
		d.Warnings = append(d.Warnings, warning("production", prodErr))
	} else {
		d.Production = records
		if year, ok := metrics.LatestYear(records); ok {
			d.ProducerYear = year
			d.TopProducers = metrics.TopProducers(records, year, a.topN)
		}
	}
	if bullErr != nil {
		d.Warnings = append(d.Warnings, warning("bulletins", bullErr))
	} else {
		d.Bulletins = bulletins
	}
	return d
}

// warning renders a per-dataset failure for the envelope. The typed
// errors already spell out unavailability vs schema drift, so the
// dataset name is all that needs adding.
func warning(dataset string, err error) string {
	log.Warn().Str("dataset", dataset).Err(err).Msg("dashboard dataset failed")
	return fmt.Sprintf("%s: %v", dataset, err)
}
