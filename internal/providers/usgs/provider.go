// Package usgs extracts the canonical phosphate rock mine production
// table from the USGS Mineral Commodity Summaries world-data CSV.
//
// The file is published on ScienceBase at a single URL (no fallback
// mirror exists for this source). Upstream has shipped the table both
// wide (bare-year columns) and long (a "Year" column plus a production
// column whose name varies by edition), so the layout is detected per
// fetch instead of assumed.
// Docs: https://www.usgs.gov/centers/national-minerals-information-center
package usgs

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/phoslab/phosdash/internal/infra"
	"github.com/phoslab/phosdash/internal/provider"
	"github.com/phoslab/phosdash/internal/table"
	"github.com/phoslab/phosdash/pkg/models"
)

const (
	sourceName = "usgs"

	// DefaultURL is the MCS 2025 world-data CSV on ScienceBase.
	DefaultURL = "https://www.sciencebase.gov/catalog/file/get/6798fd34d34ea8c18376e8ee?name=MCS2025_World_Data.csv"

	commodityColumn = "Commodity"
	commodityFilter = "PHOSPHATE ROCK"
	countryColumn   = "Country"
)

// yearColumn matches wide-layout value columns, e.g. "2023".
var yearColumn = regexp.MustCompile(`^\d{4}$`)

// productionColumns ranks the long-layout value columns most specific
// first. Both capitalizations of "Mine production" have shipped.
var productionColumns = []string{
	"Production",
	"Mine Production",
	"Mine production",
	"World Production",
	"Production (kt)",
}

// Source is the MCS production source.
type Source struct {
	url    string
	client *http.Client
}

// New creates a production source. An empty url falls back to
// DefaultURL; a nil client uses infra.DefaultClient.
func New(url string, client *http.Client) *Source {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = infra.DefaultClient
	}
	return &Source{url: url, client: client}
}

// Name implements provider.Provider.
func (s *Source) Name() string { return sourceName }

// Describe implements provider.Provider.
func (s *Source) Describe() string {
	return "USGS Mineral Commodity Summaries world mine production (phosphate rock, kt)"
}

// Ping probes the configured URL.
func (s *Source) Ping(ctx context.Context) error {
	if err := infra.Probe(ctx, s.client, s.url); err != nil {
		return &provider.ErrAllSourcesUnavailable{Source: sourceName, Causes: []error{err}}
	}
	return nil
}

// Table extracts the canonical production table. Transport failures
// propagate as unavailability; structural mismatches (missing columns,
// unrecognized layout) as schema drift. An empty result after the
// commodity filter and numeric coercion is a valid success.
func (s *Source) Table(ctx context.Context) ([]models.ProductionRecord, error) {
	data, _, errs := infra.FetchBytes(ctx, s.client, []string{s.url})
	if errs != nil {
		return nil, &provider.ErrAllSourcesUnavailable{Source: sourceName, Causes: errs}
	}

	tbl, err := table.ReadCSVBytes(data)
	if err != nil {
		return nil, &provider.ErrSchemaDrift{
			Source: sourceName,
			Detail: "response is not parseable CSV",
			Causes: []error{err},
		}
	}

	commodityIdx := tbl.ColumnIndexExact(commodityColumn)
	if commodityIdx < 0 {
		return nil, driftErr(fmt.Sprintf("commodity column %q missing", commodityColumn), tbl)
	}
	filtered := tbl.FilterRows(func(row []string) bool {
		return strings.Contains(strings.ToUpper(row[commodityIdx]), commodityFilter)
	})

	var records []models.ProductionRecord
	layout := table.DetectLayout(filtered, yearColumn, productionColumns)
	switch layout {
	case table.LayoutWide:
		records, err = s.fromWide(filtered)
	case table.LayoutLong:
		records, err = s.fromLong(filtered)
	default:
		return nil, driftErr("unrecognized table layout", filtered)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("layout", layout.String()).Int("records", len(records)).
		Msg("production table extracted")
	return records, nil
}

// fromWide melts bare-year columns into canonical records. Output order
// is row order then year-column order. Rows whose year or production
// fail numeric coercion are dropped individually.
func (s *Source) fromWide(t *table.RawTable) ([]models.ProductionRecord, error) {
	melted := table.Melt(t, t.MatchingColumns(yearColumn), "Year", "Production")

	countryIdx := melted.ColumnIndexExact(countryColumn)
	if countryIdx < 0 {
		return nil, driftErr(fmt.Sprintf("country column %q missing", countryColumn), t)
	}
	yearIdx := len(melted.Columns) - 2
	prodIdx := len(melted.Columns) - 1

	return coerceRecords(melted, countryIdx, yearIdx, prodIdx), nil
}

// fromLong reads the "Year" column and the first production column
// present from the ranked list.
func (s *Source) fromLong(t *table.RawTable) ([]models.ProductionRecord, error) {
	countryIdx := t.ColumnIndexExact(countryColumn)
	if countryIdx < 0 {
		return nil, driftErr(fmt.Sprintf("country column %q missing", countryColumn), t)
	}
	yearIdx := t.ColumnIndex("Year")

	prodIdx := -1
	for _, name := range productionColumns {
		if idx := t.ColumnIndexExact(name); idx >= 0 {
			prodIdx = idx
			break
		}
	}
	if prodIdx < 0 {
		// DetectLayout guarantees one of the ranked columns exists.
		return nil, driftErr("no recognized production column", t)
	}

	return coerceRecords(t, countryIdx, yearIdx, prodIdx), nil
}

func coerceRecords(t *table.RawTable, countryIdx, yearIdx, prodIdx int) []models.ProductionRecord {
	records := make([]models.ProductionRecord, 0, len(t.Rows))
	for i := range t.Rows {
		year, ok := table.ParseYear(t.Cell(i, yearIdx))
		if !ok {
			continue
		}
		production, ok := table.ParseNumber(t.Cell(i, prodIdx))
		if !ok || production < 0 {
			continue
		}
		records = append(records, models.ProductionRecord{
			Country:    strings.TrimSpace(t.Cell(i, countryIdx)),
			Year:       year,
			Production: production,
		})
	}
	return records
}

func driftErr(detail string, t *table.RawTable) *provider.ErrSchemaDrift {
	return &provider.ErrSchemaDrift{
		Source: sourceName,
		Detail: fmt.Sprintf("%s (columns: %s)", detail, strings.Join(t.Columns, ", ")),
	}
}
