package models

import "time"

// PricePoint is one month of the canonical phosphate rock price series.
// Date is always the first day of the month, UTC.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price_usd_per_t"` // USD per metric tonne
}

// ProductionRecord is one (country, year) row of the canonical mine
// production table. (Country, Year) pairs are not necessarily unique.
type ProductionRecord struct {
	Country    string  `json:"country"`
	Year       int     `json:"year"`
	Production float64 `json:"production"` // thousand metric tonnes
}

// DerivedMetrics holds point-in-time readings computed from a price
// series. A nil pointer means the metric is undefined for the series
// (too few points, no exact year-ago month, or a zero denominator);
// undefined metrics are omitted from JSON rather than rendered as null.
type DerivedMetrics struct {
	Latest   PricePoint `json:"latest"`
	MoMDelta *float64   `json:"mom_delta,omitempty"`
	MoMPct   *float64   `json:"mom_pct,omitempty"`
	YoYPct   *float64   `json:"yoy_pct,omitempty"`
}

// CountryProduction is one row of a producers ranking for a single year.
type CountryProduction struct {
	Country    string  `json:"country"`
	Production float64 `json:"production"`
}

// Bulletin is a publication notice from an upstream data source
// newsroom feed.
type Bulletin struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Dashboard bundles everything the dashboard needs in one response.
// Datasets that failed to load are absent and named in Warnings; a
// partial dashboard is still a valid response.
type Dashboard struct {
	Prices       []PricePoint        `json:"prices,omitempty"`
	Metrics      *DerivedMetrics     `json:"metrics,omitempty"`
	Production   []ProductionRecord  `json:"production,omitempty"`
	TopProducers []CountryProduction `json:"top_producers,omitempty"`
	ProducerYear int                 `json:"producer_year,omitempty"`
	Bulletins    []Bulletin          `json:"bulletins,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
	GeneratedAt  time.Time           `json:"generated_at"`
}
