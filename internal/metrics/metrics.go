// Package metrics derives point-in-time readings from the canonical
// datasets. Everything here is pure computation over in-memory slices,
// recomputed on every read and never cached.
package metrics

import (
	"sort"
	"strings"

	"github.com/phoslab/phosdash/pkg/models"
)

// DefaultTopN is the producers-ranking size used when the caller does
// not ask for a specific one.
const DefaultTopN = 10

// Compute derives the dashboard metrics from an ascending price series.
// It returns nil for an empty series. Month-over-month readings need at
// least two points and compare the last two whatever their calendar
// distance (a missing month silently understates the delta). The
// year-over-year reading needs a point exactly twelve calendar months
// before the latest one. A zero denominator makes the affected
// percentage absent, never an error or a non-finite number.
func Compute(series []models.PricePoint) *models.DerivedMetrics {
	if len(series) == 0 {
		return nil
	}

	latest := series[len(series)-1]
	m := &models.DerivedMetrics{Latest: latest}

	if len(series) >= 2 {
		prev := series[len(series)-2]
		delta := latest.Price - prev.Price
		m.MoMDelta = &delta
		if pct, ok := pctChange(latest.Price, prev.Price); ok {
			m.MoMPct = &pct
		}
	}

	yearAgo := latest.Date.AddDate(-1, 0, 0)
	for _, p := range series {
		if p.Date.Equal(yearAgo) {
			if pct, ok := pctChange(latest.Price, p.Price); ok {
				m.YoYPct = &pct
			}
			break // first match wins
		}
	}
	return m
}

// pctChange returns (new-old)/old*100. ok is false when old is zero.
func pctChange(newV, oldV float64) (float64, bool) {
	if oldV == 0 {
		return 0, false
	}
	return (newV - oldV) / oldV * 100, true
}

// LatestYear returns the most recent year present in the records.
func LatestYear(records []models.ProductionRecord) (int, bool) {
	if len(records) == 0 {
		return 0, false
	}
	latest := records[0].Year
	for _, r := range records[1:] {
		if r.Year > latest {
			latest = r.Year
		}
	}
	return latest, true
}

// TopProducers ranks countries by summed production for one year,
// descending, ties broken by country name so the order is stable. The
// aggregate "World" row is excluded from the ranking. n <= 0 means
// DefaultTopN.
func TopProducers(records []models.ProductionRecord, year, n int) []models.CountryProduction {
	if n <= 0 {
		n = DefaultTopN
	}

	totals := make(map[string]float64)
	for _, r := range records {
		if r.Year != year || strings.EqualFold(strings.TrimSpace(r.Country), "world") {
			continue
		}
		totals[r.Country] += r.Production
	}

	ranked := make([]models.CountryProduction, 0, len(totals))
	for country, production := range totals {
		ranked = append(ranked, models.CountryProduction{Country: country, Production: production})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Production != ranked[j].Production {
			return ranked[i].Production > ranked[j].Production
		}
		return ranked[i].Country < ranked[j].Country
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
