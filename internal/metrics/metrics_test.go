package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/phoslab/phosdash/pkg/models"
)

func pricePoint(year int, month time.Month, price float64) models.PricePoint {
	return models.PricePoint{
		Date:  time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Price: price,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- Compute ---

func TestComputeEmptySeries(t *testing.T) {
	if m := Compute(nil); m != nil {
		t.Errorf("Compute(nil) = %+v, want nil", m)
	}
}

func TestComputeSinglePoint(t *testing.T) {
	m := Compute([]models.PricePoint{pricePoint(2023, 3, 121)})
	if m == nil {
		t.Fatal("Compute returned nil for a one-point series")
	}
	if m.Latest.Price != 121 {
		t.Errorf("Latest.Price = %v, want 121", m.Latest.Price)
	}
	if m.MoMDelta != nil || m.MoMPct != nil || m.YoYPct != nil {
		t.Errorf("one-point series must leave every delta absent: %+v", m)
	}
}

func TestComputeMonthOverMonth(t *testing.T) {
	series := []models.PricePoint{
		pricePoint(2023, 1, 100),
		pricePoint(2023, 2, 110),
		pricePoint(2023, 3, 121),
	}
	m := Compute(series)
	if m.MoMDelta == nil || *m.MoMDelta != 11 {
		t.Errorf("MoMDelta = %v, want 11", fmtPtr(m.MoMDelta))
	}
	if m.MoMPct == nil || !almostEqual(*m.MoMPct, 10.0) {
		t.Errorf("MoMPct = %v, want ~10.0", fmtPtr(m.MoMPct))
	}
}

func TestComputeYearOverYear(t *testing.T) {
	withYearAgo := []models.PricePoint{
		pricePoint(2022, 3, 100),
		pricePoint(2023, 2, 110),
		pricePoint(2023, 3, 121),
	}
	m := Compute(withYearAgo)
	if m.YoYPct == nil || !almostEqual(*m.YoYPct, 21.0) {
		t.Errorf("YoYPct = %v, want ~21.0", fmtPtr(m.YoYPct))
	}

	withoutYearAgo := []models.PricePoint{
		pricePoint(2022, 2, 100), // a month off, not an exact match
		pricePoint(2023, 2, 110),
		pricePoint(2023, 3, 121),
	}
	if m := Compute(withoutYearAgo); m.YoYPct != nil {
		t.Errorf("YoYPct = %v, want absent without an exact year-ago month", *m.YoYPct)
	}
}

func TestComputeYearOverYearFirstMatchWins(t *testing.T) {
	// Duplicate months violate the series invariant, but if they ever
	// appear the first one decides the reading.
	series := []models.PricePoint{
		pricePoint(2022, 3, 100),
		pricePoint(2022, 3, 200),
		pricePoint(2023, 3, 121),
	}
	m := Compute(series)
	if m.YoYPct == nil || !almostEqual(*m.YoYPct, 21.0) {
		t.Errorf("YoYPct = %v, want the first year-ago point used", fmtPtr(m.YoYPct))
	}
}

func TestComputeGapToleratedSilently(t *testing.T) {
	// The two latest points are five months apart; the reading still
	// compares them directly.
	series := []models.PricePoint{
		pricePoint(2023, 1, 100),
		pricePoint(2023, 6, 110),
	}
	m := Compute(series)
	if m.MoMDelta == nil || *m.MoMDelta != 10 {
		t.Errorf("MoMDelta = %v, want 10 across the gap", fmtPtr(m.MoMDelta))
	}
}

func TestComputeDivisionByZeroIsAbsent(t *testing.T) {
	series := []models.PricePoint{
		pricePoint(2022, 3, 0),
		pricePoint(2023, 2, 0),
		pricePoint(2023, 3, 121),
	}
	m := Compute(series)
	if m.MoMPct != nil {
		t.Errorf("MoMPct = %v, want absent on zero denominator", *m.MoMPct)
	}
	if m.YoYPct != nil {
		t.Errorf("YoYPct = %v, want absent on zero denominator", *m.YoYPct)
	}
	if m.MoMDelta == nil || *m.MoMDelta != 121 {
		t.Errorf("MoMDelta = %v, the delta needs no division and stays present", fmtPtr(m.MoMDelta))
	}
	for _, pct := range []*float64{m.MoMPct, m.YoYPct} {
		if pct != nil && (math.IsInf(*pct, 0) || math.IsNaN(*pct)) {
			t.Error("non-finite percentage leaked to the caller")
		}
	}
}

// --- Production aggregations ---

func productionFixture() []models.ProductionRecord {
	return []models.ProductionRecord{
		{Country: "Morocco", Year: 2024, Production: 37000},
		{Country: "China", Year: 2024, Production: 88000},
		{Country: "China", Year: 2024, Production: 2000}, // second deposit row, summed
		{Country: "United States", Year: 2024, Production: 20000},
		{Country: "Jordan", Year: 2024, Production: 20000},
		{Country: "World", Year: 2024, Production: 220000},
		{Country: "Morocco", Year: 2023, Production: 35000},
	}
}

func TestLatestYear(t *testing.T) {
	year, ok := LatestYear(productionFixture())
	if !ok || year != 2024 {
		t.Errorf("LatestYear = %d, %v; want 2024, true", year, ok)
	}
	if _, ok := LatestYear(nil); ok {
		t.Error("LatestYear(nil) reported ok")
	}
}

func TestTopProducers(t *testing.T) {
	got := TopProducers(productionFixture(), 2024, 3)

	want := []models.CountryProduction{
		{Country: "China", Production: 90000},
		{Country: "Morocco", Production: 37000},
		{Country: "Jordan", Production: 20000}, // ties with United States, name order
	}
	if len(got) != len(want) {
		t.Fatalf("got %d producers, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopProducersExcludesWorldAggregate(t *testing.T) {
	for _, p := range TopProducers(productionFixture(), 2024, 0) {
		if p.Country == "World" {
			t.Fatal("the World aggregate row must not rank as a producer")
		}
	}
}

func TestTopProducersOtherYear(t *testing.T) {
	got := TopProducers(productionFixture(), 2023, 0)
	if len(got) != 1 || got[0].Country != "Morocco" {
		t.Errorf("2023 producers = %+v, want just Morocco", got)
	}
}

func fmtPtr(f *float64) any {
	if f == nil {
		return "<nil>"
	}
	return *f
}
