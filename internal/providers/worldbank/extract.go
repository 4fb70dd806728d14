package worldbank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/phoslab/phosdash/internal/infra"
	"github.com/phoslab/phosdash/internal/provider"
	"github.com/phoslab/phosdash/internal/table"
	"github.com/phoslab/phosdash/pkg/models"
)

var (
	errNoCandidateSheet = errors.New("no sheet named \"Monthly Prices\" and no sheet mentions phosphate")
	errNoCommodityRow   = errors.New("no row labeled with the phosphate commodity")
	errNoMonthColumns   = errors.New("no year-month columns in the chosen sheet")
	errEmptySeries      = errors.New("phosphate row carries no numeric values")
)

// A sheetStrategy proposes a parsed sheet from the workbook; ok=false
// means the strategy does not apply. Strategies are pure and evaluated
// in order, first success wins.
type sheetStrategy func(wb *excelize.File) (*table.RawTable, bool)

// A rowStrategy proposes the index of the commodity row; ok=false means
// no row qualified.
type rowStrategy func(t *table.RawTable) (int, bool)

// Series extracts the canonical price series. Candidate URLs are tried
// strictly in order; both download failures and structurally unusable
// workbooks advance to the next candidate, each retaining its cause.
// When every candidate is exhausted the error reports unavailability if
// nothing was even fetched, schema drift otherwise.
func (s *Source) Series(ctx context.Context) ([]models.PricePoint, error) {
	var fetchErrs, driftErrs []error
	for _, u := range s.candidateURLs(ctx) {
		body, _, err := infra.DoGet(ctx, s.client, u, nil)
		if err != nil {
			log.Warn().Str("url", u).Err(err).Msg("price workbook fetch failed")
			fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		points, err := extractSeries(body)
		body.Close()
		if err != nil {
			log.Warn().Str("url", u).Err(err).Msg("price workbook unusable")
			driftErrs = append(driftErrs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		log.Debug().Str("url", u).Int("points", len(points)).Msg("price series extracted")
		return points, nil
	}

	if len(driftErrs) > 0 {
		return nil, &provider.ErrSchemaDrift{
			Source: sourceName,
			Detail: "no candidate workbook yielded a usable series",
			Causes: append(fetchErrs, driftErrs...),
		}
	}
	return nil, &provider.ErrAllSourcesUnavailable{Source: sourceName, Causes: fetchErrs}
}

// extractSeries runs the sheet and row strategy folds over one fetched
// workbook, then converts the matched row's year-month columns into the
// canonical series.
func extractSeries(r io.Reader) ([]models.PricePoint, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}
	defer wb.Close()

	sheet, ok := foldSheets(wb,
		sheetNamed(preferredSheet),
		sheetMentioning(looseRowMatch),
	)
	if !ok {
		return nil, errNoCandidateSheet
	}

	row, ok := foldRows(sheet,
		rowLabeled(strictRowMatch),
		rowLabeled(looseRowMatch),
	)
	if !ok {
		return nil, errNoCommodityRow
	}

	points, matched := seriesFromRow(sheet, row)
	if !matched {
		return nil, errNoMonthColumns
	}
	if len(points) == 0 {
		return nil, errEmptySeries
	}
	return points, nil
}

func foldSheets(wb *excelize.File, strategies ...sheetStrategy) (*table.RawTable, bool) {
	for _, strategy := range strategies {
		if t, ok := strategy(wb); ok {
			return t, true
		}
	}
	return nil, false
}

func foldRows(t *table.RawTable, strategies ...rowStrategy) (int, bool) {
	for _, strategy := range strategies {
		if row, ok := strategy(t); ok {
			return row, true
		}
	}
	return -1, false
}

// sheetNamed proposes the sheet with exactly the given name. A sheet
// that exists but cannot be read does not apply, letting the fold move
// on to the full scan.
func sheetNamed(name string) sheetStrategy {
	return func(wb *excelize.File) (*table.RawTable, bool) {
		idx, err := wb.GetSheetIndex(name)
		if err != nil || idx < 0 {
			return nil, false
		}
		rows, err := wb.GetRows(name)
		if err != nil {
			return nil, false
		}
		return table.FromRows(rows), true
	}
}

// sheetMentioning proposes the first sheet, in workbook order, with any
// cell whose text contains keyword case-insensitively.
func sheetMentioning(keyword string) sheetStrategy {
	keyword = strings.ToLower(keyword)
	return func(wb *excelize.File) (*table.RawTable, bool) {
		for _, name := range wb.GetSheetList() {
			rows, err := wb.GetRows(name)
			if err != nil {
				continue
			}
			if cellsContain(rows, keyword) {
				return table.FromRows(rows), true
			}
		}
		return nil, false
	}
}

func cellsContain(rows [][]string, keyword string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell), keyword) {
				return true
			}
		}
	}
	return false
}

// rowLabeled proposes the first row whose first-column label contains
// substr case-insensitively. Later matching rows are ignored; upstream
// publishes exactly one phosphate rock sub-series, and tests pin that
// expectation down.
func rowLabeled(substr string) rowStrategy {
	substr = strings.ToLower(substr)
	return func(t *table.RawTable) (int, bool) {
		for i := range t.Rows {
			if strings.Contains(strings.ToLower(t.Cell(i, 0)), substr) {
				return i, true
			}
		}
		return -1, false
	}
}

// seriesFromRow converts the year-month columns of the matched row into
// sorted canonical points. matched reports whether any column label
// carried a year-month token at all, regardless of cell contents.
func seriesFromRow(t *table.RawTable, row int) (points []models.PricePoint, matched bool) {
	seen := make(map[time.Time]bool)
	for col, label := range t.Columns {
		date, ok := parseYearMonth(strings.TrimSpace(label))
		if !ok {
			continue
		}
		matched = true
		value, ok := table.ParseNumber(t.Cell(row, col))
		if !ok || value < 0 {
			continue
		}
		if seen[date] {
			continue
		}
		seen[date] = true
		points = append(points, models.PricePoint{Date: date, Price: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, matched
}

// parseYearMonth converts a "2024M03" label into the first of that
// month, UTC. Labels whose month falls outside 01..12 match the token
// pattern but are not calendar months, so they are skipped.
func parseYearMonth(label string) (time.Time, bool) {
	if !monthColumn.MatchString(label) {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(label[:4])
	month, _ := strconv.Atoi(label[5:7])
	if month < 1 || month > 12 {
		log.Warn().Str("column", label).Msg("year-month token with impossible month, skipping column")
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}
