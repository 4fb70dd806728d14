// Package table provides the small tabular toolkit shared by the
// extractors: a raw row/column table, CSV decoding, physical layout
// detection, and an explicit wide-to-long melt.
package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RawTable is an in-memory tabular structure: ordered column labels and
// rows of string cells. It is created per fetch attempt and treated as
// immutable; transforms return new tables.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Layout classifies the physical shape of a table.
type Layout int

const (
	// LayoutUnknown means neither wide nor long heuristics matched.
	// There is no safe default parse for an unknown layout.
	LayoutUnknown Layout = iota

	// LayoutWide has one row per entity and one column per time period,
	// the period encoded in the column label.
	LayoutWide

	// LayoutLong has one row per (entity, period) pair with the period
	// as a row value under a "Year" column.
	LayoutLong
)

func (l Layout) String() string {
	switch l {
	case LayoutWide:
		return "wide"
	case LayoutLong:
		return "long"
	default:
		return "unknown"
	}
}

// ReadCSV decodes CSV bytes into a RawTable. The first record supplies
// the column labels, which are whitespace-trimmed (a UTF-8 BOM on the
// first label is dropped too). Short rows are padded so every row has
// one cell per column.
func ReadCSV(r io.Reader) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	columns := make([]string, len(header))
	for i, label := range header {
		if i == 0 {
			label = strings.TrimPrefix(label, "\uFEFF")
		}
		columns[i] = strings.TrimSpace(label)
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		rows = append(rows, padRow(record, len(columns)))
	}

	return &RawTable{Columns: columns, Rows: rows}, nil
}

// ReadCSVBytes is a convenience wrapper over ReadCSV.
func ReadCSVBytes(data []byte) (*RawTable, error) {
	return ReadCSV(bytes.NewReader(data))
}

// FromRows builds a RawTable from pre-split rows (e.g. a spreadsheet
// sheet). The first row supplies the trimmed column labels.
func FromRows(rows [][]string) *RawTable {
	if len(rows) == 0 {
		return &RawTable{}
	}
	columns := make([]string, len(rows[0]))
	for i, label := range rows[0] {
		columns[i] = strings.TrimSpace(label)
	}
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		body = append(body, padRow(row, len(columns)))
	}
	return &RawTable{Columns: columns, Rows: body}
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// ColumnIndex returns the index of the column whose trimmed label
// matches name case-insensitively, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, label := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(label), name) {
			return i
		}
	}
	return -1
}

// ColumnIndexExact returns the index of the column whose trimmed label
// equals name exactly, or -1. Used where capitalization variants are
// ranked separately.
func (t *RawTable) ColumnIndexExact(name string) int {
	for i, label := range t.Columns {
		if strings.TrimSpace(label) == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at (row, col), or "" when out of bounds.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// FilterRows returns a new table containing only the rows keep accepts.
func (t *RawTable) FilterRows(keep func(row []string) bool) *RawTable {
	out := &RawTable{Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// MatchingColumns returns the labels matching pattern, in column order.
func (t *RawTable) MatchingColumns(pattern *regexp.Regexp) []string {
	var matched []string
	for _, label := range t.Columns {
		if pattern.MatchString(strings.TrimSpace(label)) {
			matched = append(matched, strings.TrimSpace(label))
		}
	}
	return matched
}

// DetectLayout classifies t. Wide wins when any column label matches
// wideColumn. Long requires a "Year" column (case-insensitive) next to
// at least one of the given value-bearing columns (exact-match, the
// caller ranks capitalization variants explicitly). Anything else is
// Unknown. Run this after the commodity row filter so stray year-like
// labels in unrelated sections cannot sway the result.
func DetectLayout(t *RawTable, wideColumn *regexp.Regexp, valueColumns []string) Layout {
	if len(t.MatchingColumns(wideColumn)) > 0 {
		return LayoutWide
	}
	if t.ColumnIndex("Year") >= 0 {
		for _, name := range valueColumns {
			if t.ColumnIndexExact(name) >= 0 {
				return LayoutLong
			}
		}
	}
	return LayoutUnknown
}

// Melt reshapes a wide table into a long one: every (row, value column)
// pair becomes one output row carrying the row's identifying cells plus
// the value column's label under varName and its cell under valueName.
// Output order is row order then value-column order, so the reshape is
// deterministic. Cell coercion is the caller's business.
func Melt(t *RawTable, valueColumns []string, varName, valueName string) *RawTable {
	valueSet := make(map[string]bool, len(valueColumns))
	for _, c := range valueColumns {
		valueSet[c] = true
	}

	var idIdx []int
	var idLabels []string
	var valIdx []int
	for i, label := range t.Columns {
		label = strings.TrimSpace(label)
		if valueSet[label] {
			valIdx = append(valIdx, i)
		} else {
			idIdx = append(idIdx, i)
			idLabels = append(idLabels, label)
		}
	}

	out := &RawTable{Columns: append(append([]string{}, idLabels...), varName, valueName)}
	for r := range t.Rows {
		for _, v := range valIdx {
			row := make([]string, 0, len(idIdx)+2)
			for _, id := range idIdx {
				row = append(row, t.Cell(r, id))
			}
			row = append(row, strings.TrimSpace(t.Columns[v]), t.Cell(r, v))
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// ParseNumber coerces a cell to a finite float64. Empty cells,
// non-numeric text, NaN and infinities all report false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseYear coerces a cell to an integer year, accepting numeric forms
// with an integral value ("2020", "2020.0") and rejecting the rest.
func ParseYear(s string) (int, bool) {
	f, ok := ParseNumber(s)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
