package table

import (
	"reflect"
	"regexp"
	"strings"
	"testing"
)

var (
	yearPattern      = regexp.MustCompile(`^\d{4}$`)
	yearMonthPattern = regexp.MustCompile(`^\d{4}M\d{2}$`)
)

func TestReadCSVTrimsLabelsAndPadsRows(t *testing.T) {
	raw := "﻿Commodity , Country ,2020\n" +
		"PHOSPHATE ROCK,Morocco,35000\n" +
		"PHOSPHATE ROCK,China\n" // short row

	tbl, err := ReadCSV(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	want := []string{"Commodity", "Country", "2020"}
	if !reflect.DeepEqual(tbl.Columns, want) {
		t.Errorf("Columns = %q, want %q", tbl.Columns, want)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if got := tbl.Cell(1, 2); got != "" {
		t.Errorf("padded cell = %q, want empty", got)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestFromRows(t *testing.T) {
	tbl := FromRows([][]string{
		{" Commodity ", "2023M01", "2023M02"},
		{"Phosphate rock (Morocco)", "100", "110"},
	})
	if tbl.Columns[0] != "Commodity" {
		t.Errorf("label not trimmed: %q", tbl.Columns[0])
	}
	if got := tbl.Cell(0, 1); got != "100" {
		t.Errorf("Cell(0,1) = %q, want 100", got)
	}
}

func TestColumnIndex(t *testing.T) {
	tbl := &RawTable{Columns: []string{"Commodity", " Year ", "Mine Production", "Mine production"}}

	if got := tbl.ColumnIndex("year"); got != 1 {
		t.Errorf("ColumnIndex(year) = %d, want 1 (case-insensitive, trimmed)", got)
	}
	if got := tbl.ColumnIndex("absent"); got != -1 {
		t.Errorf("ColumnIndex(absent) = %d, want -1", got)
	}
	if got := tbl.ColumnIndexExact("Mine production"); got != 3 {
		t.Errorf("ColumnIndexExact should distinguish capitalization variants, got %d", got)
	}
}

func TestCellBounds(t *testing.T) {
	tbl := &RawTable{Columns: []string{"a"}, Rows: [][]string{{"x"}}}
	for _, c := range [][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 5}} {
		if got := tbl.Cell(c[0], c[1]); got != "" {
			t.Errorf("Cell(%d,%d) = %q, want empty", c[0], c[1], got)
		}
	}
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    Layout
	}{
		{
			name:    "wide with bare year columns",
			columns: []string{"Commodity", "Country", "2020", "2021"},
			want:    LayoutWide,
		},
		{
			name:    "long with year and ranked production column",
			columns: []string{"Commodity", "Country", "Year", "Production"},
			want:    LayoutLong,
		},
		{
			name:    "long with lower-variant production column",
			columns: []string{"Country", "YEAR", "Mine production"},
			want:    LayoutLong,
		},
		{
			name:    "year without any recognized value column",
			columns: []string{"Country", "Year", "Output"},
			want:    LayoutUnknown,
		},
		{
			name:    "value column capitalization not in ranking",
			columns: []string{"Country", "Year", "production"},
			want:    LayoutUnknown,
		},
		{
			name:    "no year-like structure at all",
			columns: []string{"Commodity", "Country", "Notes"},
			want:    LayoutUnknown,
		},
	}

	ranked := []string{"Production", "Mine Production", "Mine production", "World Production", "Production (kt)"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := &RawTable{Columns: tt.columns}
			if got := DetectLayout(tbl, yearPattern, ranked); got != tt.want {
				t.Errorf("DetectLayout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectLayoutWideBeatsLong(t *testing.T) {
	tbl := &RawTable{Columns: []string{"Country", "Year", "Production", "2020"}}
	if got := DetectLayout(tbl, yearPattern, []string{"Production"}); got != LayoutWide {
		t.Errorf("a matching wide column must win, got %v", got)
	}
}

func TestMeltOrderAndShape(t *testing.T) {
	tbl := &RawTable{
		Columns: []string{"Country", "2020", "2021"},
		Rows: [][]string{
			{"Morocco", "35000", "36000"},
			{"China", "88000", "90000"},
		},
	}

	melted := Melt(tbl, []string{"2020", "2021"}, "Year", "Production")

	wantCols := []string{"Country", "Year", "Production"}
	if !reflect.DeepEqual(melted.Columns, wantCols) {
		t.Fatalf("Columns = %q, want %q", melted.Columns, wantCols)
	}
	wantRows := [][]string{
		{"Morocco", "2020", "35000"},
		{"Morocco", "2021", "36000"},
		{"China", "2020", "88000"},
		{"China", "2021", "90000"},
	}
	if !reflect.DeepEqual(melted.Rows, wantRows) {
		t.Errorf("Rows = %v, want row order then column order", melted.Rows)
	}
}

func TestMeltKeepsAllIdentifyingColumns(t *testing.T) {
	tbl := &RawTable{
		Columns: []string{"Commodity", "Country", "2020"},
		Rows:    [][]string{{"PHOSPHATE ROCK", "Morocco", "35000"}},
	}
	melted := Melt(tbl, []string{"2020"}, "Year", "Production")
	want := []string{"PHOSPHATE ROCK", "Morocco", "2020", "35000"}
	if !reflect.DeepEqual(melted.Rows[0], want) {
		t.Errorf("row = %v, want %v", melted.Rows[0], want)
	}
}

func TestMatchingColumns(t *testing.T) {
	tbl := &RawTable{Columns: []string{"Commodity", "2023M01", "2023M02", "Notes", "2023"}}
	got := tbl.MatchingColumns(yearMonthPattern)
	want := []string{"2023M01", "2023M02"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchingColumns = %q, want %q", got, want)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 3.14 ", 3.14, true},
		{"1e3", 1000, true},
		{"-5", -5, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"W", 0, false}, // USGS "withheld" marker
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2020", 2020, true},
		{"2020.0", 2020, true},
		{"2020.5", 0, false},
		{"MCS2025", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseYear(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseYear(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFilterRowsReturnsNewTable(t *testing.T) {
	tbl := &RawTable{
		Columns: []string{"Commodity", "Country"},
		Rows: [][]string{
			{"PHOSPHATE ROCK", "Morocco"},
			{"GOLD", "Peru"},
		},
	}
	filtered := tbl.FilterRows(func(row []string) bool {
		return strings.Contains(row[0], "PHOSPHATE")
	})
	if len(filtered.Rows) != 1 || filtered.Rows[0][1] != "Morocco" {
		t.Errorf("filtered rows = %v", filtered.Rows)
	}
	if len(tbl.Rows) != 2 {
		t.Error("FilterRows must not mutate the source table")
	}
}
