// Package export writes matrices and flow lists as downloadable tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/rmgsl/mapa-od/internal/od"
)

// Format is a download format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json, csv or xlsx. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format: %q", s)
}

// ContentType returns the MIME type of a download
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Sheet is one table: a header row and integer-or-text body rows
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// MatrixSheet lays out m with row labels in the first column. The corner
// cell names both axes.
func MatrixSheet(name string, m od.Matrix) Sheet {
	header := append([]string{m.RowLabel + "/" + m.ColLabel}, m.Cols...)
	rows := make([][]any, len(m.Rows))
	for i, label := range m.Rows {
		row := make([]any, 0, len(m.Cols)+1)
		row = append(row, label)
		for _, v := range m.Cells[i] {
			row = append(row, v)
		}
		rows[i] = row
	}
	return Sheet{Name: name, Header: header, Rows: rows}
}

// FlowsSheet lists flows one per row
func FlowsSheet(name string, flows []od.FlowRecord) Sheet {
	return Sheet{
		Name:   name,
		Header: []string{"a", "b", "total"},
		Rows: lo.Map(flows, func(f od.FlowRecord, _ int) []any {
			return []any{f.Pair.A, f.Pair.B, f.Total}
		}),
	}
}

// WriteCSV writes one sheet as CSV
func WriteCSV(w io.Writer, s Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range s.Rows {
		record := lo.Map(row, func(v any, _ int) string { return cellString(v) })
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteXLSX writes sheets into one workbook, in order
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	for i, s := range sheets {
		name := sheetName(s.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		for col, h := range s.Header {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, h); err != nil {
				return fmt.Errorf("failed to write header cell %s: %w", cell, err)
			}
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+2, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetName trims to Excel's 31 character limit, drops forbidden characters
// and keeps names unique
func sheetName(name string, i int, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = fmt.Sprintf("Sheet%d", i+1)
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	for used[name] {
		suffix := fmt.Sprintf("_%d", i+1)
		runes := []rune(name)
		if len(runes)+len(suffix) > 31 {
			runes = runes[:31-len(suffix)]
		}
		name = string(runes) + suffix
		i++
	}
	used[name] = true
	return name
}
