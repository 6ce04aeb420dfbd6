package survey

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

// Format is the tabular encoding of a survey file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the format from a file or object name
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported survey file type: %s", path)
}

// Parse reads a survey encoded as format
func Parse(source string, r io.Reader, format Format, schema Schema) (*Table, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(source, r, schema)
	case FormatXLSX:
		return ParseXLSX(source, r, schema)
	}
	return nil, &LoadError{Source: source, Err: fmt.Errorf("unsupported format %q", format)}
}

// ParseCSV reads a comma or semicolon separated survey with a header row
func ParseCSV(source string, r io.Reader, schema Schema) (*Table, error) {
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Source: source, Err: errors.New("empty file")}
		}
		return nil, &LoadError{Source: source, Err: fmt.Errorf("failed to read header: %w", err)}
	}

	mapping, err := schema.Map(source, header)
	if err != nil {
		return nil, err
	}

	var records []TripRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Source: source, Err: fmt.Errorf("failed to read row: %w", err)}
		}
		if isBlank(row) {
			continue
		}
		records = append(records, mapping.Record(row))
	}

	return NewTable(source, mapping, records), nil
}

// ParseXLSX reads the first sheet of an Excel workbook
func ParseXLSX(source string, r io.Reader, schema Schema) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Source: source, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)}
	}
	return ParseRows(source, rows, schema)
}

// ParseRows maps an in-memory grid whose first row is the header
func ParseRows(source string, rows [][]string, schema Schema) (*Table, error) {
	if len(rows) == 0 {
		return nil, &LoadError{Source: source, Err: errors.New("empty sheet")}
	}
	mapping, err := schema.Map(source, rows[0])
	if err != nil {
		return nil, err
	}
	records := lo.FilterMap(rows[1:], func(row []string, _ int) (TripRecord, bool) {
		if isBlank(row) {
			return TripRecord{}, false
		}
		return mapping.Record(row), true
	})
	return NewTable(source, mapping, records), nil
}

// NewTable stamps records with a fresh snapshot id
func NewTable(source string, mapping *Mapping, records []TripRecord) *Table {
	return &Table{
		SourceID:   source,
		SnapshotID: uuid.New().String(),
		LoadedAt:   time.Now().UTC(),
		Attributes: mapping.Attributes(),
		Records:    records,
		Columns:    mapping.Columns,
	}
}

func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func isBlank(row []string) bool {
	return lo.EveryBy(row, func(cell string) bool { return strings.TrimSpace(cell) == "" })
}
