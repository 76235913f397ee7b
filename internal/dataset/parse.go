package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// ErrUnavailable marks every failure to turn the source file into a Dataset.
var ErrUnavailable = errors.New("dataset unavailable")

// Parse reads a condition table from a CSV, TSV or Excel workbook.  Excel
// files are read from their first sheet.  The first row must be a header
// naming at least the Disease or Symptoms column.
func Parse(path string) (*Dataset, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	ds, err := fromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, filepath.Base(path), err)
	}
	return ds, nil
}

func readRows(path string) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return readDelimited(path, ',')
	case ".tsv":
		return readDelimited(path, '\t')
	case ".xlsx", ".xlsm":
		return readWorkbook(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func fromRows(rows [][]string) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	// positions[i] is the source column feeding columns[i], or -1.
	positions := make([]int, len(columns))
	for i := range positions {
		positions[i] = -1
	}
	for pos, cell := range rows[0] {
		header := cleanCell(cell)
		for i, c := range columns {
			if positions[i] < 0 && strings.EqualFold(header, c.Header) {
				positions[i] = pos
			}
		}
	}
	if positions[0] < 0 && positions[1] < 0 {
		return nil, errors.New("header has neither a Disease nor a Symptoms column")
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var r Record
		for i, c := range columns {
			pos := positions[i]
			if pos < 0 || pos >= len(row) {
				continue
			}
			*c.field(&r) = cleanCell(row[pos])
		}
		if r.blank() {
			continue
		}
		records = append(records, r)
	}
	return New(records), nil
}

// cleanCell normalises a cell the same way for headers and values.
// Spreadsheet exports write NaN for empty numeric cells; those are absent.
func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	v = norm.NFC.String(v)
	v = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, v)
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}
