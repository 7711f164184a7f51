// Package importer reads invoice line rows from CSV or XLSX uploads.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const MaxRows = 100

var (
	ErrUnsupportedFormat = errors.New("unsupported_import_format")
	ErrMissingHeader     = errors.New("missing_import_header")
	ErrEmptyFile         = errors.New("empty_import_file")
	ErrTooManyRows       = errors.New("too_many_import_rows")
	ErrUnreadableFile    = errors.New("unreadable_import_file")
	ErrInvalidBaris      = errors.New("invalid_baris")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidPrice      = errors.New("invalid_custom_price")
)

const (
	ColumnBaris          = "baris"
	ColumnWorker         = "worker"
	ColumnJobDescription = "job_description"
	ColumnDescription    = "description"
	ColumnQuantity       = "quantity"
	ColumnCustomPrice    = "custom_price"
)

var headerAliases = map[string]string{
	"baris":           ColumnBaris,
	"row":             ColumnBaris,
	"worker":          ColumnWorker,
	"worker_id":       ColumnWorker,
	"worker_name":     ColumnWorker,
	"job_description": ColumnJobDescription,
	"job":             ColumnJobDescription,
	"job_id":          ColumnJobDescription,
	"jabatan":         ColumnJobDescription,
	"description":     ColumnDescription,
	"uraian":          ColumnDescription,
	"quantity":        ColumnQuantity,
	"qty":             ColumnQuantity,
	"custom_price":    ColumnCustomPrice,
	"price":           ColumnCustomPrice,
	"harga":           ColumnCustomPrice,
}

// Row is one parsed line. Number is the row in the uploaded sheet, with the
// header on row 1. Worker and JobDescription hold an ID or a name.
type Row struct {
	Number         int
	Baris          int
	Worker         string
	JobDescription string
	Description    string
	Quantity       int64
	CustomPrice    *decimal.Decimal
}

type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Parse picks the reader from the file extension.
func Parse(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	return parseRecords(records)
}

// ParseXLSX reads the first sheet of the workbook.
func ParseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	return parseRecords(records)
}

func parseRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	columns, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		number := i + 2
		row, err := parseRow(number, columns, record)
		if err != nil {
			return nil, &RowError{Row: number, Err: err}
		}
		rows = append(rows, row)
		if len(rows) > MaxRows {
			return nil, ErrTooManyRows
		}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		key = strings.Join(strings.Fields(key), "_")
		if name, ok := headerAliases[key]; ok {
			if _, seen := columns[name]; !seen {
				columns[name] = i
			}
		}
	}
	if len(columns) == 0 {
		return nil, ErrMissingHeader
	}
	return columns, nil
}

func parseRow(number int, columns map[string]int, record []string) (Row, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := Row{
		Number:         number,
		Worker:         cell(ColumnWorker),
		JobDescription: cell(ColumnJobDescription),
		Description:    cell(ColumnDescription),
		Quantity:       1,
	}

	if raw := cell(ColumnBaris); raw != "" {
		baris, err := strconv.Atoi(raw)
		if err != nil || baris < 1 {
			return Row{}, ErrInvalidBaris
		}
		row.Baris = baris
	}
	if raw := cell(ColumnQuantity); raw != "" {
		qty, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || qty < 1 {
			return Row{}, ErrInvalidQuantity
		}
		row.Quantity = qty
	}
	if raw := cell(ColumnCustomPrice); raw != "" {
		price, err := parsePrice(raw)
		if err != nil {
			return Row{}, err
		}
		row.CustomPrice = &price
	}
	return row, nil
}

// parsePrice accepts plain decimals with an optional "Rp" prefix.
func parsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.EqualFold(raw[:2], "rp") {
		raw = strings.TrimSpace(raw[2:])
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || price.IsNegative() || !price.Equal(price.Round(2)) {
		return decimal.Zero, ErrInvalidPrice
	}
	return price, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
