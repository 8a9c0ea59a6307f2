package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"findecoder/pkg/contracts/domain"
)

// Ingest error sentinels. Parse detail is wrapped around them.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrOversizeInput     = errors.New("oversize input")
	ErrMalformedInput    = errors.New("malformed input")
)

// Ingestor turns uploaded spreadsheet bytes into a TabularDocument.
type Ingestor struct {
	maxSize int64
	logger  *slog.Logger
}

// NewIngestor creates an ingestor with the given size ceiling in bytes.
func NewIngestor(maxSize int64, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		maxSize: maxSize,
		logger:  logger.With(slog.String("component", "ingestor")),
	}
}

// Ingest parses filename/data into a typed table. The format is chosen by
// file extension; the size ceiling is enforced before any parsing.
func (ing *Ingestor) Ingest(ctx context.Context, filename string, data []byte) (*domain.TabularDocument, error) {
	if int64(len(data)) > ing.maxSize {
		ing.logger.WarnContext(ctx, "upload rejected: too large",
			slog.String("filename", filename),
			slog.Int("size", len(data)),
			slog.Int64("limit", ing.maxSize))
		return nil, fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrOversizeInput, len(data), ing.maxSize)
	}

	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = parseCSV(data)
	case ".xlsx", ".xls":
		records, err = parseWorkbook(data)
	default:
		ing.logger.WarnContext(ctx, "upload rejected: unsupported extension",
			slog.String("filename", filename))
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		ing.logger.WarnContext(ctx, "upload rejected: parse failure",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	doc, err := buildDocument(filename, records)
	if err != nil {
		ing.logger.WarnContext(ctx, "upload rejected: invalid table",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	ing.logger.InfoContext(ctx, "document ingested",
		slog.String("filename", filename),
		slog.Int("rows", doc.RowCount()),
		slog.Int("columns", len(doc.Columns)))

	return doc, nil
}

// parseCSV reads a CSV file. FieldsPerRecord enforces rectangular shape.
func parseCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return records, nil
}

// parseWorkbook reads the first non-empty sheet of an Excel workbook.
// Rows shorter than the header are padded with empty cells later; legacy
// .xls containers fail to open and surface as malformed input.
func parseWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformedInput, name, err)
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}

	return nil, fmt.Errorf("%w: workbook has no non-empty sheet", ErrMalformedInput)
}

// buildDocument validates the raw grid and types each cell.
func buildDocument(filename string, records [][]string) (*domain.TabularDocument, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrMalformedInput)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: no data rows", ErrMalformedInput)
	}

	header := records[0]
	columns := make([]string, 0, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty header cell at column %d", ErrMalformedInput, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate header %q", ErrMalformedInput, name)
		}
		seen[name] = struct{}{}
		columns = append(columns, name)
	}

	rows := make([]domain.Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) > len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d", ErrMalformedInput, i+2, len(record), len(columns))
		}

		row := make(domain.Row, len(columns))
		for j, name := range columns {
			raw := ""
			if j < len(record) {
				raw = strings.TrimSpace(record[j])
			}
			row[name] = typeCell(raw)
		}
		rows = append(rows, row)
	}

	return &domain.TabularDocument{
		SourceName: filename,
		Columns:    columns,
		Rows:       rows,
	}, nil
}

// typeCell classifies a raw cell as empty, number, or text.
func typeCell(raw string) domain.Cell {
	if raw == "" {
		return domain.Cell{Kind: domain.CellEmpty}
	}
	if num, ok := parseNumber(raw); ok {
		return domain.Cell{Kind: domain.CellNumber, Raw: raw, Number: num}
	}
	return domain.Cell{Kind: domain.CellText, Raw: raw}
}

// parseNumber detects numeric cells, tolerating thousands separators.
func parseNumber(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return num, true
}
