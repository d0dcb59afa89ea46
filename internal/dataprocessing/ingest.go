package dataprocessing

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"equiviz/internal/domain"
)

// RequiredColumns are the column headers an uploaded file must carry,
// matched by name after trimming surrounding whitespace.
var RequiredColumns = []string{"Equipment Name", "Type", "Flowrate", "Pressure", "Temperature"}

// Ingestor parses uploaded equipment files into validated tables.
// It is a pure transformation: bytes in, table or error out.
type Ingestor struct {
	logger *slog.Logger
}

// NewIngestor creates an ingestor. A nil logger falls back to the
// default slog logger.
func NewIngestor(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{logger: logger.With(slog.String("component", "ingestor"))}
}

// Ingest decodes the named upload into a validated table. The file
// format is chosen by extension: .csv or .xlsx. Malformed numeric cells
// are tolerated and become nil fields; missing required columns fail
// the whole ingest with a validation error naming every absent column.
func (i *Ingestor) Ingest(ctx context.Context, fileName string, r io.Reader) (*domain.Table, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return nil, domain.NewValidationError("File must be a CSV or XLSX")
	}
	if err != nil {
		return nil, err
	}

	table, err := buildTable(records)
	if err != nil {
		return nil, err
	}

	i.logger.InfoContext(ctx, "file ingested",
		slog.String("file_name", fileName),
		slog.Int("row_count", len(table.Rows)))

	return table, nil
}

// readCSV reads all records from a CSV stream with a header row.
func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError("Failed to parse CSV: %v", err)
	}
	return records, nil
}

// readXLSX reads all rows from the first sheet of an XLSX stream.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.NewValidationError("Failed to parse XLSX: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("XLSX file contains no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.NewValidationError("Failed to read XLSX sheet: %v", err)
	}
	return rows, nil
}

// buildTable validates the header and converts raw records into rows.
// Rows whose cells are all empty after trimming are dropped.
func buildTable(records [][]string) (*domain.Table, error) {
	if len(records) == 0 {
		return nil, domain.NewValidationError("File contains no header row")
	}

	header := records[0]
	colIndex := make(map[string]int, len(header))
	for j, name := range header {
		colIndex[strings.TrimSpace(name)] = j
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewValidationError("Missing required columns: %s", strings.Join(missing, ", "))
	}

	table := &domain.Table{Columns: append([]string(nil), RequiredColumns...)}
	for _, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}
		table.Rows = append(table.Rows, domain.Row{
			EquipmentName: cellString(record, colIndex["Equipment Name"]),
			Type:          cellString(record, colIndex["Type"]),
			Flowrate:      cellFloat(record, colIndex["Flowrate"]),
			Pressure:      cellFloat(record, colIndex["Pressure"]),
			Temperature:   cellFloat(record, colIndex["Temperature"]),
		})
	}

	return table, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cellString(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// cellFloat parses a numeric cell, stripping thousands separators.
// Unparseable cells become nil and are handled downstream as missing.
func cellFloat(record []string, idx int) *float64 {
	if idx >= len(record) {
		return nil
	}
	raw := strings.ReplaceAll(strings.TrimSpace(record[idx]), ",", "")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
