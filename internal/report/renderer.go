// Package report renders stored datasets into downloadable documents.
package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"equiviz/internal/domain"
)

// Renderer turns a dataset and its summary into report documents. It
// holds no state beyond a logger; rendering is a pure function of its
// inputs.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger.With(slog.String("component", "report_renderer"))}
}

// PDF renders the equipment parameter report: title, file metadata,
// the summary block, and the per-type table. When the summary carries
// no per-type stats the table falls back to the two-column type
// distribution.
func (r *Renderer) PDF(ds *domain.Dataset, summary *domain.Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(25, 25, 25)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Chemical Equipment Parameter Report", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("File Name: %s", ds.FileName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Upload Date: %s", ds.UploadedAt.Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Summary Statistics", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total Equipment Count: %d", summary.TotalCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Average Flowrate: %.2f", summary.AvgFlowrate), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Average Pressure: %.2f", summary.AvgPressure), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Average Temperature: %.2f", summary.AvgTemperature), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Per Equipment Type", "", 1, "L", false, 0, "")

	if len(summary.TypeStats) > 0 {
		r.typeStatsTable(pdf, summary.TypeStats)
	} else {
		r.distributionTable(pdf, summary.TypeDistribution)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) typeStatsTable(pdf *gofpdf.Fpdf, stats map[string]domain.TypeStat) {
	widths := []float64{45, 25, 45, 45}
	headers := []string{"Type", "Count", "Avg Temperature", "Avg Pressure"}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	for _, typ := range sortedKeys(stats) {
		st := stats[typ]
		pdf.CellFormat(widths[0], 8, typ, "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[1], 8, fmt.Sprintf("%d", st.Count), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[2], 8, fmt.Sprintf("%.2f", st.AvgTemperature), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[3], 8, fmt.Sprintf("%.2f", st.AvgPressure), "1", 0, "C", true, 0, "")
		pdf.Ln(-1)
	}
}

func (r *Renderer) distributionTable(pdf *gofpdf.Fpdf, dist map[string]int) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(80, 8, "Type", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Count", "1", 0, "C", true, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, typ := range keys {
		pdf.CellFormat(80, 8, typ, "1", 0, "C", true, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%d", dist[typ]), "1", 0, "C", true, 0, "")
		pdf.Ln(-1)
	}
}

// XLSX renders the dataset as a spreadsheet: a Data sheet with the raw
// rows and a Summary sheet with the aggregates and per-type stats.
func (r *Renderer) XLSX(ds *domain.Dataset, summary *domain.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const dataSheet = "Data"
	if err := f.SetSheetName(f.GetSheetList()[0], dataSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Equipment Name", "Type", "Flowrate", "Pressure", "Temperature"}
	for j, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(dataSheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	if ds.Table != nil {
		for i, row := range ds.Table.Rows {
			values := []any{row.EquipmentName, row.Type, optional(row.Flowrate), optional(row.Pressure), optional(row.Temperature)}
			for j, v := range values {
				if v == nil {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
				if err := f.SetCellValue(dataSheet, cell, v); err != nil {
					return nil, fmt.Errorf("write row: %w", err)
				}
			}
		}
	}

	const summarySheet = "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	lines := [][]any{
		{"File Name", ds.FileName},
		{"Upload Date", ds.UploadedAt.Format("2006-01-02 15:04:05")},
		{"Total Equipment Count", summary.TotalCount},
		{"Average Flowrate", summary.AvgFlowrate},
		{"Average Pressure", summary.AvgPressure},
		{"Average Temperature", summary.AvgTemperature},
		{},
		{"Type", "Count", "Avg Temperature", "Avg Pressure"},
	}
	for _, typ := range sortedKeys(summary.TypeStats) {
		st := summary.TypeStats[typ]
		lines = append(lines, []any{typ, st.Count, st.AvgTemperature, st.AvgPressure})
	}
	for i, line := range lines {
		for j, v := range line {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return nil, fmt.Errorf("write summary cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func sortedKeys(m map[string]domain.TypeStat) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
