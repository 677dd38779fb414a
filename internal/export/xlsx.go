package export

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"

	"package-manifest/internal/manifest"
)

const (
	packagesSheet = "Packages"
	summarySheet  = "Summary"
)

// colWidth sets the width of the columns from First to Last
type colWidth struct {
	First, Last string
	Width       float64
}

var packageWidths = []colWidth{
	{"A", "A", 8},
	{"B", "B", 18},
	{"C", "C", 40},
	{"D", "D", 14},
	{"E", "F", 16},
	{"G", "G", 12},
}

var summaryWidths = []colWidth{
	{"A", "A", 22},
	{"B", "B", 48},
}

var packageHeaders = []string{
	"Line",
	"Tracking Code",
	"Recipient",
	"Position",
	"Date",
	"Pickup Deadline",
	"Confidence",
}

// Exporter renders processing results as XLSX workbooks
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// WriteXLSX writes the result's packages and a summary sheet to w
func (e *Exporter) WriteXLSX(w io.Writer, result *manifest.Result) error {
	if result == nil {
		return fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the package list
	if err := f.SetSheetName(f.GetSheetName(0), packagesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writePackages(f, result.Packages); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, result); err != nil {
		return err
	}

	index, err := f.GetSheetIndex(packagesSheet)
	if err != nil {
		return fmt.Errorf("find packages sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("Exported manifest",
		"file", result.Metadata.FileName,
		"rows", len(result.Packages))
	return nil
}

// XLSX returns the workbook as bytes
func (e *Exporter) XLSX(result *manifest.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.WriteXLSX(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePackages(f *excelize.File, packages []manifest.Package) error {
	if err := f.SetSheetRow(packagesSheet, "A1", &packageHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, pkg := range packages {
		row := i + 2
		values := []any{
			pkg.LineNumber,
			pkg.TrackingCode,
			pkg.Recipient,
			pkg.Position,
			pkg.Date,
			pkg.PickupDeadlineStr,
			pkg.Confidence,
		}
		if err := f.SetSheetRow(packagesSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	if err := setColWidths(f, packagesSheet, packageWidths); err != nil {
		return err
	}

	if len(packages) > 0 {
		last, err := excelize.CoordinatesToCellName(len(packageHeaders), len(packages)+1)
		if err != nil {
			return fmt.Errorf("auto filter range: %w", err)
		}
		if err := f.AutoFilter(packagesSheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("auto filter: %w", err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, result *manifest.Result) error {
	meta := result.Metadata
	rows := [][2]string{
		{"File", meta.FileName},
		{"Strategy", meta.Strategy},
		{"Success", strconv.FormatBool(result.Success)},
		{"Expected", strconv.Itoa(meta.ExpectedTotal)},
		{"Extracted", strconv.Itoa(meta.ExtractedTotal)},
		{"Recovered by fallback", strconv.Itoa(meta.FallbackRecovered)},
		{"Pages", strconv.Itoa(meta.PagesProcessed)},
		{"Arrival date", meta.ArrivalDate},
		{"Return date", meta.ReturnDate},
	}
	for _, w := range result.Warnings {
		rows = append(rows, [2]string{"Warning", w})
	}
	for _, e := range result.Errors {
		rows = append(rows, [2]string{"Error", e})
	}

	for i, r := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &[]any{r[0], r[1]}); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return setColWidths(f, summarySheet, summaryWidths)
}

func setColWidths(f *excelize.File, sheet string, widths []colWidth) error {
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.First, w.Last, w.Width); err != nil {
			return fmt.Errorf("set %s column width %s:%s: %w", sheet, w.First, w.Last, err)
		}
	}
	return nil
}
