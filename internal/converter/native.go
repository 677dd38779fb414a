package converter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"

	"package-manifest/internal/manifest"
)

// NativeConverter converts manifests in-process: tabula reads the PDF text
// and its geometric detector recovers the tables
type NativeConverter struct {
	detector tables.Detector
	logger   *slog.Logger
}

// NewNativeConverter creates a native converter
func NewNativeConverter(logger *slog.Logger) *NativeConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeConverter{
		detector: tables.NewGeometricDetector(),
		logger:   logger,
	}
}

// Name implements manifest.Converter
func (c *NativeConverter) Name() string {
	return manifest.StrategyNative
}

// Convert reads path and returns its tables and text
func (c *NativeConverter) Convert(ctx context.Context, path string) (*manifest.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analyzed, err := tabula.AnalyzeDocument(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	doc := &manifest.Document{Pages: len(analyzed.Pages)}
	for _, page := range analyzed.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := c.detector.Detect(page)
		if err != nil {
			c.logger.Warn("Table detection failed", "page", page.Number, "error", err)
			continue
		}
		for _, t := range found {
			doc.Tables = append(doc.Tables, convertTable(t))
		}
	}
	doc.Tables = carryHeaders(doc.Tables)

	text, warnings, err := tabula.Open(path).Text()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	if len(warnings) > 0 {
		c.logger.Debug("PDF text extracted with warnings", "file", path, "warnings", len(warnings))
	}
	doc.Text = normalizeText(text)

	c.logger.Debug("Native conversion finished", "file", path, "pages", doc.Pages, "tables", len(doc.Tables))
	return doc, nil
}

func convertTable(t *model.Table) manifest.Table {
	rows := make([][]string, 0, len(t.Rows))
	for _, cells := range t.Rows {
		row := make([]string, len(cells))
		for i, cell := range cells {
			row[i] = strings.TrimSpace(normalizeText(cell.Text))
		}
		rows = append(rows, row)
	}
	return manifest.Table{Rows: rows}
}
