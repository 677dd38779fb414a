package converter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFTextSource reads the plain text of a PDF, one line per text row
type PDFTextSource struct {
	logger *slog.Logger
}

// NewPDFTextSource creates a raw text source
func NewPDFTextSource(logger *slog.Logger) *PDFTextSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFTextSource{logger: logger}
}

// RawText implements manifest.RawTextSource. Pages that fail to decode are
// skipped; a failure of the whole document is returned as an error.
func (s *PDFTextSource) RawText(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := s.writePage(&b, reader, i); err != nil {
			s.logger.Warn("Skipping unreadable page", "file", path, "page", i, "error", err)
		}
	}

	return normalizeText(b.String()), nil
}

// writePage appends one page's rows to b
func (s *PDFTextSource) writePage(b *strings.Builder, reader *pdf.Reader, num int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return err
	}
	for _, row := range rows {
		b.WriteString(joinRow(row.Content))
		b.WriteString("\n")
	}
	return nil
}

// joinRow concatenates the text runs of a row, inserting a space where the
// horizontal gap between two runs is wider than a fraction of the font size
func joinRow(texts []pdf.Text) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > t.FontSize*0.15 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteString(" ")
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}
