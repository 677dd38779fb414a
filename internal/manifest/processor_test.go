package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConverter struct {
	doc   *Document
	err   error
	panic bool
}

func (s *stubConverter) Name() string { return "stub" }

func (s *stubConverter) Convert(ctx context.Context, path string) (*Document, error) {
	if s.panic {
		panic("broken pdf")
	}
	return s.doc, s.err
}

type stubRawText struct {
	text  string
	err   error
	calls int
}

func (s *stubRawText) RawText(ctx context.Context, path string) (string, error) {
	s.calls++
	return s.text, s.err
}

type recordingObserver struct {
	mu        sync.Mutex
	processed int
	extracted map[string]int
	fallbacks int
}

func (o *recordingObserver) ManifestProcessed(*Result, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed++
}

func (o *recordingObserver) PackagesExtracted(source string, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.extracted == nil {
		o.extracted = make(map[string]int)
	}
	o.extracted[source] += count
}

func (o *recordingObserver) FallbackRun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks++
}

func code(n int) string {
	return fmt.Sprintf("AB%09dBR", 864450000+n)
}

// manifestTable builds a standard table with one row per code
func manifestTable(codes ...string) Table {
	rows := [][]string{standardHeader}
	for i, c := range codes {
		rows = append(rows, []string{
			fmt.Sprint(i + 1), "07/01/2025", fmt.Sprintf("PCM - %d", i+1), c, "CLIENTE NUMERO " + strings.Repeat("X", i+1),
		})
	}
	return Table{Rows: rows}
}

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	return path
}

func newTestProcessor(conv Converter, raw RawTextSource, opts ...Option) *Processor {
	opts = append([]Option{WithLogger(discardLogger()), WithClock(fixedClock)}, opts...)
	return NewProcessor(conv, raw, opts...)
}

func TestProcessFile_MissingFile(t *testing.T) {
	p := newTestProcessor(&stubConverter{}, nil)

	result := p.ProcessFile(context.Background(), "/nonexistent/manifest.pdf")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "file not found: /nonexistent/manifest.pdf", result.Errors[0])
	assert.Equal(t, "manifest.pdf", result.Metadata.FileName)
	assert.NotNil(t, result.Packages)
}

func TestProcessFile_ConversionFailure(t *testing.T) {
	path := writeTempPDF(t)

	for name, conv := range map[string]*stubConverter{
		"error":       {err: errors.New("engine exited with status 1")},
		"panic":       {panic: true},
		"no document": {},
	} {
		t.Run(name, func(t *testing.T) {
			result := newTestProcessor(conv, nil).ProcessFile(context.Background(), path)

			assert.False(t, result.Success)
			require.Len(t, result.Errors, 1)
			assert.True(t, strings.HasPrefix(result.Errors[0], "conversion failed: "), result.Errors[0])
			assert.Equal(t, int64(len("%PDF-1.4 test")), result.Metadata.FileSize)
		})
	}
}

func TestProcessFile_Success(t *testing.T) {
	path := writeTempPDF(t)
	doc := &Document{
		Tables: []Table{manifestTable(code(1), code(2), code(3))},
		Text:   "Impresso em: 07/01/2025\nTotal de objetos: 3",
		Pages:  2,
	}
	obs := &recordingObserver{}
	raw := &stubRawText{}

	result := newTestProcessor(&stubConverter{doc: doc}, raw, WithObserver(obs)).ProcessFile(context.Background(), path)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 3, result.TotalPackages)
	assert.Equal(t, 3, result.Metadata.ExtractedTotal)
	assert.Equal(t, 3, result.Metadata.ExpectedTotal)
	assert.Equal(t, 2, result.Metadata.PagesProcessed)
	assert.Equal(t, "07/01/2025", result.Metadata.ArrivalDate)
	assert.Equal(t, "stub", result.Metadata.Strategy)
	assert.Equal(t, []int{3}, result.Metadata.TableCounts)
	assert.Zero(t, raw.calls, "no fallback when totals match")
	for _, p := range result.Packages {
		assert.Equal(t, "2025-01-14", p.PickupDeadline)
	}

	assert.Equal(t, 1, obs.processed)
	assert.Equal(t, 3, obs.extracted[SourceTable])
	assert.Zero(t, obs.fallbacks)
}

func TestProcessDocument_DedupAcrossTables(t *testing.T) {
	first := manifestTable(code(1), code(2))
	second := manifestTable(code(2), code(3))
	second.Rows[1][4] = "OUTRO NOME"

	result := newTestProcessor(&stubConverter{}, nil).ProcessDocument(context.Background(), &Document{
		Tables: []Table{first, second},
	}, "manifest.pdf")

	require.Len(t, result.Packages, 3)
	seen := make(map[string]bool)
	for _, p := range result.Packages {
		assert.False(t, seen[p.TrackingCode], "duplicate %s", p.TrackingCode)
		seen[p.TrackingCode] = true
	}
	assert.Equal(t, "CLIENTE NUMERO XX", result.Packages[1].Recipient, "first occurrence is kept")
	assert.Equal(t, []int{2, 1}, result.Metadata.TableCounts)
}

func TestProcessFile_FallbackClosesShortfall(t *testing.T) {
	path := writeTempPDF(t)

	var codes []string
	for i := 1; i <= 8; i++ {
		codes = append(codes, code(i))
	}
	var raw strings.Builder
	for i, c := range codes {
		fmt.Fprintf(&raw, "%d 07/01/2025 PCM - %d %s CLIENTE\n", i+1, i+1, c)
	}
	raw.WriteString("9 07/01/2025 PCM - 9 " + code(9) + " ANA LIMA\n")
	raw.WriteString("10 07/01/2025 PCM - 10 " + code(10) + " RUI COSTA\n")

	doc := &Document{
		Tables: []Table{manifestTable(codes[:5]...), manifestTable(codes[5:]...)},
		Text:   "Impresso em: 07/01/2025\nTotal de objetos: 10",
	}
	obs := &recordingObserver{}
	source := &stubRawText{text: raw.String()}

	result := newTestProcessor(&stubConverter{doc: doc}, source, WithObserver(obs)).ProcessFile(context.Background(), path)

	require.Equal(t, 10, result.TotalPackages)
	assert.Equal(t, 10, result.Metadata.ExtractedTotal)
	assert.Equal(t, 2, result.Metadata.FallbackRecovered)
	for _, w := range result.Warnings {
		assert.NotContains(t, w, "missing")
	}

	recovered := result.Packages[8:]
	assert.Equal(t, code(9), recovered[0].TrackingCode)
	assert.Equal(t, "ANA LIMA", recovered[0].Recipient)
	assert.Equal(t, 9, recovered[0].LineNumber)
	assert.Equal(t, code(10), recovered[1].TrackingCode)
	for _, p := range recovered {
		assert.Equal(t, ConfidenceFallback, p.Confidence)
		assert.Equal(t, "07/01/2025", p.Date, "arrival date applies to recovered packages")
	}

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, obs.fallbacks)
	assert.Equal(t, 2, obs.extracted[SourceFallback])
}

func TestProcessFile_FallbackFailureIsWarning(t *testing.T) {
	path := writeTempPDF(t)
	doc := &Document{
		Tables: []Table{manifestTable(code(1))},
		Text:   "Total de objetos: 2",
	}
	source := &stubRawText{err: errors.New("malformed xref")}

	result := newTestProcessor(&stubConverter{doc: doc}, source).ProcessFile(context.Background(), path)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "fallback recovery failed")
	assert.Equal(t, "missing 1 packages (1/2)", result.Warnings[1])
}

func TestProcessDocument_FallbackUsesDocumentText(t *testing.T) {
	doc := &Document{
		Tables: []Table{manifestTable(code(1))},
		Text:   "Total de objetos: 2\n1 07/01/2025 PCM - 1 " + code(1) + " X\n2 07/01/2025 PCM - 2 " + code(2) + " RUI COSTA",
	}

	result := newTestProcessor(&stubConverter{}, &stubRawText{text: "unused"}).ProcessDocument(context.Background(), doc, "m.pdf")

	require.Len(t, result.Packages, 2)
	assert.Equal(t, "RUI COSTA", result.Packages[1].Recipient)
	assert.Equal(t, "2025-03-10", result.Packages[1].DateISO, "no arrival date, today is used")
	assert.Empty(t, result.Warnings)
}

func TestProcessDocument_ExtraPackagesWarning(t *testing.T) {
	doc := &Document{
		Tables: []Table{manifestTable(code(1), code(2), code(3))},
		Text:   "Total de objetos: 2",
	}

	result := newTestProcessor(&stubConverter{}, nil).ProcessDocument(context.Background(), doc, "m.pdf")

	assert.Equal(t, []string{"1 extra packages (3/2)"}, result.Warnings)
}

func TestProcessDocument_NilDocument(t *testing.T) {
	result := newTestProcessor(&stubConverter{}, nil).ProcessDocument(context.Background(), nil, "m.pdf")

	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 1)
}

func TestProcessDocument_NoPackages(t *testing.T) {
	result := newTestProcessor(&stubConverter{}, nil).ProcessDocument(context.Background(), &Document{}, "m.pdf")

	assert.False(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.TotalPackages)
}

func TestProcessor_IndependentRuns(t *testing.T) {
	p := newTestProcessor(&stubConverter{}, nil)
	doc := &Document{Tables: []Table{manifestTable(code(1))}}

	first := p.ProcessDocument(context.Background(), doc, "a.pdf")
	second := p.ProcessDocument(context.Background(), doc, "b.pdf")

	assert.Len(t, first.Packages, 1)
	assert.Len(t, second.Packages, 1, "dedup state must not leak between documents")
}

func TestProcessDocument_PanickingTableIsSkipped(t *testing.T) {
	p := newTestProcessor(&stubConverter{}, nil)
	p.extractTable = func(rows *RowExtractor, table Table) ([]Package, []string) {
		if len(table.DataRows()) == 1 {
			panic("unreadable table")
		}
		return rows.ExtractTable(table)
	}

	doc := &Document{
		Tables: []Table{
			manifestTable(code(1), code(2)),
			manifestTable(code(3)),
			manifestTable(code(4), code(5)),
		},
		Text: "Impresso em: 07/01/2025",
	}

	result := p.ProcessDocument(context.Background(), doc, "m.pdf")

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.TotalPackages)
	assert.Equal(t, []int{2, 0, 2}, result.Metadata.TableCounts)
	assert.Contains(t, result.Warnings, "failed to process table 2: panic: unreadable table")
	for _, pkg := range result.Packages {
		assert.NotEqual(t, code(3), pkg.TrackingCode)
	}
}

func TestProcessDocument_ReportsOutOfRangeHeaderDate(t *testing.T) {
	doc := &Document{
		Tables: []Table{manifestTable(code(1))},
		Text:   "Impresso em: 07/01/1999",
	}

	result := newTestProcessor(&stubConverter{}, nil).ProcessDocument(context.Background(), doc, "m.pdf")

	assert.Equal(t, "07/01/1999", result.Metadata.ArrivalDate, "the printed date is reported even when it is rejected")
	require.Len(t, result.Packages, 1)
	assert.Equal(t, "07/01/2025", result.Packages[0].Date, "packages keep their own row date")
}
