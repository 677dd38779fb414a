package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrFileNotFound is reported when the input manifest does not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrConversionFailed is reported when the document converter fails
	ErrConversionFailed = errors.New("conversion failed")
)

// Converter turns a manifest file into tables and text
type Converter interface {
	Name() string
	Convert(ctx context.Context, path string) (*Document, error)
}

// RawTextSource reads the plain text of a manifest file for fallback recovery
type RawTextSource interface {
	RawText(ctx context.Context, path string) (string, error)
}

// Observer is notified about processing outcomes
type Observer interface {
	ManifestProcessed(result *Result, elapsed time.Duration)
	PackagesExtracted(source string, count int)
	FallbackRun()
}

// Package sources reported to observers
const (
	SourceTable    = "table"
	SourceFallback = "fallback"
)

type nopObserver struct{}

func (nopObserver) ManifestProcessed(*Result, time.Duration) {}
func (nopObserver) PackagesExtracted(string, int)            {}
func (nopObserver) FallbackRun()                             {}

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the diagnostic logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the time source used for default dates and timings
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithDeadlineDays sets the pickup window used when a manifest has no return date
func WithDeadlineDays(days int) Option {
	return func(p *Processor) {
		if days > 0 {
			p.deadlineDays = days
		}
	}
}

// WithObserver sets the observer notified after each run
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// Processor extracts packages from delivery manifests. A Processor holds no
// per-document state and may be used from several goroutines.
type Processor struct {
	converter    Converter
	raw          RawTextSource
	logger       *slog.Logger
	now          func() time.Time
	deadlineDays int
	observer     Observer
	// extractTable reads one table; replaced in tests
	extractTable func(rows *RowExtractor, table Table) ([]Package, []string)
}

// NewProcessor creates a processor. raw may be nil, in which case fallback
// recovery scans the converter's document text.
func NewProcessor(conv Converter, raw RawTextSource, opts ...Option) *Processor {
	p := &Processor{
		converter:    conv,
		raw:          raw,
		logger:       slog.Default(),
		now:          time.Now,
		deadlineDays: DefaultDeadlineDays,
		observer:     nopObserver{},
		extractTable: (*RowExtractor).ExtractTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Strategy returns the name of the configured converter
func (p *Processor) Strategy() string {
	if p.converter == nil {
		return ""
	}
	return p.converter.Name()
}

// ProcessFile converts and processes the manifest at path. Failures never
// escape as errors; they are recorded in the result.
func (p *Processor) ProcessFile(ctx context.Context, path string) *Result {
	started := p.now()
	result := NewResult(filepath.Base(path), p.Strategy())
	defer p.complete(result, started)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.addError(fmt.Sprintf("%v: %s", ErrFileNotFound, path))
		} else {
			result.addError(fmt.Sprintf("failed to stat %s: %v", path, err))
		}
		return result
	}
	result.Metadata.FileSize = info.Size()

	p.logger.Info("Processing manifest", "file", path, "strategy", result.Metadata.Strategy)

	doc, err := p.convert(ctx, path)
	if err != nil {
		p.logger.Error("Manifest conversion failed", "file", path, "error", err)
		result.addError(fmt.Sprintf("%v: %v", ErrConversionFailed, err))
		return result
	}

	p.extract(ctx, path, doc, result)
	return result
}

// ProcessDocument processes an already converted document. Fallback recovery
// scans doc.Text.
func (p *Processor) ProcessDocument(ctx context.Context, doc *Document, fileName string) *Result {
	started := p.now()
	result := NewResult(fileName, p.Strategy())
	defer p.complete(result, started)

	if doc == nil {
		result.addError(fmt.Sprintf("%v: empty document", ErrConversionFailed))
		return result
	}
	p.extract(ctx, "", doc, result)
	return result
}

func (p *Processor) complete(result *Result, started time.Time) {
	end := p.now()
	result.finish(started, end)
	p.observer.ManifestProcessed(result, end.Sub(started))
}

// convert runs the converter, treating a panic as a conversion failure
func (p *Processor) convert(ctx context.Context, path string) (doc *Document, err error) {
	if p.converter == nil {
		return nil, errors.New("no converter configured")
	}
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()
	doc, err = p.converter.Convert(ctx, path)
	if err == nil && doc == nil {
		err = errors.New("converter returned no document")
	}
	return doc, err
}

// extract runs table extraction, reconciliation and fallback recovery
func (p *Processor) extract(ctx context.Context, path string, doc *Document, result *Result) {
	meta := ExtractMetadata(doc.Text)
	result.Metadata.ExpectedTotal = meta.ExpectedTotal
	result.Metadata.PagesProcessed = doc.Pages
	result.Metadata.ArrivalDate = meta.ArrivalText
	result.Metadata.ReturnDate = meta.ReturnText

	rec := NewReconciler(meta, p.now, p.deadlineDays)
	rows := NewRowExtractor(p.logger, p.now)

	result.Metadata.TableCounts = make([]int, 0, len(doc.Tables))
	fromTables := 0
	for i, table := range doc.Tables {
		candidates, warnings, err := p.extractTableSafely(rows, table)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			p.logger.Warn("Skipping manifest table", "table", i+1, "error", err)
			result.addWarning(fmt.Sprintf("failed to process table %d: %v", i+1, err))
			result.Metadata.TableCounts = append(result.Metadata.TableCounts, 0)
			continue
		}
		kept := rec.AddAll(candidates)
		fromTables += kept
		result.Metadata.TableCounts = append(result.Metadata.TableCounts, kept)
		p.logger.Info("Extracted table", "table", i+1, "packages", kept)
	}
	p.observer.PackagesExtracted(SourceTable, fromTables)

	if meta.ExpectedTotal > 0 && rec.Len() < meta.ExpectedTotal {
		recovered, err := p.runFallback(ctx, path, doc, rec)
		if err != nil {
			p.logger.Warn("Fallback recovery failed", "error", err)
			result.addWarning(fmt.Sprintf("fallback recovery failed: %v", err))
		}
		result.Metadata.FallbackRecovered = recovered
		p.observer.PackagesExtracted(SourceFallback, recovered)
	}

	result.Packages = rec.Packages()
	result.Warnings = append(result.Warnings, CountWarnings(meta.ExpectedTotal, rec.Len())...)
}

// extractTableSafely converts a panic while extracting a table into an error
func (p *Processor) extractTableSafely(rows *RowExtractor, table Table) (packages []Package, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			packages, warnings = nil, nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	packages, warnings = p.extractTable(rows, table)
	return packages, warnings, nil
}

// runFallback scans the raw document text for tracking codes the tables missed
// and adds a low-confidence package for each one.
func (p *Processor) runFallback(ctx context.Context, path string, doc *Document, rec *Reconciler) (recovered int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	p.observer.FallbackRun()
	p.logger.Info("Running fallback recovery", "extracted", rec.Len(), "expected", rec.meta.ExpectedTotal)

	raw := ""
	if p.raw != nil && path != "" {
		raw, err = p.raw.RawText(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("failed to read raw text: %w", err)
		}
	}
	if raw == "" {
		raw = doc.Text
	}

	now := p.now()
	for _, code := range FindMissingCodes(raw, rec.Seen) {
		pkg := RecoverPackage(raw, code, rec.Len()+1, now)
		if rec.Add(pkg) {
			recovered++
			p.logger.Info("Recovered package from raw text", "code", code, "recipient", pkg.Recipient)
		}
	}
	return recovered, nil
}
