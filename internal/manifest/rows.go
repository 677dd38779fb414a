package manifest

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// RowExtractor turns manifest table rows into candidate packages
type RowExtractor struct {
	logger *slog.Logger
	now    func() time.Time
	// extract reads one row; replaced in tests
	extract func(row []string, rowIndex int, cols ColumnMap) []Package
}

// NewRowExtractor creates a row extractor. A nil logger uses slog.Default and
// a nil clock uses time.Now.
func NewRowExtractor(logger *slog.Logger, now func() time.Time) *RowExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	e := &RowExtractor{logger: logger, now: now}
	e.extract = e.extractRow
	return e
}

// ExtractTable infers the table's column roles and extracts its packages.
// Rows that fail are skipped and reported in the returned warnings.
func (e *RowExtractor) ExtractTable(table Table) ([]Package, []string) {
	if len(table.Rows) < 2 {
		return nil, nil
	}
	return e.ExtractRows(table.DataRows(), InferColumns(table.Header()))
}

// ExtractRows extracts packages from data rows using an already inferred column map
func (e *RowExtractor) ExtractRows(rows [][]string, cols ColumnMap) ([]Package, []string) {
	var packages []Package
	var warnings []string

	for i, row := range rows {
		rowIndex := i + 1
		extracted, err := e.extractRowSafely(row, rowIndex, cols)
		if err != nil {
			e.logger.Warn("Skipping manifest row", "row", rowIndex, "error", err)
			warnings = append(warnings, fmt.Sprintf("failed to process row %d: %v", rowIndex, err))
			continue
		}
		packages = append(packages, extracted...)
	}

	return packages, warnings
}

// extractRowSafely converts a panic while reading a malformed row into an error
func (e *RowExtractor) extractRowSafely(row []string, rowIndex int, cols ColumnMap) (packages []Package, err error) {
	defer func() {
		if r := recover(); r != nil {
			packages = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.extract(row, rowIndex, cols), nil
}

// extractRow yields one package per tracking code in the row. Cells merged
// across a page break can hold several codes, several positions and several
// concatenated recipient names.
func (e *RowExtractor) extractRow(row []string, rowIndex int, cols ColumnMap) []Package {
	codes := FindTrackingCodes(strings.ToUpper(cols.Cell(row, RoleTrackingCode)))
	if len(codes) == 0 {
		return nil
	}

	date := ""
	dateISO := formatISO(e.now())
	if found := dateFinder.FindString(cols.Cell(row, RoleDate)); found != "" {
		date = found
		if parsed, ok := ParseDate(found); ok {
			dateISO = parsed.DateISO
		}
	}

	positions := positionFinder.FindAllString(strings.ToUpper(cols.Cell(row, RolePosition)), -1)
	lineNumbers := parseLineNumbers(cols.Cell(row, RoleGroup))
	recipients := SplitRecipients(cols.rawCell(row, RoleRecipient), len(codes))

	for len(positions) < len(codes) {
		last := ""
		if len(positions) > 0 {
			last = positions[len(positions)-1]
		}
		positions = append(positions, last)
	}
	for len(lineNumbers) < len(codes) {
		lineNumbers = append(lineNumbers, rowIndex+len(lineNumbers))
	}

	confidence := ConfidenceSingleCell
	if len(codes) > 1 {
		confidence = ConfidenceMergedCell
		e.logger.Info("Merged cell detected", "row", rowIndex, "codes", len(codes))
	}

	packages := make([]Package, 0, len(codes))
	for i, code := range codes {
		if !IsValidTrackingCode(code) {
			continue
		}
		packages = append(packages, Package{
			LineNumber:   lineNumbers[i],
			TrackingCode: code,
			Recipient:    recipients[i],
			Position:     positions[i],
			Date:         date,
			DateISO:      dateISO,
			Confidence:   confidence,
		})
	}
	return packages
}

// parseLineNumbers reads every digit run in a group cell
func parseLineNumbers(cell string) []int {
	var numbers []int
	for _, digits := range digitsFinder.FindAllString(cell, -1) {
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}
