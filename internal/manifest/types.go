package manifest

import "time"

// Confidence levels assigned to extracted packages
const (
	ConfidenceSingleCell = 90 // one tracking code in its own cell
	ConfidenceMergedCell = 80 // code split out of a merged cell
	ConfidenceFallback   = 60 // recovered from raw document text
)

// UnidentifiedRecipient is used when no usable recipient name could be read
const UnidentifiedRecipient = "NOME NÃO IDENTIFICADO"

// DefaultDeadlineDays is the pickup window applied when the manifest has no return date
const DefaultDeadlineDays = 7

// Strategy names reported in result metadata
const (
	StrategyDocling = "docling"
	StrategyNative  = "native"
)

// Package is a single shipment record extracted from a delivery manifest
type Package struct {
	LineNumber        int    `json:"lineNumber" yaml:"lineNumber"`
	TrackingCode      string `json:"trackingCode" yaml:"trackingCode"`
	Recipient         string `json:"recipient" yaml:"recipient"`
	Position          string `json:"position" yaml:"position"`
	Date              string `json:"date" yaml:"date"`
	DateISO           string `json:"dateISO" yaml:"dateISO"`
	PickupDeadline    string `json:"pickupDeadline,omitempty" yaml:"pickupDeadline,omitempty"`
	PickupDeadlineStr string `json:"pickupDeadlineStr,omitempty" yaml:"pickupDeadlineStr,omitempty"`
	Confidence        int    `json:"confidence" yaml:"confidence"`
}

// Table is one table recognized in the source document. Rows[0] is the header row.
type Table struct {
	Rows [][]string `json:"rows"`
}

// Header returns the header row, or nil for an empty table
func (t Table) Header() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0]
}

// DataRows returns every row after the header
func (t Table) DataRows() [][]string {
	if len(t.Rows) < 2 {
		return nil
	}
	return t.Rows[1:]
}

// Document is the output of the document-conversion step
type Document struct {
	Tables []Table `json:"tables"`
	Text   string  `json:"text"`
	Pages  int     `json:"pages"`
}

// Metadata describes a processing run
type Metadata struct {
	FileName          string `json:"fileName" yaml:"fileName"`
	FileSize          int64  `json:"fileSize" yaml:"fileSize"`
	ProcessingTime    int64  `json:"processingTime" yaml:"processingTime"`
	Strategy          string `json:"strategy" yaml:"strategy"`
	ExpectedTotal     int    `json:"expectedTotal" yaml:"expectedTotal"`
	ExtractedTotal    int    `json:"extractedTotal" yaml:"extractedTotal"`
	PagesProcessed    int    `json:"pagesProcessed" yaml:"pagesProcessed"`
	ArrivalDate       string `json:"arrivalDate,omitempty" yaml:"arrivalDate,omitempty"`
	ReturnDate        string `json:"returnDate,omitempty" yaml:"returnDate,omitempty"`
	TableCounts       []int  `json:"tableCounts,omitempty" yaml:"tableCounts,omitempty"`
	FallbackRecovered int    `json:"fallbackRecovered,omitempty" yaml:"fallbackRecovered,omitempty"`
	FileHash          string `json:"fileHash,omitempty" yaml:"fileHash,omitempty"`
}

// Result is the complete outcome of processing one manifest
type Result struct {
	Success       bool      `json:"success" yaml:"success"`
	TotalPackages int       `json:"totalPackages" yaml:"totalPackages"`
	Packages      []Package `json:"packages" yaml:"packages"`
	Errors        []string  `json:"errors" yaml:"errors"`
	Warnings      []string  `json:"warnings" yaml:"warnings"`
	Metadata      Metadata  `json:"metadata" yaml:"metadata"`
	ManifestID    string    `json:"manifestId,omitempty" yaml:"manifestId,omitempty"`
}

// NewResult returns an empty, unsuccessful result for the named file
func NewResult(fileName, strategy string) *Result {
	return &Result{
		Packages: []Package{},
		Errors:   []string{},
		Warnings: []string{},
		Metadata: Metadata{
			FileName: fileName,
			Strategy: strategy,
		},
	}
}

// addError records a fatal-level message
func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// addWarning records a soft discrepancy
func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// finish copies the package totals into the result
func (r *Result) finish(started time.Time, now time.Time) {
	r.TotalPackages = len(r.Packages)
	r.Metadata.ExtractedTotal = len(r.Packages)
	r.Success = len(r.Packages) > 0
	r.Metadata.ProcessingTime = now.Sub(started).Milliseconds()
}
