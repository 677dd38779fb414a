package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	isoLayout    = "2006-01-02"
	sourceLayout = "02/01/2006"

	minYear = 2020
	maxYear = 2100
)

var (
	// trackingCodeRegex matches a complete postal tracking code (XX000000000XX)
	trackingCodeRegex = regexp.MustCompile(`^[A-Z]{2}\d{9}[A-Z]{2}$`)

	// trackingCodeFinder finds every tracking code embedded in a larger string
	trackingCodeFinder = regexp.MustCompile(`[A-Z]{2}\d{9}[A-Z]{2}`)

	// dateRegex matches a complete DD/MM/YYYY date
	dateRegex = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

	// dateFinder finds DD/MM/YYYY dates embedded in a larger string
	dateFinder = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

	// positionFinder finds shelf position labels such as "PCM - 94"
	positionFinder = regexp.MustCompile(`PCM\s*-\s*\d+`)

	digitsFinder = regexp.MustCompile(`\d+`)
)

// ParsedDate holds a manifest date in its source format and in ISO format
type ParsedDate struct {
	Date    string // DD/MM/YYYY as printed
	DateISO string // YYYY-MM-DD
}

// IsValidTrackingCode reports whether s is a well-formed tracking code.
// Surrounding whitespace and letter case are ignored.
func IsValidTrackingCode(s string) bool {
	if s == "" {
		return false
	}
	return trackingCodeRegex.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// FindTrackingCodes returns every tracking code found in s, in order of appearance
func FindTrackingCodes(s string) []string {
	return trackingCodeFinder.FindAllString(s, -1)
}

// ParseDate parses a strict DD/MM/YYYY date.
//
// Only ranges are checked: month 1-12, day 1-31 and year 2020-2100. Day counts
// per month are not validated, so "31/02/2025" is accepted.
func ParseDate(s string) (ParsedDate, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !dateRegex.MatchString(s) {
		return ParsedDate{}, false
	}

	parts := strings.Split(s, "/")
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return ParsedDate{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return ParsedDate{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return ParsedDate{}, false
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || year < minYear || year > maxYear {
		return ParsedDate{}, false
	}

	return ParsedDate{
		Date:    s,
		DateISO: fmt.Sprintf("%04d-%02d-%02d", year, month, day),
	}, true
}

// IsValidDate reports whether s is an acceptable DD/MM/YYYY date
func IsValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// formatISO formats t as YYYY-MM-DD
func formatISO(t time.Time) string {
	return t.Format(isoLayout)
}

// formatSource formats t as DD/MM/YYYY
func formatSource(t time.Time) string {
	return t.Format(sourceLayout)
}
