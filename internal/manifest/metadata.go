package manifest

import (
	"regexp"
	"strconv"
)

var (
	expectedTotalRegex = regexp.MustCompile(`Total de objetos:\s*(\d+)`)
	arrivalDateRegex   = regexp.MustCompile(`Impresso em:\s*(\d{2}/\d{2}/\d{4})`)
	returnDateRegex    = regexp.MustCompile(`Data de Devolução:\s*(\d{2}/\d{2}/\d{4})`)
)

// DocumentMetadata holds the fields printed once in a manifest header or footer
type DocumentMetadata struct {
	ExpectedTotal int
	// Arrival and Return are set only when the printed date is valid
	Arrival *ParsedDate
	Return  *ParsedDate
	// ArrivalText and ReturnText hold the printed dates as matched
	ArrivalText string
	ReturnText  string
}

// ExtractMetadata scans document text for the expected package total, the
// print (arrival) date and the return date. Missing fields are left zero.
func ExtractMetadata(text string) DocumentMetadata {
	var meta DocumentMetadata

	if m := expectedTotalRegex.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			meta.ExpectedTotal = n
		}
	}
	meta.ArrivalText, meta.Arrival = findLabeledDate(arrivalDateRegex, text)
	meta.ReturnText, meta.Return = findLabeledDate(returnDateRegex, text)

	return meta
}

// findLabeledDate returns the matched date text and, when it is a valid
// date, its parsed form
func findLabeledDate(re *regexp.Regexp, text string) (string, *ParsedDate) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", nil
	}
	parsed, ok := ParseDate(m[1])
	if !ok {
		return m[1], nil
	}
	return m[1], &parsed
}
