package manifest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Raw text window around a missing code, in characters
const (
	contextBefore = 100
	contextAfter  = 150
)

// lineNumberRun is a line number followed by the row date
var lineNumberRun = regexp.MustCompile(`(\d{1,3})\s+\d{2}/\d{2}/\d{4}`)

// recipientRun is the run of letters and blanks that follows a code in raw text
var recipientRun = regexp.MustCompile(`^[\r\n]*([A-ZÀ-Ú][A-ZÀ-Úa-zà-ú \t]*)`)

// FindMissingCodes returns the tracking codes in raw text that seen does not
// report, in order of first appearance and without repeats.
func FindMissingCodes(raw string, seen func(code string) bool) []string {
	var missing []string
	found := make(map[string]struct{})
	for _, code := range trackingCodeFinder.FindAllString(raw, -1) {
		if _, dup := found[code]; dup {
			continue
		}
		found[code] = struct{}{}
		if seen != nil && seen(code) {
			continue
		}
		missing = append(missing, code)
	}
	return missing
}

// RecoverPackage builds a package for code from the text surrounding its
// first occurrence in raw. The line number is the last one printed before the
// code on the same line, the position the last one printed before it and the recipient is the run of letters after it.
// Fields that cannot be read keep their defaults: defaultLine, an empty
// position, UnidentifiedRecipient and today's date.
func RecoverPackage(raw, code string, defaultLine int, now time.Time) Package {
	p := Package{
		LineNumber:   defaultLine,
		TrackingCode: code,
		Recipient:    UnidentifiedRecipient,
		DateISO:      formatISO(now),
		Confidence:   ConfidenceFallback,
	}

	idx := strings.Index(raw, code)
	if idx < 0 {
		return p
	}
	window := contextWindow(raw, idx, contextBefore, contextAfter)

	at := strings.Index(window, code)
	before := window[:at]
	after := strings.TrimSpace(window[at+len(code):])

	// the line number must be printed on the code's own line
	ownLine := before[strings.LastIndexByte(before, '\n')+1:]
	if m := lastSubmatch(lineNumberRun, ownLine); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p.LineNumber = n
		}
	}

	if pos := positionFinder.FindAllString(before, -1); len(pos) > 0 {
		p.Position = pos[len(pos)-1]
	} else if pos := positionFinder.FindString(after); pos != "" {
		p.Position = pos
	}

	if m := recipientRun.FindStringSubmatch(after); m != nil {
		p.Recipient = CleanRecipientName(m[1])
	}

	return p
}

// lastSubmatch returns the submatches of the last match of re in s
func lastSubmatch(re *regexp.Regexp, s string) []string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// contextWindow returns up to before runes preceding idx and up to after
// runes starting at idx. idx must be a rune boundary.
func contextWindow(s string, idx, before, after int) string {
	start := idx
	for n := 0; n < before && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	end := idx
	for n := 0; n < after && end < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[start:end]
}
