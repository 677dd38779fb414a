package manifest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	trailingStructural = regexp.MustCompile(`[:|\[\]&}{]+$`)
	innerStructural    = regexp.MustCompile(`[:|\[\]&}{]+`)
	underscores        = regexp.MustCompile(`_+`)
	// any rune unicode.IsSpace accepts, so the result matches strings.Fields
	whitespaceRuns = regexp.MustCompile(`[\s\v\x{85}\p{Z}]+`)

	// trailing punctuation and hyphens, including any whitespace between them
	trailingPunctuation = regexp.MustCompile(`[:|\[\]&}{\-\s\v\x{85}\p{Z}]+$`)
)

// minRecipientLength is the shortest cleaned name accepted as a real recipient
const minRecipientLength = 3

// CleanRecipientName strips table artifacts (pipes, brackets, colons,
// underscores, stray hyphens) from a recipient name. Names shorter than three
// characters after cleanup are replaced with UnidentifiedRecipient.
// Applying it to its own output returns the output unchanged.
func CleanRecipientName(name string) string {
	cleaned := strings.TrimSpace(name)
	if cleaned == "" {
		return UnidentifiedRecipient
	}

	cleaned = strings.TrimSpace(trailingStructural.ReplaceAllString(cleaned, ""))
	cleaned = innerStructural.ReplaceAllString(cleaned, " ")
	cleaned = underscores.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(whitespaceRuns.ReplaceAllString(cleaned, " "))
	cleaned = strings.TrimSpace(trailingPunctuation.ReplaceAllString(cleaned, ""))

	if utf8.RuneCountInString(cleaned) < minRecipientLength {
		return UnidentifiedRecipient
	}
	return cleaned
}

// SplitRecipients divides the recipient cell of a merged row between codeCount
// tracking codes.
//
// The cell is split on whitespace. When there are at least two words per code
// the words are partitioned into codeCount contiguous groups of
// len(words)/codeCount words, the last group taking the remainder, and each
// group is cleaned separately. Otherwise every code gets the whole cleaned
// cell. Nothing marks where one name ends and the next begins, so the split is
// a guess and may attribute words to the wrong person.
func SplitRecipients(raw string, codeCount int) []string {
	if codeCount <= 0 {
		return nil
	}

	full := CleanRecipientName(raw)
	if codeCount == 1 {
		return []string{full}
	}

	words := strings.Fields(raw)
	recipients := make([]string, codeCount)
	if len(words) < codeCount*2 {
		for i := range recipients {
			recipients[i] = full
		}
		return recipients
	}

	perName := len(words) / codeCount
	for i := 0; i < codeCount; i++ {
		start := i * perName
		end := start + perName
		if i == codeCount-1 {
			end = len(words)
		}
		recipients[i] = CleanRecipientName(strings.Join(words[start:end], " "))
	}
	return recipients
}
