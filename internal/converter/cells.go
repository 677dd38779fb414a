package converter

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"package-manifest/internal/manifest"
)

// normalizeText composes accents (NFC) so decomposed "Ã" from PDF text
// matches the same keywords and character classes as precomposed input
func normalizeText(s string) string {
	return norm.NFC.String(s)
}

// cellText coerces a decoded JSON cell into trimmed, normalized text.
// Nulls become empty cells and numbers keep their literal form.
func cellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(normalizeText(c))
	case json.Number:
		return c.String()
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

// carryHeaders gives header-less continuation tables the header of the
// table before them. Page breaks split one manifest table into several
// detected tables and only the first keeps the column titles.
func carryHeaders(tables []manifest.Table) []manifest.Table {
	var lastHeader []string
	for i, t := range tables {
		header := t.Header()
		if header == nil {
			continue
		}
		if !looksLikeDataRow(header) {
			lastHeader = header
			continue
		}
		if lastHeader != nil {
			rows := make([][]string, 0, len(t.Rows)+1)
			rows = append(rows, lastHeader)
			tables[i].Rows = append(rows, t.Rows...)
		}
	}
	return tables
}

func looksLikeDataRow(row []string) bool {
	return len(manifest.FindTrackingCodes(strings.ToUpper(strings.Join(row, " ")))) > 0
}
