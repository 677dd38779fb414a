package manifest

import "strings"

// Role identifies the meaning of a manifest table column
type Role string

// Column roles found in delivery manifest tables
const (
	RoleGroup        Role = "group"
	RoleDate         Role = "date"
	RolePosition     Role = "position"
	RoleTrackingCode Role = "trackingCode"
	RoleRecipient    Role = "recipient"
)

// ColumnMap maps column roles to zero-based column indexes
type ColumnMap map[Role]int

// Index returns the column index for role, if the role was mapped
func (m ColumnMap) Index(role Role) (int, bool) {
	idx, ok := m[role]
	return idx, ok
}

// Cell returns the trimmed text of the role's cell in row. Missing roles and
// short rows yield an empty string.
func (m ColumnMap) Cell(row []string, role Role) string {
	idx, ok := m[role]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// rawCell is like Cell without trimming
func (m ColumnMap) rawCell(row []string, role Role) string {
	idx, ok := m[role]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// headerRule matches a lower-cased header cell to a role
type headerRule struct {
	role  Role
	match func(header string) bool
}

// headerRules are tried in order; a header cell is assigned the first role it matches
var headerRules = []headerRule{
	{RoleGroup, func(h string) bool { return strings.Contains(h, "grupo") }},
	{RoleDate, func(h string) bool { return strings.Contains(h, "data") && !strings.Contains(h, "receb") }},
	{RolePosition, func(h string) bool { return strings.Contains(h, "posi") }},
	{RoleTrackingCode, func(h string) bool { return strings.Contains(h, "objeto") }},
	{RoleRecipient, func(h string) bool { return strings.Contains(h, "destinat") }},
}

// positionalLayout is the column order of a standard manifest table
var positionalLayout = []Role{RoleGroup, RoleDate, RolePosition, RoleTrackingCode, RoleRecipient}

// InferColumns maps header cells to column roles by keyword.
//
// The first header cell matching a role wins. When no tracking-code column is
// found and the header has at least five cells, the standard positional
// layout (group, date, position, tracking code, recipient) is used instead;
// OCR noise in scanned headers often defeats keyword matching.
func InferColumns(header []string) ColumnMap {
	cols := make(ColumnMap)

	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		for _, rule := range headerRules {
			if !rule.match(h) {
				continue
			}
			if _, taken := cols[rule.role]; !taken {
				cols[rule.role] = i
			}
			break
		}
	}

	if _, ok := cols[RoleTrackingCode]; !ok && len(header) >= len(positionalLayout) {
		cols = make(ColumnMap, len(positionalLayout))
		for i, role := range positionalLayout {
			cols[role] = i
		}
	}

	return cols
}
