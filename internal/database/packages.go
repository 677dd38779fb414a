package database

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"package-manifest/internal/manifest"
)

// Pickup statuses
const (
	StatusWaiting   = "aguardando"
	StatusDelivered = "entregue"
	StatusReturned  = "devolvido"
)

// ValidStatus reports whether status is a known pickup status
func ValidStatus(status string) bool {
	switch status {
	case StatusWaiting, StatusDelivered, StatusReturned:
		return true
	}
	return false
}

const dateLayout = "2006-01-02"

// StoredPackage is a package in the pickup inventory
type StoredPackage struct {
	ID             int       `json:"id" yaml:"id"`
	TrackingCode   string    `json:"tracking_code" yaml:"tracking_code"`
	RecipientName  string    `json:"recipient_name" yaml:"recipient_name"`
	Position       string    `json:"position" yaml:"position"`
	Status         string    `json:"status" yaml:"status"`
	ArrivalDate    string    `json:"arrival_date" yaml:"arrival_date"`
	PickupDeadline string    `json:"pickup_deadline" yaml:"pickup_deadline"`
	ManifestID     *string   `json:"manifest_id,omitempty" yaml:"manifest_id,omitempty"`
	Notes          *string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"updated_at"`
	DaysRemaining  int       `json:"days_remaining" yaml:"days_remaining"`
}

// ImportDetail is the outcome for one package of an import
type ImportDetail struct {
	TrackingCode string `json:"tracking_code" yaml:"tracking_code"`
	Status       string `json:"status" yaml:"status"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ImportSummary reports the outcome of importing a manifest
type ImportSummary struct {
	Imported   int            `json:"imported" yaml:"imported"`
	Duplicates int            `json:"duplicates" yaml:"duplicates"`
	Errors     int            `json:"errors" yaml:"errors"`
	Details    []ImportDetail `json:"details" yaml:"details"`
}

// PackageStats counts inventory packages by status
type PackageStats struct {
	Total     int `json:"total" yaml:"total"`
	Waiting   int `json:"aguardando" yaml:"aguardando"`
	Delivered int `json:"entregue" yaml:"entregue"`
	Returned  int `json:"devolvido" yaml:"devolvido"`
}

// PackageFilter narrows List results
type PackageFilter struct {
	Search string // case-insensitive match on recipient or tracking code
	Status string // empty or "ALL" matches every status
}

// PackageStore handles database operations for the pickup inventory
type PackageStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPackageStore creates a new package store
func NewPackageStore(db *sql.DB) *PackageStore {
	return &PackageStore{db: db, now: time.Now}
}

// Import adds extracted packages to the inventory. Packages whose tracking
// code is already stored are counted as duplicates and left untouched.
func (s *PackageStore) Import(manifestID string, packages []manifest.Package) (*ImportSummary, error) {
	summary := &ImportSummary{Details: []ImportDetail{}}

	for _, p := range packages {
		var existing int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM packages WHERE tracking_code = ?`, p.TrackingCode).Scan(&existing)
		if err != nil {
			return nil, fmt.Errorf("failed to check tracking code %s: %w", p.TrackingCode, err)
		}
		if existing > 0 {
			summary.Duplicates++
			summary.Details = append(summary.Details, ImportDetail{TrackingCode: p.TrackingCode, Status: "duplicate"})
			continue
		}

		_, err = s.db.Exec(`INSERT INTO packages (tracking_code, recipient_name, position, status,
				  arrival_date, pickup_deadline, manifest_id)
				  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.TrackingCode, p.Recipient, p.Position, StatusWaiting,
			p.DateISO, s.deadlineFor(p), nullString(manifestID))
		if err != nil {
			summary.Errors++
			summary.Details = append(summary.Details, ImportDetail{TrackingCode: p.TrackingCode, Status: "error", Error: err.Error()})
			continue
		}

		summary.Imported++
		summary.Details = append(summary.Details, ImportDetail{TrackingCode: p.TrackingCode, Status: "imported"})
	}

	return summary, nil
}

// deadlineFor uses the package's computed deadline, or the default pickup
// window counted from its date
func (s *PackageStore) deadlineFor(p manifest.Package) string {
	if p.PickupDeadline != "" {
		return p.PickupDeadline
	}
	arrival, err := time.ParseInLocation(dateLayout, p.DateISO, time.Local)
	if err != nil {
		arrival = s.now()
	}
	return arrival.AddDate(0, 0, manifest.DefaultDeadlineDays).Format(dateLayout)
}

// Create adds a single package by hand
func (s *PackageStore) Create(p *StoredPackage) error {
	if p.Status == "" {
		p.Status = StatusWaiting
	}
	if p.PickupDeadline == "" {
		p.PickupDeadline = s.deadlineFor(manifest.Package{DateISO: p.ArrivalDate})
	}

	result, err := s.db.Exec(`INSERT INTO packages (tracking_code, recipient_name, position, status,
			  arrival_date, pickup_deadline, manifest_id, notes)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TrackingCode, p.RecipientName, p.Position, p.Status, p.ArrivalDate, p.PickupDeadline, p.ManifestID, p.Notes)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	created, err := s.GetByID(int(id))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

const packageColumns = `id, tracking_code, recipient_name, position, status, arrival_date,
			  pickup_deadline, manifest_id, notes, created_at, updated_at`

// GetByID returns a package by ID
func (s *PackageStore) GetByID(id int) (*StoredPackage, error) {
	p, err := scanPackage(s.db.QueryRow(`SELECT `+packageColumns+` FROM packages WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	p.DaysRemaining = DaysRemaining(p.PickupDeadline, s.now())
	return p, nil
}

// List returns packages matching filter, newest arrivals first, with the
// days left until each pickup deadline
func (s *PackageStore) List(filter PackageFilter) ([]StoredPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE 1=1`
	var args []any

	if search := strings.TrimSpace(filter.Search); search != "" {
		query += ` AND (LOWER(recipient_name) LIKE LOWER(?) OR LOWER(tracking_code) LIKE LOWER(?))`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Status != "" && filter.Status != "ALL" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY arrival_date DESC, id DESC`

	return s.query(query, args...)
}

// ListByStatus returns every package, waiting ones first
func (s *PackageStore) ListByStatus() ([]StoredPackage, error) {
	return s.query(`SELECT ` + packageColumns + ` FROM packages
			  ORDER BY CASE status
				WHEN 'aguardando' THEN 1
				WHEN 'entregue' THEN 2
				WHEN 'devolvido' THEN 3
				ELSE 4
			  END, arrival_date DESC, id DESC`)
}

// ListOverdue returns waiting packages whose pickup deadline is before the
// current day
func (s *PackageStore) ListOverdue() ([]StoredPackage, error) {
	today := s.now().Format(dateLayout)
	return s.query(`SELECT `+packageColumns+` FROM packages
			  WHERE status = ? AND pickup_deadline != '' AND pickup_deadline < ?
			  ORDER BY pickup_deadline, id`, StatusWaiting, today)
}

func (s *PackageStore) query(query string, args ...any) ([]StoredPackage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := s.now()
	packages := []StoredPackage{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		p.DaysRemaining = DaysRemaining(p.PickupDeadline, now)
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

// Update changes the status and/or notes of a package. Nil arguments keep
// the stored value. It returns sql.ErrNoRows when the package does not exist.
func (s *PackageStore) Update(id int, status, notes *string) (*StoredPackage, error) {
	if status != nil && !ValidStatus(*status) {
		return nil, fmt.Errorf("invalid status %q", *status)
	}

	result, err := s.db.Exec(`UPDATE packages
			  SET status = COALESCE(?, status),
			      notes = COALESCE(?, notes),
			      updated_at = CURRENT_TIMESTAMP
			  WHERE id = ?`, status, notes, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, sql.ErrNoRows
	}
	return s.GetByID(id)
}

// Delete deletes a package by ID
func (s *PackageStore) Delete(id int) error {
	result, err := s.db.Exec(`DELETE FROM packages WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetStats counts packages by status
func (s *PackageStore) GetStats() (*PackageStats, error) {
	stats := &PackageStats{}
	err := s.db.QueryRow(`SELECT
			  COUNT(*),
			  COALESCE(SUM(CASE WHEN status = 'aguardando' THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN status = 'entregue' THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN status = 'devolvido' THEN 1 ELSE 0 END), 0)
			  FROM packages`).Scan(&stats.Total, &stats.Waiting, &stats.Delivered, &stats.Returned)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DaysRemaining returns the whole days from now until the deadline, rounded
// up and never negative. Unparseable deadlines count as expired.
func DaysRemaining(deadline string, now time.Time) int {
	due, err := time.ParseInLocation(dateLayout, deadline, time.Local)
	if err != nil {
		return 0
	}
	days := int(math.Ceil(due.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// IsNotFound reports whether err means the requested row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func scanPackage(row rowScanner) (*StoredPackage, error) {
	var p StoredPackage
	var manifestID, notes sql.NullString

	err := row.Scan(&p.ID, &p.TrackingCode, &p.RecipientName, &p.Position, &p.Status,
		&p.ArrivalDate, &p.PickupDeadline, &manifestID, &notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if manifestID.Valid {
		p.ManifestID = &manifestID.String
	}
	if notes.Valid {
		p.Notes = &notes.String
	}
	return &p, nil
}
