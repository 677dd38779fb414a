package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"package-manifest/internal/manifest"
)

// Manifest is a stored processing run
type Manifest struct {
	ID             string             `json:"id" yaml:"id"`
	FileName       string             `json:"file_name" yaml:"file_name"`
	FileHash       string             `json:"file_hash,omitempty" yaml:"file_hash,omitempty"`
	FileSize       int64              `json:"file_size" yaml:"file_size"`
	Strategy       string             `json:"strategy" yaml:"strategy"`
	Success        bool               `json:"success" yaml:"success"`
	ExpectedTotal  int                `json:"expected_total" yaml:"expected_total"`
	ExtractedTotal int                `json:"extracted_total" yaml:"extracted_total"`
	PagesProcessed int                `json:"pages_processed" yaml:"pages_processed"`
	ArrivalDate    string             `json:"arrival_date,omitempty" yaml:"arrival_date,omitempty"`
	ReturnDate     string             `json:"return_date,omitempty" yaml:"return_date,omitempty"`
	ProcessingMs   int64              `json:"processing_ms" yaml:"processing_ms"`
	Errors         []string           `json:"errors" yaml:"errors"`
	Warnings       []string           `json:"warnings" yaml:"warnings"`
	CreatedAt      time.Time          `json:"created_at" yaml:"created_at"`
	Packages       []manifest.Package `json:"packages,omitempty" yaml:"packages,omitempty"`
}

// ManifestStore handles database operations for processed manifests
type ManifestStore struct {
	db *sql.DB
}

// NewManifestStore creates a new manifest store
func NewManifestStore(db *sql.DB) *ManifestStore {
	return &ManifestStore{db: db}
}

// Create stores a processing result and its packages in one transaction and
// returns the new manifest ID
func (s *ManifestStore) Create(result *manifest.Result) (string, error) {
	errs, err := json.Marshal(result.Errors)
	if err != nil {
		return "", fmt.Errorf("failed to serialize errors: %w", err)
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return "", fmt.Errorf("failed to serialize warnings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	meta := result.Metadata
	_, err = tx.Exec(`INSERT INTO manifests (id, file_name, file_hash, file_size, strategy, success,
			  expected_total, extracted_total, pages_processed, arrival_date, return_date,
			  processing_ms, errors, warnings)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, meta.FileName, nullString(meta.FileHash), meta.FileSize, meta.Strategy, result.Success,
		meta.ExpectedTotal, meta.ExtractedTotal, meta.PagesProcessed,
		nullString(meta.ArrivalDate), nullString(meta.ReturnDate),
		meta.ProcessingTime, string(errs), string(warnings))
	if err != nil {
		return "", fmt.Errorf("failed to insert manifest: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO manifest_packages (manifest_id, line_number, tracking_code,
			  recipient, position, date, date_iso, pickup_deadline, pickup_deadline_str, confidence)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare package insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range result.Packages {
		_, err := stmt.Exec(id, p.LineNumber, p.TrackingCode, p.Recipient, p.Position,
			p.Date, p.DateISO, p.PickupDeadline, p.PickupDeadlineStr, p.Confidence)
		if err != nil {
			return "", fmt.Errorf("failed to insert package %s: %w", p.TrackingCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit manifest: %w", err)
	}
	return id, nil
}

const manifestColumns = `id, file_name, file_hash, file_size, strategy, success, expected_total,
			  extracted_total, pages_processed, arrival_date, return_date, processing_ms,
			  errors, warnings, created_at`

// GetAll returns the most recent manifests without their packages
func (s *ManifestStore) GetAll(limit int) ([]Manifest, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`SELECT `+manifestColumns+` FROM manifests
			  ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var manifests []Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, *m)
	}
	return manifests, rows.Err()
}

// GetByID returns a manifest with its packages. It returns sql.ErrNoRows when
// the manifest does not exist.
func (s *ManifestStore) GetByID(id string) (*Manifest, error) {
	m, err := scanManifest(s.db.QueryRow(`SELECT `+manifestColumns+` FROM manifests WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT line_number, tracking_code, recipient, position, date, date_iso,
			  pickup_deadline, pickup_deadline_str, confidence
			  FROM manifest_packages WHERE manifest_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m.Packages = []manifest.Package{}
	for rows.Next() {
		var p manifest.Package
		if err := rows.Scan(&p.LineNumber, &p.TrackingCode, &p.Recipient, &p.Position, &p.Date,
			&p.DateISO, &p.PickupDeadline, &p.PickupDeadlineStr, &p.Confidence); err != nil {
			return nil, err
		}
		m.Packages = append(m.Packages, p)
	}
	return m, rows.Err()
}

// Delete removes a manifest and its packages
func (s *ManifestStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM manifests WHERE id = ?`, id)
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

// Result rebuilds the processing result of a stored manifest
func (m *Manifest) Result() *manifest.Result {
	r := manifest.NewResult(m.FileName, m.Strategy)
	r.ManifestID = m.ID
	r.Success = m.Success
	r.TotalPackages = len(m.Packages)
	r.Packages = append(r.Packages, m.Packages...)
	r.Errors = append(r.Errors, m.Errors...)
	r.Warnings = append(r.Warnings, m.Warnings...)
	r.Metadata.FileSize = m.FileSize
	r.Metadata.FileHash = m.FileHash
	r.Metadata.ProcessingTime = m.ProcessingMs
	r.Metadata.ExpectedTotal = m.ExpectedTotal
	r.Metadata.ExtractedTotal = m.ExtractedTotal
	r.Metadata.PagesProcessed = m.PagesProcessed
	r.Metadata.ArrivalDate = m.ArrivalDate
	r.Metadata.ReturnDate = m.ReturnDate
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner) (*Manifest, error) {
	var m Manifest
	var fileHash, arrival, ret sql.NullString
	var errs, warnings string

	err := row.Scan(&m.ID, &m.FileName, &fileHash, &m.FileSize, &m.Strategy, &m.Success,
		&m.ExpectedTotal, &m.ExtractedTotal, &m.PagesProcessed, &arrival, &ret,
		&m.ProcessingMs, &errs, &warnings, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.FileHash = fileHash.String
	m.ArrivalDate = arrival.String
	m.ReturnDate = ret.String
	if err := json.Unmarshal([]byte(errs), &m.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode errors of manifest %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(warnings), &m.Warnings); err != nil {
		return nil, fmt.Errorf("failed to decode warnings of manifest %s: %w", m.ID, err)
	}
	return &m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
