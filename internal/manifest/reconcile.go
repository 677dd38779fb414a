package manifest

import (
	"fmt"
	"time"
)

// Reconciler accumulates the packages of one document, dropping repeated
// tracking codes and applying document-level dates. A Reconciler must not be
// shared between documents.
type Reconciler struct {
	meta         DocumentMetadata
	now          func() time.Time
	deadlineDays int

	seen     map[string]struct{}
	packages []Package
}

// NewReconciler creates a reconciler for a document with the given metadata
func NewReconciler(meta DocumentMetadata, now func() time.Time, deadlineDays int) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if deadlineDays <= 0 {
		deadlineDays = DefaultDeadlineDays
	}
	return &Reconciler{
		meta:         meta,
		now:          now,
		deadlineDays: deadlineDays,
		seen:         make(map[string]struct{}),
		packages:     []Package{},
	}
}

// Add keeps p unless its tracking code was already kept. The first occurrence
// wins. It reports whether p was kept.
func (r *Reconciler) Add(p Package) bool {
	if _, dup := r.seen[p.TrackingCode]; dup {
		return false
	}
	r.seen[p.TrackingCode] = struct{}{}

	if r.meta.Arrival != nil {
		p.Date = r.meta.Arrival.Date
		p.DateISO = r.meta.Arrival.DateISO
	}
	p.PickupDeadline, p.PickupDeadlineStr = r.deadline(p)

	r.packages = append(r.packages, p)
	return true
}

// AddAll adds each package in order and returns how many were kept
func (r *Reconciler) AddAll(packages []Package) int {
	kept := 0
	for _, p := range packages {
		if r.Add(p) {
			kept++
		}
	}
	return kept
}

// Seen reports whether code has already been kept
func (r *Reconciler) Seen(code string) bool {
	_, ok := r.seen[code]
	return ok
}

// Len returns the number of kept packages
func (r *Reconciler) Len() int {
	return len(r.packages)
}

// Packages returns the kept packages in the order they were added
func (r *Reconciler) Packages() []Package {
	return r.packages
}

// deadline returns the pickup deadline as ISO and DD/MM/YYYY strings.
// The document return date wins; otherwise the window is counted from the
// package date, or from today when that date does not parse.
func (r *Reconciler) deadline(p Package) (string, string) {
	if r.meta.Return != nil {
		return r.meta.Return.DateISO, r.meta.Return.Date
	}

	base, err := time.ParseInLocation(isoLayout, p.DateISO, time.Local)
	if err != nil {
		base = r.now()
	}
	due := base.AddDate(0, 0, r.deadlineDays)
	return formatISO(due), formatSource(due)
}

// CountWarnings compares the extracted total against the total printed in
// the document. No warnings are produced when the expected total is unknown.
func CountWarnings(expected, extracted int) []string {
	switch {
	case expected <= 0:
		return nil
	case extracted < expected:
		return []string{fmt.Sprintf("missing %d packages (%d/%d)", expected-extracted, extracted, expected)}
	case extracted > expected:
		return []string{fmt.Sprintf("%d extra packages (%d/%d)", extracted-expected, extracted, expected)}
	}
	return nil
}
