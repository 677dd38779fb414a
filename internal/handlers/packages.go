package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
)

// PackageHandler handles the pickup inventory
type PackageHandler struct {
	db     *database.DB
	logger *slog.Logger
}

// NewPackageHandler creates a new package handler
func NewPackageHandler(db *database.DB, logger *slog.Logger) *PackageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackageHandler{db: db, logger: logger}
}

// UpdatePackageRequest is the body of PUT /api/packages/{id}
type UpdatePackageRequest struct {
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// List handles GET /api/packages
func (h *PackageHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := database.PackageFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
	}
	if filter.Status != "" && filter.Status != "ALL" && !database.ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	packages, err := h.db.Packages.List(filter)
	if err != nil {
		h.logger.Error("Failed to list packages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list packages")
		return
	}
	writeJSON(w, http.StatusOK, packages)
}

// All handles GET /api/packages/all: every package, waiting ones first
func (h *PackageHandler) All(w http.ResponseWriter, r *http.Request) {
	packages, err := h.db.Packages.ListByStatus()
	if err != nil {
		h.logger.Error("Failed to list packages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list packages")
		return
	}
	writeJSON(w, http.StatusOK, packages)
}

// Create handles POST /api/packages
func (h *PackageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p database.StoredPackage
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	p.TrackingCode = strings.ToUpper(strings.TrimSpace(p.TrackingCode))
	if !manifest.IsValidTrackingCode(p.TrackingCode) {
		writeError(w, http.StatusBadRequest, "invalid tracking code")
		return
	}
	p.RecipientName = manifest.CleanRecipientName(p.RecipientName)
	if p.Status != "" && !database.ValidStatus(p.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if p.ArrivalDate != "" {
		arrival, ok := normalizeArrival(p.ArrivalDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid arrival date")
			return
		}
		p.ArrivalDate = arrival
	}

	if err := h.db.Packages.Create(&p); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeError(w, http.StatusConflict, "tracking code already exists")
			return
		}
		h.logger.Error("Failed to create package", "tracking_code", p.TrackingCode, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create package")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Get handles GET /api/packages/{id}
func (h *PackageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := packageID(w, r)
	if !ok {
		return
	}

	p, err := h.db.Packages.GetByID(id)
	if err != nil {
		h.storeError(w, id, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/packages/{id}
func (h *PackageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := packageID(w, r)
	if !ok {
		return
	}

	var req UpdatePackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status == nil && req.Notes == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Status != nil && !database.ValidStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	p, err := h.db.Packages.Update(id, req.Status, req.Notes)
	if err != nil {
		h.storeError(w, id, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/packages/{id}
func (h *PackageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := packageID(w, r)
	if !ok {
		return
	}

	if err := h.db.Packages.Delete(id); err != nil {
		h.storeError(w, id, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/packages/stats
func (h *PackageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Packages.GetStats()
	if err != nil {
		h.logger.Error("Failed to get package stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get package stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *PackageHandler) storeError(w http.ResponseWriter, id int, op string, err error) {
	if database.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "package not found")
		return
	}
	h.logger.Error("Package store failure", "op", op, "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to "+op+" package")
}

// normalizeArrival accepts YYYY-MM-DD or DD/MM/YYYY and returns YYYY-MM-DD
func normalizeArrival(s string) (string, bool) {
	if d, ok := manifest.ParseDate(s); ok {
		return d.DateISO, true
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s, true
	}
	return "", false
}

func packageID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid package ID")
		return 0, false
	}
	return id, true
}
