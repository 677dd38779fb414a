package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
	"package-manifest/internal/export"
	"package-manifest/internal/manifest"
)

// DefaultMaxUploadBytes limits uploaded manifests when no limit is configured
const DefaultMaxUploadBytes = 10 << 20

// multipartOverhead is allowed on top of the file limit for form framing
const multipartOverhead = 1 << 20

// UploadResponse is the result of processing an uploaded manifest
type UploadResponse struct {
	*manifest.Result
	Cached bool                    `json:"cached"`
	Import *database.ImportSummary `json:"import,omitempty"`
}

// ManifestHandlerConfig tunes the manifest handler
type ManifestHandlerConfig struct {
	MaxUploadBytes int64
	// OnCacheLookup is called after every cached lookup with the hit flag
	OnCacheLookup func(hit bool)
}

// ManifestHandler handles manifest upload, history and export
type ManifestHandler struct {
	db        *database.DB
	processor cache.FileProcessor
	cache     *cache.Manager
	exporter  *export.Exporter
	config    ManifestHandlerConfig
	logger    *slog.Logger
}

// NewManifestHandler creates a new manifest handler. cacheManager may be nil.
func NewManifestHandler(db *database.DB, processor cache.FileProcessor, cacheManager *cache.Manager, exporter *export.Exporter, cfg ManifestHandlerConfig, logger *slog.Logger) *ManifestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if exporter == nil {
		exporter = export.NewExporter(logger)
	}
	return &ManifestHandler{
		db:        db,
		processor: processor,
		cache:     cacheManager,
		exporter:  exporter,
		config:    cfg,
		logger:    logger,
	}
}

// Upload handles POST /api/manifests
func (h *ManifestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no PDF file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.config.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	if !isPDF(header.Filename, header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}

	tmpPath, err := saveTemp(file)
	if err != nil {
		h.logger.Error("Failed to store upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmpPath)

	result, cached := h.process(r, tmpPath)

	// cached results are shared, so work on a copy
	res := *result
	res.Metadata.FileName = filepath.Base(header.Filename)

	id, err := h.db.Manifests.Create(&res)
	if err != nil {
		h.logger.Error("Failed to store manifest", "file", res.Metadata.FileName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store manifest")
		return
	}
	res.ManifestID = id

	response := UploadResponse{Result: &res, Cached: cached}
	if res.Success && queryBool(r, "import") {
		summary, err := h.db.Packages.Import(id, res.Packages)
		if err != nil {
			h.logger.Error("Failed to import packages", "manifest", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to import packages")
			return
		}
		response.Import = summary
	}

	h.logger.Info("Processed manifest upload",
		"manifest", id,
		"file", res.Metadata.FileName,
		"packages", res.TotalPackages,
		"cached", cached)

	status := http.StatusCreated
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, response)
}

func (h *ManifestHandler) process(r *http.Request, path string) (*manifest.Result, bool) {
	if h.cache == nil || !h.cache.IsEnabled() || queryBool(r, "noCache") {
		return h.processor.ProcessFile(r.Context(), path), false
	}

	result, hit := h.cache.ProcessFile(r.Context(), path, h.processor)
	if h.config.OnCacheLookup != nil {
		h.config.OnCacheLookup(hit)
	}
	return result, hit
}

// List handles GET /api/manifests
func (h *ManifestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	manifests, err := h.db.Manifests.GetAll(limit)
	if err != nil {
		h.logger.Error("Failed to list manifests", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list manifests")
		return
	}
	writeJSON(w, http.StatusOK, manifests)
}

// Get handles GET /api/manifests/{id}
func (h *ManifestHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /api/manifests/{id}
func (h *ManifestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.Manifests.Delete(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "manifest not found")
			return
		}
		h.logger.Error("Failed to delete manifest", "manifest", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete manifest")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/manifests/{id}/export
func (h *ManifestHandler) Export(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	data, err := h.exporter.XLSX(m.Result())
	if err != nil {
		h.logger.Error("Failed to export manifest", "manifest", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export manifest")
		return
	}

	name := strings.TrimSuffix(m.FileName, filepath.Ext(m.FileName)) + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/manifests/{id}/import
func (h *ManifestHandler) Import(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}

	summary, err := h.db.Packages.Import(m.ID, m.Packages)
	if err != nil {
		h.logger.Error("Failed to import packages", "manifest", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to import packages")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ManifestHandler) load(w http.ResponseWriter, r *http.Request) (*database.Manifest, bool) {
	id := chi.URLParam(r, "id")
	m, err := h.db.Manifests.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "manifest not found")
			return nil, false
		}
		h.logger.Error("Failed to get manifest", "manifest", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get manifest")
		return nil, false
	}
	return m, true
}

// isPDF accepts a file by extension or declared content type
func isPDF(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/pdf"
}

func saveTemp(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "ldi-upload-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
