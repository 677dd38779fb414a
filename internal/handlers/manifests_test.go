package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
)

func newManifestHandler(t *testing.T, proc *stubProcessor, withCache bool) (*ManifestHandler, *database.DB) {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { teardownTestDB(db) })

	var cm *cache.Manager
	if withCache {
		cm = cache.NewManager(db.ResultCache, false, time.Hour, quietLogger())
		t.Cleanup(cm.Close)
	}
	return NewManifestHandler(db, proc, cm, nil, ManifestHandlerConfig{MaxUploadBytes: 1024}, quietLogger()), db
}

func TestManifestUpload(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake manifest")

	t.Run("Success", func(t *testing.T) {
		proc := &stubProcessor{result: sampleResult()}
		h, db := newManifestHandler(t, proc, false)

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests", "pdf", "ldi-march.pdf", pdf))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp UploadResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 2, resp.TotalPackages)
		assert.Equal(t, "ldi-march.pdf", resp.Metadata.FileName)
		assert.NotEmpty(t, resp.ManifestID)
		assert.False(t, resp.Cached)
		assert.Nil(t, resp.Import)

		stored, err := db.Manifests.GetByID(resp.ManifestID)
		require.NoError(t, err)
		assert.Len(t, stored.Packages, 2)
	})

	t.Run("ImportQuery", func(t *testing.T) {
		proc := &stubProcessor{result: sampleResult()}
		h, db := newManifestHandler(t, proc, false)

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests?import=true", "pdf", "ldi.pdf", pdf))

		require.Equal(t, http.StatusCreated, w.Code)
		var resp UploadResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotNil(t, resp.Import)
		assert.Equal(t, 2, resp.Import.Imported)

		packages, err := db.Packages.List(database.PackageFilter{})
		require.NoError(t, err)
		assert.Len(t, packages, 2)
	})

	t.Run("CachedSecondUpload", func(t *testing.T) {
		proc := &stubProcessor{result: sampleResult()}
		h, _ := newManifestHandler(t, proc, true)

		var hits []bool
		h.config.OnCacheLookup = func(hit bool) { hits = append(hits, hit) }

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			h.Upload(w, multipartUpload(t, "/api/manifests", "pdf", "ldi.pdf", pdf))
			require.Equal(t, http.StatusCreated, w.Code)
		}

		assert.Equal(t, 1, proc.Calls())
		assert.Equal(t, []bool{false, true}, hits)
	})

	t.Run("NoCacheQuery", func(t *testing.T) {
		proc := &stubProcessor{result: sampleResult()}
		h, _ := newManifestHandler(t, proc, true)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			h.Upload(w, multipartUpload(t, "/api/manifests?noCache=true", "pdf", "ldi.pdf", pdf))
			require.Equal(t, http.StatusCreated, w.Code)
		}
		assert.Equal(t, 2, proc.Calls())
	})

	t.Run("NoCacheQueryIsCaseSensitive", func(t *testing.T) {
		proc := &stubProcessor{result: sampleResult()}
		h, _ := newManifestHandler(t, proc, true)

		var hits []bool
		h.config.OnCacheLookup = func(hit bool) { hits = append(hits, hit) }

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests", "pdf", "ldi.pdf", pdf))
		require.Equal(t, http.StatusCreated, w.Code)

		w = httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests?noCache=true", "pdf", "ldi.pdf", pdf))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp UploadResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.Cached)
		assert.Equal(t, 2, proc.Calls(), "noCache bypasses a warm cache")
		assert.Equal(t, []bool{false}, hits)
	})

	t.Run("FailedProcessing", func(t *testing.T) {
		failed := manifest.NewResult("stub.pdf", manifest.StrategyNative)
		failed.Errors = append(failed.Errors, "no tables found")
		h, _ := newManifestHandler(t, &stubProcessor{result: failed}, false)

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests?import=true", "pdf", "ldi.pdf", pdf))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp UploadResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.Success)
		assert.Equal(t, []string{"no tables found"}, resp.Errors)
		assert.Nil(t, resp.Import)
	})

	t.Run("MissingFile", func(t *testing.T) {
		h, _ := newManifestHandler(t, &stubProcessor{result: sampleResult()}, false)

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests", "other", "ldi.pdf", pdf))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no PDF file uploaded")
	})

	t.Run("NotPDF", func(t *testing.T) {
		h, _ := newManifestHandler(t, &stubProcessor{result: sampleResult()}, false)

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests", "pdf", "notes.txt", []byte("hello")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only PDF files are accepted")
	})

	t.Run("TooLarge", func(t *testing.T) {
		h, _ := newManifestHandler(t, &stubProcessor{result: sampleResult()}, false)

		w := httptest.NewRecorder()
		h.Upload(w, multipartUpload(t, "/api/manifests", "pdf", "big.pdf", bytes.Repeat([]byte("x"), 4096)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("NotMultipart", func(t *testing.T) {
		h, _ := newManifestHandler(t, &stubProcessor{result: sampleResult()}, false)

		req := httptest.NewRequest("POST", "/api/manifests", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.Upload(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestManifestHistory(t *testing.T) {
	h, db := newManifestHandler(t, &stubProcessor{result: sampleResult()}, false)

	id, err := db.Manifests.Create(sampleResult())
	require.NoError(t, err)

	t.Run("List", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest("GET", "/api/manifests", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var manifests []database.Manifest
		require.NoError(t, json.NewDecoder(w.Body).Decode(&manifests))
		require.Len(t, manifests, 1)
		assert.Equal(t, id, manifests[0].ID)
	})

	t.Run("ListInvalidLimit", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest("GET", "/api/manifests?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Get", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Get(w, withURLParam(httptest.NewRequest("GET", "/api/manifests/"+id, nil), "id", id))

		require.Equal(t, http.StatusOK, w.Code)
		var m database.Manifest
		require.NoError(t, json.NewDecoder(w.Body).Decode(&m))
		assert.Len(t, m.Packages, 2)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Get(w, withURLParam(httptest.NewRequest("GET", "/api/manifests/missing", nil), "id", "missing"))
		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "manifest not found", resp.Message)
	})

	t.Run("Export", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Export(w, withURLParam(httptest.NewRequest("GET", "/api/manifests/"+id+"/export", nil), "id", id))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "stub.xlsx")

		f, err := excelize.OpenReader(w.Body)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Packages")
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("Import", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Import(w, withURLParam(httptest.NewRequest("POST", "/api/manifests/"+id+"/import", nil), "id", id))

		require.Equal(t, http.StatusOK, w.Code)
		var summary database.ImportSummary
		require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
		assert.Equal(t, 2, summary.Imported)

		w = httptest.NewRecorder()
		h.Import(w, withURLParam(httptest.NewRequest("POST", "/api/manifests/"+id+"/import", nil), "id", id))
		require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
		assert.Equal(t, 2, summary.Duplicates)
	})

	t.Run("Delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Delete(w, withURLParam(httptest.NewRequest("DELETE", "/api/manifests/"+id, nil), "id", id))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		h.Delete(w, withURLParam(httptest.NewRequest("DELETE", "/api/manifests/"+id, nil), "id", id))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("a.pdf", ""))
	assert.True(t, isPDF("A.PDF", "application/octet-stream"))
	assert.True(t, isPDF("upload", "application/pdf"))
	assert.False(t, isPDF("a.txt", "text/plain"))
	assert.False(t, isPDF("a", ""))
}
