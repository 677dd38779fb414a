package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"package-manifest/internal/cache"
)

func TestCacheHandler(t *testing.T) {
	db := setupTestDB(t)
	defer teardownTestDB(db)

	cm := cache.NewManager(db.ResultCache, false, time.Hour, quietLogger())
	defer cm.Close()
	require.NoError(t, cm.Set("abc123", "ldi.pdf", sampleResult()))

	h := NewCacheHandler(cm, quietLogger())

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest("GET", "/api/cache/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats cache.CacheStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 1, stats.DatabaseTotal)
	assert.Equal(t, 1, stats.MemoryTotal)

	w = httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest("DELETE", "/api/cache", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	result, err := cm.Get("abc123")
	require.NoError(t, err)
	assert.Nil(t, result)
}
