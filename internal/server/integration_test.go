package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"package-manifest/internal/cache"
	"package-manifest/internal/database"
	"package-manifest/internal/handlers"
	"package-manifest/internal/manifest"
	"package-manifest/internal/metrics"
)

// fixedProcessor returns the same two-package result for every file
type fixedProcessor struct{}

func (fixedProcessor) Strategy() string { return manifest.StrategyNative }

func (fixedProcessor) ProcessFile(ctx context.Context, path string) *manifest.Result {
	r := manifest.NewResult("fixed.pdf", manifest.StrategyNative)
	r.Packages = []manifest.Package{
		{LineNumber: 1, TrackingCode: "AB123456789BR", Recipient: "MARIA SILVA", Position: "PCM - 1",
			Date: "10/03/2025", DateISO: "2025-03-10", PickupDeadline: "2025-03-17", PickupDeadlineStr: "17/03/2025", Confidence: 90},
		{LineNumber: 2, TrackingCode: "CD987654321BR", Recipient: "JOAO SOUZA", Position: "PCM - 2",
			Date: "10/03/2025", DateISO: "2025-03-10", PickupDeadline: "2025-03-17", PickupDeadlineStr: "17/03/2025", Confidence: 90},
	}
	r.Success = true
	r.TotalPackages = 2
	r.Metadata.ExtractedTotal = 2
	return r
}

// setupTestServer creates a test server with an in-memory database
func setupTestServer(t *testing.T, apiKey string) (*httptest.Server, *metrics.Recorder) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	logger := discardLogger()
	cm := cache.NewManager(db.ResultCache, false, time.Hour, logger)
	rec := metrics.NewRecorder(false)

	srv := httptest.NewServer(NewRouter(Dependencies{
		DB:        db,
		Processor: fixedProcessor{},
		Cache:     cm,
		Metrics:   rec,
		Logger:    logger,
		APIKey:    apiKey,
	}))

	t.Cleanup(func() {
		srv.Close()
		cm.Close()
		db.Close()
	})
	return srv, rec
}

func uploadManifest(t *testing.T, baseURL, query string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("pdf", "ldi.pdf")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write([]byte("%PDF-1.4 test"))
	mw.Close()

	resp, err := http.Post(baseURL+"/api/manifests"+query, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return resp
}

func TestIntegrationManifestWorkflow(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	// Upload and import
	resp := uploadManifest(t, srv.URL, "?import=true")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	var upload handlers.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		t.Fatalf("Failed to decode upload response: %v", err)
	}
	if upload.ManifestID == "" {
		t.Fatal("Expected a manifest ID")
	}
	if upload.Import == nil || upload.Import.Imported != 2 {
		t.Fatalf("Expected 2 imported packages, got %+v", upload.Import)
	}

	// Manifest history
	getResp, err := http.Get(srv.URL + "/api/manifests/" + upload.ManifestID)
	if err != nil {
		t.Fatalf("Get manifest failed: %v", err)
	}
	defer getResp.Body.Close()
	var stored database.Manifest
	if err := json.NewDecoder(getResp.Body).Decode(&stored); err != nil {
		t.Fatalf("Failed to decode manifest: %v", err)
	}
	if len(stored.Packages) != 2 {
		t.Errorf("Expected 2 stored packages, got %d", len(stored.Packages))
	}

	// Spreadsheet export keeps its own content type
	exportResp, err := http.Get(srv.URL + "/api/manifests/" + upload.ManifestID + "/export")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	exportResp.Body.Close()
	if !strings.Contains(exportResp.Header.Get("Content-Type"), "spreadsheetml") {
		t.Errorf("Expected xlsx content type, got %s", exportResp.Header.Get("Content-Type"))
	}

	// Inventory
	listResp, err := http.Get(srv.URL + "/api/packages?status=aguardando")
	if err != nil {
		t.Fatalf("List packages failed: %v", err)
	}
	defer listResp.Body.Close()
	var packages []database.StoredPackage
	if err := json.NewDecoder(listResp.Body).Decode(&packages); err != nil {
		t.Fatalf("Failed to decode packages: %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("Expected 2 waiting packages, got %d", len(packages))
	}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("%s/api/packages/%d", srv.URL, packages[0].ID),
		strings.NewReader(`{"status":"entregue"}`))
	req.Header.Set("Content-Type", "application/json")
	updateResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	updateResp.Body.Close()
	if updateResp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", updateResp.StatusCode)
	}

	statsResp, err := http.Get(srv.URL + "/api/packages/stats")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	defer statsResp.Body.Close()
	var stats database.PackageStats
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Waiting != 1 || stats.Delivered != 1 {
		t.Errorf("Expected 1 waiting and 1 delivered, got %+v", stats)
	}
}

func TestIntegrationCacheAndMetrics(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	for i := 0; i < 2; i++ {
		resp := uploadManifest(t, srv.URL, "")
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Metrics scrape failed: %v", err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	body.ReadFrom(resp.Body)

	for _, want := range []string{
		`ldi_cache_requests_total{result="hit"} 1`,
		`ldi_cache_requests_total{result="miss"} 1`,
		`ldi_http_requests_total{method="POST",status_code="201"} 2`,
	} {
		if !strings.Contains(body.String(), want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestIntegrationAdminRoutesRequireKey(t *testing.T) {
	srv, _ := setupTestServer(t, "admin-key")

	resp, err := http.Get(srv.URL + "/api/cache/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", srv.URL+"/api/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	// the full inventory listing is an admin route too
	resp, err = http.Get(srv.URL + "/api/packages/all")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for /api/packages/all, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest("GET", srv.URL+"/api/packages/all", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for /api/packages/all, got %d", resp.StatusCode)
	}

	// other routes stay open
	resp, err = http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestIntegrationNotFound(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	for _, path := range []string{"/api/manifests/missing", "/api/packages/999"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second, discardLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
