package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"package-manifest/internal/database"
	"package-manifest/internal/handlers"
	"package-manifest/internal/manifest"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://example.com/")

	if client.baseURL != "http://example.com" {
		t.Errorf("Expected trailing slash to be removed, got '%s'", client.baseURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", client.httpClient.Timeout)
	}
}

func TestNewClientWithTimeout(t *testing.T) {
	client := NewClientWithTimeout("http://example.com", 3*time.Minute)

	if client.httpClient.Timeout != 3*time.Minute {
		t.Errorf("Expected timeout to be 3m, got %v", client.httpClient.Timeout)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/health" {
				t.Errorf("Expected path '/api/health', got '%s'", r.URL.Path)
			}
			w.Write([]byte(`{"status":"healthy","database":"ok"}`))
		}))
		defer server.Close()

		if err := NewClient(server.URL).HealthCheck(); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("Unhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
		}))
		defer server.Close()

		err := NewClient(server.URL).HealthCheck()
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("Expected *APIError, got %T", err)
		}
		if apiErr.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected code 503, got %d", apiErr.Code)
		}
	})
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":404,"message":"manifest not found"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetManifest("missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.Message != "manifest not found" {
		t.Errorf("Expected message 'manifest not found', got '%s'", apiErr.Message)
	}
	if apiErr.Error() != "API error 404: manifest not found" {
		t.Errorf("Unexpected error string: %s", apiErr.Error())
	}
}

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ldi.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func TestUploadManifest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/manifests" {
				t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.URL.Query().Get("import") != "true" {
				t.Errorf("Expected import=true, got %q", r.URL.RawQuery)
			}
			file, header, err := r.FormFile("pdf")
			if err != nil {
				t.Fatalf("Expected pdf form file: %v", err)
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			if header.Filename != "ldi.pdf" || !bytes.HasPrefix(data, []byte("%PDF")) {
				t.Errorf("Unexpected upload %s (%d bytes)", header.Filename, len(data))
			}

			result := manifest.NewResult("ldi.pdf", manifest.StrategyNative)
			result.Success = true
			result.ManifestID = "m-1"
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(handlers.UploadResponse{
				Result: result,
				Import: &database.ImportSummary{Imported: 3},
			})
		}))
		defer server.Close()

		resp, err := NewClient(server.URL).UploadManifest(writeTempPDF(t), true, false)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if resp.ManifestID != "m-1" || !resp.Success {
			t.Errorf("Unexpected response %+v", resp.Result)
		}
		if resp.Import == nil || resp.Import.Imported != 3 {
			t.Errorf("Expected import summary, got %+v", resp.Import)
		}
	})

	t.Run("UnprocessableIsNotAnError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("noCache") != "true" {
				t.Errorf("Expected noCache=true, got %q", r.URL.RawQuery)
			}
			result := manifest.NewResult("ldi.pdf", manifest.StrategyNative)
			result.Errors = []string{"no tables found"}
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(handlers.UploadResponse{Result: result})
		}))
		defer server.Close()

		resp, err := NewClient(server.URL).UploadManifest(writeTempPDF(t), false, true)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if resp.Success || len(resp.Errors) != 1 {
			t.Errorf("Expected failed result with one error, got %+v", resp.Result)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte(`{"code":413,"message":"file too large"}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).UploadManifest(writeTempPDF(t), false, false)
		if apiErr, ok := err.(*APIError); !ok || apiErr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413 APIError, got %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := NewClient("http://localhost:1").UploadManifest(filepath.Join(t.TempDir(), "nope.pdf"), false, false)
		if err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestGetPackages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") != "maria" || r.URL.Query().Get("status") != "aguardando" {
			t.Errorf("Unexpected query %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]database.StoredPackage{
			{ID: 1, TrackingCode: "AB123456789BR", RecipientName: "MARIA SILVA", Status: "aguardando"},
		})
	}))
	defer server.Close()

	packages, err := NewClient(server.URL).GetPackages("maria", "aguardando")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(packages) != 1 || packages[0].TrackingCode != "AB123456789BR" {
		t.Errorf("Unexpected packages %+v", packages)
	}
}

func TestGetAllPackages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/packages/all" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]database.StoredPackage{
			{ID: 2, TrackingCode: "CD987654321BR", Status: "aguardando"},
			{ID: 1, TrackingCode: "AB123456789BR", Status: "entregue"},
		})
	}))
	defer server.Close()

	packages, err := NewClient(server.URL).GetAllPackages()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(packages) != 2 || packages[0].Status != "aguardando" {
		t.Errorf("Unexpected packages %+v", packages)
	}
}

func TestUpdatePackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/packages/7" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req UpdatePackageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if req.Status == nil || *req.Status != "entregue" || req.Notes != nil {
			t.Errorf("Unexpected body %+v", req)
		}
		json.NewEncoder(w).Encode(database.StoredPackage{ID: 7, Status: *req.Status})
	}))
	defer server.Close()

	status := "entregue"
	p, err := NewClient(server.URL).UpdatePackage(7, &UpdatePackageRequest{Status: &status})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Status != "entregue" {
		t.Errorf("Expected status entregue, got %s", p.Status)
	}
}

func TestExportManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/manifests/m-1/export" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("xlsx-bytes"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	if err := NewClient(server.URL).ExportManifest("m-1", &buf); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if buf.String() != "xlsx-bytes" {
		t.Errorf("Unexpected export body %q", buf.String())
	}
}

func TestAPIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"total":0}`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).WithAPIKey("k").GetPackageStats(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
