package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return db
}

func teardownTestDB(db *database.DB) {
	db.Close()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProcessor returns a fixed result and counts calls
type stubProcessor struct {
	mu     sync.Mutex
	calls  int
	result *manifest.Result
}

func (p *stubProcessor) ProcessFile(ctx context.Context, path string) *manifest.Result {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	r := *p.result
	return &r
}

func (p *stubProcessor) Strategy() string { return p.result.Metadata.Strategy }

func (p *stubProcessor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func sampleResult() *manifest.Result {
	r := manifest.NewResult("stub.pdf", manifest.StrategyNative)
	r.Packages = []manifest.Package{
		{LineNumber: 1, TrackingCode: "AB123456789BR", Recipient: "MARIA SILVA", Position: "PCM - 1",
			Date: "10/03/2025", DateISO: "2025-03-10", PickupDeadline: "2025-03-17", PickupDeadlineStr: "17/03/2025", Confidence: 90},
		{LineNumber: 2, TrackingCode: "CD987654321BR", Recipient: "JOAO SOUZA", Position: "PCM - 2",
			Date: "10/03/2025", DateISO: "2025-03-10", PickupDeadline: "2025-03-17", PickupDeadlineStr: "17/03/2025", Confidence: 80},
	}
	r.Success = true
	r.TotalPackages = 2
	r.Metadata.ExpectedTotal = 2
	r.Metadata.ExtractedTotal = 2
	r.Metadata.PagesProcessed = 1
	return r
}

// multipartUpload builds a request carrying content in the given form field
func multipartUpload(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// withURLParam attaches a chi route parameter to req
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
