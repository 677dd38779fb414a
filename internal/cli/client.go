package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"package-manifest/internal/database"
	"package-manifest/internal/handlers"
)

// Client is an HTTP client for the manifest API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 30*time.Second)
}

// NewClientWithTimeout creates a new API client with a request timeout.
// Uploads run the whole extraction server-side, so they need more than the
// default.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithAPIKey sets the bearer token sent with every request
func (c *Client) WithAPIKey(key string) *Client {
	c.apiKey = key
	return c
}

// APIError represents an error from the API
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// UpdatePackageRequest changes a package's status and/or notes
type UpdatePackageRequest = handlers.UpdatePackageRequest

func (c *Client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// doRequest performs an HTTP request with an optional JSON body. Responses
// with a status of 400 or above become *APIError.
func (c *Client) doRequest(method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(method, path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
		apiErr = APIError{Code: resp.StatusCode, Message: resp.Status}
	}
	if apiErr.Code == 0 {
		apiErr.Code = resp.StatusCode
	}
	return &apiErr
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HealthCheck checks if the API server is healthy
func (c *Client) HealthCheck() error {
	resp, err := c.doRequest(http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UploadManifest sends a PDF for extraction. A manifest the server could not
// extract from is returned with Success false rather than as an error.
func (c *Client) UploadManifest(path string, importPackages, noCache bool) (*handlers.UploadResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("pdf", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	query := url.Values{}
	if importPackages {
		query.Set("import", "true")
	}
	if noCache {
		query.Set("noCache", "true")
	}
	target := "/api/manifests"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := c.newRequest(http.MethodPost, target, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	var upload handlers.UploadResponse
	if err := decodeJSON(resp, &upload); err != nil {
		return nil, err
	}
	if upload.Result == nil {
		return nil, errors.New("empty upload response")
	}
	return &upload, nil
}

// GetManifests lists processed manifests, most recent first
func (c *Client) GetManifests(limit int) ([]database.Manifest, error) {
	path := "/api/manifests"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := c.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var manifests []database.Manifest
	if err := decodeJSON(resp, &manifests); err != nil {
		return nil, err
	}
	return manifests, nil
}

// GetManifest returns a stored manifest with its packages
func (c *Client) GetManifest(id string) (*database.Manifest, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/manifests/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var m database.Manifest
	if err := decodeJSON(resp, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ExportManifest writes the spreadsheet of a stored manifest to w
func (c *Client) ExportManifest(id string, w io.Writer) error {
	resp, err := c.doRequest(http.MethodGet, "/api/manifests/"+url.PathEscape(id)+"/export", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

// ImportManifest adds a stored manifest's packages to the inventory
func (c *Client) ImportManifest(id string) (*database.ImportSummary, error) {
	resp, err := c.doRequest(http.MethodPost, "/api/manifests/"+url.PathEscape(id)+"/import", nil)
	if err != nil {
		return nil, err
	}

	var summary database.ImportSummary
	if err := decodeJSON(resp, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetPackages lists inventory packages. Empty arguments do not filter.
func (c *Client) GetPackages(search, status string) ([]database.StoredPackage, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	if status != "" {
		query.Set("status", status)
	}
	path := "/api/packages"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var packages []database.StoredPackage
	if err := decodeJSON(resp, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

// GetAllPackages lists the whole inventory, waiting packages first
func (c *Client) GetAllPackages() ([]database.StoredPackage, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/packages/all", nil)
	if err != nil {
		return nil, err
	}

	var packages []database.StoredPackage
	if err := decodeJSON(resp, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

// UpdatePackage changes a package's status and/or notes
func (c *Client) UpdatePackage(id int, req *UpdatePackageRequest) (*database.StoredPackage, error) {
	resp, err := c.doRequest(http.MethodPut, "/api/packages/"+strconv.Itoa(id), req)
	if err != nil {
		return nil, err
	}

	var p database.StoredPackage
	if err := decodeJSON(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePackage removes a package from the inventory
func (c *Client) DeletePackage(id int) error {
	resp, err := c.doRequest(http.MethodDelete, "/api/packages/"+strconv.Itoa(id), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetPackageStats counts inventory packages by status
func (c *Client) GetPackageStats() (*database.PackageStats, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/packages/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats database.PackageStats
	if err := decodeJSON(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
