package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"package-manifest/internal/manifest"
)

// DefaultTimeout bounds a single docling run
const DefaultTimeout = 2 * time.Minute

// pythonCandidates are probed in order when no interpreter is configured
var pythonCandidates = []string{
	"/opt/venv/bin/python3",
	"/opt/venv/bin/python",
	"python3",
	"python",
	"/usr/bin/python3",
	"/usr/local/bin/python3",
}

// DoclingConfig configures the docling converter
type DoclingConfig struct {
	Python  string        // interpreter; probed from pythonCandidates when empty
	Script  string        // conversion script printing the JSON payload
	Timeout time.Duration // per-document limit
}

// DoclingConverter converts manifests by running the docling Python library
// in a child process
type DoclingConverter struct {
	cfg    DoclingConfig
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	python string
}

// NewDoclingConverter creates a docling converter
func NewDoclingConverter(cfg DoclingConfig, logger *slog.Logger) *DoclingConverter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Script == "" {
		cfg.Script = "scripts/docling_convert.py"
	}
	return &DoclingConverter{
		cfg:    cfg,
		runner: execRunner{logger: logger},
		logger: logger,
		python: cfg.Python,
	}
}

// Name implements manifest.Converter
func (c *DoclingConverter) Name() string {
	return manifest.StrategyDocling
}

// doclingPayload is the JSON printed by the conversion script
type doclingPayload struct {
	Tables   [][][]any `json:"tables"`
	Markdown string    `json:"markdown"`
	Pages    int       `json:"pages"`
}

// Convert runs the conversion script on path
func (c *DoclingConverter) Convert(ctx context.Context, path string) (*manifest.Document, error) {
	python, err := c.findPython(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Debug("Running docling", "python", python, "script", c.cfg.Script, "file", path)
	stdout, stderr, err := c.runner.Run(runCtx, python, c.cfg.Script, path)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("docling timed out after %s", c.cfg.Timeout)
		}
		return nil, fmt.Errorf("docling failed: %w: %s", err, truncate(strings.TrimSpace(string(stderr)), 1<<10))
	}

	return decodePayload(stdout)
}

// decodePayload validates and decodes the conversion script output
func decodePayload(stdout []byte) (*manifest.Document, error) {
	if err := validatePayload(stdout); err != nil {
		return nil, fmt.Errorf("docling output: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(stdout))
	dec.UseNumber()
	var payload doclingPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("docling output: %w", err)
	}

	doc := &manifest.Document{
		Tables: make([]manifest.Table, 0, len(payload.Tables)),
		Text:   normalizeText(payload.Markdown),
		Pages:  payload.Pages,
	}
	for _, rawTable := range payload.Tables {
		table := manifest.Table{Rows: make([][]string, 0, len(rawTable))}
		for _, rawRow := range rawTable {
			row := make([]string, len(rawRow))
			for i, cell := range rawRow {
				row[i] = cellText(cell)
			}
			table.Rows = append(table.Rows, row)
		}
		doc.Tables = append(doc.Tables, table)
	}
	return doc, nil
}

// Available reports whether a Python interpreter with docling installed can be found
func (c *DoclingConverter) Available(ctx context.Context) bool {
	python, err := c.findPython(ctx)
	if err != nil {
		return false
	}
	stdout, _, err := c.runner.Run(ctx, python, "-c", `import docling; print("ok")`)
	return err == nil && strings.Contains(string(stdout), "ok")
}

// findPython returns the configured interpreter or the first candidate that
// answers --version. A successful probe is remembered.
func (c *DoclingConverter) findPython(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.python != "" {
		return c.python, nil
	}
	for _, candidate := range pythonCandidates {
		if _, _, err := c.runner.Run(ctx, candidate, "--version"); err == nil {
			c.logger.Debug("Found Python interpreter", "python", candidate)
			c.python = candidate
			return candidate, nil
		}
	}
	return "", errors.New("no Python interpreter found")
}
