// Copyright 2024 Package Tracking System
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"package-manifest/internal/cache"
	cliapi "package-manifest/internal/cli"
	"package-manifest/internal/config"
	"package-manifest/internal/converter"
	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
)

// Version is reported by --version
const Version = "1.0.0"

var (
	configFile string
	serverURL  string
	format     string
	quiet      bool
	noColor    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ldi-parser",
	Short: "Extract package records from postal delivery manifests",
	Long: `LDI Parser reads delivery manifest PDFs (Lista de Distribuição Interna),
extracts one record per tracking code and reconciles the result against the
total printed on the document.

Local commands (parse, export, cache, serve) work on files and the local
database. Remote commands (upload, manifests, packages) talk to a running
server.

CONFIGURATION:
    Server and processing settings are read from config.yaml (., ./config,
    $HOME/.ldi-parser), from LDI_PARSER_* environment variables and from a
    .env file. CLI output settings are read from cli.yaml and
    LDI_PARSER_CLI_* variables. Flags override both.

EXAMPLES:
    ldi-parser parse ldi.pdf --format table
    ldi-parser parse ldi.pdf --save --import
    ldi-parser export ldi.pdf -o ldi.xlsx
    ldi-parser serve --port 8080
    ldi-parser upload ldi.pdf --import --server http://ldi.local:8080`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json, toml or .env)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "API server address for remote commands")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "Output format (json, table, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (tracking codes or IDs only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
}

// loadConfig loads server and processing settings. A .env path is loaded into
// the environment; any other path is read as a structured config file.
func loadConfig() (*config.Config, error) {
	switch {
	case configFile == "":
		return config.LoadWithEnvFile("")
	case isEnvFile(configFile):
		return config.LoadWithEnvFile(configFile)
	default:
		return config.LoadWithFile(configFile)
	}
}

func isEnvFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".env") || strings.HasSuffix(base, ".env")
}

// loadCLIConfig loads output settings and applies explicitly set flags
func loadCLIConfig(cmd *cobra.Command) (*cliapi.Config, error) {
	cfg, err := config.LoadCLIConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = serverURL
	}
	if flags.Changed("format") {
		cfg.Format = format
	}
	if flags.Changed("quiet") {
		cfg.Quiet = quiet
	}
	if flags.Changed("no-color") {
		cfg.NoColor = noColor
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes structured logs to stderr so stdout carries only results
func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// newProcessor builds the extraction pipeline for the configured engine.
// observer may be nil.
func newProcessor(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer manifest.Observer) (*manifest.Processor, error) {
	conv, err := converter.New(ctx, cfg.Converter(), logger)
	if err != nil {
		return nil, err
	}

	opts := []manifest.Option{
		manifest.WithLogger(logger),
		manifest.WithDeadlineDays(cfg.DeadlineDays),
	}
	if observer != nil {
		opts = append(opts, manifest.WithObserver(observer))
	}
	return manifest.NewProcessor(conv, converter.NewPDFTextSource(logger), opts...), nil
}

// localPipeline processes files on this machine, through the result cache
// when one is open
type localPipeline struct {
	db        *database.DB
	cache     *cache.Manager
	processor *manifest.Processor
}

func openLocalPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, useCache, needDB bool) (*localPipeline, error) {
	processor, err := newProcessor(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}

	p := &localPipeline{processor: processor}
	useCache = useCache && !cfg.DisableCache
	if !useCache && !needDB {
		return p, nil
	}

	p.db, err = database.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if useCache {
		p.cache = cache.NewManager(p.db.ResultCache, false, cfg.CacheTTL, logger)
	}
	return p, nil
}

// Process runs one file and reports whether the result came from the cache
func (p *localPipeline) Process(ctx context.Context, path string) (*manifest.Result, bool) {
	if p.cache != nil {
		return p.cache.ProcessFile(ctx, path, p.processor)
	}
	return p.processor.ProcessFile(ctx, path), false
}

func (p *localPipeline) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
	if p.db != nil {
		p.db.Close()
	}
}

// checkInputFile rejects paths that cannot be processed at all
func checkInputFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// initializeClient sets up configuration, formatter, and API client for
// remote commands
func initializeClient(cmd *cobra.Command) (*cliapi.Config, *cliapi.OutputFormatter, *cliapi.Client, error) {
	cfg, err := loadCLIConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	formatter := cliapi.NewOutputFormatter(cfg.Format, cfg.Quiet, cfg.NoColor)
	client := cliapi.NewClientWithTimeout(cfg.ServerURL, cfg.RequestTimeout).WithAPIKey(cfg.APIKey)

	// Test connectivity
	if err := client.HealthCheck(); err != nil {
		formatter.PrintError(err)
		return nil, nil, nil, err
	}

	return cfg, formatter, client, nil
}
