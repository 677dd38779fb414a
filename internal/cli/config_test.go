package cli

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServerURL != "http://localhost:8080" {
		t.Errorf("Expected default server URL, got %s", cfg.ServerURL)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("Expected json format, got %s", cfg.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid https", func(c *Config) { c.ServerURL = "https://ldi.example.com" }, false},
		{"table format", func(c *Config) { c.Format = FormatTable }, false},
		{"yaml format", func(c *Config) { c.Format = FormatYAML }, false},
		{"empty URL", func(c *Config) { c.ServerURL = " " }, true},
		{"no scheme", func(c *Config) { c.ServerURL = "localhost:8080" }, true},
		{"bad format", func(c *Config) { c.Format = "csv" }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
