// Package config loads run configuration from config.yaml, the environment and
// built-in defaults, and validates it before anything touches the host or database.
package config

import (
	"fmt"
	"strings"

	"github.com/rpattn/classcheck/internal/correlate"
	"github.com/rpattn/classcheck/internal/db"
	"github.com/rpattn/classcheck/internal/host"
)

// Config holds all application configuration.
type Config struct {
	Host           host.Config
	Database       db.Config
	Classification ClassificationConfig
	Properties     PropertyConfig
	Logging        LoggingConfig
	Export         ExportConfig
	Metrics        MetricsConfig
}

// ClassificationConfig selects the classification system to snapshot.
type ClassificationConfig struct {
	// SystemName is the name of the classification system as shown by the host.
	SystemName string
	// UnresolvedPolicy is "fallback" or "error".
	UnresolvedPolicy string
}

// PropertyConfig names the BuiltIn properties mapped to the element id and type.
type PropertyConfig struct {
	ID   string
	Type string
}

// Names returns the property names in id, type order.
func (p PropertyConfig) Names() []string {
	return []string{p.ID, p.Type}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string
	// Format is the log format: text or json (default: text)
	Format string
}

// ExportConfig controls where workbooks are uploaded.
type ExportConfig struct {
	S3 S3Config
}

// S3Config points at an S3-compatible bucket. Uploading is disabled when Endpoint is empty.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Prefix    string
}

// Enabled reports whether uploads are configured.
func (s S3Config) Enabled() bool {
	return strings.TrimSpace(s.Endpoint) != ""
}

// MetricsConfig controls the Prometheus push after each run.
type MetricsConfig struct {
	// PushgatewayURL disables pushing when empty.
	PushgatewayURL string
	Job            string
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Host:     host.DefaultConfig(),
		Database: db.DefaultConfig(),
		Classification: ClassificationConfig{
			SystemName:       "Uniclass 2015",
			UnresolvedPolicy: string(correlate.PolicyFallback),
		},
		Properties: PropertyConfig{
			ID:   "General_ElementID",
			Type: "General_Type",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "classcheck",
		},
	}
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Classification.SystemName) == "" {
		errs = append(errs, "classification.system_name is required")
	}
	if _, err := correlate.ParsePolicy(c.Classification.UnresolvedPolicy); err != nil {
		errs = append(errs, fmt.Sprintf("classification.unresolved_policy: %v", err))
	}

	if strings.TrimSpace(c.Properties.ID) == "" {
		errs = append(errs, "properties.id is required")
	}
	if strings.TrimSpace(c.Properties.Type) == "" {
		errs = append(errs, "properties.type is required")
	}

	if c.Host.Port <= 0 || c.Host.Port > 65535 {
		errs = append(errs, fmt.Sprintf("host.port (%d) must be 1-65535", c.Host.Port))
	}
	if c.Host.Timeout <= 0 {
		errs = append(errs, "host.timeout must be positive")
	}
	if c.Host.CommandTimeout <= 0 {
		errs = append(errs, "host.command_timeout must be positive")
	} else if c.Host.CommandTimeout < c.Host.Timeout {
		errs = append(errs, "host.command_timeout must not be shorter than host.timeout")
	}
	if c.Host.BatchSize <= 0 {
		errs = append(errs, "host.batch_size must be positive")
	}
	if c.Host.MaxRetries < 0 {
		errs = append(errs, "host.max_retries must be non-negative")
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port (%d) must be 1-65535", c.Database.Port))
	}
	if strings.TrimSpace(c.Database.DBName) == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Database.Timeout <= 0 {
		errs = append(errs, "database.timeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format (%q) must be one of: text, json", c.Logging.Format))
	}

	if c.Export.S3.Enabled() {
		if c.Export.S3.Bucket == "" {
			errs = append(errs, "export.s3.bucket is required when export.s3.endpoint is set")
		}
		if c.Export.S3.AccessKey == "" || c.Export.S3.SecretKey == "" {
			errs = append(errs, "export.s3.access_key and export.s3.secret_key are required when export.s3.endpoint is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Host: {URL: %s, Timeout: %s, BatchSize: %d}, ", c.Host.BaseURL(), c.Host.Timeout, c.Host.BatchSize))
	b.WriteString(fmt.Sprintf("Database: {Host: %q, Port: %d, DBName: %q, Password: [MASKED]}, ",
		c.Database.Host, c.Database.Port, c.Database.DBName))
	b.WriteString(fmt.Sprintf("Classification: {SystemName: %q, UnresolvedPolicy: %q}, ",
		c.Classification.SystemName, c.Classification.UnresolvedPolicy))
	b.WriteString(fmt.Sprintf("Properties: {ID: %q, Type: %q}, ", c.Properties.ID, c.Properties.Type))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
