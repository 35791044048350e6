//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for salespipe.
// Configuration is loaded from config files and CLI flags; CLI flags take
// precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for salespipe.
type Config struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Ingest holds configuration for the ingest subcommand.
	Ingest IngestConfig `mapstructure:"ingest"`

	// Serve holds configuration for the serve subcommand.
	Serve ServeConfig `mapstructure:"serve"`

	// Sample holds configuration for the sample subcommand.
	Sample SampleConfig `mapstructure:"sample"`
}

// IngestConfig holds configuration for CSV batch ingestion.
type IngestConfig struct {
	// Workers is the number of files ingested concurrently. Each file is
	// one batch with its own transaction.
	Workers int `mapstructure:"workers"`
}

// ServeConfig holds configuration for the reporting API server.
type ServeConfig struct {
	// Listen is the HTTP listen address.
	Listen string `mapstructure:"listen"`

	// CORSOrigins is the list of allowed CORS origins.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// SampleConfig holds configuration for sample CSV generation.
type SampleConfig struct {
	// Rows is the number of data rows to generate.
	Rows int `mapstructure:"rows"`

	// Output is the path of the CSV file to write.
	Output string `mapstructure:"output"`

	// Seed makes generation reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`

	// MalformedRate is the fraction of rows (0..1) given unparseable
	// values to exercise the null-substitution policy downstream.
	MalformedRate float64 `mapstructure:"malformed_rate"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			Workers: 1,
		},
		Serve: ServeConfig{
			Listen:      ":8080",
			CORSOrigins: []string{"*"},
		},
		Sample: SampleConfig{
			Rows:          1000,
			Output:        "sales_data.csv",
			MalformedRate: 0,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./salespipe.yaml
// 3. ~/.config/salespipe/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("salespipe")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "salespipe"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateIngest checks configuration required for the ingest command.
func (c *Config) ValidateIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// ValidateServe checks configuration required for the serve command.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Serve.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if len(c.Serve.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin is required")
	}
	return nil
}

// ValidateSample checks configuration required for the sample command.
// Sample generation does not touch the database, so no connection string
// is needed.
func (c *Config) ValidateSample() error {
	if c.Sample.Rows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}
	if c.Sample.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Sample.MalformedRate < 0 || c.Sample.MalformedRate > 1 {
		return fmt.Errorf("malformed_rate must be between 0 and 1")
	}
	return nil
}
