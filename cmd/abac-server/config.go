package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/formhive/abac-core/internal/audit"
	"github.com/formhive/abac-core/internal/policy"
)

// FileConfig holds settings loaded from a YAML config file. Flags cover the
// common cases; backends and audit output are configured here.
type FileConfig struct {
	Redis    *policy.RedisConfig `yaml:"redis"`
	Postgres PostgresConfig      `yaml:"postgres"`
	Audit    AuditConfig         `yaml:"audit"`
}

// PostgresConfig holds PostgreSQL store settings
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// AuditConfig holds audit output settings
type AuditConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Type           string `yaml:"type"` // stdout, file
	FilePath       string `yaml:"filePath"`
	FileMaxSize    int    `yaml:"fileMaxSize"`
	FileMaxAge     int    `yaml:"fileMaxAge"`
	FileMaxBackups int    `yaml:"fileMaxBackups"`
}

// loadConfigFile reads and parses the YAML config file
func loadConfigFile(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// auditLoggerConfig converts the file section into an audit logger config
func (c *FileConfig) auditLoggerConfig() *audit.Config {
	cfg := audit.DefaultConfig()
	cfg.Enabled = c.Audit.Enabled
	if c.Audit.Type != "" {
		cfg.Type = c.Audit.Type
	}
	if c.Audit.FilePath != "" {
		cfg.FilePath = c.Audit.FilePath
	}
	if c.Audit.FileMaxSize > 0 {
		cfg.FileMaxSize = c.Audit.FileMaxSize
	}
	if c.Audit.FileMaxAge > 0 {
		cfg.FileMaxAge = c.Audit.FileMaxAge
	}
	if c.Audit.FileMaxBackups > 0 {
		cfg.FileMaxBackups = c.Audit.FileMaxBackups
	}
	return &cfg
}
