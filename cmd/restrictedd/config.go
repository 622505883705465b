package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the gateway daemon configuration
type Config struct {
	// Core server settings
	ListenAddr string `json:"listen_addr"`
	Port       int    `json:"port"`

	// Upstream catalog settings
	CatalogURL   string `json:"catalog_url"`             // Base address of the upstream catalog
	CatalogToken string `json:"catalog_token,omitempty"` // Privileged service token for upstream calls

	// Site identity used in notification mails
	SiteTitle  string `json:"site_title"`
	SiteURL    string `json:"site_url"`
	AdminEmail string `json:"admin_email"`

	// Mail relay settings; notifications are disabled when smtp_addr is empty
	SMTPAddr     string `json:"smtp_addr,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
	MailFrom     string `json:"mail_from,omitempty"`

	// Template overrides for notification mails
	TemplateDir string `json:"template_dir,omitempty"`

	// Status file directory for health monitoring
	StatusDir string `json:"status_dir,omitempty"`

	// Logging settings
	AppLogPath   string `json:"app_log_path,omitempty"`
	AuditLogPath string `json:"audit_log_path,omitempty"`
	LogLevel     string `json:"log_level,omitempty"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	// Convert relative paths to absolute paths based on config file location
	configDir := filepath.Dir(path)
	for _, p := range []*string{&config.TemplateDir, &config.StatusDir, &config.AppLogPath, &config.AuditLogPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}

	// Set defaults for optional settings
	if config.ListenAddr == "" {
		config.ListenAddr = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.MailFrom == "" {
		config.MailFrom = "noreply@localhost"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	// Required settings
	if config.CatalogURL == "" {
		return fmt.Errorf("catalog_url is required")
	}
	if config.SiteURL == "" {
		return fmt.Errorf("site_url is required")
	}
	if config.SMTPAddr != "" && config.AdminEmail == "" {
		return fmt.Errorf("admin_email is required when smtp_addr is set")
	}

	return nil
}
