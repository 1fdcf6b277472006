package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/printerbridge/internal/gcp"
)

// AutoPrintConfig gates unattended printing. It is passed by value so the
// policy and dispatcher never observe later changes.
type AutoPrintConfig struct {
	Enabled bool     `yaml:"enabled"`
	Types   []string `yaml:"types"`
}

// Clone returns a copy that shares no memory with c.
func (c AutoPrintConfig) Clone() AutoPrintConfig {
	return AutoPrintConfig{
		Enabled: c.Enabled,
		Types:   append([]string(nil), c.Types...),
	}
}

type Config struct {
	AutoPrint        AutoPrintConfig `yaml:"auto_print"`
	DownloadFolder   string          `yaml:"download_folder" validate:"required"`
	CredentialPath   string          `yaml:"credential_path" validate:"required,file"`
	ProjectID        string          `yaml:"project_id"`
	Collection       string          `yaml:"collection" validate:"required"`
	PrinterName      string          `yaml:"printer_name"`
	MaxConcurrent    int             `yaml:"max_concurrent" validate:"min=0"`
	CleanupDownloads bool            `yaml:"cleanup_downloads"`
	NotifySinkURL    string          `yaml:"notify_sink_url" validate:"omitempty,url"`
	StatusPort       string          `yaml:"status_port" validate:"omitempty,numeric"`
	LogLevel         string          `yaml:"log_level" validate:"oneof=debug info warn error"`
}

func defaults() *Config {
	return &Config{
		AutoPrint: AutoPrintConfig{
			Enabled: true,
			Types:   []string{"A4", "Standard", "Document", "Letter"},
		},
		DownloadFolder: "downloads",
		CredentialPath: "serviceAccountKey.json",
		Collection:     "orders",
		LogLevel:       "info",
	}
}

// Load reads the YAML file at configPath (a missing file yields defaults) and
// then applies environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := gcp.GetEnv("AUTO_PRINT_ENABLED", ""); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTO_PRINT_ENABLED: %w", err)
		}
		c.AutoPrint.Enabled = enabled
	}
	if v := gcp.GetEnv("AUTO_PRINT_TYPES", ""); v != "" {
		c.AutoPrint.Types = splitList(v)
	}
	if v := gcp.GetEnv("MAX_CONCURRENT", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_CONCURRENT: %w", err)
		}
		c.MaxConcurrent = n
	}
	if v := gcp.GetEnv("CLEANUP_DOWNLOADS", ""); v != "" {
		cleanup, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CLEANUP_DOWNLOADS: %w", err)
		}
		c.CleanupDownloads = cleanup
	}

	c.DownloadFolder = gcp.GetEnv("DOWNLOAD_FOLDER", c.DownloadFolder)
	c.CredentialPath = gcp.GetEnv("CREDENTIAL_PATH", c.CredentialPath)
	c.ProjectID = gcp.GetEnv("PROJECT_ID", c.ProjectID)
	c.Collection = gcp.GetEnv("FIRESTORE_COLLECTION", c.Collection)
	c.PrinterName = gcp.GetEnv("PRINTER_NAME", c.PrinterName)
	c.NotifySinkURL = gcp.GetEnv("NOTIFY_SINK_URL", c.NotifySinkURL)
	c.StatusPort = gcp.GetEnv("STATUS_PORT", c.StatusPort)
	c.LogLevel = gcp.GetEnv("LOG_LEVEL", c.LogLevel)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks field constraints, including that the credential file
// exists on disk.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
