package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// SheetsConfig selects and configures the spreadsheet backend.
type SheetsConfig struct {
	Backend         string        `yaml:"backend" envconfig:"BACKEND"`
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	UserAgent       string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	SpreadsheetID   string        `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	CredentialsJSON string        `yaml:"-" envconfig:"CREDENTIALS_JSON"`
	ProbeSheet      string        `yaml:"probe_sheet" envconfig:"PROBE_SHEET"`
}

// DashboardConfig tunes the KPI views.
type DashboardConfig struct {
	FallbackLabel string `yaml:"fallback_label" envconfig:"FALLBACK_LABEL"`
	CardFallback  string `yaml:"card_fallback" envconfig:"CARD_FALLBACK"`
	TopN          int    `yaml:"top_n" envconfig:"TOP_N"`
	Locale        string `yaml:"locale" envconfig:"LOCALE"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceStdout bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
	MetricsPath string `yaml:"metrics_path" envconfig:"METRICS_PATH"`
}

// Load loads configuration from the first config file found and the
// environment.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom builds the configuration in three layers: defaults, then the YAML
// file at path (skipped when path is empty), then FENNIX_* environment
// variables. Later layers only override the fields they set.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// loadFromFile overlays a YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	// Logs are always JSON; output is stdout, file or both.
	c.Logging.Format = "json"
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "both"
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if err := c.Sheets.validate(); err != nil {
		return err
	}

	if c.Dashboard.TopN <= 0 {
		return fmt.Errorf("dashboard top_n must be positive, got %d", c.Dashboard.TopN)
	}
	if _, err := language.Parse(c.Dashboard.Locale); err != nil {
		return fmt.Errorf("invalid dashboard locale %q: %w", c.Dashboard.Locale, err)
	}

	if c.Telemetry.MetricsPath != "" && !strings.HasPrefix(c.Telemetry.MetricsPath, "/") {
		return fmt.Errorf("telemetry metrics path must start with /")
	}
	return nil
}

func (s *SheetsConfig) validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("sheets timeout must be positive")
	}

	switch s.Backend {
	case BackendAppsScript:
		if s.BaseURL == "" {
			return fmt.Errorf("sheets base_url is required for the %s backend", BackendAppsScript)
		}
		u, err := url.Parse(s.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid sheets base_url %q", s.BaseURL)
		}
	case BackendSheetsAPI:
		if s.SpreadsheetID == "" {
			return fmt.Errorf("sheets spreadsheet_id is required for the %s backend", BackendSheetsAPI)
		}
		if s.CredentialsFile == "" && s.CredentialsJSON == "" {
			return fmt.Errorf("sheets credentials_file or FENNIX_SHEETS_CREDENTIALS_JSON is required for the %s backend", BackendSheetsAPI)
		}
	default:
		return fmt.Errorf("unknown sheets backend %q", s.Backend)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
			MaxBodyBytes:    1 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			Output:      "both",
			FilePath:    DefaultLogFile,
			Development: false,
		},
		Sheets: SheetsConfig{
			Backend:      BackendAppsScript,
			Timeout:      DefaultSheetsTimeout,
			UserAgent:    AppName + "/" + AppVersion,
			MaxBodyBytes: 16 << 20,
		},
		Dashboard: DashboardConfig{
			FallbackLabel: "Sin dato",
			CardFallback:  "Sin Categoría",
			TopN:          10,
			Locale:        "es-CO",
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: AppName,
			Environment: "development",
			MetricsPath: "/metrics",
		},
	}
}
