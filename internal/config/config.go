package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can carry values like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OCRConfig configures the orientation-detection client.
type OCRConfig struct {
	ServiceURL     string   `yaml:"service_url"`
	Endpoints      []string `yaml:"endpoints"`
	MaxFailures    int      `yaml:"max_failures"`
	RateLimit      float64  `yaml:"rate_limit"` // requests per second
	Burst          float64  `yaml:"burst"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
	DPI     int `yaml:"dpi"`
	Quality int `yaml:"quality"` // JPEG quality
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AxiomConfig holds Axiom log-forwarding configuration.
type AxiomConfig struct {
	Send          bool     `yaml:"send"`
	APIKey        string   `yaml:"api_key"`
	OrgID         string   `yaml:"org_id"`
	Dataset       string   `yaml:"dataset"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// Config is the top-level configuration. Precedence: flags (applied via
// Apply in main) > config file > environment > defaults.
type Config struct {
	APIKey       string        `yaml:"api_key"`
	SecretKey    string        `yaml:"secret_key"`
	InputFolder  string        `yaml:"input_folder"`
	OutputFolder string        `yaml:"output_folder"`
	Debug        bool          `yaml:"debug"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	OCR          OCRConfig     `yaml:"ocr"`
	Render       RenderConfig  `yaml:"render"`
	Logging      LoggingConfig `yaml:"logging"`
	Axiom        AxiomConfig   `yaml:"axiom"`
}

// Overrides carries command-line flag values; zero values mean "not set".
type Overrides struct {
	APIKey       string
	SecretKey    string
	InputFolder  string
	OutputFolder string
	Debug        bool
}

// Default returns the built-in defaults overlaid with environment values.
func Default() Config {
	return Config{
		APIKey:       getEnv("OCR_API_KEY", ""),
		SecretKey:    getEnv("OCR_SECRET_KEY", ""),
		InputFolder:  getEnv("INPUT_FOLDER", ""),
		OutputFolder: getEnv("OUTPUT_FOLDER", ""),
		Debug:        parseBool(getEnv("DEBUG", "0")),
		MetricsAddr:  getEnv("METRICS_ADDR", ""),
		OCR: OCRConfig{
			ServiceURL:     getEnv("OCR_SERVICE_URL", "https://aip.baidubce.com"),
			MaxFailures:    parseInt(getEnv("OCR_MAX_FAILURES", "3"), 3),
			RateLimit:      parseFloat(getEnv("OCR_RATE_LIMIT", "2"), 2),
			Burst:          parseFloat(getEnv("OCR_BURST", "1"), 1),
			RequestTimeout: Duration(parseDuration(getEnv("OCR_REQUEST_TIMEOUT", "30s"), 30*time.Second)),
		},
		Render: RenderConfig{
			DPI:     parseInt(getEnv("RENDER_DPI", "150"), 150),
			Quality: parseInt(getEnv("RENDER_QUALITY", "95"), 95),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Pretty:     parseBool(getEnv("LOG_PRETTY", "true")),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
			MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
			MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
			Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
		},
		Axiom: AxiomConfig{
			Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
			APIKey:        getEnv("AXIOM_API_KEY", ""),
			OrgID:         getEnv("AXIOM_ORG_ID", ""),
			Dataset:       getEnv("AXIOM_DATASET", "dev") + "_pdfrotate",
			FlushInterval: Duration(parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second)),
		},
	}
}

// Load builds the configuration from defaults, environment, and an optional
// YAML file (file values win over environment and defaults).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Apply overlays non-zero flag values; flags have the highest precedence.
func (c *Config) Apply(o Overrides) {
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.SecretKey != "" {
		c.SecretKey = o.SecretKey
	}
	if o.InputFolder != "" {
		c.InputFolder = o.InputFolder
	}
	if o.OutputFolder != "" {
		c.OutputFolder = o.OutputFolder
	}
	if o.Debug {
		c.Debug = true
	}
}

// Validate checks required fields once before the run, derives the default
// output folder, and creates it.
func (c *Config) Validate() error {
	if c.APIKey == "" || c.SecretKey == "" {
		return fmt.Errorf("api key and secret key are required")
	}
	if c.InputFolder == "" {
		return fmt.Errorf("input folder is required")
	}
	if fi, err := os.Stat(c.InputFolder); err != nil || !fi.IsDir() {
		return fmt.Errorf("input folder does not exist: %s", c.InputFolder)
	}
	if c.OutputFolder == "" {
		c.OutputFolder = filepath.Join(filepath.Dir(c.InputFolder), "output")
	}
	if err := os.MkdirAll(c.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	if c.OCR.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive")
	}
	if c.Debug {
		c.Logging.Level = "debug"
	}
	return nil
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
