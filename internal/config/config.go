package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/prompts"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	AppName     = "seller-insights"
	EnvFileName = "config.env"

	// LedgerDisabled as INSIGHTS_DB_PATH turns off usage recording.
	LedgerDisabled = "off"

	defaultLedgerRetention = 90 * 24 * time.Hour
)

// Config is the runtime configuration of the service.
type Config struct {
	GeminiAPIKey   string
	GeminiBaseURL  string
	ListenAddr     string
	DBPath         string
	AllowedOrigins []string
	Retry          llm.RetryPolicy
	Profiles       map[prompts.Feature]prompts.Profile
	LogLevel       zerolog.Level

	// LedgerRetention is how long usage records are kept. Zero keeps them
	// forever.
	LedgerRetention time.Duration
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:    getenv("GEMINI_API_KEY"),
		GeminiBaseURL:   getenv("GEMINI_BASE_URL"),
		ListenAddr:      valueOr(getenv("LISTEN_ADDR"), ":8080"),
		DBPath:          valueOr(getenv("INSIGHTS_DB_PATH"), "insights.db"),
		AllowedOrigins:  splitList(valueOr(getenv("CORS_ALLOWED_ORIGINS"), "*")),
		Retry:           llm.DefaultRetryPolicy,
		LogLevel:        zerolog.InfoLevel,
		LedgerRetention: defaultLedgerRetention,
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	if v := getenv("RETRY_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("RETRY_MAX must be a non-negative integer: %q", v)
		}
		cfg.Retry.MaxRetries = n
	}

	if v := getenv("RETRY_INITIAL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("RETRY_INITIAL_DELAY must be a non-negative duration: %q", v)
		}
		cfg.Retry.InitialDelay = d
	}

	if v := getenv("LEDGER_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("LEDGER_RETENTION must be a non-negative duration: %q", v)
		}
		cfg.LedgerRetention = d
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if path := getenv("PROFILES_FILE"); path != "" {
		profiles, err := LoadProfiles(path)
		if err != nil {
			return nil, err
		}
		cfg.Profiles = profiles
	}

	return cfg, nil
}

// profilesFile is the YAML layout of PROFILES_FILE:
//
//	profiles:
//	  strategy:
//	    model: gemini-2.5-pro
//	    thinking_budget: 2048
type profilesFile struct {
	Profiles map[prompts.Feature]prompts.Profile `yaml:"profiles"`
}

// LoadProfiles reads per-feature profile overrides from a YAML file.
func LoadProfiles(path string) (map[prompts.Feature]prompts.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	for feature := range f.Profiles {
		if !feature.Valid() {
			return nil, fmt.Errorf("unknown feature in profiles file: %q", feature)
		}
	}

	return f.Profiles, nil
}

// LedgerEnabled reports whether usage should be recorded.
func (c *Config) LedgerEnabled() bool {
	return c.DBPath != LedgerDisabled
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
