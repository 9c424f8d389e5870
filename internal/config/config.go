package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvConfigFile names the optional TOML file applied beneath env overrides.
const EnvConfigFile = "FINTRACK_CONFIG"

type Config struct {
	// HTTP Server
	Port      string
	RateLimit float64
	RateBurst int

	// Storage
	DataBackend      string
	DataDir          string
	AccountCacheSize int
	AccountIdleTTL   time.Duration

	// Logging
	LogLevel string

	// Identity
	JWTSecret string
	TokenTTL  time.Duration

	// Insights
	GeminiAPIKey        string
	GeminiModel         string
	InsightsTemperature float64
	InsightsMaxTokens   int
	InsightsTimeout     time.Duration
	CurrencySymbol      string

	// Import
	CategoryRulesFile string

	// AMQP. An empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleTabPrefix          string

	// Worker
	ResyncSchedule string
	ResyncTimeout  time.Duration
}

// fileConfig is the TOML shape. Durations are strings such as "30m".
type fileConfig struct {
	Server struct {
		Port      string  `toml:"port"`
		RateLimit float64 `toml:"rate_limit"`
		RateBurst int     `toml:"rate_burst"`
	} `toml:"server"`
	Storage struct {
		Backend          string `toml:"backend"`
		DataDir          string `toml:"data_dir"`
		AccountCacheSize int    `toml:"account_cache_size"`
		AccountIdleTTL   string `toml:"account_idle_ttl"`
	} `toml:"storage"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Auth struct {
		JWTSecret string `toml:"jwt_secret"`
		TokenTTL  string `toml:"token_ttl"`
	} `toml:"auth"`
	Insights struct {
		APIKey         string  `toml:"api_key"`
		Model          string  `toml:"model"`
		Temperature    float64 `toml:"temperature"`
		MaxTokens      int     `toml:"max_tokens"`
		Timeout        string  `toml:"timeout"`
		CurrencySymbol string  `toml:"currency_symbol"`
	} `toml:"insights"`
	Import struct {
		CategoryRules string `toml:"category_rules"`
	} `toml:"import"`
	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`
	Sheets struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		ServiceAccountJSON string `toml:"service_account_json"`
		ServiceAccountFile string `toml:"service_account_file"`
		TabPrefix          string `toml:"tab_prefix"`
	} `toml:"sheets"`
	Worker struct {
		ResyncSchedule string `toml:"resync_schedule"`
		ResyncTimeout  string `toml:"resync_timeout"`
	} `toml:"worker"`
}

func defaults() *Config {
	return &Config{
		Port:      "8081",
		RateLimit: 10,
		RateBurst: 20,

		DataBackend:      "sqlite",
		DataDir:          "./data",
		AccountCacheSize: 128,
		AccountIdleTTL:   30 * time.Minute,

		LogLevel: "info",

		TokenTTL: 24 * time.Hour,

		GeminiModel:         "gemini-2.5-flash",
		InsightsTemperature: 0.7,
		InsightsMaxTokens:   100,
		InsightsTimeout:     30 * time.Second,
		CurrencySymbol:      "₹",

		AMQPExchange: "fintrack",
		AMQPQueue:    "ledger_events",

		ResyncSchedule: "@hourly",
		ResyncTimeout:  10 * time.Minute,
	}
}

// Load builds the configuration from defaults and environment variables.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile applies the TOML file at path over the defaults, then the
// environment over that.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := defaults()
	if err := cfg.applyFile(fc); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// FromEnvironment uses LoadFile when FINTRACK_CONFIG is set and Load otherwise.
func FromEnvironment() (*Config, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return LoadFile(path)
	}
	return Load(), nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimit = getEnvFloat("RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvInt("RATE_BURST", c.RateBurst)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.AccountCacheSize = getEnvInt("ACCOUNT_CACHE_SIZE", c.AccountCacheSize)
	c.AccountIdleTTL = getEnvDuration("ACCOUNT_IDLE_TTL", c.AccountIdleTTL)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenTTL = getEnvDuration("TOKEN_TTL", c.TokenTTL)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.InsightsTemperature = getEnvFloat("INSIGHTS_TEMPERATURE", c.InsightsTemperature)
	c.InsightsMaxTokens = getEnvInt("INSIGHTS_MAX_TOKENS", c.InsightsMaxTokens)
	c.InsightsTimeout = getEnvDuration("INSIGHTS_TIMEOUT", c.InsightsTimeout)
	c.CurrencySymbol = getEnv("CURRENCY_SYMBOL", c.CurrencySymbol)

	c.CategoryRulesFile = getEnv("CATEGORY_RULES", c.CategoryRulesFile)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleTabPrefix = getEnv("GOOGLE_TAB_PREFIX", c.GoogleTabPrefix)

	c.ResyncSchedule = getEnv("RESYNC_SCHEDULE", c.ResyncSchedule)
	c.ResyncTimeout = getEnvDuration("RESYNC_TIMEOUT", c.ResyncTimeout)
}

func (c *Config) applyFile(fc fileConfig) error {
	setString(&c.Port, fc.Server.Port)
	setFloat(&c.RateLimit, fc.Server.RateLimit)
	setInt(&c.RateBurst, fc.Server.RateBurst)

	setString(&c.DataBackend, fc.Storage.Backend)
	setString(&c.DataDir, fc.Storage.DataDir)
	setInt(&c.AccountCacheSize, fc.Storage.AccountCacheSize)

	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.JWTSecret, fc.Auth.JWTSecret)

	setString(&c.GeminiAPIKey, fc.Insights.APIKey)
	setString(&c.GeminiModel, fc.Insights.Model)
	setFloat(&c.InsightsTemperature, fc.Insights.Temperature)
	setInt(&c.InsightsMaxTokens, fc.Insights.MaxTokens)
	setString(&c.CurrencySymbol, fc.Insights.CurrencySymbol)

	setString(&c.CategoryRulesFile, fc.Import.CategoryRules)

	setString(&c.AMQPURL, fc.AMQP.URL)
	setString(&c.AMQPExchange, fc.AMQP.Exchange)
	setString(&c.AMQPQueue, fc.AMQP.Queue)

	setString(&c.GoogleSpreadsheetID, fc.Sheets.SpreadsheetID)
	setString(&c.GoogleServiceAccountJSON, fc.Sheets.ServiceAccountJSON)
	setString(&c.GoogleServiceAccountFile, fc.Sheets.ServiceAccountFile)
	setString(&c.GoogleTabPrefix, fc.Sheets.TabPrefix)

	setString(&c.ResyncSchedule, fc.Worker.ResyncSchedule)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"storage.account_idle_ttl", fc.Storage.AccountIdleTTL, &c.AccountIdleTTL},
		{"auth.token_ttl", fc.Auth.TokenTTL, &c.TokenTTL},
		{"insights.timeout", fc.Insights.Timeout, &c.InsightsTimeout},
		{"worker.resync_timeout", fc.Worker.ResyncTimeout, &c.ResyncTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SheetsEnabled reports whether a spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimit))
	}
	if c.RateBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate burst %d: must be at least 1", c.RateBurst))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using sqlite backend")
		} else if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Clean(c.DataDir), 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create data directory '%s': %v", c.DataDir, err))
			}
		}
	}

	if c.AccountCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid account cache size %d: must be at least 1", c.AccountCacheSize))
	}
	if c.AccountIdleTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid account idle TTL %v: must be at least 1 second", c.AccountIdleTTL))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	// Validate insights
	if c.InsightsTemperature < 0 || c.InsightsTemperature > 2 {
		errors = append(errors, fmt.Sprintf("invalid insights temperature %v: must be between 0 and 2", c.InsightsTemperature))
	}
	if c.InsightsMaxTokens < 1 {
		errors = append(errors, fmt.Sprintf("invalid insights max tokens %d: must be at least 1", c.InsightsMaxTokens))
	}
	if c.InsightsTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid insights timeout %v: must be positive", c.InsightsTimeout))
	}

	if c.CategoryRulesFile != "" {
		if _, err := os.Stat(c.CategoryRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("category rules file does not exist: %s", c.CategoryRulesFile))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if a spreadsheet is configured
	if c.SheetsEnabled() {
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ResyncTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid resync timeout %v: must be at least 1 second", c.ResyncTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
