// ABOUTME: This file handles configuration management for the funnel dashboard
// ABOUTME: Loads environment variables with defaults and reports unconfigured sources

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the dashboard service.
type Config struct {
	ServiceName string
	LogLevel    string
	HTTPPort    string

	// ReportTimezone is the timezone all comparison windows and civil dates
	// are computed in.
	ReportTimezone string

	// AdminToken guards the cache-clear endpoint. Empty disables it.
	AdminToken string

	// MaxPages bounds every pagination walk.
	MaxPages int

	// RequestTimeout applies to each upstream HTTP request.
	RequestTimeout time.Duration

	// APIRateInterval is the minimum spacing between requests to one host.
	APIRateInterval time.Duration

	Analytics AnalyticsConfig
	CRM       CRMConfig
	Course    CourseConfig
	Sheets    SheetsConfig
	Warmup    WarmupConfig
}

// AnalyticsConfig holds web-analytics reporting API settings.
type AnalyticsConfig struct {
	BaseURL    string
	PropertyID string
	APIToken   string
}

// Configured reports whether the analytics source can be queried.
func (c AnalyticsConfig) Configured() bool {
	return c.PropertyID != "" && c.APIToken != ""
}

// CRMConfig holds CRM API settings.
type CRMConfig struct {
	BaseURL string
	Token   string

	// ExcludedOwners lists owner display names whose deals are dropped from
	// every aggregate, comma-separated in the environment.
	ExcludedOwners []string
}

// Configured reports whether the CRM source can be queried.
func (c CRMConfig) Configured() bool {
	return c.Token != ""
}

// CourseConfig holds course-platform API settings.
type CourseConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenTTL     time.Duration
}

// Configured reports whether the course platform can be queried.
func (c CourseConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SheetsConfig holds the published spreadsheet feed URLs.
type SheetsConfig struct {
	RenewalsURL string
	CalendarURL string
}

// WarmupConfig controls the background cache warm-up job.
type WarmupConfig struct {
	Enabled  bool
	Delay    time.Duration
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:     getEnvOrDefault("SERVICE_NAME", "funnel-dashboard"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:        getEnvOrDefault("HTTP_PORT", "9400"),
		ReportTimezone:  getEnvOrDefault("REPORT_TIMEZONE", "Asia/Kolkata"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		MaxPages:        getEnvIntOrDefault("MAX_FETCH_PAGES", 50),
		RequestTimeout:  getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		APIRateInterval: getEnvDurationOrDefault("API_RATE_INTERVAL", 200*time.Millisecond),
		Analytics: AnalyticsConfig{
			BaseURL:    getEnvOrDefault("ANALYTICS_BASE_URL", "https://analyticsdata.googleapis.com"),
			PropertyID: os.Getenv("ANALYTICS_PROPERTY_ID"),
			APIToken:   os.Getenv("ANALYTICS_API_TOKEN"),
		},
		CRM: CRMConfig{
			BaseURL:        getEnvOrDefault("CRM_BASE_URL", "https://api.hubapi.com"),
			Token:          os.Getenv("CRM_API_TOKEN"),
			ExcludedOwners: splitAndTrim(os.Getenv("CRM_EXCLUDED_OWNERS")),
		},
		Course: CourseConfig{
			BaseURL:      os.Getenv("COURSE_BASE_URL"),
			ClientID:     os.Getenv("COURSE_CLIENT_ID"),
			ClientSecret: os.Getenv("COURSE_CLIENT_SECRET"),
			TokenTTL:     getEnvDurationOrDefault("COURSE_TOKEN_TTL", 58*time.Minute),
		},
		Sheets: SheetsConfig{
			RenewalsURL: os.Getenv("RENEWALS_FEED_URL"),
			CalendarURL: os.Getenv("CALENDAR_FEED_URL"),
		},
		Warmup: WarmupConfig{
			Enabled:  getEnvBoolOrDefault("WARMUP_ENABLED", true),
			Delay:    getEnvDurationOrDefault("WARMUP_DELAY", 3*time.Second),
			Interval: getEnvDurationOrDefault("WARMUP_INTERVAL", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validate rejects configurations that cannot serve at all. Individual
// sources may be unconfigured; those panels degrade to zero values.
func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.ReportTimezone, err)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_FETCH_PAGES must be positive, got %d", c.MaxPages)
	}
	if !c.Analytics.Configured() && !c.CRM.Configured() && !c.Course.Configured() &&
		c.Sheets.RenewalsURL == "" && c.Sheets.CalendarURL == "" {
		return fmt.Errorf("no data source configured")
	}
	return nil
}

// Location resolves the reporting timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
