package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nholik/phenotype-health/internal/envcheck"
)

const (
	envAppEnv               = "APP_ENV"
	envHealthPort           = "HEALTH_PORT"
	envMetricsPort          = "METRICS_PORT"
	envLogLevel             = "LOG_LEVEL"
	envDatabaseTimeout      = "DATABASE_TIMEOUT"
	envEmbeddingPath        = "EMBEDDING_HEALTH_PATH"
	envEmbeddingTimeout     = "EMBEDDING_TIMEOUT"
	envRateLimitPerMinute   = "RATE_LIMIT_PER_MINUTE"
	envGitCommit            = "GIT_COMMIT_SHA"
	envVercelGitCommit      = "VERCEL_GIT_COMMIT_SHA"
	envDeploymentID         = "DEPLOYMENT_ID"
	envVercelDeploymentID   = "VERCEL_DEPLOYMENT_ID"
	envDependenciesFile     = "DEPENDENCIES_FILE"
	envWatchInterval        = "WATCH_INTERVAL"
	envStatePath            = "STATE_PATH"
	envSlackWebhookURL      = "SLACK_WEBHOOK_URL"
	envAlertWebhookURL      = "ALERT_WEBHOOK_URL"
	envAlertWebhookTemplate = "ALERT_WEBHOOK_TEMPLATE"
	envNotifyDryRun         = "NOTIFY_DRY_RUN"
	envTrustProxyHeaders    = "TRUST_PROXY_HEADERS"
)

// Product variables share their names with the environment validator.
var (
	envDatabaseURL  = envcheck.DatabaseURL.Name
	envEmbeddingURL = envcheck.EmbeddingServiceURL.Name
	envRedisURL     = envcheck.RedisURL.Name
	envAuthSecret   = envcheck.AuthSecret.Name
)

const (
	EnvironmentProduction = "production"

	defaultEnvironment        = "development"
	defaultHealthPort         = 8080
	defaultMetricsPort        = 9090
	defaultLogLevel           = "info"
	defaultDatabaseTimeout    = 2 * time.Second
	defaultEmbeddingPath      = "/health"
	defaultEmbeddingTimeout   = 3 * time.Second
	defaultRateLimitPerMinute = 60
)

// Config describes runtime configuration loaded from the environment.
// Product credentials that the environment validator checks are not
// required here; they are reported at evaluation time instead.
type Config struct {
	Environment          string
	HealthPort           int
	MetricsPort          int
	LogLevel             string
	DatabaseURL          string
	DatabaseTimeout      time.Duration
	EmbeddingServiceURL  string
	EmbeddingHealthPath  string
	EmbeddingTimeout     time.Duration
	RedisURL             string
	RateLimitPerMinute   int
	AuthSecret           string
	GitCommit            string
	DeploymentID         string
	DependenciesFile     string
	WatchInterval        time.Duration
	StatePath            string
	SlackWebhookURL      string
	AlertWebhookURL      string
	AlertWebhookTemplate string
	NotifyDryRun         bool
	TrustProxyHeaders    bool
}

// IsProduction reports whether error details must be hidden.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:         defaultEnvironment,
		HealthPort:          defaultHealthPort,
		MetricsPort:         defaultMetricsPort,
		LogLevel:            defaultLogLevel,
		DatabaseTimeout:     defaultDatabaseTimeout,
		EmbeddingHealthPath: defaultEmbeddingPath,
		EmbeddingTimeout:    defaultEmbeddingTimeout,
		RateLimitPerMinute:  defaultRateLimitPerMinute,
	}

	if value, ok := lookupTrimmed(envAppEnv); ok && value != "" {
		cfg.Environment = strings.ToLower(value)
	}
	if value, ok := lookupTrimmed(envLogLevel); ok && value != "" {
		cfg.LogLevel = value
	}

	var err error
	if cfg.HealthPort, err = portValue(envHealthPort, cfg.HealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = portValue(envMetricsPort, cfg.MetricsPort); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseTimeout, err = positiveDuration(envDatabaseTimeout, cfg.DatabaseTimeout); err != nil {
		return Config{}, err
	}
	if cfg.EmbeddingTimeout, err = positiveDuration(envEmbeddingTimeout, cfg.EmbeddingTimeout); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envWatchInterval); ok && value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envWatchInterval, err)
		}
		if interval < 0 {
			return Config{}, fmt.Errorf("%s cannot be negative", envWatchInterval)
		}
		cfg.WatchInterval = interval
	}

	if value, ok := lookupTrimmed(envRateLimitPerMinute); ok && value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envRateLimitPerMinute, err)
		}
		if limit < 0 {
			return Config{}, fmt.Errorf("%s cannot be negative", envRateLimitPerMinute)
		}
		cfg.RateLimitPerMinute = limit
	}

	if cfg.NotifyDryRun, err = boolValue(envNotifyDryRun); err != nil {
		return Config{}, err
	}
	if cfg.TrustProxyHeaders, err = boolValue(envTrustProxyHeaders); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envEmbeddingPath); ok && value != "" {
		if !strings.HasPrefix(value, "/") {
			value = "/" + value
		}
		cfg.EmbeddingHealthPath = value
	}

	cfg.DatabaseURL = firstValue(envDatabaseURL)
	cfg.EmbeddingServiceURL = firstValue(envEmbeddingURL)
	cfg.RedisURL = firstValue(envRedisURL)
	cfg.AuthSecret = firstValue(envAuthSecret)
	cfg.GitCommit = firstValue(envGitCommit, envVercelGitCommit)
	cfg.DeploymentID = firstValue(envDeploymentID, envVercelDeploymentID)
	cfg.DependenciesFile = firstValue(envDependenciesFile)
	cfg.StatePath = firstValue(envStatePath)
	cfg.SlackWebhookURL = firstValue(envSlackWebhookURL)
	cfg.AlertWebhookURL = firstValue(envAlertWebhookURL)
	cfg.AlertWebhookTemplate = firstValue(envAlertWebhookTemplate)

	for name, value := range map[string]string{
		envEmbeddingURL:    cfg.EmbeddingServiceURL,
		envSlackWebhookURL: cfg.SlackWebhookURL,
		envAlertWebhookURL: cfg.AlertWebhookURL,
	} {
		if value == "" {
			continue
		}
		if err := validateHTTPURL(value, name); err != nil {
			return Config{}, err
		}
	}
	if cfg.RedisURL != "" {
		if err := validateURL(cfg.RedisURL, envRedisURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// firstValue returns the first non-blank value among keys.
func firstValue(keys ...string) string {
	for _, key := range keys {
		if value, ok := lookupTrimmed(key); ok && value != "" {
			return value
		}
	}
	return ""
}

func portValue(key string, fallback int) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 0 and 65535", key)
	}
	return port, nil
}

func boolValue(key string) (bool, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func positiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return d, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}

func validateHTTPURL(value, name string) error {
	if err := validateURL(value, name); err != nil {
		return err
	}
	parsed, _ := url.Parse(value)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", name)
	}
	return nil
}
