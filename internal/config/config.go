package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultNamespace         = "default"
	defaultMaxRetries        = 3
	defaultRetryInitialDelay = 1 * time.Second
	defaultRetryMaxDelay     = 10 * time.Second
)

// Config is the operator process configuration, loaded from the environment.
type Config struct {
	KubeConfig string
	KubeMaster string
	Namespace  string

	LogLevel  string
	LogFormat string

	HTTPPort    string
	MetricsPort string

	MaxRetries        int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// ResyncSchedule is a cron expression; empty disables the sweep.
	ResyncSchedule string
	ResyncTZ       string
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		KubeConfig:     getEnvWithFallback(envKeyKubeConfig, envKeyKubeConfigFallback),
		KubeMaster:     getEnvWithFallback(envKeyKubeMaster, envKeyKubeMasterFallback),
		Namespace:      getEnvOrDefault(envKeyNamespace, defaultNamespace),
		LogLevel:       getEnvOrDefault(envKeyLogLevel, "info"),
		LogFormat:      getEnvOrDefault(envKeyLogFormat, "json"),
		HTTPPort:       getEnvOrDefault(envKeyHTTPPort, "8080"),
		MetricsPort:    getEnvOrDefault(envKeyMetricsPort, "9090"),
		ResyncSchedule: os.Getenv(envKeyResyncSchedule),
		ResyncTZ:       os.Getenv(envKeyResyncTZ),
	}

	maxRetries, err := getIntEnv(envKeyMaxRetries, defaultMaxRetries)
	if err != nil {
		return nil, err
	}

	if maxRetries < 0 || maxRetries > envMaxMaxRetries {
		return nil, fmt.Errorf("%s: %d out of range [0, %d]", envKeyMaxRetries, maxRetries, envMaxMaxRetries)
	}

	cfg.MaxRetries = maxRetries

	cfg.RetryInitialDelay, err = getDurationEnv(envKeyRetryInitialDelay, defaultRetryInitialDelay)
	if err != nil {
		return nil, err
	}

	if cfg.RetryInitialDelay < envMinRetryInitialDelay {
		return nil, fmt.Errorf("%s: %s below minimum %s", envKeyRetryInitialDelay, cfg.RetryInitialDelay, envMinRetryInitialDelay)
	}

	cfg.RetryMaxDelay, err = getDurationEnv(envKeyRetryMaxDelay, defaultRetryMaxDelay)
	if err != nil {
		return nil, err
	}

	if cfg.RetryMaxDelay < cfg.RetryInitialDelay {
		return nil, fmt.Errorf("%s: %s below initial delay %s", envKeyRetryMaxDelay, cfg.RetryMaxDelay, cfg.RetryInitialDelay)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvWithFallback(key, fallbackKey string) string {
	value := os.Getenv(key)
	if value == "" {
		return os.Getenv(fallbackKey)
	}

	return value
}

func getIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return value, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return value, nil
}
