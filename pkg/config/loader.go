package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Environment variables consulted by Load. Values set here override the file.
const (
	EnvEndpoint        = "FOUNDRY_ENDPOINT"
	EnvAPIKey          = "FOUNDRY_API_KEY"
	EnvTimeoutMs       = "FOUNDRY_TIMEOUT_MS"
	EnvMaxRetries      = "FOUNDRY_MAX_RETRIES"
	EnvBaseDelayMs     = "FOUNDRY_BASE_DELAY_MS"
	EnvMaxDelayMs      = "FOUNDRY_MAX_DELAY_MS"
	EnvMaxConcurrent   = "FOUNDRY_MAX_CONCURRENT"
	EnvSecretsFile     = "FOUNDRY_SECRETS_FILE"
	EnvSecretsPassword = "FOUNDRY_SECRETS_PASSWORD" //nolint:gosec // variable name, not a credential
)

// fileConfig is the on-disk JSON shape. Durations are milliseconds and
// pointers distinguish "unset" from an explicit zero.
type fileConfig struct {
	Endpoint         string `json:"endpoint"`
	APIKey           string `json:"api_key"`
	CredentialHeader string `json:"credential_header"`
	UserAgent        string `json:"user_agent"`
	HealthPath       string `json:"health_path"`
	SecretsFile      string `json:"secrets_file"`
	TimeoutMs        *int   `json:"timeout_ms"`
	SlowRequestMs    *int   `json:"slow_request_ms"`
	Retry            *struct {
		MaxRetries   *int     `json:"max_retries"`
		BaseDelayMs  *int     `json:"base_delay_ms"`
		MaxDelayMs   *int     `json:"max_delay_ms"`
		JitterFactor *float64 `json:"jitter_factor"`
	} `json:"retry"`
	CircuitBreaker *struct {
		FailureThreshold *int `json:"failure_threshold"`
		SuccessThreshold *int `json:"success_threshold"`
		CooldownMs       *int `json:"cooldown_ms"`
	} `json:"circuit_breaker"`
	Limits *struct {
		MaxConcurrent     *int `json:"max_concurrent"`
		RequestsPerMinute *int `json:"requests_per_minute"`
	} `json:"limits"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load builds a Connection from defaults, an optional JSON file at path and
// the FOUNDRY_* environment. ${VAR} placeholders in the file are expanded
// from the environment; unknown placeholders are left as-is. Load does not
// validate: the client validates on Init.
func Load(path string) (Connection, error) {
	conn := Default()
	secretsFile := os.Getenv(EnvSecretsFile)

	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Connection{}, err
		}
		fc.apply(&conn)
		if secretsFile == "" {
			secretsFile = fc.SecretsFile
		}
	}

	if err := applyEnvOverrides(&conn); err != nil {
		return Connection{}, err
	}

	if conn.APIKey == "" && secretsFile != "" {
		if password := os.Getenv(EnvSecretsPassword); password != "" {
			creds, err := DecryptCredentials(secretsFile, password)
			if err != nil {
				return Connection{}, fmt.Errorf("failed to read credentials: %w", err)
			}
			conn.APIKey = creds[CredentialAPIKey]
		}
	}

	return conn, nil
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match
	})

	var fc fileConfig
	if err := json.Unmarshal([]byte(expanded), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &fc, nil
}

func (fc *fileConfig) apply(conn *Connection) {
	setString(&conn.Endpoint, fc.Endpoint)
	setString(&conn.APIKey, fc.APIKey)
	setString(&conn.CredentialHeader, fc.CredentialHeader)
	setString(&conn.UserAgent, fc.UserAgent)
	setString(&conn.HealthPath, fc.HealthPath)
	setMillis(&conn.Timeout, fc.TimeoutMs)
	setMillis(&conn.SlowRequestThreshold, fc.SlowRequestMs)

	if r := fc.Retry; r != nil {
		if r.MaxRetries != nil {
			conn.Retry.MaxRetries = *r.MaxRetries
		}
		setMillis(&conn.Retry.BaseDelay, r.BaseDelayMs)
		setMillis(&conn.Retry.MaxDelay, r.MaxDelayMs)
		if r.JitterFactor != nil {
			conn.Retry.JitterFactor = *r.JitterFactor
		}
	}

	if cb := fc.CircuitBreaker; cb != nil {
		if cb.FailureThreshold != nil {
			conn.CircuitBreaker.FailureThreshold = *cb.FailureThreshold
		}
		if cb.SuccessThreshold != nil {
			conn.CircuitBreaker.SuccessThreshold = *cb.SuccessThreshold
		}
		setMillis(&conn.CircuitBreaker.Cooldown, cb.CooldownMs)
	}

	if l := fc.Limits; l != nil {
		if l.MaxConcurrent != nil {
			conn.Limits.MaxConcurrent = *l.MaxConcurrent
		}
		if l.RequestsPerMinute != nil {
			conn.Limits.RequestsPerMinute = *l.RequestsPerMinute
		}
	}
}

func applyEnvOverrides(conn *Connection) error {
	setString(&conn.Endpoint, os.Getenv(EnvEndpoint))
	setString(&conn.APIKey, os.Getenv(EnvAPIKey))

	ints := []struct {
		env    string
		assign func(int)
	}{
		{EnvTimeoutMs, func(v int) { conn.Timeout = time.Duration(v) * time.Millisecond }},
		{EnvMaxRetries, func(v int) { conn.Retry.MaxRetries = v }},
		{EnvBaseDelayMs, func(v int) { conn.Retry.BaseDelay = time.Duration(v) * time.Millisecond }},
		{EnvMaxDelayMs, func(v int) { conn.Retry.MaxDelay = time.Duration(v) * time.Millisecond }},
		{EnvMaxConcurrent, func(v int) { conn.Limits.MaxConcurrent = v }},
	}
	for _, o := range ints {
		raw := strings.TrimSpace(os.Getenv(o.env))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %s=%q: %w", o.env, raw, err)
		}
		o.assign(v)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setMillis(dst *time.Duration, ms *int) {
	if ms != nil {
		*dst = time.Duration(*ms) * time.Millisecond
	}
}
