// Package config provides YAML configuration parsing for stakeout.
//
// This package enables running stakeout as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	target:
//	  url: https://shop.example.com/api/item/42
//	  timeout: 10s
//
//	query:
//	  mode: json
//	  locator: $.data.status
//	  value: available
//
//	interval: 5m
//
//	channels:
//	  - type: discord
//	    webhook_url: ${DISCORD_WEBHOOK_URL}
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minInterval is the minimum allowed check interval for production configs.
// This prevents accidental DoS of targets with overly aggressive polling.
const minInterval = 1 * time.Second

// Config is the root configuration structure for stakeout.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Target describes the resource to watch.
	Target TargetConfig `yaml:"target"`

	// Query describes what to look for in the fetched resource.
	Query QueryConfig `yaml:"query"`

	// Interval is the time between checks.
	// Accepts duration strings like "30s", "5m". Defaults to 15m.
	Interval Duration `yaml:"interval"`

	// RequestDelay is the minimum delay between consecutive outbound
	// fetches, independent of the interval. Defaults to 1s.
	RequestDelay Duration `yaml:"request_delay"`

	// SendTimeout bounds each individual notification send attempt.
	// Defaults to 20s.
	SendTimeout Duration `yaml:"send_timeout"`

	// StartupNotice sends a "watch started" message through every channel
	// before the first check.
	StartupNotice bool `yaml:"startup_notice"`

	// Retry is the per-channel retry policy for notification dispatch.
	Retry RetryConfig `yaml:"retry"`

	// Channels defines the notification channels.
	Channels []ChannelConfig `yaml:"channels"`
}

// TargetConfig describes the watched resource.
type TargetConfig struct {
	// URL is the resource to fetch.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method (GET, HEAD, POST). Defaults to GET.
	Method string `yaml:"method"`

	// Timeout is the per-fetch timeout. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each fetch.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// QueryConfig describes the extraction and match condition.
type QueryConfig struct {
	// Mode is the extraction strategy: "json" or "html".
	Mode string `yaml:"mode"`

	// Locator is the locator expression for json mode (e.g. $.data.status).
	Locator string `yaml:"locator"`

	// Value is the target value to match.
	Value string `yaml:"value"`

	// Negative inverts the match: notify on absence rather than presence.
	Negative bool `yaml:"negative"`
}

// RetryConfig is the per-channel retry policy for notification dispatch.
// Zero fields fall back to the SDK defaults.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	Multiplier  float64  `yaml:"multiplier"`
	MaxDelay    Duration `yaml:"max_delay"`
	MaxElapsed  Duration `yaml:"max_elapsed"`
}

// ChannelConfig defines one notification channel.
//
// Type selects the channel kind and determines which other fields apply:
//
//	type: discord   — webhook_url (required), title, username
//	type: webhook   — url (required), name, headers
//	type: email     — host, port, from, to (all required), username,
//	                  password, subject
type ChannelConfig struct {
	Type string `yaml:"type"`

	// discord
	WebhookURL string `yaml:"webhook_url"`
	Title      string `yaml:"title"`
	Username   string `yaml:"username"`

	// webhook
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`

	// email
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Password string   `yaml:"password"`
	Subject  string   `yaml:"subject"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, header values, and channel
// credentials. Defaults are applied for Interval (15m), the fetch Timeout
// (30s), RequestDelay (1s), and SendTimeout (20s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Interval == 0 {
		cfg.Interval = Duration(15 * time.Minute)
	}
	if cfg.Target.Timeout == 0 {
		cfg.Target.Timeout = Duration(30 * time.Second)
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = Duration(time.Second)
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = Duration(20 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Interval.Duration() < minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minInterval, c.Interval.Duration())
	}
	if c.RequestDelay.Duration() < 0 {
		return fmt.Errorf("request_delay cannot be negative, got %s", c.RequestDelay.Duration())
	}

	if err := c.validateTarget(); err != nil {
		return err
	}
	if err := c.validateQuery(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry.max_attempts cannot be negative")
	}

	for i := range c.Channels {
		if err := c.validateChannel(i); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateTarget() error {
	t := &c.Target

	if t.URL == "" {
		return errors.New("target.url is required")
	}
	expanded, err := expandEnvVars(t.URL)
	if err != nil {
		return fmt.Errorf("target.url: %w", err)
	}
	t.URL = expanded

	parsedURL, err := url.Parse(t.URL)
	if err != nil {
		return fmt.Errorf("target.url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("target.url: scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if t.Method != "" && t.Method != "GET" && t.Method != "HEAD" && t.Method != "POST" {
		return errors.New("target.method must be GET, HEAD, or POST")
	}

	if t.Timeout.Duration() < time.Second {
		return fmt.Errorf("target.timeout must be at least 1s, got %s", t.Timeout.Duration())
	}

	for k, v := range t.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("target.headers[%s]: %w", k, err)
		}
		t.Headers[k] = expanded
	}

	return nil
}

func (c *Config) validateQuery() error {
	q := &c.Query

	switch q.Mode {
	case "json":
		if q.Locator == "" {
			return errors.New("query.locator is required for json mode")
		}
	case "html":
		// locator ignored
	case "":
		return errors.New("query.mode is required (json or html)")
	default:
		return fmt.Errorf("unknown query.mode %q (expected json or html)", q.Mode)
	}

	if q.Value == "" {
		return errors.New("query.value is required")
	}

	return nil
}

func (c *Config) validateChannel(i int) error {
	ch := &c.Channels[i]

	expand := func(field string, value *string) error {
		expanded, err := expandEnvVars(*value)
		if err != nil {
			return fmt.Errorf("channels[%d] (%s): %s: %w", i, ch.Type, field, err)
		}
		*value = expanded
		return nil
	}

	switch ch.Type {
	case "discord":
		if ch.WebhookURL == "" {
			return fmt.Errorf("channels[%d]: discord channels require webhook_url", i)
		}
		if err := expand("webhook_url", &ch.WebhookURL); err != nil {
			return err
		}

	case "webhook":
		if ch.URL == "" {
			return fmt.Errorf("channels[%d]: webhook channels require url", i)
		}
		if err := expand("url", &ch.URL); err != nil {
			return err
		}
		for k := range ch.Headers {
			v := ch.Headers[k]
			if err := expand("headers["+k+"]", &v); err != nil {
				return err
			}
			ch.Headers[k] = v
		}

	case "email":
		if ch.Host == "" || ch.Port == 0 || ch.From == "" || len(ch.To) == 0 {
			return fmt.Errorf("channels[%d]: email channels require host, port, from, and to", i)
		}
		if err := expand("username", &ch.Username); err != nil {
			return err
		}
		if err := expand("password", &ch.Password); err != nil {
			return err
		}

	case "":
		return fmt.Errorf("channels[%d]: type is required", i)
	default:
		return fmt.Errorf("channels[%d]: unknown type %q (expected discord, webhook, or email)", i, ch.Type)
	}

	return nil
}
