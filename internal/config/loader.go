package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*AgencyConfig, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GlobalPath returns ~/.agency/config.json.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".agency", "config.json"), nil
}

// ProjectPath is the project config path relative to the working directory.
const ProjectPath = ".agency/config.json"

// fileConfig mirrors AgencyConfig with pointer sections so absent sections
// leave the base untouched.
type fileConfig struct {
	Execution *ExecutionConfig          `json:"execution"`
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Database  *DatabaseConfig           `json:"database"`
	Logging   *LoggingConfig            `json:"logging"`
	Telemetry *TelemetryConfig          `json:"telemetry"`
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Map entries replace base entries by key; present sections are decoded over the base.
func mergeConfigFile(base *AgencyConfig, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Sections decode on top of copies of the base so unset fields keep their values
	loaded := fileConfig{
		Execution: ptr(base.Execution),
		Database:  ptr(base.Database),
		Logging:   ptr(base.Logging),
		Telemetry: ptr(base.Telemetry),
	}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Execution != nil {
		base.Execution = *loaded.Execution
	}
	if loaded.Database != nil {
		base.Database = *loaded.Database
	}
	if loaded.Logging != nil {
		base.Logging = *loaded.Logging
	}
	if loaded.Telemetry != nil {
		base.Telemetry = *loaded.Telemetry
	}

	// Merge providers
	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}

	// Merge agents
	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}

	return nil
}

// Validate checks that every agent references a known provider and numeric settings are sane.
func (c *AgencyConfig) Validate() error {
	if c.Execution.MaxRetries < 0 {
		return fmt.Errorf("execution.max_retries must be >= 0, got %d", c.Execution.MaxRetries)
	}
	if c.Execution.RetryDelaySeconds < 0 {
		return fmt.Errorf("execution.retry_delay_seconds must be >= 0, got %d", c.Execution.RetryDelaySeconds)
	}
	if c.Execution.Concurrency < 0 {
		return fmt.Errorf("execution.concurrency must be >= 0, got %d", c.Execution.Concurrency)
	}

	for name, p := range c.Providers {
		switch p.Type {
		case ProviderAnthropic:
		case ProviderCommand:
			if p.Command == "" {
				return fmt.Errorf("provider %q: command is required", name)
			}
		default:
			return fmt.Errorf("provider %q: unknown type %q", name, p.Type)
		}
	}

	for _, role := range c.Roles() {
		a := c.Agents[role]
		if _, ok := c.Providers[a.Provider]; !ok {
			return fmt.Errorf("agent %q references unknown provider %q", role, a.Provider)
		}
	}
	return nil
}

// Roles returns the configured agent roles in sorted order.
func (c *AgencyConfig) Roles() []string {
	roles := make([]string, 0, len(c.Agents))
	for role := range c.Agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// RetryDelay returns the base retry delay.
func (e ExecutionConfig) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelaySeconds) * time.Second
}

// BreakerTimeout returns how long a tripped breaker stays open.
func (e ExecutionConfig) BreakerTimeout() time.Duration {
	return time.Duration(e.BreakerTimeoutSeconds) * time.Second
}

func ptr[T any](v T) *T { return &v }
