package config

// Provider types
const (
	ProviderAnthropic = "anthropic" // Anthropic Messages API
	ProviderCommand   = "command"   // External CLI reading the prompt on stdin
)

// ProviderConfig defines a transport layer (API endpoint or CLI command).
// Providers are separate from agents -- multiple agents can share one provider.
type ProviderConfig struct {
	Type    string            `json:"type"`               // "anthropic" or "command"
	Command string            `json:"command,omitempty"`  // CLI binary name for command providers
	Args    []string          `json:"args,omitempty"`     // Default args; "{prompt}" is substituted
	BaseURL string            `json:"base_url,omitempty"` // API base URL override
	APIKey  string            `json:"api_key,omitempty"`  // Falls back to ANTHROPIC_API_KEY
	Env     map[string]string `json:"env,omitempty"`      // Extra environment for command providers
}

// AgentConfig defines a role that uses a specific provider and model.
type AgentConfig struct {
	Provider     string  `json:"provider"`                // Key into Providers map
	Model        string  `json:"model,omitempty"`         // Model override
	SystemPrompt string  `json:"system_prompt,omitempty"` // Role-specific system prompt
	Temperature  float64 `json:"temperature"`             // Sampling temperature (0-1)
	MaxTokens    int     `json:"max_tokens,omitempty"`    // Response token cap
}

// ExecutionConfig controls retries, concurrency and circuit breaking.
type ExecutionConfig struct {
	MaxRetries            int `json:"max_retries"`
	RetryDelaySeconds     int `json:"retry_delay_seconds"`
	Concurrency           int `json:"concurrency"` // 0 = unbounded within a wave
	BreakerFailures       int `json:"breaker_failures"`
	BreakerTimeoutSeconds int `json:"breaker_timeout_seconds"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter,omitempty"` // otlp-http, stdout, none
	Endpoint    string  `json:"endpoint,omitempty"`
	ServiceName string  `json:"service_name,omitempty"`
	SampleRate  float64 `json:"sample_rate,omitempty"`
}

// AgencyConfig is the top-level configuration.
type AgencyConfig struct {
	Execution ExecutionConfig           `json:"execution"`
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Database  DatabaseConfig            `json:"database"`
	Logging   LoggingConfig             `json:"logging"`
	Telemetry TelemetryConfig           `json:"telemetry"`
}
