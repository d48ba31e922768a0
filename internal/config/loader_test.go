package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name            string
		globalConfig    string
		projectConfig   string
		expectProviders int
		expectAgents    int
		checkAgent      string
		expectProvider  string
		expectModel     string
		expectRetries   int
		expectError     bool
	}{
		{
			name:            "No config files - returns defaults",
			expectProviders: 2,
			expectAgents:    12,
			expectRetries:   3,
		},
		{
			name:            "Global only - adds new agent",
			globalConfig:    `{"agents": {"seo_specialist": {"provider": "anthropic", "temperature": 0.4}}}`,
			expectProviders: 2,
			expectAgents:    13,
			checkAgent:      "seo_specialist",
			expectProvider:  "anthropic",
			expectRetries:   3,
		},
		{
			name:            "Project only - overrides agent provider",
			projectConfig:   `{"agents": {"backend_developer": {"provider": "claude-cli"}}}`,
			expectProviders: 2,
			expectAgents:    12,
			checkAgent:      "backend_developer",
			expectProvider:  "claude-cli",
			expectRetries:   3,
		},
		{
			name:            "Project overrides global - project wins",
			globalConfig:    `{"agents": {"qa_engineer": {"provider": "anthropic", "model": "model-x"}}, "execution": {"max_retries": 5}}`,
			projectConfig:   `{"agents": {"qa_engineer": {"provider": "anthropic", "model": "model-y"}}}`,
			expectProviders: 2,
			expectAgents:    12,
			checkAgent:      "qa_engineer",
			expectProvider:  "anthropic",
			expectModel:     "model-y",
			expectRetries:   5,
		},
		{
			name:            "Partial section keeps other fields",
			projectConfig:   `{"execution": {"max_retries": 1}, "providers": {"local": {"type": "command", "command": "llm"}}}`,
			expectProviders: 3,
			expectAgents:    12,
			expectRetries:   1,
		},
		{
			name:          "Unknown provider reference",
			projectConfig: `{"agents": {"designer": {"provider": "missing"}}}`,
			expectError:   true,
		},
		{
			name:          "Command provider without command",
			projectConfig: `{"providers": {"broken": {"type": "command"}}}`,
			expectError:   true,
		},
		{
			name:         "Negative retries",
			globalConfig: `{"execution": {"max_retries": -1}}`,
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != "" {
				globalPath = writeFile(t, tmpDir, "global.json", tt.globalConfig)
			}
			projectPath := ""
			if tt.projectConfig != "" {
				projectPath = writeFile(t, tmpDir, "project.json", tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Providers); got != tt.expectProviders {
				t.Errorf("providers count = %d, want %d", got, tt.expectProviders)
			}
			if got := len(cfg.Agents); got != tt.expectAgents {
				t.Errorf("agents count = %d, want %d", got, tt.expectAgents)
			}
			if cfg.Execution.MaxRetries != tt.expectRetries {
				t.Errorf("max_retries = %d, want %d", cfg.Execution.MaxRetries, tt.expectRetries)
			}
			// Sections merge field by field
			if cfg.Execution.RetryDelaySeconds != 5 {
				t.Errorf("retry_delay_seconds = %d, want 5", cfg.Execution.RetryDelaySeconds)
			}

			if tt.checkAgent != "" {
				agent, exists := cfg.Agents[tt.checkAgent]
				if !exists {
					t.Fatalf("expected agent %q not found", tt.checkAgent)
				}
				if agent.Provider != tt.expectProvider {
					t.Errorf("agent %q provider = %q, want %q", tt.checkAgent, agent.Provider, tt.expectProvider)
				}
				if tt.expectModel != "" && agent.Model != tt.expectModel {
					t.Errorf("agent %q model = %q, want %q", tt.checkAgent, agent.Model, tt.expectModel)
				}
			}
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	globalPath := writeFile(t, t.TempDir(), "global.json", "{invalid json")

	if _, err := Load(globalPath, ""); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}
	if len(cfg.Agents) != 12 {
		t.Errorf("agents count = %d, want 12", len(cfg.Agents))
	}
}

func TestDefaultConfig_RoleCatalogue(t *testing.T) {
	cfg := DefaultConfig()

	roles := cfg.Roles()
	if roles[0] != "backend_developer" {
		t.Errorf("expected sorted roles, first = %q", roles[0])
	}

	tests := []struct {
		role string
		temp float64
	}{
		{"backend_developer", 0.2},
		{"content_writer", 0.6},
		{"marketing", 0.5},
		{"qa_engineer", 0.3},
		{"project_manager", 0.4},
	}
	for _, tt := range tests {
		a, ok := cfg.Agents[tt.role]
		if !ok {
			t.Errorf("missing default role %q", tt.role)
			continue
		}
		if a.Temperature != tt.temp {
			t.Errorf("%s temperature = %v, want %v", tt.role, a.Temperature, tt.temp)
		}
		if a.SystemPrompt == "" || a.MaxTokens != 4000 {
			t.Errorf("%s: expected system prompt and max tokens, got %+v", tt.role, a)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.Execution.RetryDelay() != 5*time.Second || cfg.Execution.BreakerTimeout() != 30*time.Second {
		t.Errorf("unexpected durations: %v %v", cfg.Execution.RetryDelay(), cfg.Execution.BreakerTimeout())
	}
}
