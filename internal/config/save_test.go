package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Providers["local"] = ProviderConfig{Type: ProviderCommand, Command: "test-cmd"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded AgencyConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}

	if loaded.Providers["local"].Command != "test-cmd" {
		t.Errorf("Expected provider command 'test-cmd', got '%s'", loaded.Providers["local"].Command)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	// Nested path that doesn't exist yet
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	cfg := &AgencyConfig{
		Providers: map[string]ProviderConfig{},
		Agents:    map[string]AgentConfig{},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Execution.MaxRetries = 1
	cfg.Execution.Concurrency = 4
	cfg.Database.Path = "/tmp/agency-test.db"
	cfg.Logging = LoggingConfig{Level: "debug", Format: "json"}
	cfg.Providers["local"] = ProviderConfig{
		Type:    ProviderCommand,
		Command: "llm",
		Args:    []string{"--prompt", "{prompt}"},
		Env:     map[string]string{"LLM_MODE": "batch"},
	}
	cfg.Agents["backend_developer"] = AgentConfig{
		Provider:     "local",
		Model:        "local-model",
		SystemPrompt: "You write services.",
		Temperature:  0.1,
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Execution.MaxRetries != 1 || loaded.Execution.Concurrency != 4 {
		t.Errorf("Execution mismatch: %+v", loaded.Execution)
	}
	if loaded.Database.Path != "/tmp/agency-test.db" {
		t.Errorf("Database path mismatch: got '%s'", loaded.Database.Path)
	}
	if loaded.Logging.Format != "json" {
		t.Errorf("Logging format mismatch: got '%s'", loaded.Logging.Format)
	}
	if args := loaded.Providers["local"].Args; len(args) != 2 || args[1] != "{prompt}" {
		t.Errorf("Provider args mismatch: got %v", args)
	}
	if loaded.Providers["local"].Env["LLM_MODE"] != "batch" {
		t.Errorf("Provider env mismatch: got %v", loaded.Providers["local"].Env)
	}
	a := loaded.Agents["backend_developer"]
	if a.Model != "local-model" || a.Temperature != 0.1 || a.Provider != "local" {
		t.Errorf("Agent mismatch: %+v", a)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg1 := &AgencyConfig{Database: DatabaseConfig{Path: "first.db"}}
	if err := Save(cfg1, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	cfg2 := &AgencyConfig{Database: DatabaseConfig{Path: "second.db"}}
	if err := Save(cfg2, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded AgencyConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if loaded.Database.Path != "second.db" {
		t.Errorf("Expected 'second.db', got '%s'", loaded.Database.Path)
	}
}

func TestSaveProjectLayout(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ProjectPath)

	cfg := DefaultConfig()
	p := cfg.Providers["anthropic"]
	p.APIKey = "secret"
	cfg.Providers["anthropic"] = p

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	dir, err := os.Stat(filepath.Join(root, ".agency"))
	if err != nil {
		t.Fatalf("expected .agency directory: %v", err)
	}
	if !dir.IsDir() || dir.Mode().Perm() != dirMode {
		t.Errorf("unexpected .agency mode: %v", dir.Mode())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != fileMode {
		t.Errorf("expected mode %v, got %v", fileMode, info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Join(root, ".agency"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.json" {
		t.Errorf("expected only config.json, found %v", entries)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if data[len(data)-1] != '\n' {
		t.Error("expected trailing newline")
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Providers["anthropic"].APIKey != "secret" {
		t.Errorf("API key not persisted: %+v", loaded.Providers["anthropic"])
	}
}
