package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/aristath/agency/internal/agent"
	"github.com/aristath/agency/internal/config"
	"github.com/aristath/agency/internal/events"
	"github.com/aristath/agency/internal/orchestrator"
	"github.com/aristath/agency/internal/persistence"
	"github.com/aristath/agency/internal/telemetry"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg      *config.AgencyConfig
	logger   *slog.Logger
	store    *persistence.SQLiteStore
	tel      *telemetry.Provider
	bus      *events.Bus
	agents   *agent.Registry
	runner   *orchestrator.TaskRunner
	projects *orchestrator.ProjectOrchestrator
	logFile  *os.File
}

// appOptions adjusts wiring per command.
type appOptions struct {
	// logToFile sends logs next to the database instead of stderr (used by the TUI).
	logToFile bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a := &app{cfg: cfg, bus: events.NewBus()}

	var logOut io.Writer = os.Stderr
	if opts.logToFile {
		path := filepath.Join(filepath.Dir(cfg.Database.Path), "agency.log")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		a.logFile = f
		logOut = f
	}
	a.logger = telemetry.NewLogger(logOut, cfg.Logging.Level, cfg.Logging.Format)

	a.tel, err = telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	a.store, err = persistence.NewSQLiteStore(ctx, cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.agents = buildRegistry(cfg, procs, a.logger)
	a.wire()

	return a, nil
}

// wire builds the runner and the project orchestrator over the app's store,
// agents, bus and telemetry.
func (a *app) wire() {
	cfg := a.cfg
	a.runner = orchestrator.NewTaskRunner(orchestrator.RunnerConfig{
		Tasks:      a.store,
		Executions: a.store,
		Agents:     a.agents,
		Events:     a.bus,
		Knowledge:  a.store,
		Logger:     a.logger,
		Telemetry:  a.tel,
		Retry: orchestrator.RetryPolicy{
			MaxRetries: cfg.Execution.MaxRetries,
			BaseDelay:  cfg.Execution.RetryDelay(),
		},
		Breakers: orchestrator.BreakerSettings{
			ConsecutiveFailures: uint32(max(cfg.Execution.BreakerFailures, 0)),
			OpenTimeout:         cfg.Execution.BreakerTimeout(),
		},
		Concurrency: cfg.Execution.Concurrency,
	})

	a.projects = orchestrator.NewProjectOrchestrator(orchestrator.ProjectConfig{
		Projects:  a.store,
		Tasks:     a.store,
		Runner:    a.runner,
		Events:    a.bus,
		Knowledge: a.store,
		Logger:    a.logger,
		Telemetry: a.tel,
	})
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("failed to close store", "error", err)
		}
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(context.Background()); err != nil && a.logger != nil {
			a.logger.Warn("failed to shut down telemetry", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// buildRegistry recruits one capability per configured role. Roles whose
// provider cannot be built are skipped; their tasks fail with a configuration error.
func buildRegistry(cfg *config.AgencyConfig, pm *agent.ProcessManager, logger *slog.Logger) *agent.Registry {
	registry := agent.NewRegistry()

	var skipped []string
	for _, role := range cfg.Roles() {
		ac := cfg.Agents[role]
		pc := cfg.Providers[ac.Provider]

		var (
			capability agent.Capability
			err        error
		)
		switch pc.Type {
		case config.ProviderAnthropic:
			capability, err = agent.NewAnthropicAgent(agent.AnthropicConfig{
				APIKey:       pc.APIKey,
				BaseURL:      pc.BaseURL,
				Model:        ac.Model,
				SystemPrompt: ac.SystemPrompt,
				Temperature:  ac.Temperature,
				MaxTokens:    ac.MaxTokens,
			})
		case config.ProviderCommand:
			capability, err = agent.NewCommandAgent(agent.CommandConfig{
				Command:      pc.Command,
				Args:         pc.Args,
				SystemPrompt: ac.SystemPrompt,
				Env:          envList(pc.Env),
			}, pm)
		default:
			err = fmt.Errorf("unknown provider type %q", pc.Type)
		}
		if err != nil {
			logger.Debug("agent role not available", "agent", role, "provider", ac.Provider, "error", err)
			skipped = append(skipped, role)
			continue
		}

		if err := registry.Register(role, capability); err != nil {
			logger.Warn("failed to register agent", "agent", role, "error", err)
		}
	}
	if len(skipped) > 0 {
		logger.Warn("some agent roles are unavailable", "roles", skipped)
	}

	return registry
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
