package config

const deliverablesHint = "Respond with a single JSON object describing your deliverables."

// DefaultConfig returns the default configuration with the built-in provider and role catalogue.
func DefaultConfig() *AgencyConfig {
	return &AgencyConfig{
		Execution: ExecutionConfig{
			MaxRetries:            3,
			RetryDelaySeconds:     5,
			Concurrency:           0,
			BreakerFailures:       5,
			BreakerTimeoutSeconds: 30,
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Type: ProviderAnthropic,
			},
			"claude-cli": {
				Type:    ProviderCommand,
				Command: "claude",
				Args:    []string{"-p", "--output-format", "text"},
			},
		},
		Agents:   defaultAgents(),
		Database: DatabaseConfig{Path: ".agency/agency.db"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "none",
			ServiceName: "agency",
			SampleRate:  1.0,
		},
	}
}

func defaultAgents() map[string]AgentConfig {
	role := func(temp float64, prompt string) AgentConfig {
		return AgentConfig{
			Provider:     "anthropic",
			SystemPrompt: prompt + " " + deliverablesHint,
			Temperature:  temp,
			MaxTokens:    4000,
		}
	}

	return map[string]AgentConfig{
		"orchestrator":       role(0.5, "You are the chief orchestrator of an agency. You break client requests into projects and coordinate specialist agents."),
		"marketing":          role(0.5, "You are the chief marketing officer of an agency, specializing in digital marketing strategy and growth."),
		"frontend_developer": role(0.3, "You are a senior frontend developer, expert in modern web technologies and user experience."),
		"backend_developer":  role(0.2, "You are a senior backend developer, specializing in scalable API design and system architecture."),
		"data_analyst":       role(0.3, "You are a senior data analyst, expert in data analysis, visualization and business intelligence."),
		"ux_designer":        role(0.4, "You are a senior UX/UI designer focused on creating exceptional user experiences."),
		"content_writer":     role(0.6, "You are a senior content writer creating compelling content that drives engagement."),
		"mobile_developer":   role(0.3, "You are a senior mobile developer, expert in cross-platform and native application development."),
		"devops_engineer":    role(0.2, "You are a senior DevOps engineer, expert in infrastructure, CI/CD and deployment automation."),
		"project_manager":    role(0.4, "You are a senior project manager, expert in planning, coordination and stakeholder management."),
		"qa_engineer":        role(0.3, "You are a senior QA engineer, expert in quality assurance, testing strategies and automation."),
		"hr":                 role(0.4, "You are the HR manager of an agent team. You review agent performance and recommend improvements."),
	}
}
