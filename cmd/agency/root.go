package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aristath/agency/internal/config"
)

var (
	globalConfigPath  string
	projectConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "agency",
	Short: "Run task graphs through specialist AI agents",
	Long: `agency executes projects: sets of tasks with declared dependencies, each
assigned to an agent role. Tasks run wave by wave, independent tasks in
parallel, with retries, a per-role circuit breaker and an audit trail of
every agent invocation.

Typical flow:
  agency load plan.yaml     # store a project and its tasks
  agency plan <project>     # show the execution waves
  agency run <project>      # execute (add --watch for a live view)
  agency status <project>`,
	SilenceUsage: true,
}

func init() {
	defaultGlobal, _ := config.GlobalPath()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalConfigPath, "global-config", defaultGlobal, "Global config file")
	flags.StringVar(&projectConfigPath, "config", config.ProjectPath, "Project config file")
	flags.String("db", "", "SQLite database path")
	flags.Int("max-retries", 0, "Retries after the first failed attempt")
	flags.Int("retry-delay", 0, "Base retry delay in seconds (doubles per retry)")
	flags.Int("concurrency", 0, "Max parallel tasks per wave (0 = unbounded)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")

	// Flags and AGENCY_* environment variables override the config files
	_ = viper.BindPFlag("database.path", flags.Lookup("db"))
	_ = viper.BindPFlag("execution.max_retries", flags.Lookup("max-retries"))
	_ = viper.BindPFlag("execution.retry_delay_seconds", flags.Lookup("retry-delay"))
	_ = viper.BindPFlag("execution.concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	viper.SetEnvPrefix("AGENCY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(settingsCmd)
}

// loadConfig merges the config files and applies flag and environment overrides.
func loadConfig() (*config.AgencyConfig, error) {
	cfg, err := config.Load(globalConfigPath, projectConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.AgencyConfig, v *viper.Viper) {
	if v.IsSet("database.path") && v.GetString("database.path") != "" {
		cfg.Database.Path = v.GetString("database.path")
	}
	if v.IsSet("execution.max_retries") {
		cfg.Execution.MaxRetries = v.GetInt("execution.max_retries")
	}
	if v.IsSet("execution.retry_delay_seconds") {
		cfg.Execution.RetryDelaySeconds = v.GetInt("execution.retry_delay_seconds")
	}
	if v.IsSet("execution.concurrency") {
		cfg.Execution.Concurrency = v.GetInt("execution.concurrency")
	}
	if v.IsSet("logging.level") && v.GetString("logging.level") != "" {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") && v.GetString("logging.format") != "" {
		cfg.Logging.Format = v.GetString("logging.format")
	}
}
