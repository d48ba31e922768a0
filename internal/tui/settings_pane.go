package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agency/internal/config"
)

// SettingsModel is the `agency settings` form. It edits execution settings and
// one agent role, then saves to the global or project config file.
type SettingsModel struct {
	form        *huh.Form
	config      *config.AgencyConfig
	globalPath  string
	projectPath string
	width       int
	height      int
	saved       bool
	savedPath   string
	err         error

	// Form field bindings (strings for Huh)
	saveTarget  string
	role        string
	provider    string
	model       string
	temperature string
	maxRetries  string
	retryDelay  string
	concurrency string
}

// NewSettingsModel creates the settings form for cfg.
func NewSettingsModel(cfg *config.AgencyConfig, globalPath, projectPath string) *SettingsModel {
	roles := cfg.Roles()
	m := &SettingsModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		saveTarget:  "project",
		maxRetries:  strconv.Itoa(cfg.Execution.MaxRetries),
		retryDelay:  strconv.Itoa(cfg.Execution.RetryDelaySeconds),
		concurrency: strconv.Itoa(cfg.Execution.Concurrency),
	}
	if len(roles) > 0 {
		m.role = roles[0]
	}
	m.buildForm(roles)
	return m
}

func (m *SettingsModel) buildForm(roles []string) {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.agency/config.json)", "global"),
					huh.NewOption("Project (.agency/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("maxRetries").
				Title("Max Retries").
				Value(&m.maxRetries).
				Validate(nonNegativeInt),

			huh.NewInput().
				Key("retryDelay").
				Title("Base Retry Delay (seconds)").
				Value(&m.retryDelay).
				Validate(nonNegativeInt),

			huh.NewInput().
				Key("concurrency").
				Title("Concurrency (0 = unbounded)").
				Value(&m.concurrency).
				Validate(nonNegativeInt),
		).Title("Execution"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("role").
				Title("Agent Role").
				Options(huh.NewOptions(roles...)...).
				Value(&m.role),

			huh.NewInput().
				Key("provider").
				Title("Provider (blank keeps current)").
				Value(&m.provider).
				Validate(m.knownProvider),

			huh.NewInput().
				Key("model").
				Title("Model (blank keeps current)").
				Value(&m.model),

			huh.NewInput().
				Key("temperature").
				Title("Temperature 0-1 (blank keeps current)").
				Value(&m.temperature).
				Validate(optionalUnitFloat),
		).Title("Agent"),
	)
}

// Init initializes the settings form.
func (m *SettingsModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings form.
func (m *SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form = m.form.WithWidth(max(msg.Width-8, 20))
	case tea.KeyMsg:
		if msg.String() == KeyEsc || msg.String() == KeyCtrlC {
			// Cancel without saving
			return m, tea.Quit
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.save()
		return m, tea.Quit
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

func (m *SettingsModel) save() {
	if err := m.applyFormToConfig(); err != nil {
		m.err = err
		return
	}

	target := m.globalPath
	if m.saveTarget == "project" {
		target = m.projectPath
	}
	if err := config.Save(m.config, target); err != nil {
		m.err = err
		return
	}
	m.saved = true
	m.savedPath = target
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsModel) applyFormToConfig() error {
	var err error
	if m.config.Execution.MaxRetries, err = strconv.Atoi(m.maxRetries); err != nil {
		return fmt.Errorf("max retries: %w", err)
	}
	if m.config.Execution.RetryDelaySeconds, err = strconv.Atoi(m.retryDelay); err != nil {
		return fmt.Errorf("retry delay: %w", err)
	}
	if m.config.Execution.Concurrency, err = strconv.Atoi(m.concurrency); err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}

	agent, ok := m.config.Agents[m.role]
	if !ok {
		return nil
	}
	if m.provider != "" {
		agent.Provider = m.provider
	}
	if m.model != "" {
		agent.Model = m.model
	}
	if m.temperature != "" {
		if agent.Temperature, err = strconv.ParseFloat(m.temperature, 64); err != nil {
			return fmt.Errorf("temperature: %w", err)
		}
	}
	m.config.Agents[m.role] = agent
	return m.config.Validate()
}

// Result reports where the settings were saved, or the save error.
func (m *SettingsModel) Result() (path string, saved bool, err error) {
	return m.savedPath, m.saved, m.err
}

// View renders the settings form.
func (m *SettingsModel) View() string {
	var content string
	switch {
	case m.saved:
		content = StyleStatusComplete.Render("✓ Settings saved to " + m.savedPath)
	case m.err != nil:
		content = StyleStatusFailed.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	default:
		content = m.form.View()
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, StyleFocusedBorder.Padding(1, 2).Render(content))
}

func (m *SettingsModel) knownProvider(s string) error {
	if s == "" {
		return nil
	}
	if _, ok := m.config.Providers[s]; !ok {
		return fmt.Errorf("unknown provider %q", s)
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 0 {
		return fmt.Errorf("must be >= 0")
	}
	return nil
}

func optionalUnitFloat(s string) error {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return fmt.Errorf("must be a number between 0 and 1")
	}
	return nil
}
