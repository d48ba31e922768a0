package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agency/internal/scheduler"
)

var queryJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show a project's status and task counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		return showStatus(cmd.Context(), a, args[0], os.Stdout, queryJSON)
	},
}

func showStatus(ctx context.Context, a *app, projectID string, w io.Writer, asJSON bool) error {
	report, err := a.projects.Status(ctx, projectID)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, report)
	}

	c := color.New(projectStatusColor(report.Status), color.Bold)
	fmt.Fprintf(w, "%s (%s): %s\n", report.Name, report.ProjectID, c.Sprint(report.Status))
	for _, s := range scheduler.TaskStatuses {
		fmt.Fprintf(w, "  %-12s %d\n", s, report.TaskCounts[s])
	}
	fmt.Fprintf(w, "  %-12s %d\n", "total", report.TotalTasks)
	if report.Error != "" {
		fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), report.Error)
	}
	return nil
}

var progressCmd = &cobra.Command{
	Use:   "progress <project-id>",
	Short: "Show completion percentage, token usage and tasks per agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		return showProgress(cmd.Context(), a, args[0], os.Stdout, queryJSON)
	},
}

func showProgress(ctx context.Context, a *app, projectID string, w io.Writer, asJSON bool) error {
	report, err := a.projects.Progress(ctx, projectID)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, report)
	}

	fmt.Fprintf(w, "%s (%s): %.2f%% complete\n", report.Name, report.ProjectID, report.ProgressPercentage)
	fmt.Fprintf(w, "  completed %d, failed %d, in progress %d, pending %d (of %d)\n",
		report.CompletedTasks, report.FailedTasks, report.InProgressTasks, report.PendingTasks, report.TotalTasks)
	fmt.Fprintf(w, "  tokens: %d actual / %d estimated\n", report.ActualTokens, report.EstimatedTokens)

	roles := make([]string, 0, len(report.TasksByAgent))
	for role := range report.TasksByAgent {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(w, "\n%s\n", color.New(color.Bold).Sprint(role))
		for _, t := range report.TasksByAgent[role] {
			c := color.New(taskStatusColor(t.Status))
			fmt.Fprintf(w, "  %s %s  %s\n", c.Sprint(statusSymbol(t.Status)), t.ID, t.Title)
		}
	}
	return nil
}

var executionsCmd = &cobra.Command{
	Use:   "executions <task-id>",
	Short: "List the audit records of a task's agent invocations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		execs, err := a.runner.ListExecutions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if queryJSON {
			return printJSON(os.Stdout, execs)
		}
		if len(execs) == 0 {
			fmt.Println("No executions recorded.")
			return nil
		}

		t := newTable("ID", "Agent", "Status", "Attempts", "Tokens", "Duration", "Created", "Error")
		for _, e := range execs {
			t.Row(e.ID, e.AgentRole, string(e.Status), strconv.Itoa(e.Attempts), strconv.Itoa(e.TokensUsed),
				(time.Duration(e.DurationMs) * time.Millisecond).String(), e.CreatedAt.Format(time.DateTime), oneLine(e.Error, 60))
		}
		fmt.Println(t)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		return listProjects(cmd.Context(), a, os.Stdout, queryJSON)
	},
}

func listProjects(ctx context.Context, a *app, w io.Writer, asJSON bool) error {
	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, projects)
	}
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects. Use 'agency load <plan.yaml>' to add one.")
		return nil
	}

	t := newTable("ID", "Name", "Status", "Priority", "Created")
	for _, p := range projects {
		t.Row(p.ID, p.Name, string(p.Status), string(p.Priority), p.CreatedAt.Format(time.DateTime))
	}
	fmt.Fprintln(w, t)
	return nil
}

var planCmd = &cobra.Command{
	Use:   "plan <project-id>",
	Short: "Show the execution waves of a project without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.store.ListProjectTasks(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("Project has no tasks.")
			return nil
		}
		if _, err := scheduler.Validate(tasks); err != nil {
			warnf("%v", err)
		}

		byID := make(map[string]*scheduler.Task, len(tasks))
		for _, t := range tasks {
			byID[t.ID] = t
		}

		waves := scheduler.NewPlanner(a.logger).Plan(tasks)
		for i, wave := range waves {
			fmt.Printf("%s\n", color.New(color.Bold).Sprintf("Wave %d (%d tasks)", i+1, len(wave)))
			for _, id := range wave {
				t := byID[id]
				line := fmt.Sprintf("%s  %s [%s]", t.ID, t.Title, t.AgentRole)
				if deps := t.Dependencies(); len(deps) > 0 {
					line += "  after " + strings.Join(deps, ", ")
				}
				printStatus(statusSymbol(t.Status), line, taskStatusColor(t.Status))
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, progressCmd, executionsCmd, listCmd} {
		c.Flags().BoolVar(&queryJSON, "json", false, "Print JSON")
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func statusSymbol(s scheduler.TaskStatus) string {
	switch s {
	case scheduler.TaskCompleted:
		return "✓"
	case scheduler.TaskFailed:
		return "✗"
	case scheduler.TaskInProgress:
		return "⟳"
	default:
		return "○"
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
