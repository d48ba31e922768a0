package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/agency/internal/events"
	"github.com/aristath/agency/internal/orchestrator"
	"github.com/aristath/agency/internal/scheduler"
	"github.com/aristath/agency/internal/tui"
)

var runWatch bool

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Execute every task of a project wave by wave",
	Long: `Execute a project. Tasks run in dependency order; tasks within a wave run in
parallel. A failed task does not stop the run, but its dependents fail too.

Exits non-zero unless every task completed.`,
	Args: cobra.ExactArgs(1),
	RunE: runProject,
}

var execParallel bool

var execCmd = &cobra.Command{
	Use:   "exec <task-id>...",
	Short: "Execute individual tasks",
	Long: `Execute one or more tasks with retries and circuit breaking. Each task's
dependencies must already be completed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTasks,
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Reset a task to pending and execute it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.runner.Retry(cmd.Context(), args[0])
		printTaskResult(res)
		return err
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <task-id>",
	Short: "Reset a task to pending, clearing its output and timestamps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.runner.Rollback(cmd.Context(), args[0]); err != nil {
			return err
		}
		printStatus("↺", fmt.Sprintf("%s reset to pending", args[0]), taskStatusColor(scheduler.TaskPending))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Show a live view of the run")
	execCmd.Flags().BoolVarP(&execParallel, "parallel", "p", true, "Run the given tasks concurrently")
}

func runProject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID := args[0]

	a, err := newApp(ctx, appOptions{logToFile: runWatch})
	if err != nil {
		return err
	}
	defer a.Close()

	if !runWatch {
		return executeProject(ctx, a, projectID)
	}
	result, err := watchProject(ctx, a, projectID)
	if err != nil {
		return err
	}
	return reportProject(result)
}

// executeProject runs the project while printing its events. The error is
// non-nil unless every task completed.
func executeProject(ctx context.Context, a *app, projectID string) error {
	wait := followEvents(a.bus.Subscribe(projectID, 0))
	result, err := a.projects.Execute(ctx, projectID)
	a.bus.Close()
	wait()
	if err != nil {
		return err
	}
	return reportProject(result)
}

func reportProject(result *orchestrator.ProjectResult) error {
	printProjectResult(result)
	if result.Status != scheduler.ProjectCompleted {
		return fmt.Errorf("project finished with status %s", result.Status)
	}
	return nil
}

// watchProject runs the project behind the TUI. Quitting the TUI early cancels the run.
func watchProject(ctx context.Context, a *app, projectID string) (*orchestrator.ProjectResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(a.bus, projectID), tea.WithAltScreen(), tea.WithContext(ctx))

	type outcome struct {
		result *orchestrator.ProjectResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := a.projects.Execute(ctx, projectID)
		msg := tui.DoneMsg{Err: err}
		if result != nil {
			msg.Status = string(result.Status)
		}
		p.Send(msg)
		done <- outcome{result, err}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-done
		return nil, fmt.Errorf("running TUI: %w", err)
	}

	cancel()
	out := <-done
	if n := a.bus.Dropped(); n > 0 {
		a.logger.Warn("live view missed events", "dropped", n)
	}
	return out.result, out.err
}

func runTasks(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	wait := followEvents(a.bus.SubscribeAll(0), events.TypeTaskStarted)
	results := a.runner.RunBatch(cmd.Context(), args, execParallel)
	a.bus.Close()
	wait()

	failed := 0
	for _, res := range results {
		printTaskResult(res)
		if !res.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}
	return nil
}
