package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/fatih/color"

	"github.com/aristath/agency/internal/events"
	"github.com/aristath/agency/internal/orchestrator"
	"github.com/aristath/agency/internal/scheduler"
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func taskStatusColor(s scheduler.TaskStatus) color.Attribute {
	switch s {
	case scheduler.TaskCompleted:
		return color.FgGreen
	case scheduler.TaskFailed:
		return color.FgRed
	case scheduler.TaskInProgress:
		return color.FgYellow
	default:
		return color.FgWhite
	}
}

func projectStatusColor(s scheduler.ProjectStatus) color.Attribute {
	switch s {
	case scheduler.ProjectCompleted:
		return color.FgGreen
	case scheduler.ProjectFailed, scheduler.ProjectCancelled:
		return color.FgRed
	case scheduler.ProjectReview, scheduler.ProjectInProgress:
		return color.FgYellow
	default:
		return color.FgCyan
	}
}

// printTaskResult prints one line for a single task run.
func printTaskResult(res orchestrator.ExecutionResult) {
	switch res.Status {
	case orchestrator.StatusAlreadyCompleted:
		printStatus("=", fmt.Sprintf("%s already completed", res.TaskID), color.FgCyan)
	case orchestrator.StatusSuccess:
		printStatus("✓", fmt.Sprintf("%s completed by %s (%d tokens, %d attempt(s), %s)",
			res.TaskID, res.Agent, res.TokensUsed, res.Attempts, res.Duration.Round(time.Millisecond)), color.FgGreen)
	default:
		printStatus("✗", fmt.Sprintf("%s failed: %s", res.TaskID, res.ErrorMessage()), color.FgRed)
	}
}

// printProjectResult prints the summary of a project run.
func printProjectResult(r *orchestrator.ProjectResult) {
	c := color.New(projectStatusColor(r.Status), color.Bold)
	fmt.Printf("\nProject %s: %s\n", r.ProjectID, c.Sprint(r.Status))
	fmt.Printf("  Tasks:    %d/%d completed (%.2f%%), %d failed\n",
		r.CompletedTasks, r.TotalTasks, r.SuccessRate, r.FailedTasks)
	fmt.Printf("  Waves:    %d\n", r.Waves)
	fmt.Printf("  Tokens:   %d\n", r.TotalTokens)
	fmt.Printf("  Duration: %s\n", r.Duration.Round(time.Millisecond))

	for _, f := range r.Failed {
		printStatus("✗", fmt.Sprintf("%s (%s, %s): %s", f.Title, f.TaskID, f.Agent, f.Error), color.FgRed)
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

// followEvents prints envelopes of the given types (all when none given) until sub
// is closed. The returned func blocks until everything buffered has been printed.
func followEvents(sub <-chan events.Envelope, types ...events.Type) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env := range sub {
			if len(types) == 0 || slices.Contains(types, env.Type) {
				printEvent(env)
			}
		}
	}()
	return func() { <-done }
}

func printEvent(env events.Envelope) {
	title, _ := env.Data["title"].(string)
	switch env.Type {
	case events.TypeTaskStarted:
		printStatus("▶", fmt.Sprintf("%s [%s] attempt %v", title, env.Agent, env.Data["attempt"]), color.FgCyan)
	case events.TypeTaskCompleted:
		printStatus("✓", fmt.Sprintf("%s [%s] %v tokens", title, env.Agent, env.Data["tokens_used"]), color.FgGreen)
	case events.TypeTaskFailed:
		printStatus("✗", fmt.Sprintf("%s [%s] %v", title, env.Agent, env.Data["error"]), color.FgRed)
	case events.TypeProjectProgress:
		if p, ok := events.ProgressOf(env); ok {
			printStatus("»", fmt.Sprintf("wave %d/%d done: %d/%d tasks completed (%.2f%%)",
				p.Wave, p.TotalWaves, p.TasksDone, p.TotalTasks, p.Percentage()), color.FgBlue)
		}
	}
}
