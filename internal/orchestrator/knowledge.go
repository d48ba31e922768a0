package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aristath/agency/internal/agent"
	"github.com/aristath/agency/internal/knowledge"
	"github.com/aristath/agency/internal/scheduler"
)

const (
	maxSummaryTasks   = 20
	maxSummarySnippet = 200
)

// taskKnowledge builds the archive entry for a completed task.
// Outputs too short to be useful are skipped.
func taskKnowledge(task *scheduler.Task, tokens int, elapsed time.Duration) (knowledge.Entry, bool) {
	output := renderOutput(task.Output)
	if len(output) < knowledge.MinContentLength {
		return knowledge.Entry{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	fmt.Fprintf(&b, "Agent: %s\n", task.AgentRole)
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Description)
	}
	fmt.Fprintf(&b, "\nOutput:\n%s\n", output)

	priority := string(task.Priority)
	if priority == "" {
		priority = string(scheduler.PriorityNormal)
	}

	return knowledge.Entry{
		Title:       "Task Result: " + task.Title,
		Content:     b.String(),
		ContentType: knowledge.ContentTaskResult,
		SourceType:  knowledge.SourceTask,
		SourceID:    task.ID,
		AgentType:   task.AgentRole,
		Tags:        []string{task.AgentRole, priority, knowledge.ContentTaskResult},
		Metadata: map[string]any{
			"project_id":  task.ProjectID,
			"tokens_used": tokens,
			"duration_ms": elapsed.Milliseconds(),
		},
		TokenCount: agent.EstimateTokens(b.String()),
	}, true
}

// projectKnowledge builds the archive entry summarising a finished project.
func projectKnowledge(project *scheduler.Project, tasks []*scheduler.Task, result *ProjectResult) knowledge.Entry {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Tasks: %d completed, %d failed of %d\n", result.CompletedTasks, result.FailedTasks, result.TotalTasks)
	fmt.Fprintf(&b, "Tokens used: %d\n", result.TotalTokens)

	if len(tasks) > 0 {
		b.WriteString("\nTask summary:\n")
	}
	for i, t := range tasks {
		if i == maxSummaryTasks {
			fmt.Fprintf(&b, "... and %d more\n", len(tasks)-maxSummaryTasks)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)", t.Status, t.Title, t.AgentRole)
		if snippet := truncate(renderOutput(t.Output), maxSummarySnippet); snippet != "" {
			fmt.Fprintf(&b, ": %s", snippet)
		}
		b.WriteString("\n")
	}

	agents := make([]string, 0, len(result.ByAgent))
	for role := range result.ByAgent {
		agents = append(agents, role)
	}
	sort.Strings(agents)

	return knowledge.Entry{
		Title:       "Project: " + project.Name,
		Content:     b.String(),
		ContentType: knowledge.ContentProjectOutput,
		SourceType:  knowledge.SourceProject,
		SourceID:    project.ID,
		Tags:        append([]string{knowledge.ContentProjectOutput, string(result.Status)}, agents...),
		Metadata: map[string]any{
			"total_tasks":     result.TotalTasks,
			"completed_tasks": result.CompletedTasks,
			"failed_tasks":    result.FailedTasks,
			"total_tokens":    result.TotalTokens,
			"waves":           result.Waves,
		},
		TokenCount: agent.EstimateTokens(b.String()),
	}
}

// archive stores an entry, logging instead of failing.
func archive(ctx context.Context, sink KnowledgeSink, logger *slog.Logger, entry knowledge.Entry) {
	if sink == nil {
		return
	}
	if err := sink.Store(ctx, entry); err != nil {
		logger.Warn("failed to archive knowledge", "source_type", entry.SourceType, "source_id", entry.SourceID, "error", err)
	}
}

func renderOutput(output map[string]any) string {
	if len(output) == 0 {
		return ""
	}
	if resp, ok := output["response"].(string); ok && len(output) == 1 {
		return resp
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprint(output)
	}
	return string(data)
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i] + "..."
		}
		runes++
	}
	return s
}
