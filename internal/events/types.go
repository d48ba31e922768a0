package events

import (
	"time"
)

// Type discriminates event envelopes.
type Type string

// Event type constants
const (
	TypeTaskStarted      Type = "task_started"
	TypeTaskCompleted    Type = "task_completed"
	TypeTaskFailed       Type = "task_failed"
	TypeProjectStarted   Type = "project_started"
	TypeProjectProgress  Type = "project_progress"
	TypeProjectCompleted Type = "project_completed"
	TypeProjectFailed    Type = "project_failed"
)

// Envelope is the flat record delivered to subscribers. Timestamp marshals as RFC 3339.
type Envelope struct {
	Type      Type           `json:"type"`
	ProjectID string         `json:"project_id"`
	TaskID    string         `json:"task_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Status    string         `json:"status,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TaskEvent builds a task-scoped envelope stamped with the current UTC time.
func TaskEvent(t Type, projectID, taskID, agent, status string, data map[string]any) Envelope {
	return Envelope{
		Type:      t,
		ProjectID: projectID,
		TaskID:    taskID,
		Agent:     agent,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ProjectEvent builds a project-scoped envelope stamped with the current UTC time.
func ProjectEvent(t Type, projectID, status string, data map[string]any) Envelope {
	return Envelope{
		Type:      t,
		ProjectID: projectID,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Progress is the payload of a project_progress envelope.
type Progress struct {
	Wave        int
	TotalWaves  int
	TasksDone   int
	TasksFailed int
	TotalTasks  int
}

// Percentage returns done/total as a percentage rounded to two decimals.
func (p Progress) Percentage() float64 {
	if p.TotalTasks == 0 {
		return 0
	}
	pct := float64(p.TasksDone) / float64(p.TotalTasks) * 100
	return float64(int(pct*100+0.5)) / 100
}

// ProgressEvent builds a project_progress envelope.
func ProgressEvent(projectID string, p Progress) Envelope {
	return ProjectEvent(TypeProjectProgress, projectID, "in_progress", map[string]any{
		"wave":                p.Wave,
		"total_waves":         p.TotalWaves,
		"tasks_done":          p.TasksDone,
		"tasks_failed":        p.TasksFailed,
		"total_tasks":         p.TotalTasks,
		"progress_percentage": p.Percentage(),
	})
}

// ProgressOf decodes the payload of a project_progress envelope.
func ProgressOf(e Envelope) (Progress, bool) {
	if e.Type != TypeProjectProgress {
		return Progress{}, false
	}
	return Progress{
		Wave:        intField(e.Data, "wave"),
		TotalWaves:  intField(e.Data, "total_waves"),
		TasksDone:   intField(e.Data, "tasks_done"),
		TasksFailed: intField(e.Data, "tasks_failed"),
		TotalTasks:  intField(e.Data, "total_tasks"),
	}, true
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
