// Package knowledge defines the records archived after task and project runs.
package knowledge

import "time"

// Content types
const (
	ContentTaskResult    = "task_result"
	ContentProjectOutput = "project_output"
)

// Source types
const (
	SourceTask    = "task"
	SourceProject = "project"
)

// MinContentLength is the shortest task output worth archiving.
const MinContentLength = 10

// Entry is one archived piece of knowledge.
type Entry struct {
	ID          string
	Title       string
	Content     string
	ContentType string
	SourceType  string
	SourceID    string
	AgentType   string
	Tags        []string
	Metadata    map[string]any
	TokenCount  int
	CreatedAt   time.Time
}
