// Package planfile reads project plans (a project plus its task graph) from YAML.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aristath/agency/internal/scheduler"
)

// Plan is the on-disk form of a decomposed project.
type Plan struct {
	Project ProjectSpec `yaml:"project"`
	Tasks   []TaskSpec  `yaml:"tasks"`
}

// ProjectSpec describes the project.
type ProjectSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
}

// TaskSpec describes one task.
type TaskSpec struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	Description     string         `yaml:"description"`
	Agent           string         `yaml:"agent"`
	Priority        string         `yaml:"priority"`
	DependsOn       []string       `yaml:"depends_on"`
	EstimatedTokens int            `yaml:"estimated_tokens"`
	Input           map[string]any `yaml:"input"`
}

// ReadFile parses the plan at path.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a plan strictly; unknown fields are errors.
func Parse(data []byte) (*Plan, error) {
	var plan Plan

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("plan is empty")
		}
		return nil, fmt.Errorf("YAML decode error: %w", err)
	}

	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &plan, nil
}

func (p *Plan) validate() error {
	if p.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if !validPriority(p.Project.Priority) {
		return fmt.Errorf("project: unknown priority %q", p.Project.Priority)
	}

	seen := make(map[string]bool, len(p.Tasks))
	for i, t := range p.Tasks {
		switch {
		case t.Title == "":
			return fmt.Errorf("task %d: title is required", i+1)
		case t.Agent == "":
			return fmt.Errorf("task %d (%s): agent is required", i+1, t.Title)
		case !validPriority(t.Priority):
			return fmt.Errorf("task %d (%s): unknown priority %q", i+1, t.Title, t.Priority)
		}
		if t.ID != "" {
			if seen[t.ID] {
				return fmt.Errorf("duplicate task id %q", t.ID)
			}
			seen[t.ID] = true
		}
	}
	return nil
}

// Build converts the plan into a project and its tasks. Missing IDs are
// generated; the project starts in planning status.
func (p *Plan) Build() (*scheduler.Project, []*scheduler.Task) {
	projectID := p.Project.ID
	if projectID == "" {
		projectID = uuid.NewString()
	}

	project := &scheduler.Project{
		ID:          projectID,
		Name:        p.Project.Name,
		Description: p.Project.Description,
		Status:      scheduler.ProjectPlanning,
		Priority:    priorityOf(p.Project.Priority),
	}

	tasks := make([]*scheduler.Task, len(p.Tasks))
	for i, t := range p.Tasks {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		tasks[i] = &scheduler.Task{
			ID:              id,
			ProjectID:       projectID,
			Title:           t.Title,
			Description:     t.Description,
			AgentRole:       t.Agent,
			Status:          scheduler.TaskPending,
			Priority:        priorityOf(t.Priority),
			DependsOn:       append([]string(nil), t.DependsOn...),
			EstimatedTokens: t.EstimatedTokens,
			Input:           t.Input,
		}
	}
	return project, tasks
}

func validPriority(p string) bool {
	switch scheduler.Priority(p) {
	case "", scheduler.PriorityCritical, scheduler.PriorityHigh, scheduler.PriorityNormal, scheduler.PriorityLow:
		return true
	}
	return false
}

func priorityOf(p string) scheduler.Priority {
	if p == "" {
		return scheduler.PriorityNormal
	}
	return scheduler.Priority(p)
}
