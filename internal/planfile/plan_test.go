package planfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aristath/agency/internal/scheduler"
)

const websitePlan = `
project:
  id: site
  name: Company website
  description: Marketing site with a contact API
  priority: high
tasks:
  - id: api
    title: Build contact API
    agent: backend_developer
    priority: critical
    estimated_tokens: 2000
    input:
      deliverables: [openapi.yaml, handler code]
      acceptance_criteria: [validates email]
  - id: ui
    title: Build landing page
    agent: frontend_developer
    depends_on: [api]
  - title: Write copy
    agent: content_writer
`

func TestParseAndBuild(t *testing.T) {
	plan, err := Parse([]byte(websitePlan))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	project, tasks := plan.Build()
	if project.ID != "site" || project.Status != scheduler.ProjectPlanning || project.Priority != scheduler.PriorityHigh {
		t.Errorf("unexpected project: %+v", project)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	api := tasks[0]
	if api.Priority != scheduler.PriorityCritical || api.EstimatedTokens != 2000 || api.ProjectID != "site" {
		t.Errorf("unexpected api task: %+v", api)
	}
	deliverables, ok := api.Input["deliverables"].([]any)
	if !ok || len(deliverables) != 2 {
		t.Errorf("expected deliverables list, got %v", api.Input["deliverables"])
	}

	if deps := tasks[1].Dependencies(); len(deps) != 1 || deps[0] != "api" {
		t.Errorf("unexpected ui dependencies: %v", deps)
	}
	if tasks[2].ID == "" || tasks[2].Priority != scheduler.PriorityNormal {
		t.Errorf("expected generated id and default priority, got %+v", tasks[2])
	}

	if _, err := scheduler.Validate(tasks); err != nil {
		t.Errorf("expected plan to validate: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "", "empty"},
		{"missing name", "project: {}\ntasks: []\n", "project.name"},
		{"unknown field", "project: {name: x}\ntasks:\n  - {title: a, agent: b, owner: c}\n", "owner"},
		{"missing agent", "project: {name: x}\ntasks:\n  - {title: a}\n", "agent is required"},
		{"bad priority", "project: {name: x}\ntasks:\n  - {title: a, agent: b, priority: urgent}\n", "unknown priority"},
		{"duplicate id", "project: {name: x}\ntasks:\n  - {id: a, title: a, agent: b}\n  - {id: a, title: b, agent: b}\n", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(websitePlan), 0644); err != nil {
		t.Fatal(err)
	}

	plan, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if plan.Project.Name != "Company website" {
		t.Errorf("unexpected project name %q", plan.Project.Name)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
