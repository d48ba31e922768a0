package tui

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/agency/internal/config"
	"github.com/aristath/agency/internal/events"
)

func TestModel_FoldsTaskEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	var model tea.Model = New(bus, "p1")
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	feed := []events.Envelope{
		events.TaskEvent(events.TypeTaskStarted, "p1", "a", "backend_developer", "in_progress", map[string]any{"title": "Build API", "attempt": 1}),
		events.TaskEvent(events.TypeTaskStarted, "p1", "b", "qa_engineer", "in_progress", map[string]any{"title": "Test API", "attempt": 1}),
		events.TaskEvent(events.TypeTaskCompleted, "p1", "a", "backend_developer", "completed", map[string]any{"title": "Build API", "tokens_used": 42}),
		events.TaskEvent(events.TypeTaskFailed, "p1", "b", "qa_engineer", "failed", map[string]any{"title": "Test API", "error": "boom"}),
		events.ProgressEvent("p1", events.Progress{Wave: 1, TotalWaves: 2, TasksDone: 1, TasksFailed: 1, TotalTasks: 3}),
	}
	for _, env := range feed {
		model, _ = model.Update(env)
	}

	m := model.(Model)
	a, ok := m.agentPane.Task("a")
	if !ok {
		t.Fatal("expected task a to be tracked")
	}
	if a.Status != stateCompleted || a.Tokens != 42 || a.Title != "Build API" {
		t.Errorf("unexpected state for a: %+v", a)
	}
	b, _ := m.agentPane.Task("b")
	if b.Status != stateFailed || len(b.Log) != 2 {
		t.Errorf("unexpected state for b: %+v", b)
	}

	p := m.dagPane.Progress()
	if p.Wave != 1 || p.TotalWaves != 2 || p.Percentage() != 33.33 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if m.dagPane.running != 0 {
		t.Errorf("expected no running tasks, got %d", m.dagPane.running)
	}

	if view := m.View(); view == "" {
		t.Error("expected non-empty view")
	}
}

func TestModel_DoneAndQuit(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	var model tea.Model = New(bus, "p1")
	model, _ = model.Update(DoneMsg{Status: "completed"})

	d, ok := model.(Model).Done()
	if !ok || d.Status != "completed" {
		t.Errorf("expected done status, got %+v (ok=%v)", d, ok)
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, isQuit := cmd().(tea.QuitMsg); !isQuit {
		t.Error("expected tea.QuitMsg")
	}
}

func TestSettingsModel_Apply(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	m := NewSettingsModel(cfg, filepath.Join(dir, "global.json"), filepath.Join(dir, "project.json"))

	m.role = "qa_engineer"
	m.model = "custom-model"
	m.temperature = "0.7"
	m.maxRetries = "1"
	m.save()

	path, saved, err := m.Result()
	if err != nil || !saved {
		t.Fatalf("expected save, got saved=%v err=%v", saved, err)
	}
	if path != filepath.Join(dir, "project.json") {
		t.Errorf("expected project path, got %s", path)
	}

	loaded, err := config.Load("", path)
	if err != nil {
		t.Fatal(err)
	}
	if a := loaded.Agents["qa_engineer"]; a.Model != "custom-model" || a.Temperature != 0.7 {
		t.Errorf("unexpected agent: %+v", a)
	}
	if loaded.Execution.MaxRetries != 1 {
		t.Errorf("expected max retries 1, got %d", loaded.Execution.MaxRetries)
	}

	if err := nonNegativeInt("-1"); err == nil {
		t.Error("expected error for negative value")
	}
	if err := optionalUnitFloat("1.5"); err == nil {
		t.Error("expected error for temperature above 1")
	}
	if err := m.knownProvider("nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
