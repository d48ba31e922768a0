package events

import (
	"encoding/json"
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe("proj-1", 10)

	bus.Publish("proj-1", TaskEvent(TypeTaskStarted, "proj-1", "task-1", "backend_developer", "in_progress", nil))

	select {
	case received := <-ch:
		if received.TaskID != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID)
		}
		if received.Type != TypeTaskStarted {
			t.Errorf("expected event type '%s', got '%s'", TypeTaskStarted, received.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1 := bus.Subscribe("proj-1", 10)
	ch2 := bus.Subscribe("proj-1", 10)

	bus.Publish("proj-1", TaskEvent(TypeTaskCompleted, "proj-1", "task-2", "qa_engineer", "completed", nil))

	for i, ch := range []<-chan Envelope{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID != "task-2" {
				t.Errorf("subscriber %d: expected task ID 'task-2', got '%s'", i+1, received.TaskID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestProjectIsolation verifies a project subscription never sees other projects' events.
func TestProjectIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	mine := bus.Subscribe("proj-1", 10)
	all := bus.SubscribeAll(10)

	bus.Publish("proj-2", ProjectEvent(TypeProjectStarted, "proj-2", "in_progress", nil))

	select {
	case e := <-mine:
		t.Fatalf("unexpected event for other project: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case e := <-all:
		if e.ProjectID != "proj-2" {
			t.Errorf("expected project 'proj-2', got '%s'", e.ProjectID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("SubscribeAll did not receive event")
	}
}

// TestPublishFillsProjectID verifies the publish key is stamped onto bare envelopes.
func TestPublishFillsProjectID(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe("proj-9", 1)
	bus.Publish("proj-9", Envelope{Type: TypeProjectCompleted})

	e := <-ch
	if e.ProjectID != "proj-9" {
		t.Errorf("ProjectID = %q, want proj-9", e.ProjectID)
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Subscribe with buffer size 1
	ch := bus.Subscribe("proj-1", 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish("proj-1", TaskEvent(TypeTaskStarted, "proj-1", "task", "hr", "in_progress", nil))
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("publish blocked on full channel")
	}

	if len(ch) != 1 {
		t.Errorf("expected 1 buffered event, got %d", len(ch))
	}
	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
}

// TestCloseIdempotent verifies Close can be called repeatedly and closes subscribers.
func TestCloseIdempotent(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe("proj-1", 1)
	all := bus.SubscribeAll(1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected project channel to be closed")
	}
	if _, ok := <-all; ok {
		t.Error("expected SubscribeAll channel to be closed")
	}

	// Publishing after close must not panic
	bus.Publish("proj-1", Envelope{Type: TypeProjectFailed})

	late := bus.Subscribe("proj-1", 1)
	if _, ok := <-late; ok {
		t.Error("expected subscription after close to be closed")
	}
}

// TestProgressRoundTrip verifies progress payloads survive a JSON hop.
func TestProgressRoundTrip(t *testing.T) {
	p := Progress{Wave: 1, TotalWaves: 2, TasksDone: 2, TasksFailed: 0, TotalTasks: 4}
	env := ProgressEvent("proj-1", p)

	if pct := env.Data["progress_percentage"].(float64); pct != 50 {
		t.Errorf("progress_percentage = %v, want 50", pct)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, ok := ProgressOf(decoded)
	if !ok {
		t.Fatal("ProgressOf rejected a progress envelope")
	}
	if got != p {
		t.Errorf("ProgressOf = %+v, want %+v", got, p)
	}

	if _, ok := ProgressOf(Envelope{Type: TypeTaskStarted}); ok {
		t.Error("ProgressOf accepted a non-progress envelope")
	}
}

// TestPercentage verifies rounding and the empty-project case.
func TestPercentage(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{3, 3, 100},
	}
	for _, tt := range tests {
		got := Progress{TasksDone: tt.done, TotalTasks: tt.total}.Percentage()
		if got != tt.want {
			t.Errorf("Percentage(%d/%d) = %v, want %v", tt.done, tt.total, got, tt.want)
		}
	}
}
