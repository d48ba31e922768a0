package scheduler

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
)

func quietPlanner() *Planner {
	return NewPlanner(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sortedWave(w Wave) []string {
	out := append([]string(nil), w...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waveIndex maps each task ID to the wave that contains it.
func waveIndex(waves []Wave) map[string]int {
	idx := make(map[string]int)
	for i, w := range waves {
		for _, id := range w {
			idx[id] = i
		}
	}
	return idx
}

// TestPlan_Layers verifies wave layering for common graph shapes.
func TestPlan_Layers(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*Task
		want  [][]string
	}{
		{
			name:  "empty",
			tasks: nil,
			want:  nil,
		},
		{
			name: "independent tasks share wave 0",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B"},
				{ID: "C"},
			},
			want: [][]string{{"A", "B", "C"}},
		},
		{
			name: "linear chain",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B", DependsOn: []string{"A"}},
				{ID: "C", DependsOn: []string{"B"}},
			},
			want: [][]string{{"A"}, {"B"}, {"C"}},
		},
		{
			name: "two parallel chains",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B"},
				{ID: "C", DependsOn: []string{"A"}},
				{ID: "D", DependsOn: []string{"B"}},
			},
			want: [][]string{{"A", "B"}, {"C", "D"}},
		},
		{
			name: "diamond",
			tasks: []*Task{
				{ID: "D", DependsOn: []string{"B", "C"}},
				{ID: "B", DependsOn: []string{"A"}},
				{ID: "C", DependsOn: []string{"A"}},
				{ID: "A"},
			},
			want: [][]string{{"A"}, {"B", "C"}, {"D"}},
		},
		{
			name: "duplicate dependency entries",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B", DependsOn: []string{"A", "A", ""}},
			},
			want: [][]string{{"A"}, {"B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waves := quietPlanner().Plan(tt.tasks)
			if len(waves) != len(tt.want) {
				t.Fatalf("got %d waves %v, want %d", len(waves), waves, len(tt.want))
			}
			for i := range waves {
				if got := sortedWave(waves[i]); !equalStrings(got, tt.want[i]) {
					t.Errorf("wave %d = %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

// TestPlan_DependencyOrdering verifies no task shares or precedes a wave of any dependency.
func TestPlan_DependencyOrdering(t *testing.T) {
	tasks := []*Task{
		{ID: "t1"},
		{ID: "t2", DependsOn: []string{"t1"}},
		{ID: "t3", DependsOn: []string{"t1"}},
		{ID: "t4", DependsOn: []string{"t2", "t3"}},
		{ID: "t5"},
		{ID: "t6", DependsOn: []string{"t5", "t4"}},
		{ID: "t7", DependsOn: []string{"t2"}},
	}

	waves := quietPlanner().Plan(tasks)
	idx := waveIndex(waves)

	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if idx[task.ID] <= idx[dep] {
				t.Errorf("task %s in wave %d, dependency %s in wave %d", task.ID, idx[task.ID], dep, idx[dep])
			}
		}
	}
}

// TestPlan_Totality verifies the union of waves equals the input set with no duplicates.
func TestPlan_Totality(t *testing.T) {
	tasks := []*Task{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"d"}},
		{ID: "d", DependsOn: []string{"c"}},
		{ID: "e", DependsOn: []string{"missing"}},
		{ID: "a"}, // duplicate input entry
	}

	waves := quietPlanner().Plan(tasks)

	seen := make(map[string]int)
	for _, w := range waves {
		for _, id := range w {
			seen[id]++
		}
	}

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if seen[id] != 1 {
			t.Errorf("task %s scheduled %d times, want 1", id, seen[id])
		}
	}
	if len(seen) != 5 {
		t.Errorf("scheduled %d distinct tasks, want 5", len(seen))
	}
}

// TestPlan_CycleGoesToFinalWave verifies cycles terminate with a catch-all wave.
func TestPlan_CycleGoesToFinalWave(t *testing.T) {
	tests := []struct {
		name      string
		tasks     []*Task
		wantWaves int
		wantFinal []string
	}{
		{
			name: "two-task cycle",
			tasks: []*Task{
				{ID: "A", DependsOn: []string{"B"}},
				{ID: "B", DependsOn: []string{"A"}},
			},
			wantWaves: 1,
			wantFinal: []string{"A", "B"},
		},
		{
			name: "self reference",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B", DependsOn: []string{"B"}},
			},
			wantWaves: 2,
			wantFinal: []string{"B"},
		},
		{
			name: "cycle downstream of valid work",
			tasks: []*Task{
				{ID: "root"},
				{ID: "x", DependsOn: []string{"root", "y"}},
				{ID: "y", DependsOn: []string{"x"}},
				{ID: "z", DependsOn: []string{"y"}},
			},
			wantWaves: 2,
			wantFinal: []string{"x", "y", "z"},
		},
		{
			name: "dangling dependency",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B", DependsOn: []string{"ghost"}},
			},
			wantWaves: 2,
			wantFinal: []string{"B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waves := quietPlanner().Plan(tt.tasks)
			if len(waves) != tt.wantWaves {
				t.Fatalf("got %d waves %v, want %d", len(waves), waves, tt.wantWaves)
			}
			final := sortedWave(waves[len(waves)-1])
			if !equalStrings(final, tt.wantFinal) {
				t.Errorf("final wave = %v, want %v", final, tt.wantFinal)
			}
		})
	}
}

// TestPlan_PriorityTieBreak verifies priority orders tasks inside a wave.
func TestPlan_PriorityTieBreak(t *testing.T) {
	tasks := []*Task{
		{ID: "low", Priority: PriorityLow},
		{ID: "normal"},
		{ID: "critical", Priority: PriorityCritical},
		{ID: "high", Priority: PriorityHigh},
		{ID: "normal2", Priority: PriorityNormal},
	}

	waves := quietPlanner().Plan(tasks)
	if len(waves) != 1 {
		t.Fatalf("got %d waves, want 1", len(waves))
	}

	want := []string{"critical", "high", "normal", "normal2", "low"}
	if !equalStrings(waves[0], want) {
		t.Errorf("wave order = %v, want %v", waves[0], want)
	}
}

// TestPlan_DoesNotMutateInput verifies Plan is a pure function of the task set.
func TestPlan_DoesNotMutateInput(t *testing.T) {
	tasks := []*Task{
		{ID: "A", Status: TaskPending},
		{ID: "B", DependsOn: []string{"A", "A"}, Status: TaskPending},
	}

	quietPlanner().Plan(tasks)

	if len(tasks[1].DependsOn) != 2 {
		t.Errorf("DependsOn mutated: %v", tasks[1].DependsOn)
	}
	for _, task := range tasks {
		if task.Status != TaskPending {
			t.Errorf("task %s status mutated to %s", task.ID, task.Status)
		}
	}
}

// TestValidate verifies topological validation errors.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []*Task
		wantErr error
	}{
		{
			name: "valid chain",
			tasks: []*Task{
				{ID: "A"},
				{ID: "B", DependsOn: []string{"A"}},
			},
		},
		{
			name: "cycle",
			tasks: []*Task{
				{ID: "A", DependsOn: []string{"B"}},
				{ID: "B", DependsOn: []string{"A"}},
			},
			wantErr: ErrCycle,
		},
		{
			name: "dangling",
			tasks: []*Task{
				{ID: "A", DependsOn: []string{"nope"}},
			},
			wantErr: ErrDanglingDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := Validate(tt.tasks)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(order) != len(tt.tasks) {
				t.Errorf("order has %d tasks, want %d", len(order), len(tt.tasks))
			}
		})
	}
}
