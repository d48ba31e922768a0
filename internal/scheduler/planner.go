package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gammazero/toposort"
)

// ErrCycle is returned by Validate when the dependency graph is not acyclic.
var ErrCycle = errors.New("dependency cycle")

// ErrDanglingDependency is returned by Validate when a task depends on a task outside the set.
var ErrDanglingDependency = errors.New("dangling dependency")

// Wave is a set of task IDs with no dependency among them.
type Wave []string

// Planner partitions a task set into ordered waves of mutually independent tasks.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates a planner. A nil logger falls back to slog.Default().
func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger}
}

// Plan layers tasks topologically. Wave 0 holds tasks without dependencies and wave k
// holds tasks whose dependencies all sit in waves 0..k-1.
//
// Plan never fails. If no task qualifies for the next wave while tasks remain (a cycle
// or a dependency outside the set), every remaining task is placed in one final wave
// and left for the runner's dependency check to reject.
func (p *Planner) Plan(tasks []*Task) []Wave {
	nodes := indexTasks(tasks)
	if len(nodes) == 0 {
		return nil
	}

	scheduled := make(map[string]bool, len(nodes))
	remaining := make([]*node, len(nodes))
	copy(remaining, nodes)

	var waves []Wave
	for len(remaining) > 0 {
		var ready, blocked []*node
		for _, n := range remaining {
			if allScheduled(n.deps, scheduled) {
				ready = append(ready, n)
			} else {
				blocked = append(blocked, n)
			}
		}

		if len(ready) == 0 {
			p.logger.Warn("unschedulable tasks placed in final wave",
				"wave", len(waves),
				"tasks", len(blocked),
				"reason", describeStall(blocked, nodes))
			waves = append(waves, waveOf(blocked))
			break
		}

		// Mark after the scan so tasks never depend on members of their own wave.
		for _, n := range ready {
			scheduled[n.task.ID] = true
		}
		waves = append(waves, waveOf(ready))
		remaining = blocked
	}

	p.logger.Debug("execution plan created", "tasks", len(nodes), "waves", len(waves))
	return waves
}

// Validate runs a topological sort using gammazero/toposort.
// Returns ordered task IDs or an error if a cycle or dangling dependency is found.
func Validate(tasks []*Task) ([]string, error) {
	nodes := indexTasks(tasks)
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.task.ID] = true
	}

	for _, n := range nodes {
		for _, depID := range n.deps {
			if !known[depID] {
				return nil, fmt.Errorf("task %q depends on %q: %w", n.task.ID, depID, ErrDanglingDependency)
			}
		}
	}

	order, err := topoOrder(nodes)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// node is a task plus its normalised dependency list and input position.
type node struct {
	task  *Task
	deps  []string
	index int
}

// indexTasks drops nil and duplicate tasks (first occurrence wins).
func indexTasks(tasks []*Task) []*node {
	seen := make(map[string]bool, len(tasks))
	nodes := make([]*node, 0, len(tasks))
	for _, t := range tasks {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		nodes = append(nodes, &node{task: t, deps: t.Dependencies(), index: len(nodes)})
	}
	return nodes
}

func allScheduled(deps []string, scheduled map[string]bool) bool {
	for _, id := range deps {
		if !scheduled[id] {
			return false
		}
	}
	return true
}

// waveOf orders a wave by priority, then by input position.
func waveOf(nodes []*node) Wave {
	sorted := make([]*node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].task.Priority.rank(), sorted[j].task.Priority.rank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].index < sorted[j].index
	})

	wave := make(Wave, len(sorted))
	for i, n := range sorted {
		wave[i] = n.task.ID
	}
	return wave
}

// describeStall explains why the blocked tasks could not be layered.
func describeStall(blocked, all []*node) string {
	known := make(map[string]bool, len(all))
	for _, n := range all {
		known[n.task.ID] = true
	}

	var dangling []string
	for _, n := range blocked {
		for _, depID := range n.deps {
			if !known[depID] {
				dangling = append(dangling, fmt.Sprintf("%s->%s", n.task.ID, depID))
			}
		}
	}

	var reasons []string
	if len(dangling) > 0 {
		reasons = append(reasons, "dangling dependencies: "+strings.Join(dangling, ", "))
	}
	if _, err := topoOrder(blocked); err != nil {
		reasons = append(reasons, err.Error())
	}
	if len(reasons) == 0 {
		return "blocked by unschedulable dependencies"
	}
	return strings.Join(reasons, "; ")
}

// topoOrder sorts nodes with gammazero/toposort. Edges to tasks outside the set are ignored.
func topoOrder(nodes []*node) ([]string, error) {
	inSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inSet[n.task.ID] = true
	}

	var edges []toposort.Edge
	for _, n := range nodes {
		// Edge from nil ensures tasks without in-set dependencies are included
		edges = append(edges, toposort.Edge{nil, n.task.ID})
		for _, depID := range n.deps {
			if inSet[depID] {
				// Edge (depID, taskID) means depID must come before taskID
				edges = append(edges, toposort.Edge{depID, n.task.ID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	order := make([]string, 0, len(nodes))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Verify all tasks are in the sorted result
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("%w: topological sort lost %d tasks", ErrCycle, len(nodes)-len(order))
	}
	return order, nil
}
