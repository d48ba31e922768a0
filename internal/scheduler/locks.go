package scheduler

import "sync"

// TaskLocks provides per-task mutual exclusion so that a task row and its audit record
// are only ever written by one run at a time. Distinct task IDs never contend.
type TaskLocks struct {
	mu    sync.Mutex           // Guards the locks map itself
	locks map[string]*refMutex // Per-task mutexes
}

// refMutex counts holders and waiters so idle entries can be dropped.
type refMutex struct {
	sync.Mutex
	refs int
}

// NewTaskLocks creates an empty lock table.
func NewTaskLocks() *TaskLocks {
	return &TaskLocks{
		locks: make(map[string]*refMutex),
	}
}

// Lock acquires the mutex for taskID and returns the function that releases it.
func (l *TaskLocks) Lock(taskID string) (unlock func()) {
	l.mu.Lock()
	m, exists := l.locks[taskID]
	if !exists {
		m = &refMutex{}
		l.locks[taskID] = m
	}
	m.refs++
	l.mu.Unlock()

	// Acquire outside the table lock to avoid contention between unrelated tasks
	m.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			l.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(l.locks, taskID)
			}
			l.mu.Unlock()
		})
	}
}

// Held returns the number of task IDs currently locked or awaited.
func (l *TaskLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
