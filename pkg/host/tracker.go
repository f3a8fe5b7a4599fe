package host

import (
	"sync"
	"time"

	"github.com/uber/fenzo-go/pkg/task"
)

// TrackedTask records where a task is bound and when the binding was made,
// the process-wide Task Tracker entry described in spec §4.3.
type TrackedTask struct {
	Task       task.Request
	Hostname   string
	AssignedAt time.Time
}

// Tracker is the process-wide registry of tasks currently running or
// tentatively assigned, indexed by task id and by hostname. Mutated only via
// Assign/Unassign, which callers must serialize against scheduling rounds
// using the scheduler's State Guard (except Unassign, which is safe to call
// from any goroutine per spec §4.8 / §5).
type Tracker struct {
	mu sync.RWMutex

	byTask  map[string]TrackedTask
	byHost  map[string]map[string]struct{} // hostname -> set of task ids
}

// NewTracker returns an empty Task Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byTask: make(map[string]TrackedTask),
		byHost: make(map[string]map[string]struct{}),
	}
}

// Assign records that taskID is now bound to hostname.
func (t *Tracker) Assign(req task.Request, hostname string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byTask[req.ID] = TrackedTask{Task: req, Hostname: hostname, AssignedAt: at}
	hostSet, ok := t.byHost[hostname]
	if !ok {
		hostSet = make(map[string]struct{})
		t.byHost[hostname] = hostSet
	}
	hostSet[req.ID] = struct{}{}
}

// Unassign removes taskID from both indices. Idempotent: unassigning an
// unknown task id is a no-op, matching spec §8's round-trip invariant
// (assign then unassign restores prior state).
func (t *Tracker) Unassign(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.byTask[taskID]
	if !ok {
		return
	}
	delete(t.byTask, taskID)
	if hostSet, ok := t.byHost[tracked.Hostname]; ok {
		delete(hostSet, taskID)
		if len(hostSet) == 0 {
			delete(t.byHost, tracked.Hostname)
		}
	}
}

// All returns every currently tracked task, running or tentatively
// assigned. The Quota Evaluator uses this to seed baseline usage at round
// start (spec §4.4 prepare()).
func (t *Tracker) All() []TrackedTask {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackedTask, 0, len(t.byTask))
	for _, tt := range t.byTask {
		out = append(out, tt)
	}
	return out
}

// Get returns the tracked entry for taskID, if any.
func (t *Tracker) Get(taskID string) (TrackedTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tt, ok := t.byTask[taskID]
	return tt, ok
}

// TasksOnHost returns the task ids tracked against hostname.
func (t *Tracker) TasksOnHost(hostname string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hostSet := t.byHost[hostname]
	out := make([]string, 0, len(hostSet))
	for id := range hostSet {
		out = append(out, id)
	}
	return out
}

// HostForTask implements constraint.TrackerSnapshot.
func (t *Tracker) HostForTask(taskID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tt, ok := t.byTask[taskID]
	if !ok {
		return "", false
	}
	return tt.Hostname, true
}

// Snapshot returns a point-in-time, read-only view suitable for handing to
// constraint and fitness plugins (spec §4.3, §9).
func (t *Tracker) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byHost := make(map[string][]string, len(t.byHost))
	for hostname, set := range t.byHost {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		byHost[hostname] = ids
	}
	byTask := make(map[string]string, len(t.byTask))
	for id, tt := range t.byTask {
		byTask[id] = tt.Hostname
	}
	return &Snapshot{byHost: byHost, byTask: byTask}
}

// Snapshot is an immutable, read-only view of the Task Tracker at a point
// in time. Implements constraint.TrackerSnapshot.
type Snapshot struct {
	byHost map[string][]string
	byTask map[string]string
}

// TasksOnHost implements constraint.TrackerSnapshot.
func (s *Snapshot) TasksOnHost(hostname string) []string {
	return s.byHost[hostname]
}

// HostForTask implements constraint.TrackerSnapshot.
func (s *Snapshot) HostForTask(taskID string) (string, bool) {
	h, ok := s.byTask[taskID]
	return h, ok
}
