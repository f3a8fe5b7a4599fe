// Package quota implements the Quota Evaluator (spec §4.4): per-group
// resource-allocation ceilings applied before a task is considered for
// placement.
package quota

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

// ResAlloc is a per-group ceiling on total resources and task count
// (spec §3 Resource Allocation Quota).
type ResAlloc struct {
	CPU         float64
	MemoryMB    float64
	NetworkMbps float64
	DiskMB      float64
	MaxTasks    int // 0 means unlimited
}

func (r ResAlloc) resources() scalar.Resources {
	return scalar.Resources{CPU: r.CPU, MemoryMB: r.MemoryMB, NetworkMbps: r.NetworkMbps, DiskMB: r.DiskMB}
}

// Evaluator tracks per-group ceilings and the usage committed against them
// during the current round.
type Evaluator struct {
	mu sync.Mutex

	ceilings map[string]ResAlloc
	usage    map[string]scalar.Resources
	counts   map[string]int
	failed   map[string]bool
}

// NewEvaluator returns an evaluator seeded with the given initial per-group
// quotas (spec §6 initialResAllocs).
func NewEvaluator(initial map[string]ResAlloc) *Evaluator {
	ceilings := make(map[string]ResAlloc, len(initial))
	for k, v := range initial {
		ceilings[k] = v
	}
	return &Evaluator{
		ceilings: ceilings,
		usage:    make(map[string]scalar.Resources),
		counts:   make(map[string]int),
		failed:   make(map[string]bool),
	}
}

// AddOrReplaceResAlloc sets the ceiling for group (spec §6
// addOrReplaceResAllocs).
func (e *Evaluator) AddOrReplaceResAlloc(group string, alloc ResAlloc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ceilings[group] = alloc
}

// RemoveResAlloc clears the ceiling for group, after which it is treated as
// unlimited (spec §6 removeResAllocs).
func (e *Evaluator) RemoveResAlloc(group string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ceilings, group)
}

// GetResAlloc returns the configured ceiling for group, if any (spec §6
// getResAllocs).
func (e *Evaluator) GetResAlloc(group string) (ResAlloc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.ceilings[group]
	return a, ok
}

// Prepare snapshots usage at round start from the caller-supplied baseline
// (e.g. resources already consumed by previously running tasks of each
// group, as tracked by the Task Tracker) and clears which groups failed
// quota in the prior round (spec §4.4 prepare()).
func (e *Evaluator) Prepare(baselineUsage map[string]scalar.Resources, baselineCounts map[string]int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.usage = make(map[string]scalar.Resources, len(baselineUsage))
	for k, v := range baselineUsage {
		e.usage[k] = v
	}
	e.counts = make(map[string]int, len(baselineCounts))
	for k, v := range baselineCounts {
		e.counts[k] = v
	}
	e.failed = make(map[string]bool)
}

// TaskGroupFailed reports whether group has already exhausted its quota
// this round (spec §4.4 taskGroupFailed short-circuit).
func (e *Evaluator) TaskGroupFailed(group string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed[group]
}

// HasResAllocs returns nil if req would fit within its group's remaining
// quota, or a Failure describing which dimension was exceeded. It does NOT
// commit the task's resources — callers must call Commit only after the
// task is actually bound to a host, so a task that passes quota but fails
// assignment does not shrink quota for later tasks of the same group.
func (e *Evaluator) HasResAllocs(req task.Request) *task.Failure {
	e.mu.Lock()
	defer e.mu.Unlock()

	ceiling, ok := e.ceilings[req.GroupName]
	if !ok {
		return nil
	}

	projected := e.usage[req.GroupName].Add(req.Resources)
	ceilingRes := ceiling.resources()
	if dims := scalar.ExceedsDimension(ceilingRes, projected); len(dims) > 0 {
		e.failed[req.GroupName] = true
		log.WithFields(log.Fields{"group": req.GroupName, "dimensions": dims}).
			Debug("task exceeds group resource quota")
		return &task.Failure{
			Kind:       task.FailureQuotaExceeded,
			Dimensions: dims,
			Reason:     "group resource quota exceeded",
		}
	}

	if ceiling.MaxTasks > 0 && e.counts[req.GroupName]+1 > ceiling.MaxTasks {
		e.failed[req.GroupName] = true
		return &task.Failure{
			Kind:   task.FailureQuotaExceeded,
			Reason: "group task-count quota exceeded",
		}
	}

	return nil
}

// Commit records req's resources as consumed by its group, called once the
// task has actually been bound to a host by the assignment evaluator.
func (e *Evaluator) Commit(req task.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.usage[req.GroupName] = e.usage[req.GroupName].Add(req.Resources)
	e.counts[req.GroupName]++
}
