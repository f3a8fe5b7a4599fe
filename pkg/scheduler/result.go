package scheduler

import (
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

// VMAssignment is the set of tasks bound to one host during a round (spec
// §3 Scheduling Result, "VMAssignmentResult").
type VMAssignment struct {
	Hostname string
	Tasks    []task.Request
}

// Result is the outcome of one scheduleOnce call (spec §3 Scheduling
// Result).
type Result struct {
	PerHostAssignments map[string]VMAssignment
	PerTaskFailures    map[string][]task.Failure

	LeasesAdded         int
	LeasesRejected      int
	NumAllocationTrials int
	TotalVMs            int
	IdleVMs             int
	RuntimeMillis       int64
}

// ResourceUsage is one resource dimension's used/available split for a
// single host (spec §6 "resource status report").
type ResourceUsage struct {
	Used      float64
	Available float64
}

// HostState is a snapshot of one host's current bookkeeping, returned by
// getHostCurrentStates (spec §6).
type HostState struct {
	Hostname     string
	Group        string
	Disabled     bool
	Free         scalar.Resources
	Capacity     scalar.Resources
	RunningTasks int
}
