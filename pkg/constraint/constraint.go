// Package constraint defines the opaque plugin contracts the engine invokes
// during assignment evaluation: hard constraints, soft constraints, and the
// fitness calculator. These are treated as external collaborators per
// spec §1 — the engine only calls them, it never implements concrete
// placement policy itself.
package constraint

import (
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

// HostView is the minimal read-only view of a host that plugins receive.
// Implemented by pkg/host.Host; declared here (rather than importing
// pkg/host directly) so pkg/host can depend on this package for its
// function types without creating an import cycle.
type HostView interface {
	Hostname() string
	VMID() string
	Group() string
	Attributes() map[string]string
	Free() scalar.Resources
	HasPreviouslyAssignedTasks() bool
}

// TrackerSnapshot is the read-only view of the process-wide Task Tracker
// handed to constraint and fitness plugins (spec §4.3, §9: "expose only a
// read-only snapshot interface to plugins").
type TrackerSnapshot interface {
	// TasksOnHost returns the ids of tasks (running or tentatively
	// assigned) known to be on hostname at snapshot time.
	TasksOnHost(hostname string) []string
	// HostForTask returns the hostname a task id is bound to, and whether
	// it was found.
	HostForTask(taskID string) (string, bool)
}

// HardConstraint is a pass/fail predicate over a (task, host, tracker
// snapshot) triple. A false return disqualifies the host; the string is a
// human-readable reason.
type HardConstraint func(req task.Request, host HostView, snap TrackerSnapshot) (bool, string)

// SoftConstraint contributes a weighted score toward fitness; it never
// disqualifies a host.
type SoftConstraint func(req task.Request, host HostView, snap TrackerSnapshot) float64

// FitnessCalculator returns a [0,1] scalar scoring a (task, host) pair.
// Combined with soft-constraint scoring to produce the final Result.Fitness.
type FitnessCalculator func(req task.Request, host HostView, snap TrackerSnapshot) float64

// GoodEnough decides whether a fitness value is good enough to short-circuit
// the assignment evaluator's search across remaining candidate hosts.
type GoodEnough func(fitness float64) bool

// DefaultFitnessCalculator returns a constant 1.0, matching spec §6's
// documented default ("Default returns a constant").
func DefaultFitnessCalculator(task.Request, HostView, TrackerSnapshot) float64 {
	return 1.0
}

// DefaultGoodEnough never short-circuits (fitness > 1.0 is unreachable),
// matching spec §6's documented default ("exhaustive").
func DefaultGoodEnough(fitness float64) bool {
	return fitness > 1.0
}

// FitnessPlugin is the interface form of FitnessCalculator. The engine
// itself only ever calls through the plain FitnessCalculator function type
// (spec §9: callback objects are modeled as first-class function values, not
// object-oriented dispatch); this interface exists solely so a fitness
// implementation can be exercised as a mockable strategy object in tests,
// the way binpacking/loadawareranker_test.go mocks its ranking strategy.
type FitnessPlugin interface {
	Calculate(req task.Request, host HostView, snap TrackerSnapshot) float64
}

// HardConstraintPlugin is the interface form of HardConstraint, for the same
// test-mocking reason as FitnessPlugin.
type HardConstraintPlugin interface {
	Evaluate(req task.Request, host HostView, snap TrackerSnapshot) (bool, string)
}

// SoftConstraintPlugin is the interface form of SoftConstraint, for the same
// test-mocking reason as FitnessPlugin.
type SoftConstraintPlugin interface {
	Score(req task.Request, host HostView, snap TrackerSnapshot) float64
}

// Registry resolves constraint names (as carried on task.Request) to the
// concrete plugin functions supplied by the host framework.
type Registry struct {
	Hard map[string]HardConstraint
	Soft map[string]SoftConstraint
}

// NewRegistry returns an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{
		Hard: make(map[string]HardConstraint),
		Soft: make(map[string]SoftConstraint),
	}
}

// RegisterHard adds (or replaces) a named hard constraint.
func (r *Registry) RegisterHard(name string, c HardConstraint) {
	r.Hard[name] = c
}

// RegisterSoft adds (or replaces) a named soft constraint.
func (r *Registry) RegisterSoft(name string, c SoftConstraint) {
	r.Soft[name] = c
}

// Resolve looks up the hard and soft constraints named on req, skipping
// (and logging via the returned missing list) any name with no registered
// implementation — a misconfigured plugin name should not silently pass.
func (r *Registry) Resolve(req task.Request) (hard []HardConstraint, soft []SoftConstraint, missing []string) {
	for _, name := range req.HardConstraintNames {
		if c, ok := r.Hard[name]; ok {
			hard = append(hard, c)
		} else {
			missing = append(missing, name)
		}
	}
	for _, name := range req.SoftConstraintNames {
		if c, ok := r.Soft[name]; ok {
			soft = append(soft, c)
		} else {
			missing = append(missing, name)
		}
	}
	return hard, soft, missing
}
