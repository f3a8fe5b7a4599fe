// Package task defines the task request and assignment result types shared
// across the offer store, host view, quota evaluator, assignment evaluator,
// and scheduler round orchestrator.
package task

import (
	"github.com/uber/fenzo-go/pkg/scalar"
)

// Request is a pending unit of work awaiting placement. Read-only during a
// round (spec §3).
type Request struct {
	ID                  string
	GroupName           string
	Resources           scalar.Resources
	HardConstraintNames []string
	SoftConstraintNames []string
	CustomNamedResources map[string]float64
}

// FailureKind classifies why a (task, host) pair did not succeed, per
// spec §7b.
type FailureKind string

const (
	// FailureResourceShortage means the host lacked sufficient resources
	// in one or more dimensions.
	FailureResourceShortage FailureKind = "resource-shortage"
	// FailureHardConstraint means a named hard constraint rejected the host.
	FailureHardConstraint FailureKind = "hard-constraint"
	// FailureQuotaExceeded means the task's group has exhausted its quota.
	FailureQuotaExceeded FailureKind = "quota-exceeded"
	// FailureNoViableHost means no host in the cluster could ever satisfy
	// this task's maximum resource requirement, dimension-wise.
	FailureNoViableHost FailureKind = "no-viable-host"
)

// Failure is a single structured reason a task failed to be assigned to a
// particular host (or, for FailureQuotaExceeded / FailureNoViableHost, to
// any host).
type Failure struct {
	Kind       FailureKind
	Hostname   string
	Dimensions []string // resource dimensions that were exceeded
	Constraint string   // name of the hard constraint that failed
	Reason     string
}

// EffectiveResources returns req.Resources with CustomNamedResources folded
// into its Custom dimension, so callers have a single vector to compare
// against a host's free resources (spec §3 Task Request
// customNamedResources).
func (r Request) EffectiveResources() scalar.Resources {
	if len(r.CustomNamedResources) == 0 {
		return r.Resources
	}
	out := r.Resources
	out.Custom = make(map[string]float64, len(r.Resources.Custom)+len(r.CustomNamedResources))
	for k, v := range r.Resources.Custom {
		out.Custom[k] = v
	}
	for k, v := range r.CustomNamedResources {
		out.Custom[k] += v
	}
	return out
}

// Result is the outcome of evaluating one task against one host (spec §3
// Assignment Result).
type Result struct {
	Task       Request
	Hostname   string
	Successful bool
	Failures   []Failure
	Fitness    float64

	// assign, set by Host.TryTask on a successful result, used by the
	// orchestrator (via Commit) to commit the binding.
	assign func()
}

// SetCommitFunc attaches the commit callback a Host constructs for its
// winning result. Called by pkg/host; not intended for plugin use.
func (r *Result) SetCommitFunc(f func()) {
	r.assign = f
}

// Commit invokes the attached commit callback, binding the task to the
// host that produced this result. No-op if no callback is attached
// (e.g. a failed result).
func (r *Result) Commit() {
	if r.assign != nil {
		r.assign()
	}
}
