// Package host implements the Host View (spec §4.2): per-host aggregation
// of held offer resources, tentative and previously-assigned tasks, and the
// tryTask primitive that evaluates one task against the host.
package host

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

// Host owns the resource and assignment state for a single hostname.
// Invariant (spec §3): Free() == sum of held offer resources minus
// resources consumed by this round's tentative assignments; previously
// assigned (running) tasks are NOT subtracted, because offers already
// exclude them upstream.
type Host struct {
	mu sync.RWMutex

	hostname string
	vmID     string
	group    string
	attrs    map[string]string

	heldResources scalar.Resources
	offerCount    int

	tentative          []tentativeAssignment
	previouslyAssigned map[string]task.Request // running tasks, by id

	disableUntil time.Time
}

type tentativeAssignment struct {
	task      task.Request
	resources scalar.Resources
}

// New returns a Host with no held offers and no assignments.
func New(hostname string) *Host {
	return &Host{
		hostname:           hostname,
		previouslyAssigned: make(map[string]task.Request),
	}
}

// Hostname implements constraint.HostView.
func (h *Host) Hostname() string { return h.hostname }

// VMID implements constraint.HostView.
func (h *Host) VMID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vmID
}

// SetVMID records the most recent vmId observed for this host.
func (h *Host) SetVMID(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vmID = id
}

// Group implements constraint.HostView.
func (h *Host) Group() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.group
}

// SetGroup sets the host's group tag, derived upstream from a configured
// attribute name (spec §3).
func (h *Host) SetGroup(group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.group = group
}

// Attributes implements constraint.HostView.
func (h *Host) Attributes() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attrs
}

// SetAttributes replaces the host's attribute map.
func (h *Host) SetAttributes(attrs map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attrs = attrs
}

// SetHeldOffers replaces the host's aggregate held-offer resource vector,
// recomputed by the caller (the offer store / orchestrator) from the set
// of offers currently held for this hostname.
func (h *Host) SetHeldOffers(total scalar.Resources, count int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heldResources = total
	h.offerCount = count
}

// HasAnyOffer reports whether the host currently holds any offer.
func (h *Host) HasAnyOffer() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.offerCount > 0
}

// Capacity returns the host's raw held-offer resource vector, unreduced by
// this round's tentative assignments — the ceiling the orchestrator compares
// against when deciding whether any host could ever satisfy a task (spec
// §4.6 step 5c).
func (h *Host) Capacity() scalar.Resources {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.heldResources
}

// Free returns the host's current free resource vector: held offers minus
// this round's tentative consumption.
func (h *Host) Free() scalar.Resources {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.freeLocked()
}

func (h *Host) freeLocked() scalar.Resources {
	free := h.heldResources
	for _, t := range h.tentative {
		if left, ok := free.TrySubtract(t.resources); ok {
			free = left
		} else {
			log.WithFields(log.Fields{
				"host": h.hostname,
				"held": h.heldResources,
			}).Error("tentative assignments exceed held resources")
			free = scalar.Resources{}
		}
	}
	return free
}

// Disable marks the host unavailable for candidate gathering until until.
// Persists even if the host has never held an offer (spec §4.2).
func (h *Host) Disable(until time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disableUntil = until
}

// Enable clears any disable hold.
func (h *Host) Enable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disableUntil = time.Time{}
}

// IsDisabled reports whether the host's disable-until is still in the
// future relative to now.
func (h *Host) IsDisabled(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.disableUntil.After(now)
}

// AddRunningTask records a task that the framework confirmed is already
// running on this host (spec §4.8 assignTask).
func (h *Host) AddRunningTask(req task.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.previouslyAssigned[req.ID] = req
}

// RemoveRunningTask removes a previously-running task (spec §4.8
// unassignTask).
func (h *Host) RemoveRunningTask(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.previouslyAssigned, taskID)
}

// HasPreviouslyAssignedTasks implements constraint.HostView; used by idle-
// host detection to exclude hosts that still carry running tasks (spec
// §4.2, §4.6 step 6).
func (h *Host) HasPreviouslyAssignedTasks() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.previouslyAssigned) > 0
}

// IsIdle reports whether the host has neither offers nor running tasks nor
// tentative assignments. Unlike IsPurgeable, it ignores any disable hold.
func (h *Host) IsIdle() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.offerCount == 0 && len(h.previouslyAssigned) == 0 && len(h.tentative) == 0
}

// IsPurgeable reports whether the host has no offers, no running tasks, and
// no active disable hold, making it eligible for the inactive-host sweep
// (spec §3 "purged by the periodic inactive-host sweep").
func (h *Host) IsPurgeable(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.offerCount == 0 &&
		len(h.previouslyAssigned) == 0 &&
		len(h.tentative) == 0 &&
		!h.disableUntil.After(now)
}

// TryTask is the Host View's primitive query (spec §4.2): evaluate req
// against this host's current free resources, hard constraints, soft
// constraints, and fitness calculator. On success, the returned Result
// carries a commit callback that Result.Commit invokes to record the
// tentative assignment on this host.
func (h *Host) TryTask(
	req task.Request,
	registry *constraint.Registry,
	fitnessFn constraint.FitnessCalculator,
	snap constraint.TrackerSnapshot,
) task.Result {
	h.mu.RLock()
	free := h.freeLocked()
	h.mu.RUnlock()

	need := req.EffectiveResources()
	if !free.Contains(need) {
		return task.Result{
			Task:     req,
			Hostname: h.hostname,
			Failures: []task.Failure{{
				Kind:       task.FailureResourceShortage,
				Hostname:   h.hostname,
				Dimensions: scalar.ExceedsDimension(free, need),
				Reason:     "insufficient free resources",
			}},
		}
	}

	hard, soft, missing := registry.Resolve(req)
	for _, name := range missing {
		// A named constraint with no registered implementation fails
		// closed: a misconfigured plugin name must never silently pass.
		return task.Result{
			Task:     req,
			Hostname: h.hostname,
			Failures: []task.Failure{{
				Kind:       task.FailureHardConstraint,
				Hostname:   h.hostname,
				Constraint: name,
				Reason:     "constraint not registered",
			}},
		}
	}

	for i, hc := range hard {
		ok, reason := hc(req, h, snap)
		if !ok {
			name := req.HardConstraintNames[i]
			return task.Result{
				Task:     req,
				Hostname: h.hostname,
				Failures: []task.Failure{{
					Kind:       task.FailureHardConstraint,
					Hostname:   h.hostname,
					Constraint: name,
					Reason:     reason,
				}},
			}
		}
	}

	softScore := 0.0
	for _, sc := range soft {
		softScore += sc(req, h, snap)
	}
	if len(soft) > 0 {
		softScore /= float64(len(soft))
	}

	pluginFitness := fitnessFn(req, h, snap)
	fitness := pluginFitness
	if len(soft) > 0 {
		fitness = (pluginFitness + softScore) / 2
	}

	result := task.Result{
		Task:       req,
		Hostname:   h.hostname,
		Successful: true,
		Fitness:    fitness,
	}
	result.SetCommitFunc(func() {
		h.commitTentative(req)
	})
	return result
}

func (h *Host) commitTentative(req task.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tentative = append(h.tentative, tentativeAssignment{task: req, resources: req.EffectiveResources()})
}

// ResetAndGetSuccessfullyAssignedRequests atomically returns the round's
// accumulated tentative assignments (or nil if none) and clears the
// tentative list (spec §4.2).
func (h *Host) ResetAndGetSuccessfullyAssignedRequests() []task.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tentative) == 0 {
		return nil
	}
	out := make([]task.Request, 0, len(h.tentative))
	for _, t := range h.tentative {
		out = append(out, t.task)
	}
	h.tentative = nil
	return out
}
