package scheduler

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"

	"github.com/uber/fenzo-go/pkg/autoscale"
	"github.com/uber/fenzo-go/pkg/quota"
	"github.com/uber/fenzo-go/pkg/task"
)

// AssignTask is an external notification that taskID is now running on
// hostname — used when the framework launches a task selected in an
// earlier round, or when reconstructing state on startup. Must be called
// inside the state guard; concurrent entry during a round fails with a
// state error (spec §4.8).
func (s *Scheduler) AssignTask(taskID, hostname string) error {
	if !s.guard.Enter() {
		return yarpcerrors.FailedPreconditionErrorf(
			"assignTask: a round or state-inspection operation is already in progress")
	}
	defer s.guard.Exit()

	req := task.Request{ID: taskID}
	s.getOrCreateHost(hostname).AddRunningTask(req)
	s.tracker.Assign(req, hostname, time.Now())
	return nil
}

// UnassignTask removes taskID from both the Task Tracker and hostname's
// running-task set. Does not require the state guard: the underlying
// structures are safe for this single-point update from any goroutine,
// including a cluster-manager event thread (spec §4.8).
func (s *Scheduler) UnassignTask(taskID, hostname string) {
	if h := s.lookupHost(hostname); h != nil {
		h.RemoveRunningTask(taskID)
	}
	s.tracker.Unassign(taskID)
}

// DisableHost marks hostname unavailable for candidate gathering until
// duration has elapsed, creating the host record if unknown so the intent
// persists. Disabled hosts still hold offers, which may later be rejected
// by expiry (spec §4.8).
func (s *Scheduler) DisableHost(hostname string, duration time.Duration) {
	s.getOrCreateHost(hostname).Disable(time.Now().Add(duration))
}

// EnableHost clears hostname's disable hold, if any.
func (s *Scheduler) EnableHost(hostname string) {
	if h := s.lookupHost(hostname); h != nil {
		h.Enable()
	}
}

// DisableHostByVMID resolves vmID to its last-known hostname via the Offer
// Store and disables that host. A no-op, logged, if vmID is unknown.
func (s *Scheduler) DisableHostByVMID(vmID string, duration time.Duration) {
	hostname := s.leases.HostnameForVMID(vmID)
	if hostname == "" {
		log.WithField("vmId", vmID).Warn("disableHostByVmId: unknown vmId")
		return
	}
	s.DisableHost(hostname, duration)
}

// ExpireLease marks a single offer for rejection.
func (s *Scheduler) ExpireLease(offerID string) {
	s.leases.ExpireByID(offerID)
}

// ExpireAllLeases marks every offer held for hostname for rejection.
func (s *Scheduler) ExpireAllLeases(hostname string) {
	s.leases.ExpireAllForHost(hostname)
}

// ExpireAllLeasesByVMID resolves vmID to its last-known hostname and
// expires every offer held for it. A no-op if vmID is unknown.
func (s *Scheduler) ExpireAllLeasesByVMID(vmID string) {
	hostname := s.leases.HostnameForVMID(vmID)
	if hostname == "" {
		return
	}
	s.leases.ExpireAllForHost(hostname)
}

// ExpireAllLeasesGlobal marks every offer in the store for rejection.
func (s *Scheduler) ExpireAllLeasesGlobal() {
	s.leases.ExpireAll()
}

// SetActiveGroupAttributeName changes the host attribute used to tag each
// host's group, which also governs the active-group candidate filter (spec
// §4.8).
func (s *Scheduler) SetActiveGroupAttributeName(name string) {
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	s.groupAttrName = name
}

// SetActiveGroups restricts candidate gathering to hosts whose group is in
// names. A nil slice means every group is active (spec §4.8).
func (s *Scheduler) SetActiveGroups(names []string) {
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	if names == nil {
		s.activeGroups = nil
		return
	}
	active := make(map[string]bool, len(names))
	for _, n := range names {
		active[n] = true
	}
	s.activeGroups = active
}

// AddOrReplaceResAlloc forwards to the Quota Evaluator (spec §6
// addOrReplaceResAllocs).
func (s *Scheduler) AddOrReplaceResAlloc(group string, alloc quota.ResAlloc) {
	s.quotaEval.AddOrReplaceResAlloc(group, alloc)
}

// RemoveResAlloc forwards to the Quota Evaluator (spec §6 removeResAllocs).
func (s *Scheduler) RemoveResAlloc(group string) {
	s.quotaEval.RemoveResAlloc(group)
}

// GetResAlloc forwards to the Quota Evaluator (spec §6 getResAllocs).
func (s *Scheduler) GetResAlloc(group string) (quota.ResAlloc, bool) {
	return s.quotaEval.GetResAlloc(group)
}

// AddOrReplaceAutoScaleRule forwards to the autoscale rule store (spec §6
// addOrReplaceAutoScaleRule).
func (s *Scheduler) AddOrReplaceAutoScaleRule(group string, rule autoscale.Rule) error {
	return s.autoscaler.AddOrReplaceRule(group, rule)
}

// RemoveAutoScaleRule forwards to the autoscale rule store (spec §6
// removeAutoScaleRule).
func (s *Scheduler) RemoveAutoScaleRule(group string) {
	s.autoscaler.RemoveRule(group)
}

// GetAutoScaleRules forwards to the autoscale rule store (spec §6
// getAutoScaleRules).
func (s *Scheduler) GetAutoScaleRules() map[string]autoscale.Rule {
	return s.autoscaler.Rules()
}

// SetAutoscalerCallback forwards to the autoscale rule store (spec §6
// setAutoscalerCallback).
func (s *Scheduler) SetAutoscalerCallback(cb autoscale.Callback) error {
	return s.autoscaler.SetCallback(cb)
}

// GetResourceStatus reports, per host and resource dimension, how much is
// used versus still available (spec §6 "resource status report"). A
// state-inspection operation: fails fast if a round is in progress.
func (s *Scheduler) GetResourceStatus() (map[string]map[string]ResourceUsage, error) {
	if !s.guard.Enter() {
		return nil, yarpcerrors.FailedPreconditionErrorf(
			"getResourceStatus: a round or state-inspection operation is already in progress")
	}
	defer s.guard.Exit()

	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()

	out := make(map[string]map[string]ResourceUsage, len(s.hosts))
	for hostname, h := range s.hosts {
		capacity := h.Capacity()
		free := h.Free()
		out[hostname] = map[string]ResourceUsage{
			"cpu":         {Used: capacity.CPU - free.CPU, Available: free.CPU},
			"memoryMB":    {Used: capacity.MemoryMB - free.MemoryMB, Available: free.MemoryMB},
			"networkMbps": {Used: capacity.NetworkMbps - free.NetworkMbps, Available: free.NetworkMbps},
			"diskMB":      {Used: capacity.DiskMB - free.DiskMB, Available: free.DiskMB},
		}
	}
	return out, nil
}

// GetHostCurrentStates returns a snapshot of every known host's current
// bookkeeping (spec §6). A state-inspection operation: fails fast if a
// round is in progress.
func (s *Scheduler) GetHostCurrentStates() ([]HostState, error) {
	if !s.guard.Enter() {
		return nil, yarpcerrors.FailedPreconditionErrorf(
			"getHostCurrentStates: a round or state-inspection operation is already in progress")
	}
	defer s.guard.Exit()

	now := time.Now()
	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()

	out := make([]HostState, 0, len(s.hosts))
	for hostname, h := range s.hosts {
		out = append(out, HostState{
			Hostname:     hostname,
			Group:        h.Group(),
			Disabled:     h.IsDisabled(now),
			Free:         h.Free(),
			Capacity:     h.Capacity(),
			RunningTasks: len(s.tracker.TasksOnHost(hostname)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out, nil
}
