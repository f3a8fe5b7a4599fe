// Package scheduler implements the Scheduling Round Orchestrator (spec
// §4.6), the State Guard (spec §4.7), and the Mutation API (spec §4.8) that
// tie the Offer Store, Host View, Task Tracker, Quota Evaluator, and
// Assignment Evaluator into a single scheduleOnce entry point. Grounded on
// the teacher's summary.go lock discipline, generalized from per-host
// locking to the single scheduler-wide fail-fast lock the spec calls for.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"

	"github.com/uber/fenzo-go/pkg/assign"
	"github.com/uber/fenzo-go/pkg/autoscale"
	"github.com/uber/fenzo-go/pkg/config"
	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/host"
	"github.com/uber/fenzo-go/pkg/lease"
	"github.com/uber/fenzo-go/pkg/metrics"
	"github.com/uber/fenzo-go/pkg/quota"
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

// purgeInterval is the inactive-host sweep cadence (spec §9 "host lifetime
// without explicit destruction").
const purgeInterval = 60 * time.Second

// Scheduler composes the Offer Store, Host View, Task Tracker, Quota
// Evaluator, Assignment Evaluator, and autoscale forwarder into the single
// scheduleOnce entry point.
type Scheduler struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	leases lease.Store

	hostsMu sync.Mutex
	hosts   map[string]*host.Host

	tracker    *host.Tracker
	quotaEval  *quota.Evaluator
	assignEval *assign.Evaluator
	autoscaler *autoscale.Store

	guard     stateGuard
	lastPurge time.Time

	groupMu       sync.Mutex
	groupAttrName string
	activeGroups  map[string]bool // nil means every group is active
}

// New builds a Scheduler from a validated Config and the constraint/fitness
// plugin registry the host framework has populated. m may be nil, in which
// case a no-op metrics backend is used.
func New(cfg *config.Config, registry *constraint.Registry, m *metrics.Metrics) *Scheduler {
	if m == nil {
		m = metrics.NewNoop()
	}

	s := &Scheduler{
		cfg:     cfg,
		metrics: m,
		leases:  lease.New(cfg.SingleOfferPerHost, cfg.LeaseRejectCallback),
		hosts:   make(map[string]*host.Host),
		tracker: host.NewTracker(),
		quotaEval: quota.NewEvaluator(cfg.InitialResAllocs),
		assignEval: &assign.Evaluator{
			Registry:   registry,
			FitnessFn:  cfg.FitnessCalculator,
			GoodEnough: cfg.IsFitnessGoodEnough,
		},
		autoscaler:    autoscale.NewStore(cfg.AutoscalerCallback, cfg.DisableShortfallEvaluation),
		groupAttrName: cfg.AutoScaleByAttributeName,
	}

	if cfg.AutoScaleByAttributeName != "" {
		s.autoscaler.SetAttributeName(cfg.AutoScaleByAttributeName)
		for group, rule := range cfg.AutoScaleRules {
			if err := s.autoscaler.AddOrReplaceRule(group, rule); err != nil {
				log.WithError(err).WithField("group", group).
					Error("invalid autoscale rule in configuration, skipping")
			}
		}
	}

	return s
}

// ScheduleOnce runs one scheduling round over requests against the
// currently held offers plus newOffers, implementing the 9-step sequence of
// spec §4.6. Must not be invoked concurrently with itself, AssignTask, or a
// state-inspection operation; concurrent entry returns a state error rather
// than blocking (spec §4.7).
func (s *Scheduler) ScheduleOnce(requests []task.Request, newOffers []lease.Offer) (res *Result, err error) {
	if !s.guard.Enter() {
		return nil, yarpcerrors.FailedPreconditionErrorf(
			"scheduleOnce: a round or state-inspection operation is already in progress")
	}
	defer s.guard.Exit()

	start := time.Now()

	// Spec §4.6 failure semantics: unexpected internal errors are logged
	// and swallowed, returning a null result; only usage errors (duplicate
	// offer id, concurrent entry) propagate to the caller.
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("scheduling round panicked, returning no result")
			res, err = nil, nil
		}
	}()

	s.metrics.Rounds.Inc(1)

	_, addErr := s.leases.AddOffers(newOffers)
	// Offers accepted earlier in the batch stay in the store even if a
	// later one aborts it (spec §8 scenario 3); sync the Host View for
	// every touched hostname regardless, so a subsequent round sees them.
	s.syncHostsFromOffers(newOffers)
	if addErr != nil {
		s.metrics.RoundErrors.Inc(1)
		return nil, addErr
	}
	s.metrics.OffersAdded.Inc(int64(len(newOffers)))

	now := time.Now()
	expired := s.leases.PurgeExpired(now, time.Duration(s.cfg.LeaseOfferExpirySecs)*time.Second)
	leasesRejected := len(expired)
	s.syncHostsFromRejections(expired)

	candidates := s.gatherCandidates(now)
	clusterMax := clusterMaxCapacity(candidates)

	baselineUsage, baselineCounts := s.baselineUsageAndCounts()
	s.quotaEval.Prepare(baselineUsage, baselineCounts)

	result := &Result{
		PerHostAssignments: make(map[string]VMAssignment),
		PerTaskFailures:    make(map[string][]task.Failure),
	}

	var failedNotQuota []task.Request

	for _, req := range requests {
		if s.quotaEval.TaskGroupFailed(req.GroupName) {
			continue
		}
		if qf := s.quotaEval.HasResAllocs(req); qf != nil {
			result.PerTaskFailures[req.ID] = []task.Failure{*qf}
			s.metrics.TasksFailed.Inc(1)
			continue
		}
		if !clusterMax.Contains(req.EffectiveResources()) {
			result.PerTaskFailures[req.ID] = []task.Failure{{
				Kind:   task.FailureNoViableHost,
				Reason: "no host in the cluster could ever satisfy this task's resource requirement",
			}}
			failedNotQuota = append(failedNotQuota, req)
			s.metrics.TasksFailed.Inc(1)
			continue
		}

		outcome := s.assignEval.Evaluate(context.Background(), req, candidates, s.tracker.Snapshot())
		result.NumAllocationTrials += outcome.Trials

		if outcome.Best == nil {
			result.PerTaskFailures[req.ID] = outcome.Failures
			failedNotQuota = append(failedNotQuota, req)
			s.metrics.TasksFailed.Inc(1)
			continue
		}

		outcome.Best.Commit()
		s.quotaEval.Commit(req)
		s.tracker.Assign(req, outcome.Best.Hostname, time.Now())
		s.metrics.TasksAssigned.Inc(1)
	}

	idleByGroup, idleHostCountByGroup, idleVMs, additionalRejected := s.collectRoundEndHostState(result)
	result.IdleVMs = idleVMs
	leasesRejected += additionalRejected

	if now.Sub(s.lastPurge) > purgeInterval {
		s.sweepInactiveHosts(now)
		s.lastPurge = now
	}

	s.autoscaler.Forward(idleByGroup, idleHostCountByGroup, failedNotQuota)

	result.LeasesAdded = len(newOffers)
	result.LeasesRejected = leasesRejected
	result.RuntimeMillis = time.Since(start).Milliseconds()

	s.metrics.RoundDuration.Record(time.Since(start))
	s.metrics.OffersRejected.Inc(int64(leasesRejected))
	s.metrics.TrialsPerRound.Update(float64(result.NumAllocationTrials))
	s.metrics.IdleHosts.Update(float64(result.IdleVMs))
	s.metrics.TotalHosts.Update(float64(result.TotalVMs))

	return result, nil
}

// collectRoundEndHostState implements spec §4.6 step 6: walk every known
// host, collect its round assignment (clearing the tentative list either
// way), and reject the offers of any host that neither received an
// assignment this round nor carries a running task.
func (s *Scheduler) collectRoundEndHostState(result *Result) (
	idleByGroup map[string]scalar.Resources,
	idleHostCountByGroup map[string]int,
	idleVMs int,
	leasesRejected int,
) {
	idleByGroup = make(map[string]scalar.Resources)
	idleHostCountByGroup = make(map[string]int)

	s.hostsMu.Lock()
	snapshot := make([]*host.Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		snapshot = append(snapshot, h)
	}
	s.hostsMu.Unlock()

	result.TotalVMs = len(snapshot)

	for _, h := range snapshot {
		assigned := h.ResetAndGetSuccessfullyAssignedRequests()
		if len(assigned) > 0 {
			result.PerHostAssignments[h.Hostname()] = VMAssignment{Hostname: h.Hostname(), Tasks: assigned}
			continue
		}
		if h.HasPreviouslyAssignedTasks() || !h.HasAnyOffer() {
			continue
		}

		capacity := h.Capacity()
		rejected := s.leases.RejectIdleHost(h.Hostname())
		if len(rejected) == 0 {
			continue
		}
		leasesRejected += len(rejected)
		idleVMs++
		h.SetHeldOffers(scalar.Resources{}, 0)

		group := h.Group()
		idleByGroup[group] = idleByGroup[group].Add(capacity)
		idleHostCountByGroup[group]++
	}

	return idleByGroup, idleHostCountByGroup, idleVMs, leasesRejected
}

// gatherCandidates returns the ordered set of currently active, non-disabled
// hosts holding at least one offer (spec §4.6 step 3, §4.2).
func (s *Scheduler) gatherCandidates(now time.Time) []*host.Host {
	groups := s.activeGroupsSnapshot()

	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()

	hostnames := make([]string, 0, len(s.hosts))
	for hostname := range s.hosts {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	candidates := make([]*host.Host, 0, len(hostnames))
	for _, hostname := range hostnames {
		h := s.hosts[hostname]
		if h.IsDisabled(now) {
			continue
		}
		if groups != nil && !groups[h.Group()] {
			continue
		}
		if !h.HasAnyOffer() {
			continue
		}
		candidates = append(candidates, h)
	}
	return candidates
}

// clusterMaxCapacity returns the dimension-wise maximum capacity any single
// candidate host offers, used by spec §4.6 step 5c's "no host could ever
// satisfy" fatal-failure check.
func clusterMaxCapacity(candidates []*host.Host) scalar.Resources {
	var max scalar.Resources
	for _, h := range candidates {
		max = scalar.Max(max, h.Capacity())
	}
	return max
}

// baselineUsageAndCounts seeds the Quota Evaluator's per-group usage from
// every task the Task Tracker currently knows about (spec §4.4 prepare()).
func (s *Scheduler) baselineUsageAndCounts() (map[string]scalar.Resources, map[string]int) {
	usage := make(map[string]scalar.Resources)
	counts := make(map[string]int)
	for _, tt := range s.tracker.All() {
		usage[tt.Task.GroupName] = usage[tt.Task.GroupName].Add(tt.Task.Resources)
		counts[tt.Task.GroupName]++
	}
	return usage, counts
}

// sweepInactiveHosts removes every host with no offers, no running tasks,
// and no active disable hold (spec §9 "host lifetime without explicit
// destruction").
func (s *Scheduler) sweepInactiveHosts(now time.Time) {
	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()
	for hostname, h := range s.hosts {
		if h.IsPurgeable(now) {
			delete(s.hosts, hostname)
		}
	}
}

// getOrCreateHost returns the Host record for hostname, creating an empty
// one if this is the first time it has been seen (spec §3 "hosts are
// created lazily on first offer or first disable/assign call").
func (s *Scheduler) getOrCreateHost(hostname string) *host.Host {
	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()
	h, ok := s.hosts[hostname]
	if !ok {
		h = host.New(hostname)
		s.hosts[hostname] = h
	}
	return h
}

func (s *Scheduler) lookupHost(hostname string) *host.Host {
	s.hostsMu.Lock()
	defer s.hostsMu.Unlock()
	return s.hosts[hostname]
}

// syncHostsFromOffers refreshes the aggregate Host View for every hostname
// touched by a batch of newly ingested offers.
func (s *Scheduler) syncHostsFromOffers(offers []lease.Offer) {
	touched := make(map[string]struct{}, len(offers))
	for _, o := range offers {
		touched[o.Hostname] = struct{}{}
	}
	for hostname := range touched {
		s.refreshHost(hostname)
	}
}

// syncHostsFromRejections refreshes the aggregate Host View for every
// hostname that lost an offer to expiry.
func (s *Scheduler) syncHostsFromRejections(rejections []lease.Rejection) {
	touched := make(map[string]struct{}, len(rejections))
	for _, r := range rejections {
		touched[r.Offer.Hostname] = struct{}{}
	}
	for hostname := range touched {
		s.refreshHost(hostname)
	}
}

// refreshHost recomputes hostname's aggregate resource vector, vmId, and
// group tag from the offers currently held for it in the Offer Store.
func (s *Scheduler) refreshHost(hostname string) {
	h := s.getOrCreateHost(hostname)

	offers := s.leases.OffersForHost(hostname)
	var total scalar.Resources
	var vmID string
	var attrs map[string]string
	for _, o := range offers {
		res := o.Resources
		res.Ports = o.EffectivePorts()
		total = total.Add(res)
		if o.VMID != "" {
			vmID = o.VMID
		}
		if len(o.Attributes) > 0 {
			attrs = o.Attributes
		}
	}

	h.SetHeldOffers(total, len(offers))
	if vmID != "" {
		h.SetVMID(vmID)
	}
	if attrs != nil {
		h.SetAttributes(attrs)
		if groupAttr := s.activeGroupAttribute(); groupAttr != "" {
			h.SetGroup(attrs[groupAttr])
		}
	}
}

func (s *Scheduler) activeGroupAttribute() string {
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	return s.groupAttrName
}

func (s *Scheduler) activeGroupsSnapshot() map[string]bool {
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	return s.activeGroups
}
