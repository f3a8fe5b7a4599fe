package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/fenzo-go/pkg/config"
	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/lease"
	"github.com/uber/fenzo-go/pkg/quota"
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

func newTestScheduler(t *testing.T, opts config.Config) *Scheduler {
	t.Helper()
	if opts.LeaseRejectCallback == nil {
		opts.LeaseRejectCallback = func(lease.Rejection) {}
	}
	cfg, err := config.New(opts)
	require.NoError(t, err)
	return New(cfg, constraint.NewRegistry(), nil)
}

func offer(id, hostname string, cpu, memMB float64) lease.Offer {
	return lease.Offer{
		ID:        id,
		Hostname:  hostname,
		Resources: scalar.Resources{CPU: cpu, MemoryMB: memMB},
	}
}

func req(id, group string, cpu, memMB float64) task.Request {
	return task.Request{ID: id, GroupName: group, Resources: scalar.Resources{CPU: cpu, MemoryMB: memMB}}
}

func TestScheduleOnce_ScenarioOne_SingleTaskBound(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	result, err := s.ScheduleOnce(
		[]task.Request{req("t1", "", 2, 4096)},
		[]lease.Offer{offer("o1", "h1", 4, 8192)},
	)
	require.NoError(t, err)
	require.Empty(t, result.PerTaskFailures)

	vm, ok := result.PerHostAssignments["h1"]
	require.True(t, ok)
	assert.Len(t, vm.Tasks, 1)
	assert.Equal(t, "t1", vm.Tasks[0].ID)
	assert.Equal(t, 0, result.LeasesRejected)

	status, err := s.GetResourceStatus()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, status["h1"]["cpu"].Available, 0.001)
	assert.InDelta(t, 4096.0, status["h1"]["memoryMB"].Available, 0.001)
}

func TestScheduleOnce_ScenarioTwo_ThirdTaskUnplaced(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	result, err := s.ScheduleOnce(
		[]task.Request{req("t1", "", 1.5, 0), req("t2", "", 1.5, 0), req("t3", "", 1.5, 0)},
		[]lease.Offer{offer("o1", "h1", 2, 0), offer("o2", "h2", 2, 0)},
	)
	require.NoError(t, err)

	assigned := map[string]bool{}
	for hostname, vm := range result.PerHostAssignments {
		for _, tk := range vm.Tasks {
			assigned[tk.ID] = true
			_ = hostname
		}
	}
	assert.True(t, assigned["t1"])
	assert.True(t, assigned["t2"])
	assert.False(t, assigned["t3"])

	failures, ok := result.PerTaskFailures["t3"]
	require.True(t, ok)
	assert.NotEmpty(t, failures)
	for _, f := range failures {
		assert.Equal(t, task.FailureResourceShortage, f.Kind)
	}
}

func TestScheduleOnce_ScenarioThree_DuplicateOfferIDFails(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	_, err := s.ScheduleOnce(nil, []lease.Offer{
		offer("a", "h1", 1, 0),
		offer("a", "h2", 1, 0),
	})
	assert.Error(t, err)

	// The first offer in the batch was accepted before the duplicate
	// aborted it; a follow-up round sees h1 as a viable candidate.
	result, err := s.ScheduleOnce([]task.Request{req("t1", "", 1, 0)}, nil)
	require.NoError(t, err)
	vm, ok := result.PerHostAssignments["h1"]
	require.True(t, ok)
	assert.Len(t, vm.Tasks, 1)
}

func TestScheduleOnce_ScenarioFour_ConcurrentCallsOneFails(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	release := make(chan struct{})
	require.True(t, s.guard.Enter())

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		<-release
		_, err = s.ScheduleOnce(nil, nil)
	}()

	close(release)
	time.Sleep(10 * time.Millisecond)
	wg.Wait()
	assert.Error(t, err)

	s.guard.Exit()
	_, err = s.ScheduleOnce(nil, nil)
	assert.NoError(t, err)
}

func TestScheduleOnce_ScenarioFive_QuotaExhaustionSkipsSecondTaskOfGroup(t *testing.T) {
	s := newTestScheduler(t, config.Config{
		InitialResAllocs: map[string]quota.ResAlloc{
			"groupA": {CPU: 4},
		},
	})

	result, err := s.ScheduleOnce(
		[]task.Request{
			req("a1", "groupA", 3, 0),
			req("a2", "groupA", 2, 0),
			req("b1", "groupB", 1, 0),
		},
		[]lease.Offer{offer("o1", "h1", 8, 0)},
	)
	require.NoError(t, err)

	vm := result.PerHostAssignments["h1"]
	boundIDs := map[string]bool{}
	for _, tk := range vm.Tasks {
		boundIDs[tk.ID] = true
	}
	assert.True(t, boundIDs["a1"])
	assert.True(t, boundIDs["b1"])
	assert.False(t, boundIDs["a2"])

	failures, ok := result.PerTaskFailures["a2"]
	require.True(t, ok)
	require.Len(t, failures, 1)
	assert.Equal(t, task.FailureQuotaExceeded, failures[0].Kind)
}

func TestScheduleOnce_ScenarioSix_GoodEnoughPicksHighFitnessHost(t *testing.T) {
	fitnessFn := func(r task.Request, hv constraint.HostView, snap constraint.TrackerSnapshot) float64 {
		if hv.Hostname() == "h1" {
			return 0.9
		}
		return 0.5
	}
	s := newTestScheduler(t, config.Config{
		FitnessCalculator:   fitnessFn,
		IsFitnessGoodEnough: func(f float64) bool { return f > 0.8 },
	})

	result, err := s.ScheduleOnce(
		[]task.Request{req("t1", "", 1, 0)},
		[]lease.Offer{offer("o1", "h1", 2, 0), offer("o2", "h2", 2, 0)},
	)
	require.NoError(t, err)
	_, ok := result.PerHostAssignments["h1"]
	assert.True(t, ok)
}

func TestScheduleOnce_Idempotent_EmptyTasksAndOffers(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	_, err := s.ScheduleOnce([]task.Request{req("t1", "", 1, 0)}, []lease.Offer{offer("o1", "h1", 2, 0)})
	require.NoError(t, err)

	before, err := s.GetResourceStatus()
	require.NoError(t, err)

	_, err = s.ScheduleOnce(nil, nil)
	require.NoError(t, err)

	after, err := s.GetResourceStatus()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAssignUnassignTask_RoundTrip(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	require.NoError(t, s.AssignTask("running-1", "h1"))
	states, err := s.GetHostCurrentStates()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 1, states[0].RunningTasks)

	s.UnassignTask("running-1", "h1")
	states, err = s.GetHostCurrentStates()
	require.NoError(t, err)
	assert.Equal(t, 0, states[0].RunningTasks)
}

func TestScheduleOnce_AllDisabledClusterLeavesTasksUnplaced(t *testing.T) {
	s := newTestScheduler(t, config.Config{})
	s.DisableHost("h1", time.Minute)

	result, err := s.ScheduleOnce(
		[]task.Request{req("t1", "", 1, 0)},
		[]lease.Offer{offer("o1", "h1", 2, 0)},
	)
	require.NoError(t, err)
	assert.Empty(t, result.PerHostAssignments)
	failures, ok := result.PerTaskFailures["t1"]
	require.True(t, ok)
	require.Len(t, failures, 1)
	assert.Equal(t, task.FailureNoViableHost, failures[0].Kind)
}

func TestScheduleOnce_IdleHostOffersRejected(t *testing.T) {
	rejected := make([]lease.Rejection, 0)
	s := newTestScheduler(t, config.Config{
		LeaseRejectCallback: func(r lease.Rejection) { rejected = append(rejected, r) },
	})

	result, err := s.ScheduleOnce(nil, []lease.Offer{offer("o1", "h1", 4, 8192)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.IdleVMs)
	require.Len(t, rejected, 1)
	assert.Equal(t, lease.ReasonIdleHost, rejected[0].Reason)
}

func TestScheduleOnce_OfferPortRangesAggregatedIntoHostCapacity(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	o := offer("o1", "h1", 4, 8192)
	o.PortRanges = []scalar.PortRange{{Begin: 31000, End: 31001}, {Begin: 32000, End: 32000}}

	taskReq := req("t1", "", 1, 0)
	taskReq.Resources.Ports = 3

	result, err := s.ScheduleOnce([]task.Request{taskReq}, []lease.Offer{o})
	require.NoError(t, err)
	require.Empty(t, result.PerTaskFailures)

	vm, ok := result.PerHostAssignments["h1"]
	require.True(t, ok)
	assert.Len(t, vm.Tasks, 1)
}

func TestScheduleOnce_OfferPortRangesInsufficientRejectsTask(t *testing.T) {
	s := newTestScheduler(t, config.Config{})

	o := offer("o1", "h1", 4, 8192)
	o.PortRanges = []scalar.PortRange{{Begin: 31000, End: 31000}}

	taskReq := req("t1", "", 1, 0)
	taskReq.Resources.Ports = 2

	result, err := s.ScheduleOnce([]task.Request{taskReq}, []lease.Offer{o})
	require.NoError(t, err)
	failures, ok := result.PerTaskFailures["t1"]
	require.True(t, ok)
	require.Len(t, failures, 1)
	assert.Equal(t, task.FailureNoViableHost, failures[0].Kind)
}
