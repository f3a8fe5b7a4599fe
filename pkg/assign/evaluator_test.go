package assign

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/constraint/constraintmocks"
	"github.com/uber/fenzo-go/pkg/host"
	"github.com/uber/fenzo-go/pkg/scalar"
	"github.com/uber/fenzo-go/pkg/task"
)

func newEvaluator(fitnessFn constraint.FitnessCalculator, goodEnough constraint.GoodEnough) *Evaluator {
	if fitnessFn == nil {
		fitnessFn = constraint.DefaultFitnessCalculator
	}
	if goodEnough == nil {
		goodEnough = constraint.DefaultGoodEnough
	}
	return &Evaluator{
		Registry:   constraint.NewRegistry(),
		FitnessFn:  fitnessFn,
		GoodEnough: goodEnough,
	}
}

func TestEvaluate_SingleHostSuccess(t *testing.T) {
	h1 := host.New("h1")
	h1.SetHeldOffers(scalar.Resources{CPU: 4, MemoryMB: 8192}, 1)

	e := newEvaluator(nil, nil)
	req := task.Request{ID: "t1", Resources: scalar.Resources{CPU: 2, MemoryMB: 4096}}

	out := e.Evaluate(context.Background(), req, []*host.Host{h1}, host.NewTracker().Snapshot())
	require.NotNil(t, out.Best)
	assert.Equal(t, "h1", out.Best.Hostname)
}

func TestEvaluate_ScenarioTwo_ThirdTaskUnplaced(t *testing.T) {
	h1 := host.New("h1")
	h1.SetHeldOffers(scalar.Resources{CPU: 2}, 1)
	h2 := host.New("h2")
	h2.SetHeldOffers(scalar.Resources{CPU: 2}, 1)

	e := newEvaluator(nil, nil)
	snap := host.NewTracker().Snapshot()
	hosts := []*host.Host{h1, h2}

	task1 := task.Request{ID: "task1", Resources: scalar.Resources{CPU: 1.5}}
	out1 := e.Evaluate(context.Background(), task1, hosts, snap)
	require.NotNil(t, out1.Best)
	out1.Best.Commit()

	task2 := task.Request{ID: "task2", Resources: scalar.Resources{CPU: 1.5}}
	out2 := e.Evaluate(context.Background(), task2, hosts, snap)
	require.NotNil(t, out2.Best)
	assert.NotEqual(t, out1.Best.Hostname, out2.Best.Hostname)
	out2.Best.Commit()

	task3 := task.Request{ID: "task3", Resources: scalar.Resources{CPU: 1.5}}
	out3 := e.Evaluate(context.Background(), task3, hosts, snap)
	assert.Nil(t, out3.Best)
	assert.Len(t, out3.Failures, 2)
	for _, f := range out3.Failures {
		assert.Equal(t, task.FailureResourceShortage, f.Kind)
	}
}

func TestEvaluate_GoodEnoughPicksHighFitnessHost(t *testing.T) {
	h1 := host.New("h1")
	h1.SetHeldOffers(scalar.Resources{CPU: 4}, 1)
	h2 := host.New("h2")
	h2.SetHeldOffers(scalar.Resources{CPU: 4}, 1)

	fitnessFn := func(req task.Request, hv constraint.HostView, snap constraint.TrackerSnapshot) float64 {
		if hv.Hostname() == "h1" {
			return 0.9
		}
		return 0.5
	}
	goodEnough := func(f float64) bool { return f > 0.8 }

	e := newEvaluator(fitnessFn, goodEnough)
	req := task.Request{ID: "t1", Resources: scalar.Resources{CPU: 1}}

	out := e.Evaluate(context.Background(), req, []*host.Host{h1, h2}, host.NewTracker().Snapshot())
	require.NotNil(t, out.Best)
	assert.Equal(t, "h1", out.Best.Hostname)
	assert.InDelta(t, 0.9, out.Best.Fitness, 1e-9)
}

// TestEvaluate_MockedFitnessPluginGoodEnoughShortCircuits exercises the
// evaluator against a gomock-backed FitnessPlugin rather than a hand-written
// closure, the way binpacking/loadawareranker_test.go mocks its pluggable
// ranking strategy.
func TestEvaluate_MockedFitnessPluginGoodEnoughResultChosen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h1 := host.New("h1")
	h1.SetHeldOffers(scalar.Resources{CPU: 4}, 1)
	h2 := host.New("h2")
	h2.SetHeldOffers(scalar.Resources{CPU: 4}, 1)

	plugin := constraintmocks.NewMockFitnessPlugin(ctrl)
	plugin.EXPECT().Calculate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(0.9).AnyTimes()

	e := newEvaluator(plugin.AsFunc(), func(f float64) bool { return f > 0.8 })
	req := task.Request{ID: "t1", Resources: scalar.Resources{CPU: 1}}

	out := e.Evaluate(context.Background(), req, []*host.Host{h1, h2}, host.NewTracker().Snapshot())
	require.NotNil(t, out.Best)
	assert.InDelta(t, 0.9, out.Best.Fitness, 1e-9)
}

// TestEvaluate_MockedHardConstraintRejectsAllHosts exercises a gomock-backed
// HardConstraintPlugin wired into the registry under a name, confirming a
// task rejected by every host produces one failure per candidate.
func TestEvaluate_MockedHardConstraintRejectsAllHosts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h1 := host.New("h1")
	h1.SetHeldOffers(scalar.Resources{CPU: 4}, 1)
	h2 := host.New("h2")
	h2.SetHeldOffers(scalar.Resources{CPU: 4}, 1)

	plugin := constraintmocks.NewMockHardConstraintPlugin(ctrl)
	plugin.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(false, "blacklisted").Times(2)

	registry := constraint.NewRegistry()
	registry.RegisterHard("blacklist", plugin.AsFunc())

	e := &Evaluator{
		Registry:   registry,
		FitnessFn:  constraint.DefaultFitnessCalculator,
		GoodEnough: constraint.DefaultGoodEnough,
	}
	req := task.Request{ID: "t1", Resources: scalar.Resources{CPU: 1}, HardConstraintNames: []string{"blacklist"}}

	out := e.Evaluate(context.Background(), req, []*host.Host{h1, h2}, host.NewTracker().Snapshot())
	assert.Nil(t, out.Best)
	require.Len(t, out.Failures, 2)
	for _, f := range out.Failures {
		assert.Equal(t, task.FailureHardConstraint, f.Kind)
		assert.Equal(t, "blacklisted", f.Reason)
	}
}

func TestEvaluate_NoCandidates(t *testing.T) {
	e := newEvaluator(nil, nil)
	out := e.Evaluate(context.Background(), task.Request{ID: "t1"}, nil, host.NewTracker().Snapshot())
	assert.Nil(t, out.Best)
	assert.Equal(t, 0, out.Trials)
}

func TestEvaluate_ManyHostsExercisesMultipleWorkers(t *testing.T) {
	hosts := make([]*host.Host, 0, 75)
	for i := 0; i < 75; i++ {
		h := host.New("h")
		h.SetHeldOffers(scalar.Resources{CPU: 0.1}, 1)
		hosts = append(hosts, h)
	}
	// One host with enough capacity, placed last so early termination can't
	// trivially short-circuit on the first batch.
	winner := host.New("winner")
	winner.SetHeldOffers(scalar.Resources{CPU: 4}, 1)
	hosts = append(hosts, winner)

	e := newEvaluator(nil, nil)
	req := task.Request{ID: "t1", Resources: scalar.Resources{CPU: 2}}
	out := e.Evaluate(context.Background(), req, hosts, host.NewTracker().Snapshot())
	require.NotNil(t, out.Best)
	assert.Equal(t, "winner", out.Best.Hostname)
	assert.Equal(t, len(hosts), out.Trials)
}
