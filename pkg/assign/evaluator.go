// Package assign implements the Assignment Evaluator (spec §4.5): for one
// task, walk candidate hosts in parallel batches, invoke the fitness
// function, track the best successful result, and short-circuit on
// "good enough".
package assign

import (
	"context"
	"math"
	"runtime"

	atomic "github.com/uber-go/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/host"
	"github.com/uber/fenzo-go/pkg/task"
)

const (
	batchSize           = 10
	candidatesPerWorker = 30
)

// Evaluator evaluates one task against an ordered set of candidate hosts in
// parallel, per spec §4.5.
type Evaluator struct {
	Registry   *constraint.Registry
	FitnessFn  constraint.FitnessCalculator
	GoodEnough constraint.GoodEnough
}

// Outcome is the merged result of evaluating a task against every
// candidate host.
type Outcome struct {
	Best     *task.Result // nil if no candidate succeeded
	Failures []task.Failure
	Trials   int
}

// Evaluate walks candidates in batches of 10 across
// ceil(len(candidates)/30) workers (capped at runtime.NumCPU()), and
// returns the best successful result by maximum fitness. Ties are broken by
// later-scanned wins, an accepted non-determinism documented in spec §4.5
// and §9 (callers needing determinism must supply their own tiebreaker).
func (e *Evaluator) Evaluate(
	ctx context.Context,
	req task.Request,
	candidates []*host.Host,
	snap constraint.TrackerSnapshot,
) Outcome {
	if len(candidates) == 0 {
		return Outcome{}
	}

	workerCount := int(math.Ceil(float64(len(candidates)) / candidatesPerWorker))
	if workerCount < 1 {
		workerCount = 1
	}
	if cpus := runtime.NumCPU(); workerCount > cpus {
		workerCount = cpus
	}

	batches := make(chan []*host.Host, workerCount*2)
	go func() {
		defer close(batches)
		for i := 0; i < len(candidates); i += batchSize {
			end := i + batchSize
			if end > len(candidates) {
				end = len(candidates)
			}
			batches <- candidates[i:end]
		}
	}()

	var goodEnoughFound atomic.Bool

	type workerResult struct {
		best     *task.Result
		failures []task.Failure
		trials   int
	}
	results := make([]workerResult, workerCount)

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workerCount; w++ {
		w := w
		g.Go(func() error {
			var local workerResult
			for batch := range batches {
				if goodEnoughFound.Load() {
					// Best-effort drain: a chunk already taken off the
					// queue is discarded rather than scored once some
					// worker has found a good-enough result. This leaves a
					// small window where a worker mid-batch still scores
					// hosts nobody will use — a performance artifact, not
					// a correctness concern (spec §9).
					continue
				}
				for _, h := range batch {
					local.trials++
					result := h.TryTask(req, e.Registry, e.FitnessFn, snap)
					if !result.Successful {
						local.failures = append(local.failures, result.Failures...)
						continue
					}
					if local.best == nil || result.Fitness >= local.best.Fitness {
						r := result
						local.best = &r
					}
					if e.GoodEnough(result.Fitness) {
						goodEnoughFound.Store(true)
					}
				}
			}
			results[w] = local
			return nil
		})
	}
	_ = g.Wait()

	var out Outcome
	for _, r := range results {
		out.Trials += r.trials
		if r.best != nil {
			if out.Best == nil || r.best.Fitness >= out.Best.Fitness {
				out.Best = r.best
			}
		}
		out.Failures = append(out.Failures, r.failures...)
	}
	return out
}
