package scheduler

import "sync"

// stateGuard is the fail-fast mutual-exclusion primitive from spec §4.7:
// scheduleOnce, assignTask, and state-inspection operations must not run
// concurrently with one another. Contention fails immediately rather than
// blocking, so a misbehaving caller learns of the mis-use instead of
// stalling (spec §9 "try-with-scope state guard").
type stateGuard struct {
	mu sync.Mutex
}

// Enter attempts to acquire the guard, returning false immediately if it is
// already held by another caller.
func (g *stateGuard) Enter() bool {
	return g.mu.TryLock()
}

// Exit releases the guard. Callers must only call Exit after a successful
// Enter.
func (g *stateGuard) Exit() {
	g.mu.Unlock()
}
