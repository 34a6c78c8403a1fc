package selfupdate

import "sync/atomic"

// Guard is the process-level singleton gate for the update pipeline:
// at most one check/apply may be active at a time, and the startup
// trigger must fire at most once no matter how many callers race it.
type Guard struct {
	active uint32
}

// TryStart reports whether this caller won the race to run the
// pipeline. Idempotent: losers simply get false.
func (g *Guard) TryStart() bool {
	return atomic.CompareAndSwapUint32(&g.active, 0, 1)
}

// Done releases the gate so a later manual check can run.
func (g *Guard) Done() {
	atomic.StoreUint32(&g.active, 0)
}
