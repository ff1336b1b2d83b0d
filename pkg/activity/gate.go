package activity

import "sync/atomic"

// Gate admits at most one export at a time. TryAcquire never blocks.
type Gate struct {
	held atomic.Bool
}

// TryAcquire takes the gate if it is free.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate. Releasing a free gate is a no-op.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Held reports whether an export currently owns the gate.
func (g *Gate) Held() bool {
	return g.held.Load()
}
