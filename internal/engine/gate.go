package engine

import (
	"context"
	"sync"
	"time"
)

// QuotaCounter is the ledger slice the safety gate needs.
type QuotaCounter interface {
	CountCompletedSince(ctx context.Context, actionID, userID string, since time.Time) (int, error)
}

// Gate enforces the per-action, per-user daily completion quota. Check is a
// fast pre-flight; the authoritative enforcement happens in the ledger's
// conditional completion, which re-evaluates the count in the same
// transaction that marks the execution completed. Lock serialises dispatches
// for one (action, user) pair so concurrent checks cannot both pass on the
// last quota slot.
type Gate struct {
	Counter QuotaCounter
	Now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Check reports whether another completion is allowed today. A limit of zero
// or less blocks all executions.
func (g *Gate) Check(ctx context.Context, action Action, userID string) (bool, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	count, err := g.Counter.CountCompletedSince(ctx, action.ID, userID, startOfDay(now()))
	if err != nil {
		return false, err
	}
	return count < action.MaxExecutionsPerDay, nil
}

// Lock acquires the keyed mutex for one (action, user) pair and returns the
// unlock function.
func (g *Gate) Lock(actionID, userID string) func() {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = map[string]*sync.Mutex{}
	}
	key := actionID + "\x00" + userID
	lock, ok := g.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[key] = lock
	}
	g.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
