package cache

import "context"

// RenewalLocker is a per-user advisory lock around token refreshes. It is
// an optimization against redundant renewal calls across instances, not a
// correctness requirement: WriteToken is last-write-wins either way, so a
// lost or skipped lock only costs an extra commerce call.
type RenewalLocker interface {
	// TryAcquire attempts to take the lock for the user. It never blocks;
	// false means another refresh is already in flight somewhere.
	TryAcquire(ctx context.Context, userID string) (bool, error)

	// Release frees the lock. Safe to call on a lock that already expired.
	Release(ctx context.Context, userID string)
}
