package persist

import "context"

// Snapshot is one push from a real-time listener. Exists is false when the
// remote record was deleted or never written.
type Snapshot struct {
	Record Record
	Exists bool
}

// Subscription delivers snapshots until closed. Close must not return before
// the subscription has stopped delivering, and the channel is closed once it
// has.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Close()
}

// Watcher opens real-time subscriptions on a user's remote cart.
type Watcher interface {
	Watch(ctx context.Context, userID string) (Subscription, error)
}
