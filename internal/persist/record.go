// Package persist keeps a user's cart durable across sessions and devices.
//
// A Coordinator listens to cart.Store mutations, writes the cart to every
// configured Backend after a quiet period, loads it back on sign-in (remote
// first, local as fallback) and applies real-time snapshots pushed by a
// Watcher while the user stays signed in.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/cartsync/internal/cart"
)

// ErrNotFound is returned by Backend.Load when the user has no stored cart.
var ErrNotFound = errors.New("persist: cart not found")

// Record is the persisted form of a cart.
type Record struct {
	Items     []cart.Line `json:"items"`
	UpdatedAt time.Time   `json:"updatedAt"`
	IsActive  bool        `json:"isActive"`
}

// Kind tells the coordinator how to schedule writes to a backend.
type Kind int

const (
	// KindLocal backends are written synchronously on every flush.
	KindLocal Kind = iota
	// KindRemote backends are written in the background, one write at a time.
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

// Backend stores one Record per user.
type Backend interface {
	Name() string
	Kind() Kind
	Load(ctx context.Context, userID string) (Record, error)
	Save(ctx context.Context, userID string, rec Record) error
}

// BackendError wraps a failure of a single backend.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("persist: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Key is the per-user storage key shared by the key-value backends.
func Key(userID string) string { return "cart:" + userID }

func encodeRecord(rec Record) ([]byte, error) {
	if rec.Items == nil {
		rec.Items = []cart.Line{}
	}
	return json.Marshal(rec)
}

// decodeRecord accepts the envelope written by encodeRecord and the bare item
// array written by older clients.
func decodeRecord(data []byte) (Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []cart.Line
		if err := json.Unmarshal(data, &items); err != nil {
			return Record{}, fmt.Errorf("decode legacy cart: %w", err)
		}
		return Record{Items: items, IsActive: len(items) > 0}, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode cart: %w", err)
	}
	return rec, nil
}
