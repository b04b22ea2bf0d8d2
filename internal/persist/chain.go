package persist

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/cartsync/internal/metrics"
)

// Attempt is the outcome of one backend during Chain.Load.
type Attempt struct {
	Backend string
	Err     error
}

// Chain is an ordered list of backends. Loads try them in order and stop at
// the first one holding a record; saves go to every backend.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			out = append(out, b)
		}
	}
	return &Chain{backends: out}
}

func (c *Chain) Backends() []Backend { return c.backends }

// Load returns the first record found. A backend that fails or has nothing
// is recorded in the attempts and the next one is tried. The error is
// ErrNotFound when every backend came up empty, otherwise the joined
// backend errors.
func (c *Chain) Load(ctx context.Context, userID string) (Record, []Attempt, error) {
	var (
		attempts []Attempt
		errs     []error
	)
	for _, b := range c.backends {
		rec, err := b.Load(ctx, userID)
		switch {
		case err == nil:
			metrics.PersistOps.WithLabelValues(b.Name(), "load", "ok").Inc()
			return rec, append(attempts, Attempt{Backend: b.Name()}), nil
		case errors.Is(err, ErrNotFound):
			metrics.PersistOps.WithLabelValues(b.Name(), "load", "not_found").Inc()
		default:
			metrics.PersistOps.WithLabelValues(b.Name(), "load", "error").Inc()
			err = &BackendError{Backend: b.Name(), Op: "load", Err: err}
			errs = append(errs, err)
		}
		attempts = append(attempts, Attempt{Backend: b.Name(), Err: err})
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	if len(errs) == 0 {
		return Record{}, attempts, ErrNotFound
	}
	return Record{}, attempts, errors.Join(errs...)
}

// Save writes rec to one backend and records the outcome.
func (c *Chain) Save(ctx context.Context, b Backend, userID string, rec Record) error {
	err := b.Save(ctx, userID, rec)
	metrics.PersistOps.WithLabelValues(b.Name(), "save", metrics.Result(err)).Inc()
	if err != nil {
		return &BackendError{Backend: b.Name(), Op: "save", Err: err}
	}
	return nil
}
