package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/debounce"
	"github.com/shashiranjanraj/cartsync/internal/metrics"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
	"github.com/shashiranjanraj/cartsync/pkg/workerpool"
)

const (
	DefaultWindow = 500 * time.Millisecond
	// remote writes give up after this long; the next flush retries.
	remoteSaveTimeout = 15 * time.Second
	localSaveTimeout  = 5 * time.Second
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWindow sets the debounce quiet period.
func WithWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.window = d }
}

// WithScheduler replaces the debounce timer; fn is the flush to run.
func WithScheduler(build func(fn func()) debounce.Scheduler) Option {
	return func(c *Coordinator) { c.newScheduler = build }
}

// WithSessionSchemes sets which image URI schemes are stripped before saving.
func WithSessionSchemes(schemes ...string) Option {
	return func(c *Coordinator) { c.sanitizer = NewSanitizer(schemes...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator keeps a cart.Store in sync with its backends for whichever
// user is signed in.
//
// Each sign-in starts a new epoch. Snapshots carry the epoch of the
// subscription that produced them and are dropped once a later epoch has
// begun, so a slow listener for a previous user can never touch the current
// cart.
type Coordinator struct {
	store     *cart.Store
	chain     *Chain
	watcher   Watcher
	sanitizer Sanitizer
	log       *slog.Logger

	window       time.Duration
	newScheduler func(fn func()) debounce.Scheduler
	sched        debounce.Scheduler
	remotes      map[string]*remoteWriter
	unlisten     func()

	// mu serializes SignIn, SignOut and Close.
	mu     sync.Mutex
	sub    Subscription
	stop   chan struct{}
	doneCh chan struct{}
	closed bool

	// applyMu orders epoch changes against snapshot application.
	applyMu sync.Mutex
	epoch   atomic.Uint64
}

type remoteWriter struct {
	backend Backend
	pool    *workerpool.Pool

	mu       sync.Mutex
	latest   map[string]uint64 // newest queued write per user
	inflight map[string]int    // queued or running writes per user
	seq      uint64
}

func (w *remoteWriter) next(owner string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.latest[owner] = w.seq
	w.inflight[owner]++
	return w.seq
}

func (w *remoteWriter) done(owner string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight[owner]--
	if w.inflight[owner] <= 0 {
		delete(w.inflight, owner)
	}
}

func (w *remoteWriter) busy(owner string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inflight[owner] > 0
}

// current reports whether seq is still the newest write for owner, and
// forgets owner once it is.
func (w *remoteWriter) current(owner string, seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest[owner] != seq {
		return false
	}
	delete(w.latest, owner)
	return true
}

// New wires c to store. watcher may be nil when no backend supports
// real-time updates.
func New(store *cart.Store, chain *Chain, watcher Watcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		chain:     chain,
		watcher:   watcher,
		sanitizer: NewSanitizer("blob:"),
		log:       logger.L,
		window:    DefaultWindow,
		remotes:   map[string]*remoteWriter{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.newScheduler == nil {
		window := c.window
		c.newScheduler = func(fn func()) debounce.Scheduler { return debounce.New(window, fn) }
	}
	c.sched = c.newScheduler(c.flush)

	for _, b := range chain.Backends() {
		if b.Kind() == KindRemote {
			c.remotes[b.Name()] = &remoteWriter{
				backend:  b,
				pool:     workerpool.New("persist-"+b.Name(), 1),
				latest:   map[string]uint64{},
				inflight: map[string]int{},
			}
		}
	}

	c.unlisten = store.OnMutate(func(m cart.Mutation) {
		if m.Owner == "" {
			return // anonymous carts stay in memory
		}
		c.sched.Trigger()
	})
	return c
}

// Epoch identifies the current sign-in session.
func (c *Coordinator) Epoch() uint64 { return c.epoch.Load() }

// Pending reports whether local changes are waiting to be written.
func (c *Coordinator) Pending() bool { return c.sched.Pending() }

// SignIn makes userID the owner of the cart. Changes still pending for the
// previous user are flushed first, then the previous subscription is
// disposed, the cart is loaded (remote first, local fallback) and a new
// subscription is opened. A cart that cannot be loaded from any backend
// starts empty; SignIn only fails for an empty userID or a closed
// coordinator.
func (c *Coordinator) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("persist: sign in: empty user id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.store.Owner() == userID && c.sub != nil {
		return nil
	}

	c.sched.Flush()
	c.disposeLocked()
	epoch := c.begin(userID)

	log := c.log.With("user_id", userID, "epoch", epoch)
	rec, attempts, err := c.chain.Load(ctx, userID)
	for _, a := range attempts {
		if a.Err != nil && !errors.Is(a.Err, ErrNotFound) {
			log.Warn("persist: cart load failed, trying next backend", "backend", a.Backend, "error", a.Err)
		}
	}
	switch {
	case err == nil:
		c.install(epoch, rec)
		log.Info("persist: cart loaded", "backend", attempts[len(attempts)-1].Backend, "lines", c.store.Len())
	case errors.Is(err, ErrNotFound):
		log.Debug("persist: no stored cart")
	default:
		log.Error("persist: cart unavailable, starting empty", "error", err)
	}

	if c.watcher == nil {
		return nil
	}
	sub, err := c.watcher.Watch(context.WithoutCancel(ctx), userID)
	if err != nil {
		log.Warn("persist: real-time updates unavailable", "error", err)
		return nil
	}
	c.sub = sub
	c.stop = make(chan struct{})
	c.doneCh = make(chan struct{})
	metrics.ActiveSubscriptions.Inc()
	go c.consume(epoch, userID, sub, c.stop, c.doneCh)
	return nil
}

// SignOut flushes pending changes, closes the subscription and leaves an
// empty anonymous cart.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.sched.Flush()
	c.disposeLocked()
	c.begin("")
	return ctx.Err()
}

// Flush writes pending changes now instead of waiting for the quiet period.
// Remote writes are queued, not awaited.
func (c *Coordinator) Flush() { c.sched.Flush() }

// Close flushes pending changes, disposes the subscription and waits for
// queued remote writes until ctx is done.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.unlisten()
	c.sched.Close()
	c.disposeLocked()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, w := range c.remotes {
			w.pool.Shutdown()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrClosed is returned by SignIn and SignOut after Close.
var ErrClosed = errors.New("persist: coordinator closed")

// begin starts a new epoch owned by userID with an empty cart.
func (c *Coordinator) begin(userID string) uint64 {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	epoch := c.epoch.Add(1)
	c.store.Reset(userID)
	return epoch
}

func (c *Coordinator) install(epoch uint64, rec Record) {
	lines, stripped := c.sanitizer.Lines(rec.Items)
	if stripped > 0 {
		c.log.Debug("persist: dropped session-local images", "count", stripped)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.epoch.Load() != epoch {
		metrics.StaleSnapshots.Inc()
		return
	}
	c.store.Replace(lines, rec.UpdatedAt)
}

// disposeLocked must be called with c.mu held.
func (c *Coordinator) disposeLocked() {
	if c.sub == nil {
		return
	}
	close(c.stop)
	c.sub.Close()
	<-c.doneCh
	c.sub, c.stop, c.doneCh = nil, nil, nil
	metrics.ActiveSubscriptions.Dec()
}

func (c *Coordinator) consume(epoch uint64, userID string, sub Subscription, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ch := sub.Snapshots()
	for {
		select {
		case <-stop:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			c.receive(epoch, userID, snap)
		}
	}
}

// receive applies a remote snapshot unless it belongs to an older epoch or
// local edits have not reached the remote yet, either still debounced or
// queued on a remote writer. The local state wins then: the remote is about
// to be overwritten with it.
func (c *Coordinator) receive(epoch uint64, userID string, snap Snapshot) {
	if c.epoch.Load() != epoch {
		metrics.StaleSnapshots.Inc()
		c.log.Debug("persist: dropped snapshot from previous session", "user_id", userID, "epoch", epoch)
		return
	}
	if !snap.Exists {
		return
	}
	if c.sched.Pending() {
		c.log.Debug("persist: local changes pending, ignoring snapshot", "user_id", userID)
		return
	}
	for name, w := range c.remotes {
		if w.busy(userID) {
			c.log.Debug("persist: remote write in flight, ignoring snapshot", "user_id", userID, "backend", name)
			return
		}
	}
	c.install(epoch, snap.Record)
}

// flush runs on the scheduler goroutine.
func (c *Coordinator) flush() {
	owner, lines, at := c.store.Snapshot()
	if owner == "" {
		return
	}
	if at.IsZero() && len(lines) == 0 {
		return // reset but not yet mutated; never overwrite a stored cart with that
	}
	lines, _ = c.sanitizer.Lines(lines)
	rec := Record{Items: lines, UpdatedAt: at, IsActive: len(lines) > 0}
	log := c.log.With("user_id", owner)

	start := time.Now()
	for _, b := range c.chain.Backends() {
		if b.Kind() != KindLocal {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), localSaveTimeout)
		if err := c.chain.Save(ctx, b, owner, rec); err != nil {
			log.Error("persist: local save failed", "backend", b.Name(), "error", err)
		}
		cancel()
	}
	metrics.FlushDuration.Observe(time.Since(start).Seconds())

	for _, w := range c.remotes {
		c.enqueueRemote(w, owner, rec, log)
	}
}

// enqueueRemote queues a write on the backend's single worker. A queued
// write superseded by a later flush for the same user is skipped.
func (c *Coordinator) enqueueRemote(w *remoteWriter, owner string, rec Record, log *slog.Logger) {
	seq := w.next(owner)
	err := w.pool.SubmitWait(func() {
		defer w.done(owner)
		if !w.current(owner, seq) {
			metrics.PersistOps.WithLabelValues(w.backend.Name(), "save", "skipped").Inc()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), remoteSaveTimeout)
		defer cancel()
		if err := c.chain.Save(ctx, w.backend, owner, rec); err != nil {
			log.Warn("persist: remote save failed", "backend", w.backend.Name(), "error", err)
		}
	})
	if err != nil {
		w.done(owner)
		log.Warn("persist: remote save not queued", "backend", w.backend.Name(), "error", err)
	}
}
