package persist_test

import (
	"context"
	"sync"

	"github.com/shashiranjanraj/cartsync/internal/persist"
)

type memBackend struct {
	name string
	kind persist.Kind

	mu      sync.Mutex
	records map[string]persist.Record
	loadErr error
	saveErr error
	saves   []save

	// when set, Save signals entered and then blocks until gate is closed
	entered chan struct{}
	gate    chan struct{}
}

type save struct {
	User   string
	Record persist.Record
}

func newMem(name string, kind persist.Kind) *memBackend {
	return &memBackend{name: name, kind: kind, records: map[string]persist.Record{}}
}

func (m *memBackend) Name() string       { return m.name }
func (m *memBackend) Kind() persist.Kind { return m.kind }

func (m *memBackend) Load(_ context.Context, userID string) (persist.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return persist.Record{}, m.loadErr
	}
	rec, ok := m.records[userID]
	if !ok {
		return persist.Record{}, persist.ErrNotFound
	}
	return rec, nil
}

func (m *memBackend) Save(ctx context.Context, userID string, rec persist.Record) error {
	if m.gate != nil {
		m.entered <- struct{}{}
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[userID] = rec
	m.saves = append(m.saves, save{User: userID, Record: rec})
	return nil
}

func (m *memBackend) Saves() []save {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]save(nil), m.saves...)
}

func (m *memBackend) put(userID string, rec persist.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = rec
}

// manualScheduler flushes only when told to.
type manualScheduler struct {
	mu      sync.Mutex
	fn      func()
	pending bool
}

func (s *manualScheduler) Trigger() {
	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()
}

func (s *manualScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *manualScheduler) Flush() {
	s.mu.Lock()
	run := s.pending
	s.pending = false
	s.mu.Unlock()
	if run {
		s.fn()
	}
}

func (s *manualScheduler) Close() { s.Flush() }

type fakeWatcher struct {
	mu     sync.Mutex
	subs   []*fakeSub
	events []string
}

func (w *fakeWatcher) Watch(_ context.Context, userID string) (persist.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &fakeSub{user: userID, ch: make(chan persist.Snapshot), w: w}
	w.subs = append(w.subs, s)
	w.events = append(w.events, "watch:"+userID)
	return s, nil
}

func (w *fakeWatcher) last() *fakeSub {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subs[len(w.subs)-1]
}

func (w *fakeWatcher) log() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.events...)
}

type fakeSub struct {
	user string
	ch   chan persist.Snapshot
	w    *fakeWatcher
	once sync.Once
}

func (s *fakeSub) Snapshots() <-chan persist.Snapshot { return s.ch }

func (s *fakeSub) Close() {
	s.once.Do(func() {
		s.w.mu.Lock()
		s.w.events = append(s.w.events, "close:"+s.user)
		s.w.mu.Unlock()
	})
}

// push delivers snap and returns once the coordinator has finished with it:
// the consumer handles snapshots one at a time, so a second send completes
// only after the first was applied.
func (s *fakeSub) push(snap persist.Snapshot) {
	s.ch <- snap
	s.ch <- persist.Snapshot{}
}
