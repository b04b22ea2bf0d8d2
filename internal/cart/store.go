package cart

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/cartsync/pkg/event"
)

// EventMutated is fired on the store's bus after every user-driven mutation.
const EventMutated = "cart.mutated"

// Operation names carried by Mutation.
const (
	OpAdd         = "add"
	OpRemove      = "remove"
	OpSetQuantity = "set_quantity"
	OpClear       = "clear"
	OpConsume     = "consume"
)

var ErrInvalidItem = errors.New("cart: invalid item")

// Mutation describes a change that needs persisting.
type Mutation struct {
	Owner  string
	Op     string
	LineID string
	At     time.Time
}

// Store is the cart of one user session. All methods are safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	owner         string
	lines         []Line
	lastMutatedAt time.Time

	bus *event.Bus
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty, anonymous cart.
func NewStore(opts ...Option) *Store {
	s := &Store{bus: event.NewBus(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnMutate registers fn for every mutation and returns a function removing it.
// fn runs on the mutating goroutine after the store's lock is released.
func (s *Store) OnMutate(fn func(Mutation)) (unlisten func()) {
	return s.bus.Listen(EventMutated, func(p interface{}) {
		fn(p.(Mutation))
	})
}

// AddLine adds qty units of item. An existing line with the same ID keeps its
// modifiers and only grows in quantity. qty below 1 adds a single unit.
func (s *Store) AddLine(item Item, qty int) error {
	item = item.clone()
	if item.ID == "" || item.UnitPrice.IsNegative() {
		return ErrInvalidItem
	}
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	if i := s.find(item.ID); i >= 0 {
		s.lines[i].Quantity += qty
		s.lines[i].recompute()
	} else {
		l := Line{Item: item, Quantity: qty}
		l.recompute()
		s.lines = append(s.lines, l)
	}
	m := s.touch(OpAdd, item.ID)
	s.mu.Unlock()

	s.bus.Fire(EventMutated, m)
	return nil
}

// RemoveLine drops the line with id. Unknown ids are ignored.
func (s *Store) RemoveLine(id string) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	i := s.find(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	m := s.touch(OpRemove, id)
	s.mu.Unlock()

	s.bus.Fire(EventMutated, m)
}

// SetQuantity sets the quantity of line id; qty <= 0 removes the line.
func (s *Store) SetQuantity(id string, qty int) {
	if qty <= 0 {
		s.RemoveLine(id)
		return
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	i := s.find(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.lines[i].Quantity = qty
	s.lines[i].recompute()
	m := s.touch(OpSetQuantity, id)
	s.mu.Unlock()

	s.bus.Fire(EventMutated, m)
}

// Clear empties the cart. Clearing an empty cart still reports a mutation so
// a stale persisted copy gets overwritten.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	m := s.touch(OpClear, "")
	s.mu.Unlock()

	s.bus.Fire(EventMutated, m)
}

// Consume takes ordered out of the cart: each line loses the quantity that
// was ordered and is removed once nothing is left. Lines added after the
// order was taken stay. It fires a single mutation.
func (s *Store) Consume(ordered []Line) {
	s.mu.Lock()
	for _, o := range ordered {
		i := s.find(o.ID)
		if i < 0 {
			continue
		}
		s.lines[i].Quantity -= o.Quantity
		if s.lines[i].Quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			continue
		}
		s.lines[i].recompute()
	}
	if len(s.lines) == 0 {
		s.lines = nil
	}
	m := s.touch(OpConsume, "")
	s.mu.Unlock()

	s.bus.Fire(EventMutated, m)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Subtotal(s.lines)
}

func (s *Store) TotalItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ItemCount(s.lines)
}

// Lines returns a deep copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.lines)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Owner is the signed-in user id, or "" while anonymous.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

func (s *Store) LastMutatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMutatedAt
}

// Snapshot returns owner, lines and last mutation time under one lock.
func (s *Store) Snapshot() (owner string, lines []Line, at time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, cloneLines(s.lines), s.lastMutatedAt
}

// Reset empties the cart and hands it to owner without firing an event.
// Used on sign-in and sign-out.
func (s *Store) Reset(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = strings.TrimSpace(owner)
	s.lines = nil
	s.lastMutatedAt = time.Time{}
}

// Replace installs lines loaded from storage without firing an event. Lines
// are normalized: duplicates merged, non-positive quantities dropped, totals
// recomputed.
func (s *Store) Replace(lines []Line, at time.Time) {
	norm := normalize(lines)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = norm
	s.lastMutatedAt = at
}

func (s *Store) find(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// touch must be called with s.mu held.
func (s *Store) touch(op, id string) Mutation {
	s.lastMutatedAt = s.now().UTC()
	return Mutation{Owner: s.owner, Op: op, LineID: id, At: s.lastMutatedAt}
}

func normalize(src []Line) []Line {
	var out []Line
	pos := map[string]int{}
	for _, l := range src {
		l = l.clone()
		if l.ID == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := pos[l.ID]; ok {
			out[i].Quantity += l.Quantity
			out[i].recompute()
			continue
		}
		l.recompute()
		pos[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}

func cloneLines(src []Line) []Line {
	if len(src) == 0 {
		return []Line{}
	}
	out := make([]Line, len(src))
	for i, l := range src {
		out[i] = l.clone()
	}
	return out
}
