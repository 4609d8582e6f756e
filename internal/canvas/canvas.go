// Package canvas implements the assembly canvas layout store: the
// authoritative set of placed equipment items and the ephemeral verdict for
// one experiment session. All mutations are synchronous and serialized by a
// mutex; none of them can fail.
package canvas

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chembench/server/internal/geo"
	"github.com/chembench/server/pkg/lab"
)

// IDGenerator produces unique item identifiers. Injected so tests can use a
// deterministic counter instead of random UUIDs.
type IDGenerator func() string

// Store holds the placed items and current verdict for one session.
type Store struct {
	mu        sync.Mutex
	items     []lab.PlacedItem
	verdict   *lab.Verdict
	seededFor string
	newID     IDGenerator
	notify    func()
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default UUID item id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithNotify registers a callback fired after every completed mutation.
// It runs outside the store lock.
func WithNotify(fn func()) Option {
	return func(s *Store) {
		s.notify = fn
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		newID:  uuid.NewString,
		notify: func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize replaces the item set with one item per seed entry, converted
// from percent to pixel coordinates using the given canvas size, and clears
// the verdict. Repeated calls for the same experiment key are no-ops so a
// front-end re-render cannot duplicate the seed layout; a new key fully
// replaces state.
func (s *Store) Initialize(experimentKey string, seed []lab.SeedPlacement, size geo.CanvasSize) {
	s.mu.Lock()
	if s.seededFor == experimentKey && len(s.items) > 0 {
		s.mu.Unlock()
		return
	}
	s.seededFor = experimentKey
	s.items = s.placeSeed(seed, size)
	s.verdict = nil
	s.mu.Unlock()

	s.notify()
}

// Reset replaces the item set from the seed unconditionally and clears the
// verdict. Item ids are freshly generated.
func (s *Store) Reset(seed []lab.SeedPlacement, size geo.CanvasSize) {
	s.mu.Lock()
	s.items = s.placeSeed(seed, size)
	s.verdict = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) placeSeed(seed []lab.SeedPlacement, size geo.CanvasSize) []lab.PlacedItem {
	items := make([]lab.PlacedItem, len(seed))
	for i, entry := range seed {
		items[i] = lab.PlacedItem{
			ID:       s.newID(),
			Name:     entry.Name,
			Position: geo.PixelFromPercent(entry.X, entry.Y, size),
		}
	}
	return items
}

// Insert appends a new item at the given pixel position and clears the
// verdict. Names may repeat and positions are not bounds-checked.
func (s *Store) Insert(name string, pos lab.Position) lab.PlacedItem {
	s.mu.Lock()
	item := lab.PlacedItem{ID: s.newID(), Name: name, Position: pos}
	s.items = append(s.items, item)
	s.verdict = nil
	s.mu.Unlock()

	s.notify()
	return item
}

// Reposition moves the item with the given id. Unknown ids are a silent
// no-op. The verdict is deliberately left in place: a drag in progress does
// not hide already-shown feedback, only the next discrete action does.
func (s *Store) Reposition(id string, pos lab.Position) bool {
	s.mu.Lock()
	moved := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Position = pos
			moved = true
			break
		}
	}
	s.mu.Unlock()

	if moved {
		s.notify()
	}
	return moved
}

// Clear empties the item set and clears the verdict.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.verdict = nil
	s.mu.Unlock()

	s.notify()
}

// SetVerdict stores the judge's verdict.
func (s *Store) SetVerdict(v lab.Verdict) {
	s.mu.Lock()
	s.verdict = &v
	s.mu.Unlock()

	s.notify()
}

// ClearVerdict removes the current verdict, if any.
func (s *Store) ClearVerdict() {
	s.mu.Lock()
	s.verdict = nil
	s.mu.Unlock()

	s.notify()
}

// Items returns a snapshot copy of the placed items in placement order.
func (s *Store) Items() []lab.PlacedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]lab.PlacedItem, len(s.items))
	copy(items, s.items)
	return items
}

// Verdict returns a copy of the current verdict, or nil if none is set.
func (s *Store) Verdict() *lab.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verdict == nil {
		return nil
	}
	v := *s.verdict
	return &v
}

// Len returns the number of placed items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
