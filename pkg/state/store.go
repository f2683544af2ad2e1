package state

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Change describes one Store.Update: the fields that changed and the state
// before and after the mutation.
type Change struct {
	Fields []Field
	Old    State
	New    State
}

// Has reports whether any of fields changed.
func (c Change) Has(fields ...Field) bool {
	return lo.Some(c.Fields, fields)
}

// Handler reacts to a change. The context marks the call as running inside
// the store's dispatch loop; Updates made with it are queued behind the
// current change instead of dispatching recursively.
type Handler func(ctx context.Context, c Change) error

type reaction struct {
	name   string
	fields []Field
	fn     Handler
}

type watcher struct {
	fn func(State)
}

// dispatchKey marks a context as belonging to a store's dispatch loop.
type dispatchKey struct{}

// Store is a session's state plus its reaction registry. It is safe for
// concurrent use; at most one reaction runs at a time.
type Store struct {
	// dispatch serializes drains of the queue across goroutines.
	dispatch sync.Mutex

	mu        sync.Mutex
	state     State
	reactions []reaction
	watchers  []*watcher
	queue     []Change
}

// NewStore returns a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.Clone()}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// OnChange registers fn to run whenever any of fields changes. Reactions
// run in registration order, once per change.
func (s *Store) OnChange(name string, fn Handler, fields ...Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions = append(s.reactions, reaction{name: name, fields: fields, fn: fn})
}

// Watch registers fn to receive a snapshot after every dispatched change
// and every busy transition. The returned function unregisters it.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	w := &watcher{fn: fn}
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.watchers = slices.DeleteFunc(s.watchers, func(o *watcher) bool { return o == w })
	}
}

// Update applies mutate to the state and dispatches the resulting change.
// Called from outside a reaction, it returns after the queue has drained,
// including changes made by the reactions themselves. Called with a
// reaction's context, it only queues.
func (s *Store) Update(ctx context.Context, mutate func(*State)) {
	if ctx.Value(dispatchKey{}) == s {
		s.apply(mutate)
		return
	}

	s.dispatch.Lock()
	defer s.dispatch.Unlock()
	if !s.apply(mutate) {
		return
	}
	s.drain(context.WithValue(ctx, dispatchKey{}, s))
}

// apply mutates the state and queues the change. It reports whether
// anything changed.
func (s *Store) apply(mutate func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.state.Clone()
	next := s.state.Clone()
	mutate(&next)
	fields := old.Diff(next)
	if len(fields) == 0 {
		return false
	}
	s.state = next
	s.queue = append(s.queue, Change{Fields: fields, Old: old, New: next.Clone()})
	return true
}

func (s *Store) drain(ctx context.Context) {
	s.setBusy(true)
	defer s.setBusy(false)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		reactions := append([]reaction(nil), s.reactions...)
		s.mu.Unlock()

		for _, r := range reactions {
			if !c.Has(r.fields...) {
				continue
			}
			if err := run(ctx, r, c); err != nil {
				log.Printf("state: reaction %s: %v", r.name, err)
			}
		}
		s.notify()
	}
}

// run calls one reaction, turning a panic into an error so a bad upload
// cannot take the process down.
func run(ctx context.Context, r reaction, c Change) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.fn(ctx, c)
}

func (s *Store) setBusy(busy bool) {
	s.mu.Lock()
	s.state.Busy = busy
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.state.Clone()
	watchers := slices.Clone(s.watchers)
	s.mu.Unlock()
	for _, w := range watchers {
		w.fn(snap)
	}
}
