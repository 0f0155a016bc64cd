// Package lock serializes critical operations (feed updates, database cleanup,
// item add and delete). Acquisition never blocks: a caller that cannot get the
// lock must give up.
package lock

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("another critical operation is in progress")

type Mutex struct {
	mu     sync.Mutex
	held   bool
	owner  string
	nextID int
	subs   map[int]func(locked bool)
}

func New() *Mutex {
	return &Mutex{subs: make(map[int]func(bool))}
}

// Guard is the handle of one successful acquisition.
type Guard struct {
	m    *Mutex
	once sync.Once
}

// TryAcquire takes the lock for op or returns ErrBusy immediately.
func (m *Mutex) TryAcquire(op string) (*Guard, error) {
	m.mu.Lock()
	if m.held {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.held = true
	m.owner = op
	subs := m.subscribers()
	m.mu.Unlock()

	notify(subs, true)
	return &Guard{m: m}, nil
}

// Release gives the lock back. Calling it more than once is a no-op.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		m := g.m
		m.mu.Lock()
		m.held = false
		m.owner = ""
		subs := m.subscribers()
		m.mu.Unlock()

		notify(subs, false)
	})
}

func (m *Mutex) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// Holder returns the name of the operation holding the lock, if any.
func (m *Mutex) Holder() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner, m.held
}

// Subscribe registers fn for lock state changes. fn runs synchronously on the
// goroutine that acquired or released the lock.
func (m *Mutex) Subscribe(fn func(locked bool)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]func(bool))
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Mutex) subscribers() []func(bool) {
	out := make([]func(bool), 0, len(m.subs))
	for i := 0; i < m.nextID; i++ {
		if fn, ok := m.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(bool), locked bool) {
	for _, fn := range subs {
		fn(locked)
	}
}
