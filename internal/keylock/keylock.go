// Package keylock provides a table of per-key mutexes.
//
// A lock exists only while some goroutine holds or waits on it; entries are
// reference-counted and removed when the last holder releases. Operations on
// different keys never contend.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table maps string keys to mutexes on demand.
type Table struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty lock table.
func New() *Table {
	return &Table{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until available.
func (t *Table) Lock(key string) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &entry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. The entry is removed once no goroutine
// holds or waits on it.
func (t *Table) Unlock(key string) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		t.mu.Unlock()
		panic("keylock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(t.locks, key)
	}
	t.mu.Unlock()

	e.mu.Unlock()
}

// Len returns the number of live entries. Intended for tests and diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
