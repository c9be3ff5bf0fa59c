// Package partition serializes work per partition key. A room id or the
// fixed global registry key names a partition; at most one operation runs
// for a key at a time, which makes the multi-step read-then-write sequences
// in the services atomic without explicit transactions.
package partition

import "sync"

// GlobalKey is the partition key of the device pairing registry.
const GlobalKey = "global"

// RoomKey returns the partition key for a room id.
func RoomKey(roomID string) string { return "room:" + roomID }

type entry struct {
	mu   sync.Mutex
	refs int
}

// Router owns one serialized execution context per partition key. Idle keys
// are evicted from the map once their last operation finishes.
type Router struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRouter creates an empty partition router.
func NewRouter() *Router {
	return &Router{entries: make(map[string]*entry)}
}

// Do runs fn under the partition's lock. Operations for the same key never
// interleave; operations for different keys run independently.
func (r *Router) Do(key string, fn func() error) error {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
	err := fn()
	e.mu.Unlock()

	r.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
	r.mu.Unlock()
	return err
}
