package chat

import (
	"sync"

	"chatrelay/internal/app/user"
)

// presence is one registry entry: the user and the connection that joined it.
type presence struct {
	user   user.User
	connID string
}

// Registry is the authoritative set of users currently online.
// Every method is a single critical section; callers never hold the lock across I/O.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]presence
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]presence)}
}

// Set inserts or replaces the entry for u.UserID and records connID as its owner.
// It returns the previous owner's connection ID when the entry belonged to a different connection.
func (r *Registry) Set(u user.User, connID string) (previousConn string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[u.UserID]; ok && old.connID != connID {
		previousConn = old.connID
	}
	r.entries[u.UserID] = presence{user: u, connID: connID}
	return previousConn
}

// Remove deletes the entry for userID only if it is still owned by connID.
// It returns the removed user and whether anything was removed.
func (r *Registry) Remove(userID, connID string) (user.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.connID != connID {
		return user.User{}, false
	}
	delete(r.entries, userID)
	return entry.user, true
}

// Get returns the user registered under userID.
func (r *Registry) Get(userID string) (user.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	return entry.user, ok
}

// Owner returns the ID of the connection that owns userID's entry.
func (r *Registry) Owner(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	return entry.connID, ok
}

// Snapshot returns a copy of all registered users in map iteration order.
func (r *Registry) Snapshot() []user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]user.User, 0, len(r.entries))
	for _, entry := range r.entries {
		users = append(users, entry.user)
	}
	return users
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
