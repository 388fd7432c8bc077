// Package registry owns the mapping from infohash to active session. It is
// the only component allowed to stop an engine handle.
package registry

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"magnetstream/internal/domain"
	"magnetstream/internal/domain/ports"
)

// Session is one active engine instance plus the metadata derived from it.
// Files are captured once at creation; ordinals stay stable until removal.
type Session struct {
	ID        domain.InfoHash
	Handle    ports.Handle
	Files     []domain.FileEntry
	CreatedAt time.Time
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.InfoHash]*Session
	group    singleflight.Group
}

func New() *Registry {
	return &Registry{sessions: make(map[domain.InfoHash]*Session)}
}

// GetOrCreate returns the session for id, invoking factory at most once per
// id under arbitrary concurrency. Callers that race an in-flight creation
// share its outcome: one success for everyone, or one error for everyone.
// A failed creation leaves no entry behind, so a later call retries.
func (r *Registry) GetOrCreate(id domain.InfoHash, factory func() (ports.Handle, error)) (*Session, bool, error) {
	if session := r.get(id); session != nil {
		return session, false, nil
	}

	value, err, _ := r.group.Do(string(id), func() (interface{}, error) {
		if session := r.get(id); session != nil {
			return session, nil
		}
		handle, err := factory()
		if err != nil {
			return nil, err
		}
		session := &Session{
			ID:        id,
			Handle:    handle,
			Files:     handle.Files(),
			CreatedAt: time.Now().UTC(),
		}
		r.mu.Lock()
		r.sessions[id] = session
		r.mu.Unlock()
		return session, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value.(*Session), true, nil
}

func (r *Registry) Lookup(id domain.InfoHash) (*Session, error) {
	if session := r.get(id); session != nil {
		return session, nil
	}
	return nil, domain.ErrNotFound
}

// Remove stops the session's engine handle and drops the entry. Removing an
// absent id is a no-op and returns false. The handle is stopped before the
// entry is released so a racing GetOrCreate for the same id cannot start a
// second engine instance while the old one is still live.
func (r *Registry) Remove(id domain.InfoHash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return false
	}
	_ = session.Handle.Stop()
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns a snapshot of all sessions ordered by creation time.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Shutdown stops every handle and empties the registry. Called on process
// exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		_ = session.Handle.Stop()
		delete(r.sessions, id)
	}
}

func (r *Registry) get(id domain.InfoHash) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}
