package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"callbridge/internal/core"
	"callbridge/internal/domain"
)

type connEntry struct {
	sess   domain.Session
	pusher core.Pusher
}

// Registry tracks every live connection and its attached user id. It
// is the transport authority the coordinator polls for presence; the
// coordinator never mutates it.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*connEntry)}
}

// Bind registers a freshly accepted connection with no user attached.
func (r *Registry) Bind(id domain.ConnID, p core.Pusher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{sess: domain.Session{ConnID: id}, pusher: p}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
}

// SetUser attaches the user id given to the join command. Returns the
// updated session.
func (r *Registry) SetUser(id domain.ConnID, userID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return domain.Session{}, false
	}
	e.sess.UserID = userID
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", userID).Msg("joined")
	return e.sess, true
}

func (r *Registry) Unbind(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbound connection")
}

// Sessions returns a fresh snapshot of every live session.
func (r *Registry) Sessions() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Session, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.sess)
	}
	return out
}

func (r *Registry) Lookup(id domain.ConnID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.sess, true
	}
	return domain.Session{}, false
}

// FindByUser returns some live session joined under the given user id.
// User ids are not guaranteed unique across connections; when two
// connections join under the same name, which one wins is undefined.
func (r *Registry) FindByUser(userID string) (domain.Session, bool) {
	if userID == "" {
		return domain.Session{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.conns {
		if e.sess.UserID == userID {
			return e.sess, true
		}
	}
	return domain.Session{}, false
}

// Pusher returns the transport endpoint of a connection.
func (r *Registry) Pusher(id domain.ConnID) (core.Pusher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.pusher, true
	}
	return nil, false
}
