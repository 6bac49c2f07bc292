package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/core"
	"github.com/Flamichka/sync/internal/domain"
)

type sessionEntry struct {
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks the live transport sessions of the process so they can
// all be cancelled on shutdown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]*sessionEntry),
	}
}

func (r *Registry) Bind(
	id domain.ConnectionID,
	room domain.RoomName,
	sig core.SignalConnection,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &sessionEntry{
		Signal: sig,
		Cancel: cancel,
	}
	log.Debug().Str("module", "app.registry").Str("cid", string(id)).Str("room", string(room)).Msg("bound session")
}

func (r *Registry) Unbind(id domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	log.Debug().Str("module", "app.registry").Str("cid", string(id)).Msg("unbind session")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll cancels and closes every bound session. Returns how many were closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for id, e := range r.sessions {
		entries = append(entries, e)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		if e.Cancel != nil {
			e.Cancel()
		}
		if e.Signal != nil {
			e.Signal.Close()
		}
	}
	log.Info().Str("module", "app.registry").Int("sessions", len(entries)).Msg("closed all sessions")
	return len(entries)
}
