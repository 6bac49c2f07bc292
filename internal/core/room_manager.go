package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/domain"
	"github.com/Flamichka/sync/internal/metrics"
)

// Registry maps room names to rooms. Rooms are created on first use and
// live for the life of the process.
type Registry struct {
	clock clockwork.Clock
	mu    sync.RWMutex
	rooms map[domain.RoomName]*Room
}

func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock: clock,
		rooms: make(map[domain.RoomName]*Room),
	}
}

func (rg *Registry) Clock() clockwork.Clock { return rg.clock }

// Resolve normalizes name and returns its room, creating it if needed.
// Concurrent first-use of one name yields a single room.
func (rg *Registry) Resolve(name string) *Room {
	key := domain.NormalizeRoomName(name)

	rg.mu.RLock()
	room, ok := rg.rooms[key]
	rg.mu.RUnlock()
	if ok {
		return room
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()
	if room, ok = rg.rooms[key]; !ok {
		room = NewRoom(key, rg.clock)
		rg.rooms[key] = room
		metrics.Rooms.Inc()
		log.Info().Str("module", "core.registry").Str("room", string(key)).Msg("room created")
	}
	return room
}

// Lookup returns an existing room without creating it.
func (rg *Registry) Lookup(name string) (*Room, bool) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	room, ok := rg.rooms[domain.NormalizeRoomName(name)]
	return room, ok
}

// Rooms lists every room ordered by name.
func (rg *Registry) Rooms() []*Room {
	rg.mu.RLock()
	out := make([]*Room, 0, len(rg.rooms))
	for _, r := range rg.rooms {
		out = append(out, r)
	}
	rg.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (rg *Registry) List() []domain.RoomInfo {
	rooms := rg.Rooms()
	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

// SweepOnce probes every member of every room and drops those silent for
// longer than timeout. Returns the number of dropped members.
func (rg *Registry) SweepOnce(timeout time.Duration) int {
	now := rg.clock.Now()
	t0 := now.UnixMilli()
	deadline := now.Add(-timeout)
	dropped := 0
	for _, r := range rg.Rooms() {
		dropped += r.Probe(t0, deadline)
	}
	if dropped > 0 {
		log.Info().Str("module", "core.registry").Int("dropped", dropped).Msg("liveness sweep")
	}
	return dropped
}

// RunLivenessSweep ticks SweepOnce every interval until ctx is done.
func (rg *Registry) RunLivenessSweep(ctx context.Context, interval, timeout time.Duration) error {
	ticker := rg.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Str("module", "core.registry").
		Dur("interval", interval).
		Dur("timeout", timeout).
		Msg("liveness sweep started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "core.registry").Msg("liveness sweep stopped")
			return nil
		case <-ticker.Chan():
			rg.SweepOnce(timeout)
		}
	}
}
