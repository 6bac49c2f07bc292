package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/domain"
	"github.com/Flamichka/sync/internal/metrics"
	"github.com/Flamichka/sync/internal/protocol"
)

// Room is a threadsafe in-memory synchronization domain.
// mu guards the playback clock, the member list and the host slot.
// Every fan-out takes sendMu before releasing mu, so members observe
// frames in the order the mutations were applied, and no I/O runs under mu.
type Room struct {
	name  domain.RoomName
	clock clockwork.Clock

	mu       sync.Mutex
	playback *PlaybackClock
	members  []*Connection
	byID     map[domain.ConnectionID]*Connection
	hostID   domain.ConnectionID
	nextSeq  uint64

	sendMu sync.Mutex
}

func NewRoom(name domain.RoomName, clock clockwork.Clock) *Room {
	return &Room{
		name:     name,
		clock:    clock,
		playback: NewPlaybackClock(clock),
		byID:     make(map[domain.ConnectionID]*Connection),
	}
}

func (r *Room) Name() domain.RoomName { return r.name }

// Join appends c in arrival order. The first member of a hostless room
// becomes host. Returns the assigned role.
func (r *Room) Join(c *Connection) domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.nextSeq++
	c.joinSeq = r.nextSeq
	c.connectedAt = now
	c.lastLiveness = now
	c.role = domain.RoleListener
	r.members = append(r.members, c)
	r.byID[c.id] = c
	if r.hostID == "" {
		r.promoteLocked(c)
	}
	metrics.Connections.Inc()

	log.Info().
		Str("module", "core.room").
		Str("room", string(r.name)).
		Str("cid", string(c.id)).
		Str("role", string(c.role)).
		Int("members", len(r.members)).
		Msg("member joined")
	return c.role
}

// Leave removes a member. If it held the host slot, the remaining member
// with the smallest join sequence is promoted and its id returned.
func (r *Room) Leave(id domain.ConnectionID) (domain.ConnectionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, newHost, ok := r.leaveLocked(id)
	return newHost, ok
}

func (r *Room) leaveLocked(id domain.ConnectionID) (*Connection, domain.ConnectionID, bool) {
	c, ok := r.byID[id]
	if !ok {
		return nil, "", false
	}
	delete(r.byID, id)
	for i, m := range r.members {
		if m.id == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	metrics.Connections.Dec()

	if r.hostID != id {
		return c, "", true
	}
	r.hostID = ""
	next := r.earliestLocked()
	if next == nil {
		return c, "", true
	}
	r.promoteLocked(next)
	log.Info().
		Str("module", "core.room").
		Str("room", string(r.name)).
		Str("from", string(id)).
		Str("to", string(next.id)).
		Msg("host reassigned")
	return c, next.id, true
}

func (r *Room) earliestLocked() *Connection {
	var best *Connection
	for _, m := range r.members {
		if best == nil || m.joinSeq < best.joinSeq {
			best = m
		}
	}
	return best
}

func (r *Room) promoteLocked(c *Connection) {
	if cur, ok := r.byID[r.hostID]; ok && cur != c {
		cur.role = domain.RoleListener
	}
	c.role = domain.RoleHost
	r.hostID = c.id
}

// TransferHostTo forcibly demotes the current host and promotes id.
func (r *Room) TransferHostTo(id domain.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return ErrNotMember
	}
	prev := r.hostID
	r.promoteLocked(c)
	log.Info().
		Str("module", "core.room").
		Str("room", string(r.name)).
		Str("from", string(prev)).
		Str("to", string(id)).
		Msg("host transferred")
	return nil
}

// ClaimHost promotes id only if the room currently has no host.
func (r *Room) ClaimHost(id domain.ConnectionID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false, ErrNotMember
	}
	if r.hostID != "" {
		return false, nil
	}
	r.promoteLocked(c)
	return true, nil
}

// ApplyHostControl authorizes, rate-limits and applies one control action,
// then broadcasts the new state with the action as reason.
func (r *Room) ApplyHostControl(id domain.ConnectionID, ctl protocol.Control) (domain.PlaybackState, error) {
	var (
		st  domain.PlaybackState
		err error
	)
	targets, frame := r.stage(func() Frame {
		if st, err = r.applyControlLocked(id, ctl); err != nil {
			return nil
		}
		return r.encode(protocol.NewState(string(ctl.Action), st))
	})
	if err != nil {
		return domain.PlaybackState{}, err
	}
	r.publish(targets, frame)
	return st, nil
}

func (r *Room) applyControlLocked(id domain.ConnectionID, ctl protocol.Control) (domain.PlaybackState, error) {
	if err := r.authorizeHostLocked(id); err != nil {
		return domain.PlaybackState{}, err
	}
	st, err := r.playback.Apply(ctl)
	if err != nil {
		return domain.PlaybackState{}, err
	}
	log.Info().
		Str("module", "core.room").
		Str("room", string(r.name)).
		Str("action", string(ctl.Action)).
		Bool("paused", st.Paused).
		Float64("position", st.PositionSec).
		Msg("control applied")
	return st, nil
}

// authorizeHostLocked admits a host command: the caller must be the host and
// its token bucket must grant one token.
func (r *Room) authorizeHostLocked(id domain.ConnectionID) error {
	c, ok := r.byID[id]
	if !ok {
		return ErrNotMember
	}
	if r.hostID != id {
		return ErrNotHost
	}
	if !c.limiter.Consume(1) {
		return ErrRateLimited
	}
	return nil
}

// Resync rebroadcasts the current state to every member on the host's request.
func (r *Room) Resync(id domain.ConnectionID) error {
	var err error
	targets, frame := r.stage(func() Frame {
		if err = r.authorizeHostLocked(id); err != nil {
			return nil
		}
		return r.encode(protocol.NewState(protocol.ReasonResync, r.playback.Snapshot()))
	})
	if err != nil {
		return err
	}
	r.publish(targets, frame)
	return nil
}

// Broadcast sends frame to a point-in-time copy of the members.
// Members whose send fails are removed afterwards.
func (r *Room) Broadcast(frame Frame) PublishResult {
	return r.publish(r.stage(func() Frame { return frame }))
}

func (r *Room) BroadcastState(reason string) PublishResult {
	return r.publish(r.stage(func() Frame {
		return r.encode(protocol.NewState(reason, r.playback.Snapshot()))
	}))
}

func (r *Room) BroadcastClients() PublishResult {
	return r.publish(r.stage(func() Frame {
		return r.encode(protocol.NewClients(r.membersLocked()))
	}))
}

// stage runs build under mu. When it yields a frame, stage captures the
// member list and takes sendMu before mu is released; publish releases it.
func (r *Room) stage(build func() Frame) ([]*Connection, Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame := build()
	if frame == nil {
		return nil, nil
	}
	targets := append([]*Connection(nil), r.members...)
	r.sendMu.Lock()
	return targets, frame
}

// publish completes a stage: it fans frame out, then evicts failed members.
func (r *Room) publish(targets []*Connection, frame Frame) PublishResult {
	if frame == nil {
		return PublishResult{}
	}
	res := r.fanOut(targets, frame)

	log.Debug().
		Str("module", "core.room").
		Str("room", string(r.name)).
		Int("sent_to", res.SendTo).
		Int("dropped", len(res.Dropped)).
		Msg("broadcast result")
	if len(res.Dropped) > 0 {
		metrics.BroadcastFailures.Add(float64(len(res.Dropped)))
		r.evict(res.Dropped, "send failed")
	}
	return res
}

func (r *Room) fanOut(targets []*Connection, frame Frame) PublishResult {
	defer r.sendMu.Unlock()
	return deliver(targets, frame)
}

// stageOne picks a single recipient under mu and takes sendMu when there is one.
func (r *Room) stageOne(pick func() (*Connection, Frame, error)) (*Connection, Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, frame, err := pick()
	if err != nil || c == nil {
		return nil, nil, err
	}
	r.sendMu.Lock()
	return c, frame, nil
}

// sendOne completes a stageOne. A failed send evicts the member.
func (r *Room) sendOne(c *Connection, frame Frame, err error) error {
	if err != nil || c == nil {
		return err
	}
	if err := r.sendLocked(c, frame); err != nil {
		metrics.BroadcastFailures.Inc()
		r.evict([]domain.ConnectionID{c.id}, "send failed")
		return fmt.Errorf("send to %s: %w", c.id, err)
	}
	return nil
}

func (r *Room) sendLocked(c *Connection, frame Frame) error {
	defer r.sendMu.Unlock()
	return trySend(c, frame)
}

// SendTo delivers frame to one member. A failed send evicts the member.
func (r *Room) SendTo(id domain.ConnectionID, frame Frame) error {
	return r.sendOne(r.stageOne(func() (*Connection, Frame, error) {
		c, ok := r.byID[id]
		if !ok {
			return nil, nil, ErrNotMember
		}
		return c, frame, nil
	}))
}

// SendInit sends the late-join catch-up frame to one member.
func (r *Room) SendInit(id domain.ConnectionID) error {
	return r.sendOne(r.stageOne(func() (*Connection, Frame, error) {
		c, ok := r.byID[id]
		if !ok {
			return nil, nil, ErrNotMember
		}
		frame := r.encode(protocol.NewInit(c.id, r.name, c.role == domain.RoleHost, r.playback.Snapshot()))
		if frame == nil {
			return nil, nil, fmt.Errorf("encode init for %s", id)
		}
		return c, frame, nil
	}))
}

// SendToHost delivers frame to the current host, if any.
func (r *Room) SendToHost(frame Frame) error {
	return r.sendOne(r.stageOne(func() (*Connection, Frame, error) {
		return r.byID[r.hostID], frame, nil
	}))
}

// Remove is the full departure path: the member leaves, its transport is
// closed, and the room learns about it (host transfer and clients list).
func (r *Room) Remove(id domain.ConnectionID, reason string) bool {
	return r.evict([]domain.ConnectionID{id}, reason) > 0
}

func (r *Room) evict(ids []domain.ConnectionID, reason string) int {
	prevHost := r.HostID()
	removed := 0
	for _, id := range ids {
		c, ok := r.detach(id)
		if !ok {
			continue
		}
		removed++
		c.signal.Close()
		log.Info().
			Str("module", "core.room").
			Str("room", string(r.name)).
			Str("cid", string(id)).
			Str("reason", reason).
			Msg("member removed")
	}
	if removed == 0 {
		return 0
	}
	if host := r.HostID(); host != "" && host != prevHost {
		// the new host learns its role through a fresh init
		_ = r.SendInit(host)
		r.BroadcastState(protocol.ReasonHostTransfer)
	}
	r.BroadcastClients()
	return removed
}

func (r *Room) detach(id domain.ConnectionID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, _, ok := r.leaveLocked(id)
	return c, ok
}

// Probe pings every member with token t0 and evicts members whose send failed
// or whose last accepted pong is older than deadline.
func (r *Room) Probe(t0 int64, deadline time.Time) int {
	var stale []domain.ConnectionID
	targets, frame := r.stage(func() Frame {
		frame := r.encode(protocol.NewPing(t0))
		if frame == nil {
			return nil
		}
		for _, c := range r.members {
			c.addProbe(t0)
			if c.lastLiveness.Before(deadline) {
				stale = append(stale, c.id)
			}
		}
		return frame
	})
	if frame == nil {
		return 0
	}
	res := r.fanOut(targets, frame)

	dead := append(stale, res.Dropped...)
	if len(dead) == 0 {
		return 0
	}
	n := r.evict(dead, "liveness")
	metrics.LivenessDrops.Add(float64(n))
	return n
}

// Heartbeat accepts a pong for an outstanding probe token, refreshing liveness
// and recording round-trip latency. Unknown tokens are ignored.
func (r *Room) Heartbeat(id domain.ConnectionID, t0 int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || !c.takeProbe(t0) {
		return false
	}
	now := r.clock.Now()
	c.lastLiveness = now
	latency := float64(now.UnixMilli() - t0)
	if latency < 0 {
		latency = 0
	}
	c.metrics.LatencyMs = &latency
	return true
}

// ReportMetrics merges listener-reported metrics. Reports from the host are
// ignored and yield false.
func (r *Room) ReportMetrics(id domain.ConnectionID, m domain.ListenerMetrics) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false, ErrNotMember
	}
	if c.role == domain.RoleHost {
		return false, nil
	}
	c.metrics.Merge(m)
	now := r.clock.Now()
	c.lastReport = &now
	return true, nil
}

func (r *Room) SetDisplayName(id domain.ConnectionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return ErrNotMember
	}
	c.name = name
	return nil
}

func (r *Room) membersLocked() []domain.MemberInfo {
	out := make([]domain.MemberInfo, 0, len(r.members))
	for _, c := range r.members {
		out = append(out, c.info())
	}
	return out
}

// MembershipSnapshot lists members in join order.
func (r *Room) MembershipSnapshot() []domain.MemberInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

// ListenerSnapshot reports every non-host member's metrics in join order.
func (r *Room) ListenerSnapshot() domain.ListenerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := domain.ListenerSnapshot{
		GeneratedAt: r.clock.Now().UTC(),
		Listeners:   make([]domain.ListenerReport, 0, len(r.members)),
	}
	for _, c := range r.members {
		if c.role == domain.RoleHost {
			continue
		}
		out.Listeners = append(out.Listeners, c.report())
	}
	return out
}

func (r *Room) State() domain.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback.Snapshot()
}

// Position is the effective playback position now.
func (r *Room) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback.Position()
}

func (r *Room) HostID() domain.ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) Role(id domain.ConnectionID) (domain.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return c.role, true
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomInfo{Name: r.name, MemberCount: len(r.members), HostID: r.hostID}
}

func (r *Room) encode(v any) Frame {
	b, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Str("room", string(r.name)).Msg("encode frame")
		return nil
	}
	return b
}
