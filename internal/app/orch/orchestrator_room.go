package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/app"
	"github.com/Flamichka/sync/internal/core"
	"github.com/Flamichka/sync/internal/domain"
	"github.com/Flamichka/sync/internal/protocol"
)

// ConnectRequest carries the handshake parameters of a new connection.
type ConnectRequest struct {
	Room      string
	ForceHost string
	Role      string
	// Name is a remembered display name; invalid names fall back to a guest name.
	Name      string
	UserAgent string
}

// Connect joins a new transport endpoint to its room, applies a forced host
// claim if requested, sends init and announces the new member list.
func (o *Orchestrator) Connect(req ConnectRequest, sig core.SignalConnection, cancel context.CancelFunc) *Session {
	room := o.Rooms.Resolve(req.Room)
	id := core.NewConnectionID()

	name, err := domain.NormalizeDisplayName(req.Name)
	if err != nil {
		name = ""
	}
	limiter := core.NewTokenBucket(o.Rooms.Clock(), o.Limits.RateCapacity, o.Limits.RateFillPerSec)
	conn := core.NewConnection(id, sig, name, limiter)
	conn.SetUserAgent(req.UserAgent)

	role := room.Join(conn)
	o.Registry.Bind(id, room.Name(), sig, cancel)

	if o.policy().OnHandshake(req.ForceHost, req.Role) == app.ClaimForce {
		if err := room.TransferHostTo(id); err == nil {
			role = domain.RoleHost
			room.BroadcastState(protocol.ReasonHostTransfer)
			room.BroadcastClients()
		}
	}

	log.Info().
		Str("module", "app.orch").
		Str("room", string(room.Name())).
		Str("cid", string(id)).
		Str("role", string(role)).
		Str("ip", sig.RemoteAddr()).
		Msg("connected")

	if err := room.SendInit(id); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("cid", string(id)).Msg("send init")
	}
	room.BroadcastClients()

	return &Session{id: id, room: room, orch: o}
}

// disconnect runs the departure path for id. Safe to call more than once.
func (o *Orchestrator) disconnect(room *core.Room, id domain.ConnectionID) {
	o.Registry.Unbind(id)
	if room.Remove(id, "disconnect") {
		log.Info().Str("module", "app.orch").Str("room", string(room.Name())).Str("cid", string(id)).Msg("disconnected")
	}
}

// Shutdown closes every live session.
func (o *Orchestrator) Shutdown() {
	n := o.Registry.CloseAll()
	log.Info().Str("module", "app.orch").Int("sessions", n).Msg("orchestrator stopped")
}
