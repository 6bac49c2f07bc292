// Package protocol defines the JSON text frames exchanged with clients:
// the closed set of inbound messages, their validation, and outbound frames.
package protocol

import (
	"github.com/Flamichka/sync/internal/domain"
)

type Action string

const (
	ActionPlay      Action = "play"
	ActionPause     Action = "pause"
	ActionSeek      Action = "seek"
	ActionSetTrack  Action = "set_track"
	ActionSetVolume Action = "set_volume"
)

func (a Action) valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionSeek, ActionSetTrack, ActionSetVolume:
		return true
	}
	return false
}

// Handler receives decoded inbound messages. Adding a message type adds a
// method here, so every implementation has to handle it.
type Handler interface {
	OnHello(Hello) error
	OnControl(Control) error
	OnPong(Pong) error
	OnStatus(Status) error
	OnRequestSync(RequestSync) error
	OnResync(Resync) error
}

// Message is one decoded inbound frame.
type Message interface {
	Dispatch(h Handler) error
	inbound()
}

// Hello announces a display name and optionally asks for the host role.
type Hello struct {
	WantHost bool
	Name     string // empty when not provided
}

// Control is a host playback command. Field presence is action specific and
// checked by the room clock.
type Control struct {
	Action       Action
	PositionSec  *float64
	TrackURL     *string
	Volume       *float64
	PlaybackRate *float64 // already clamped
}

// Pong answers a ping probe.
type Pong struct {
	T0 int64
}

// Status carries listener player metrics.
type Status struct {
	Metrics domain.ListenerMetrics
}

// RequestSync asks the server to resend init.
type RequestSync struct{}

// Resync is a host request to rebroadcast the current state to everyone.
type Resync struct{}

func (m Hello) Dispatch(h Handler) error       { return h.OnHello(m) }
func (m Control) Dispatch(h Handler) error     { return h.OnControl(m) }
func (m Pong) Dispatch(h Handler) error        { return h.OnPong(m) }
func (m Status) Dispatch(h Handler) error      { return h.OnStatus(m) }
func (m RequestSync) Dispatch(h Handler) error { return h.OnRequestSync(m) }
func (m Resync) Dispatch(h Handler) error      { return h.OnResync(m) }

func (Hello) inbound()       {}
func (Control) inbound()     {}
func (Pong) inbound()        {}
func (Status) inbound()      {}
func (RequestSync) inbound() {}
func (Resync) inbound()      {}
