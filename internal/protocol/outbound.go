package protocol

import (
	"encoding/json"

	"github.com/Flamichka/sync/internal/domain"
)

// ReasonHostTransfer is the state reason sent when the host changes.
const ReasonHostTransfer = "host_transfer"

// ReasonResync is the state reason of a host-requested rebroadcast.
const ReasonResync = "resync"

type Init struct {
	Type     string               `json:"type"`
	IsHost   bool                 `json:"is_host"`
	ClientID domain.ConnectionID  `json:"client_id"`
	Room     domain.RoomName      `json:"room"`
	State    domain.PlaybackState `json:"state"`
}

type State struct {
	Type   string               `json:"type"`
	Reason string               `json:"reason"`
	State  domain.PlaybackState `json:"state"`
}

type Clients struct {
	Type    string              `json:"type"`
	Clients []domain.MemberInfo `json:"clients"`
}

type Ping struct {
	Type string `json:"type"`
	T0   int64  `json:"t0"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type Listeners struct {
	Type string `json:"type"`
	domain.ListenerSnapshot
}

func NewInit(id domain.ConnectionID, room domain.RoomName, isHost bool, st domain.PlaybackState) Init {
	return Init{Type: "init", IsHost: isHost, ClientID: id, Room: room, State: st}
}

func NewState(reason string, st domain.PlaybackState) State {
	return State{Type: "state", Reason: reason, State: st}
}

func NewClients(members []domain.MemberInfo) Clients {
	if members == nil {
		members = []domain.MemberInfo{}
	}
	return Clients{Type: "clients", Clients: members}
}

func NewPing(t0 int64) Ping {
	return Ping{Type: "ping", T0: t0}
}

func NewError(code Code, message string) ErrorFrame {
	return ErrorFrame{Type: "error", Code: code, Message: message}
}

func NewListeners(snap domain.ListenerSnapshot) Listeners {
	if snap.Listeners == nil {
		snap.Listeners = []domain.ListenerReport{}
	}
	return Listeners{Type: "listeners", ListenerSnapshot: snap}
}

// Encode renders an outbound message as a compact JSON text frame.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
