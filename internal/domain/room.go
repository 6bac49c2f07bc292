package domain

import "strings"

type (
	RoomName     string
	ConnectionID string
)

// DefaultRoom is used whenever a connection names no room.
const DefaultRoom RoomName = "default"

// NormalizeRoomName maps blank names onto DefaultRoom.
func NormalizeRoomName(raw string) RoomName {
	name := strings.TrimSpace(raw)
	if name == "" {
		return DefaultRoom
	}
	return RoomName(name)
}

// Short is the abbreviated id shown in member lists.
func (id ConnectionID) Short() string {
	if len(id) <= 6 {
		return string(id)
	}
	return string(id[:6])
}

// PlaybackState is the immutable snapshot of a room's clock sent to clients.
type PlaybackState struct {
	TrackURL     string  `json:"track_url"`
	Paused       bool    `json:"paused"`
	PositionSec  float64 `json:"position_sec"`
	StartEpochMs int64   `json:"start_epoch_ms"`
	PlaybackRate float64 `json:"playback_rate"`
	Volume       float64 `json:"volume"`
}

type RoomInfo struct {
	Name        RoomName     `json:"name"`
	MemberCount int          `json:"client_count"`
	HostID      ConnectionID `json:"host_id,omitempty"`
}
