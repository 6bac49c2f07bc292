package domain

import "time"

type Role string

const (
	RoleHost     Role = "host"
	RoleListener Role = "listener"
)

// MemberInfo is one row of the clients list. No transport fields.
type MemberInfo struct {
	ID     ConnectionID `json:"id"`
	Short  string       `json:"short"`
	Role   Role         `json:"role"`
	IsHost bool         `json:"is_host"`
	IP     string       `json:"ip"`
	Name   string       `json:"name"`
}

// ListenerMetrics holds what a listener reports about its own player.
// Every field is optional; nil means never reported.
type ListenerMetrics struct {
	Volume       *float64 `json:"volume"`
	LatencyMs    *float64 `json:"latency_ms"`
	BitrateKbps  *float64 `json:"bitrate_kbps"`
	QualityLabel *string  `json:"quality_label"`
	BufferSec    *float64 `json:"buffer_seconds"`
	PlayerTime   *float64 `json:"player_time"`
	PlayerState  *string  `json:"player_state"`
}

// Merge applies every field set in upd, last write wins.
func (m *ListenerMetrics) Merge(upd ListenerMetrics) {
	if upd.Volume != nil {
		m.Volume = upd.Volume
	}
	if upd.LatencyMs != nil {
		m.LatencyMs = upd.LatencyMs
	}
	if upd.BitrateKbps != nil {
		m.BitrateKbps = upd.BitrateKbps
	}
	if upd.QualityLabel != nil {
		m.QualityLabel = upd.QualityLabel
	}
	if upd.BufferSec != nil {
		m.BufferSec = upd.BufferSec
	}
	if upd.PlayerTime != nil {
		m.PlayerTime = upd.PlayerTime
	}
	if upd.PlayerState != nil {
		m.PlayerState = upd.PlayerState
	}
}

// ListenerReport is a listener's metrics plus identity, as shown to hosts.
type ListenerReport struct {
	ID          ConnectionID `json:"id"`
	Short       string       `json:"short"`
	Name        string       `json:"name"`
	IP          string       `json:"ip"`
	UserAgent   string       `json:"user_agent,omitempty"`
	ConnectedAt time.Time    `json:"connected_at"`
	LastReport  *time.Time   `json:"last_report"`
	ListenerMetrics
}

type ListenerSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Listeners   []ListenerReport `json:"listeners"`
}
