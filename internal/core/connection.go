package core

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/Flamichka/sync/internal/domain"
)

// maxOutstandingProbes bounds how many unanswered ping tokens a connection keeps.
const maxOutstandingProbes = 8

func NewConnectionID() domain.ConnectionID {
	u := uuid.New()
	return domain.ConnectionID(hex.EncodeToString(u[:]))
}

// Connection binds one transport endpoint to its membership meta.
// Everything below the transport fields is guarded by the owning room's mu.
type Connection struct {
	id     domain.ConnectionID
	signal SignalConnection
	ip     string
	agent  string

	role         domain.Role
	joinSeq      uint64
	name         string
	connectedAt  time.Time
	lastLiveness time.Time
	probes       []int64
	limiter      *TokenBucket
	metrics      domain.ListenerMetrics
	lastReport   *time.Time
}

// NewConnection builds a member that has not joined any room yet.
// An empty name falls back to a guest name derived from id.
func NewConnection(id domain.ConnectionID, sig SignalConnection, name string, limiter *TokenBucket) *Connection {
	if name == "" {
		name = domain.GuestName(id)
	}
	return &Connection{
		id:      id,
		signal:  sig,
		ip:      sig.RemoteAddr(),
		role:    domain.RoleListener,
		name:    name,
		limiter: limiter,
	}
}

func (c *Connection) ID() domain.ConnectionID { return c.id }
func (c *Connection) RemoteAddr() string      { return c.ip }

// SetUserAgent records the client's user agent. Call it before Join.
func (c *Connection) SetUserAgent(ua string) { c.agent = ua }

func (c *Connection) info() domain.MemberInfo {
	return domain.MemberInfo{
		ID:     c.id,
		Short:  c.id.Short(),
		Role:   c.role,
		IsHost: c.role == domain.RoleHost,
		IP:     c.ip,
		Name:   c.name,
	}
}

func (c *Connection) report() domain.ListenerReport {
	return domain.ListenerReport{
		ID:              c.id,
		Short:           c.id.Short(),
		Name:            c.name,
		IP:              c.ip,
		UserAgent:       c.agent,
		ConnectedAt:     c.connectedAt,
		LastReport:      c.lastReport,
		ListenerMetrics: c.metrics,
	}
}

func (c *Connection) addProbe(t0 int64) {
	c.probes = append(c.probes, t0)
	if len(c.probes) > maxOutstandingProbes {
		c.probes = c.probes[len(c.probes)-maxOutstandingProbes:]
	}
}

// takeProbe consumes t0 and every older token. Reports false for unknown tokens.
func (c *Connection) takeProbe(t0 int64) bool {
	for i, p := range c.probes {
		if p == t0 {
			c.probes = append(c.probes[:0:0], c.probes[i+1:]...)
			return true
		}
	}
	return false
}
