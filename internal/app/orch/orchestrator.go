package orch

import (
	"github.com/Flamichka/sync/internal/app"
	"github.com/Flamichka/sync/internal/core"
)

// Limits are the per-connection protocol limits applied by every session.
type Limits struct {
	MaxFrameBytes  int
	RateCapacity   float64
	RateFillPerSec float64
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 4096, RateCapacity: 10, RateFillPerSec: 5}
}

// Orchestrator glues transport sessions to rooms.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *core.Registry
	Policy   app.Policy
	Limits   Limits
}

func (o *Orchestrator) policy() app.Policy {
	if o.Policy == nil {
		return app.SimplePolicy{}
	}
	return o.Policy
}
