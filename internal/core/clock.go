package core

import (
	"math"

	"github.com/jonboulle/clockwork"

	"github.com/Flamichka/sync/internal/domain"
	"github.com/Flamichka/sync/internal/protocol"
)

// PlaybackClock is the authoritative timeline of one room.
// While paused the position is positionSec; while playing it is derived
// from baselineMs, the wall-clock instant that corresponds to position zero.
// Not safe for concurrent use; guarded by the owning room's lock.
type PlaybackClock struct {
	clock clockwork.Clock

	trackURL     string
	paused       bool
	positionSec  float64
	baselineMs   int64
	playbackRate float64
	volume       float64
}

func NewPlaybackClock(clock clockwork.Clock) *PlaybackClock {
	return &PlaybackClock{
		clock:        clock,
		paused:       true,
		baselineMs:   clock.Now().UnixMilli(),
		playbackRate: 1.0,
		volume:       1.0,
	}
}

func (c *PlaybackClock) nowMs() int64 { return c.clock.Now().UnixMilli() }

func (c *PlaybackClock) positionAt(nowMs int64) float64 {
	if c.paused {
		return math.Max(0, c.positionSec)
	}
	return math.Max(0, float64(nowMs-c.baselineMs)/1000.0)
}

// Position is the effective position right now.
func (c *PlaybackClock) Position() float64 {
	return c.positionAt(c.nowMs())
}

func (c *PlaybackClock) rebase(nowMs int64) {
	c.baselineMs = nowMs - int64(math.Round(c.positionSec*1000.0))
}

func (c *PlaybackClock) Snapshot() domain.PlaybackState {
	return domain.PlaybackState{
		TrackURL:     c.trackURL,
		Paused:       c.paused,
		PositionSec:  c.positionSec,
		StartEpochMs: c.baselineMs,
		PlaybackRate: c.playbackRate,
		Volume:       c.volume,
	}
}

// Apply performs one control action. A failed precondition mutates nothing.
func (c *PlaybackClock) Apply(ctl protocol.Control) (domain.PlaybackState, error) {
	now := c.nowMs()
	switch ctl.Action {
	case protocol.ActionPlay:
		if !c.paused {
			// already running: keep the baseline, refresh the recorded position
			c.positionSec = c.positionAt(now)
			break
		}
		c.paused = false
		c.rebase(now)

	case protocol.ActionPause:
		c.positionSec = c.positionAt(now)
		c.paused = true

	case protocol.ActionSeek:
		if ctl.PositionSec == nil || !validPosition(*ctl.PositionSec) {
			return domain.PlaybackState{}, ErrBadSeek
		}
		c.positionSec = *ctl.PositionSec
		if !c.paused {
			c.rebase(now)
		}

	case protocol.ActionSetTrack:
		if ctl.TrackURL == nil || *ctl.TrackURL == "" {
			return domain.PlaybackState{}, ErrBadTrack
		}
		c.trackURL = *ctl.TrackURL
		c.positionSec = 0
		c.paused = true
		c.baselineMs = now
		if ctl.PlaybackRate != nil {
			c.playbackRate = protocol.ClampRate(*ctl.PlaybackRate)
		}

	case protocol.ActionSetVolume:
		if ctl.Volume == nil || *ctl.Volume < 0 || *ctl.Volume > 1 {
			return domain.PlaybackState{}, ErrBadVolume
		}
		c.volume = *ctl.Volume
	}
	return c.Snapshot(), nil
}

func validPosition(p float64) bool {
	return p >= 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
