package orch

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/core"
	"github.com/Flamichka/sync/internal/domain"
	"github.com/Flamichka/sync/internal/metrics"
	"github.com/Flamichka/sync/internal/protocol"
)

var _ protocol.Handler = (*Session)(nil)

// Session is the server side of one connection. It handles inbound frames
// for that connection and implements protocol.Handler.
type Session struct {
	id   domain.ConnectionID
	room *core.Room
	orch *Orchestrator
}

func (s *Session) ID() domain.ConnectionID { return s.id }
func (s *Session) Room() *core.Room        { return s.room }

// HandleFrame decodes and applies one inbound frame. Protocol errors are
// answered with an error frame and return nil. A non-nil return means the
// connection must be torn down.
func (s *Session) HandleFrame(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("module", "app.orch").
				Str("cid", string(s.id)).
				Interface("panic", r).
				Msg("frame handler panicked")
			s.sendError(protocol.CodeServerError, "unexpected server error")
			err = fmt.Errorf("handle frame: %v", r)
		}
	}()

	msg, err := protocol.Decode(data, s.orch.Limits.MaxFrameBytes)
	if err != nil {
		return s.reject(err)
	}
	if msg == nil {
		return nil
	}
	if err := msg.Dispatch(s); err != nil {
		return s.reject(err)
	}
	return nil
}

// Close runs the departure path for this session.
func (s *Session) Close() {
	s.orch.disconnect(s.room, s.id)
}

func (s *Session) reject(err error) error {
	code, ok := codeFor(err)
	if !ok {
		return err
	}
	msg := err.Error()
	var perr *protocol.Error
	if errors.As(err, &perr) {
		msg = perr.Message
	}
	s.sendError(code, msg)
	return nil
}

// codeFor maps handler errors onto wire codes. Unmapped errors are fatal.
func codeFor(err error) (protocol.Code, bool) {
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return perr.Code, true
	case errors.Is(err, core.ErrNotHost):
		return protocol.CodeNotHost, true
	case errors.Is(err, core.ErrRateLimited):
		return protocol.CodeRateLimited, true
	case errors.Is(err, core.ErrBadSeek):
		return protocol.CodeBadSeek, true
	case errors.Is(err, core.ErrBadTrack):
		return protocol.CodeBadTrack, true
	case errors.Is(err, core.ErrBadVolume):
		return protocol.CodeBadVolume, true
	}
	return "", false
}

func (s *Session) sendError(code protocol.Code, message string) {
	metrics.ProtocolErrors.WithLabelValues(string(code)).Inc()
	frame, err := protocol.Encode(protocol.NewError(code, message))
	if err != nil {
		return
	}
	log.Debug().Str("module", "app.orch").Str("cid", string(s.id)).Str("code", string(code)).Msg("error frame")
	if err := s.room.SendTo(s.id, frame); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("cid", string(s.id)).Msg("send error frame")
	}
}

func (s *Session) OnHello(m protocol.Hello) error {
	if m.WantHost {
		claimed, err := s.room.ClaimHost(s.id)
		if err != nil {
			return err
		}
		if claimed {
			if err := s.room.SendInit(s.id); err != nil {
				return err
			}
			s.room.BroadcastClients()
		}
	}
	if m.Name != "" {
		if err := s.room.SetDisplayName(s.id, m.Name); err != nil {
			return err
		}
		s.room.BroadcastClients()
	}
	return nil
}

func (s *Session) OnControl(m protocol.Control) error {
	_, err := s.room.ApplyHostControl(s.id, m)
	metrics.ControlTotal.WithLabelValues(string(m.Action), controlResult(err)).Inc()
	return err
}

func controlResult(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := codeFor(err); ok {
		return string(code)
	}
	return "rejected"
}

func (s *Session) OnPong(m protocol.Pong) error {
	if !s.room.Heartbeat(s.id, m.T0) {
		log.Debug().Str("module", "app.orch").Str("cid", string(s.id)).Int64("t0", m.T0).Msg("stale pong ignored")
	}
	return nil
}

func (s *Session) OnStatus(m protocol.Status) error {
	_, err := s.room.ReportMetrics(s.id, m.Metrics)
	return err
}

func (s *Session) OnRequestSync(protocol.RequestSync) error {
	return s.room.SendInit(s.id)
}

func (s *Session) OnResync(protocol.Resync) error {
	err := s.room.Resync(s.id)
	metrics.ControlTotal.WithLabelValues(protocol.ReasonResync, controlResult(err)).Inc()
	return err
}
