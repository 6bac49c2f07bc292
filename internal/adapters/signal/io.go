package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/app/orch"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "adapters.signal").Str("ip", c.addr).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "adapters.signal").Str("ip", c.addr).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump owns the departure path: whatever ends the loop, the session is
// removed from its room and the transport is closed.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, s *orch.Session, c *WsSignalConn) {
	cid := string(s.ID())
	defer func() {
		log.Info().Str("module", "adapters.signal").Str("cid", cid).Msg("readPump closing")
		s.Close()
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.signal").Str("cid", cid).Msg("readPump ctx done")
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "adapters.signal").Str("cid", cid).Msg("readPump read error")
			}
			return
		}
		if err := s.HandleFrame(data); err != nil {
			log.Error().Err(err).Str("module", "adapters.signal").Str("cid", cid).Msg("frame handling failed")
			return
		}
	}
}
