package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/protocol"
)

// PublishSnapshots sends every hosted room's listener metrics to its host.
// Returns the number of hosts reached.
func (o *Orchestrator) PublishSnapshots() int {
	sent := 0
	for _, room := range o.Rooms.Rooms() {
		if room.HostID() == "" {
			continue
		}
		frame, err := protocol.Encode(protocol.NewListeners(room.ListenerSnapshot()))
		if err != nil {
			log.Error().Err(err).Str("module", "app.orch").Str("room", string(room.Name())).Msg("encode listeners")
			continue
		}
		if err := room.SendToHost(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Str("room", string(room.Name())).Msg("send listeners")
			continue
		}
		sent++
	}
	return sent
}

// DispatchSnapshots runs PublishSnapshots every interval until ctx is done.
func (o *Orchestrator) DispatchSnapshots(ctx context.Context, interval time.Duration) error {
	ticker := o.Rooms.Clock().NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.orch").Dur("interval", interval).Msg("snapshot dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.orch").Msg("snapshot dispatcher stopped")
			return nil
		case <-ticker.Chan():
			o.PublishSnapshots()
		}
	}
}
