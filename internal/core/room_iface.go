package core

import (
	"fmt"

	"github.com/Flamichka/sync/internal/domain"
)

// PublishResult reports delivery stats of one fan-out.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnectionID
}

// deliver sends frame to every target and collects the ones that failed.
// It never retries: a failed send is terminal for that member.
func deliver(targets []*Connection, frame Frame) PublishResult {
	res := PublishResult{}
	for _, c := range targets {
		if err := trySend(c, frame); err != nil {
			res.Dropped = append(res.Dropped, c.id)
			continue
		}
		res.SendTo++
	}
	return res
}

// trySend reports a panicking transport as a failed send so one broken
// member cannot abort delivery to the rest of the room.
func trySend(c *Connection, frame Frame) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrSendPanic, p)
		}
	}()
	return c.signal.TrySend(frame)
}
