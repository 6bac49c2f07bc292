package core

import "errors"

var (
	ErrNotMember   = errors.New("connection is not a member of this room")
	ErrNotHost     = errors.New("only host may control playback")
	ErrRateLimited = errors.New("too many requests")
	ErrBadSeek     = errors.New("position_sec required and >= 0")
	ErrBadTrack    = errors.New("track_url required")
	ErrBadVolume   = errors.New("volume required in 0.0-1.0")
	ErrSendPanic   = errors.New("transport panicked on send")
)
