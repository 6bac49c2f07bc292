package protocol

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/Flamichka/sync/internal/domain"
)

const (
	DefaultMaxFrameBytes = 4096
	MaxTrackURLLen       = 2048

	MinPlaybackRate = 0.5
	MaxPlaybackRate = 2.0
)

var (
	trackURLRe      = regexp.MustCompile(`(?i)^(https?://|/media/|/static/|/)\S+$`)
	allowedMediaExt = []string{".mp3", ".ogg", ".wav"}
)

// ClampRate bounds a playback rate to [MinPlaybackRate, MaxPlaybackRate].
func ClampRate(r float64) float64 {
	return math.Max(MinPlaybackRate, math.Min(MaxPlaybackRate, r))
}

// Decode parses and validates one raw frame. A nil Message with a nil error
// means the frame is dropped silently (malformed pong). Errors are *Error.
func Decode(data []byte, maxBytes int) (Message, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	if len(data) > maxBytes {
		return nil, errorf(CodeTooLarge, "message too large")
	}

	var env struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errorf(CodeBadJSON, "unable to parse json")
	}
	var typ string
	if err := json.Unmarshal(env.Type, &typ); err != nil {
		// absent or non-string tag
		return nil, errorf(CodeUnknownType, "unknown type %s", env.Type)
	}

	switch typ {
	case "hello":
		return decodeHello(data)
	case "control":
		return decodeControl(data)
	case "pong":
		return decodePong(data), nil
	case "status":
		return decodeStatus(data)
	case "request_sync":
		return RequestSync{}, nil
	case "resync":
		return Resync{}, nil
	default:
		return nil, errorf(CodeUnknownType, "unknown type %s", typ)
	}
}

func decodeHello(data []byte) (Message, error) {
	var p struct {
		WantHost bool    `json:"want_host"`
		Name     *string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errorf(CodeBadHello, "malformed hello: %v", err)
	}
	msg := Hello{WantHost: p.WantHost}
	if p.Name != nil {
		name, err := domain.NormalizeDisplayName(*p.Name)
		if err != nil {
			return nil, errorf(CodeBadHello, "%v", err)
		}
		msg.Name = name
	}
	return msg, nil
}

func decodeControl(data []byte) (Message, error) {
	var p struct {
		Action       string   `json:"action"`
		PositionSec  *float64 `json:"position_sec"`
		TrackURL     *string  `json:"track_url"`
		Volume       *float64 `json:"volume"`
		PlaybackRate *float64 `json:"playback_rate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errorf(CodeBadControl, "malformed control: %v", err)
	}
	action := Action(p.Action)
	if !action.valid() {
		return nil, errorf(CodeBadControl, "invalid action %q", p.Action)
	}
	if p.Volume != nil && (*p.Volume < 0 || *p.Volume > 1) {
		return nil, errorf(CodeBadControl, "volume must be 0.0-1.0")
	}
	if p.TrackURL != nil {
		if err := validateTrackURL(*p.TrackURL); err != nil {
			return nil, err
		}
	}
	msg := Control{
		Action:      action,
		PositionSec: p.PositionSec,
		TrackURL:    p.TrackURL,
		Volume:      p.Volume,
	}
	if p.PlaybackRate != nil {
		r := ClampRate(*p.PlaybackRate)
		msg.PlaybackRate = &r
	}
	return msg, nil
}

func validateTrackURL(u string) error {
	if len(u) > MaxTrackURLLen || !trackURLRe.MatchString(u) {
		return errorf(CodeBadControl, "invalid URL")
	}
	lowered := strings.ToLower(u)
	for _, ext := range allowedMediaExt {
		if strings.HasSuffix(lowered, ext) {
			return nil
		}
	}
	return errorf(CodeBadControl, "only .mp3/.ogg/.wav allowed")
}

func decodePong(data []byte) Message {
	var p struct {
		T0 *int64 `json:"t0"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.T0 == nil {
		return nil
	}
	return Pong{T0: *p.T0}
}

func decodeStatus(data []byte) (Message, error) {
	var p domain.ListenerMetrics
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errorf(CodeBadStatus, "malformed status: %v", err)
	}
	return Status{Metrics: p}, nil
}
