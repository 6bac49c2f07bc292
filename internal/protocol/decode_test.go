package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeErrCode(t *testing.T, raw string) Code {
	t.Helper()
	_, err := Decode([]byte(raw), DefaultMaxFrameBytes)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	return perr.Code
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Code
	}{
		{name: "not json", raw: "not json", want: CodeBadJSON},
		{name: "json array", raw: `[1,2]`, want: CodeBadJSON},
		{name: "unknown type", raw: `{"type":"dance"}`, want: CodeUnknownType},
		{name: "missing type", raw: `{}`, want: CodeUnknownType},
		{name: "numeric type", raw: `{"type":5}`, want: CodeUnknownType},
		{name: "null type", raw: `{"type":null}`, want: CodeUnknownType},
		{name: "hello blank name", raw: `{"type":"hello","name":"   "}`, want: CodeBadHello},
		{name: "hello long name", raw: `{"type":"hello","name":"` + strings.Repeat("x", 41) + `"}`, want: CodeBadHello},
		{name: "hello bad charset", raw: `{"type":"hello","name":"<b>"}`, want: CodeBadHello},
		{name: "hello want_host wrong type", raw: `{"type":"hello","want_host":"yes"}`, want: CodeBadHello},
		{name: "control unknown action", raw: `{"type":"control","action":"rewind"}`, want: CodeBadControl},
		{name: "control volume high", raw: `{"type":"control","action":"set_volume","volume":1.5}`, want: CodeBadControl},
		{name: "control volume negative", raw: `{"type":"control","action":"set_volume","volume":-0.1}`, want: CodeBadControl},
		{name: "control track ext", raw: `{"type":"control","action":"set_track","track_url":"/media/a.flac"}`, want: CodeBadControl},
		{name: "control track scheme", raw: `{"type":"control","action":"set_track","track_url":"ftp://x/a.mp3"}`, want: CodeBadControl},
		{name: "control track whitespace", raw: `{"type":"control","action":"set_track","track_url":"/media/a b.mp3"}`, want: CodeBadControl},
		{name: "control position wrong type", raw: `{"type":"control","action":"seek","position_sec":"10"}`, want: CodeBadControl},
		{name: "status wrong type", raw: `{"type":"status","volume":"loud"}`, want: CodeBadStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeErrCode(t, tt.raw))
		})
	}
}

func TestDecode_TooLarge(t *testing.T) {
	raw := `{"type":"hello","name":"` + strings.Repeat("a", 5000) + `"}`
	_, err := Decode([]byte(raw), 4096)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeTooLarge, perr.Code)

	// the limit is not parsed around: even garbage over the limit is too_large
	_, err = Decode([]byte(strings.Repeat("{", 4097)), 4096)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeTooLarge, perr.Code)
}

func TestDecode_TrackURLLength(t *testing.T) {
	url := "/media/" + strings.Repeat("a", MaxTrackURLLen) + ".mp3"
	_, err := Decode([]byte(`{"type":"control","action":"set_track","track_url":"`+url+`"}`), 8192)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeBadControl, perr.Code)
}

func TestDecode_Hello(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"hello","want_host":true,"name":"  Ann  "}`), 0)
	require.NoError(t, err)
	assert.Equal(t, Hello{WantHost: true, Name: "Ann"}, msg)

	msg, err = Decode([]byte(`{"type":"hello"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, Hello{}, msg)
}

func TestDecode_Control(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"control","action":"set_track","track_url":"https://cdn.example.com/Song.MP3","playback_rate":5}`), 0)
	require.NoError(t, err)
	ctl, ok := msg.(Control)
	require.True(t, ok)
	assert.Equal(t, ActionSetTrack, ctl.Action)
	require.NotNil(t, ctl.TrackURL)
	assert.Equal(t, "https://cdn.example.com/Song.MP3", *ctl.TrackURL)
	require.NotNil(t, ctl.PlaybackRate)
	assert.Equal(t, MaxPlaybackRate, *ctl.PlaybackRate)

	msg, err = Decode([]byte(`{"type":"control","action":"seek","position_sec":-3}`), 0)
	require.NoError(t, err, "negative positions are rejected by the clock, not the decoder")
	ctl = msg.(Control)
	assert.Equal(t, -3.0, *ctl.PositionSec)

	msg, err = Decode([]byte(`{"type":"control","action":"set_track","track_url":"/media/a.ogg","playback_rate":0.1}`), 0)
	require.NoError(t, err)
	assert.Equal(t, MinPlaybackRate, *msg.(Control).PlaybackRate)
}

func TestDecode_Pong(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"pong","t0":1700000000000}`), 0)
	require.NoError(t, err)
	assert.Equal(t, Pong{T0: 1700000000000}, msg)

	for _, raw := range []string{`{"type":"pong"}`, `{"type":"pong","t0":"x"}`, `{"type":"pong","t0":1.5}`} {
		msg, err := Decode([]byte(raw), 0)
		assert.NoError(t, err, raw)
		assert.Nil(t, msg, raw)
	}
}

func TestDecode_StatusAndSync(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"status","volume":0.4,"player_state":"buffering"}`), 0)
	require.NoError(t, err)
	st := msg.(Status)
	assert.Equal(t, 0.4, *st.Metrics.Volume)
	assert.Equal(t, "buffering", *st.Metrics.PlayerState)
	assert.Nil(t, st.Metrics.LatencyMs)

	msg, err = Decode([]byte(`{"type":"request_sync"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, RequestSync{}, msg)

	msg, err = Decode([]byte(`{"type":"resync"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, Resync{}, msg)
}

type recordingHandler struct {
	calls []string
}

func (h *recordingHandler) record(name string) error {
	h.calls = append(h.calls, name)
	return nil
}

func (h *recordingHandler) OnHello(Hello) error             { return h.record("hello") }
func (h *recordingHandler) OnControl(Control) error         { return h.record("control") }
func (h *recordingHandler) OnPong(Pong) error               { return h.record("pong") }
func (h *recordingHandler) OnStatus(Status) error           { return h.record("status") }
func (h *recordingHandler) OnRequestSync(RequestSync) error { return h.record("sync") }
func (h *recordingHandler) OnResync(Resync) error           { return h.record("resync") }

func TestDispatch(t *testing.T) {
	h := &recordingHandler{}
	for _, m := range []Message{Hello{}, Control{}, Pong{}, Status{}, RequestSync{}, Resync{}} {
		require.NoError(t, m.Dispatch(h))
	}
	assert.Equal(t, []string{"hello", "control", "pong", "status", "sync", "resync"}, h.calls)
}

func TestEncode(t *testing.T) {
	b, err := Encode(NewError(CodeNotHost, "only host may control playback"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","code":"not_host","message":"only host may control playback"}`, string(b))

	b, err = Encode(NewClients(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"clients","clients":[]}`, string(b))

	b, err = Encode(NewPing(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping","t0":42}`, string(b))
}
