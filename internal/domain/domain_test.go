package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "plain", in: "alice", want: "alice"},
		{name: "trimmed", in: "  DJ Bob.2-x  ", want: "DJ Bob.2-x"},
		{name: "unicode letters", in: "Zoë_Łukasz", want: "Zoë_Łukasz"},
		{name: "blank", in: "   ", wantErr: ErrNameEmpty},
		{name: "forty runes", in: strings.Repeat("ä", 40), want: strings.Repeat("ä", 40)},
		{name: "too long", in: strings.Repeat("a", 41), wantErr: ErrNameTooLong},
		{name: "markup", in: "<script>", wantErr: ErrNameInvalid},
		{name: "emoji", in: "dj 🎧", wantErr: ErrNameInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDisplayName(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRoomName(t *testing.T) {
	assert.Equal(t, DefaultRoom, NormalizeRoomName(""))
	assert.Equal(t, DefaultRoom, NormalizeRoomName("   "))
	assert.Equal(t, RoomName("lobby"), NormalizeRoomName(" lobby "))
}

func TestListenerMetricsMerge(t *testing.T) {
	vol, lat := 0.5, 42.0
	state := "playing"
	m := ListenerMetrics{Volume: &vol}

	m.Merge(ListenerMetrics{LatencyMs: &lat, PlayerState: &state})

	assert.Equal(t, 0.5, *m.Volume)
	assert.Equal(t, 42.0, *m.LatencyMs)
	assert.Equal(t, "playing", *m.PlayerState)
	assert.Nil(t, m.BitrateKbps)

	vol2 := 0.9
	m.Merge(ListenerMetrics{Volume: &vol2})
	assert.Equal(t, 0.9, *m.Volume)
	assert.Equal(t, 42.0, *m.LatencyMs)
}

func TestShortAndGuestName(t *testing.T) {
	id := ConnectionID("0123456789abcdef")
	assert.Equal(t, "012345", id.Short())
	assert.Equal(t, "Guest-012345", GuestName(id))
	assert.Equal(t, "abc", ConnectionID("abc").Short())
}
