package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Flamichka/sync/internal/app"
	"github.com/Flamichka/sync/internal/app/orch"
	"github.com/Flamichka/sync/internal/config"
	"github.com/Flamichka/sync/internal/core"
	"github.com/Flamichka/sync/internal/core/coremock"
	"github.com/Flamichka/sync/internal/domain"
	"github.com/Flamichka/sync/internal/protocol"
)

var epoch = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	router http.Handler
	orch   *orch.Orchestrator
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T, metadataURL string) *fixture {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>listen</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "host.html"), []byte("<h1>host</h1>"), 0o644))

	cfg := config.Default()
	cfg.StaticPath = static
	cfg.AllowedOrigins = []string{"http://app.test"}
	if metadataURL != "" {
		cfg.MetadataEndpoint = metadataURL
	}

	clock := clockwork.NewFakeClockAt(epoch)
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewRegistry(clock),
		Policy:   app.SimplePolicy{},
		Limits:   orch.DefaultLimits(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &fixture{router: SetupRouter(ctx, cfg, o), orch: o, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) join(t *testing.T, room string) *orch.Session {
	ctrl := gomock.NewController(t)
	sig := coremock.NewMockSignalConnection(ctrl)
	sig.EXPECT().RemoteAddr().Return("203.0.113.5").AnyTimes()
	sig.EXPECT().TrySend(gomock.Any()).Return(nil).AnyTimes()
	sig.EXPECT().Close().AnyTimes()
	return f.orch.Connect(orch.ConnectRequest{Room: room}, sig, func() {})
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestRouter_StaticAndHealth(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "listen")

	w = f.do(t, http.MethodGet, "/host", "", nil)
	assert.Contains(t, w.Body.String(), "host")

	w = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sync_rooms")
}

func TestRouter_SessionState(t *testing.T) {
	f := newFixture(t, "")
	host := f.join(t, "jazz")
	_, err := host.Room().ApplyHostControl(host.ID(), protocol.Control{Action: protocol.ActionPlay})
	require.NoError(t, err)
	f.clock.Advance(3 * time.Second)

	w := f.do(t, http.MethodGet, "/api/session/state?room=jazz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionStateResponse
	decode(t, w, &resp)
	assert.Equal(t, "jazz", string(resp.Room))
	assert.False(t, resp.State.Paused)
	assert.InDelta(t, 3.0, resp.PositionSec, 1e-9)
	assert.Equal(t, f.clock.Now().UnixMilli(), resp.ServerTimeMs)

	w = f.do(t, http.MethodGet, "/api/session/state", "", nil)
	decode(t, w, &resp)
	assert.Equal(t, "default", string(resp.Room))
	assert.True(t, resp.State.Paused)
	assert.Equal(t, 1.0, resp.State.PlaybackRate)
}

func TestRouter_ReadsDoNotCreateRooms(t *testing.T) {
	f := newFixture(t, "")
	f.join(t, "jazz")
	before := len(f.orch.Rooms.Rooms())

	for i := 0; i < 20; i++ {
		w := f.do(t, http.MethodGet, fmt.Sprintf("/api/session/state?room=r%d", i), "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = f.do(t, http.MethodGet, fmt.Sprintf("/api/rooms/x%d/listeners", i), "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	assert.Equal(t, before, len(f.orch.Rooms.Rooms()))
	_, ok := f.orch.Rooms.Lookup("r0")
	assert.False(t, ok)
}

func TestRouter_RoomsAndListeners(t *testing.T) {
	f := newFixture(t, "")
	host := f.join(t, "jazz")
	listener := f.join(t, "jazz")
	bitrate := 128.0
	_, err := listener.Room().ReportMetrics(listener.ID(), domain.ListenerMetrics{BitrateKbps: &bitrate})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/rooms", "", nil)
	var rooms struct {
		Rooms []struct {
			Name        string `json:"name"`
			ClientCount int    `json:"client_count"`
			HostID      string `json:"host_id"`
		} `json:"rooms"`
	}
	decode(t, w, &rooms)
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, "jazz", rooms.Rooms[0].Name)
	assert.Equal(t, 2, rooms.Rooms[0].ClientCount)
	assert.Equal(t, string(host.ID()), rooms.Rooms[0].HostID)

	w = f.do(t, http.MethodGet, "/api/rooms/jazz/listeners", "", nil)
	var snap struct {
		Listeners []map[string]any `json:"listeners"`
	}
	decode(t, w, &snap)
	require.Len(t, snap.Listeners, 1)
	assert.Equal(t, string(listener.ID()), snap.Listeners[0]["id"])
	assert.Equal(t, 128.0, snap.Listeners[0]["bitrate_kbps"])
}

func TestRouter_Profile(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/api/profile", `{"name":"  Mika "}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	header := http.Header{}
	for _, c := range cookies {
		header.Add("Cookie", c.String())
	}
	w = f.do(t, http.MethodGet, "/api/profile", "", header)
	var resp ProfileResponse
	decode(t, w, &resp)
	assert.Equal(t, "Mika", resp.Name)

	w = f.do(t, http.MethodPost, "/api/profile", `{"name":"<b>"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodPost, "/api/profile", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_VideoMetadata(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("url"), "v=abc123") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"title":         "Song",
			"author_name":   "Band",
			"thumbnail_url": "https://img.test/abc.jpg",
		})
	}))
	defer upstream.Close()
	f := newFixture(t, upstream.URL)

	w := f.do(t, http.MethodPost, "/api/video/metadata", `{"video_id":"abc123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meta VideoMetadata
	decode(t, w, &meta)
	assert.Equal(t, VideoMetadata{VideoID: "abc123", Title: "Song", Author: "Band", Thumbnail: "https://img.test/abc.jpg"}, meta)

	w = f.do(t, http.MethodPost, "/api/video/metadata", `{"video_id":"nope"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/video/metadata", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_CORS(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodOptions, "/api/rooms", "", http.Header{
		"Origin":                        []string{"http://app.test"},
		"Access-Control-Request-Method": []string{"GET"},
	})
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = f.do(t, http.MethodGet, "/api/rooms", "", http.Header{"Origin": []string{"http://evil.test"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
