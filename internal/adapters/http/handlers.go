package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/app/orch"
	"github.com/Flamichka/sync/internal/core"
	"github.com/Flamichka/sync/internal/domain"
)

type Handlers struct {
	Orch     *orch.Orchestrator
	Metadata *MetadataClient
}

func NewHandlers(o *orch.Orchestrator, meta *MetadataClient) *Handlers {
	return &Handlers{Orch: o, Metadata: meta}
}

type SessionStateResponse struct {
	Room         domain.RoomName      `json:"room"`
	State        domain.PlaybackState `json:"state"`
	PositionSec  float64              `json:"position_sec"`
	ServerTimeMs int64                `json:"server_time_ms"`
}

// SessionState reports a room's playback state with the effective position now.
// A room nobody has joined yet reports the idle state and is not created.
func (h *Handlers) SessionState(c *gin.Context) {
	clock := h.Orch.Rooms.Clock()
	resp := SessionStateResponse{
		Room:         domain.NormalizeRoomName(c.Query("room")),
		ServerTimeMs: clock.Now().UnixMilli(),
	}
	if room, ok := h.Orch.Rooms.Lookup(c.Query("room")); ok {
		resp.State = room.State()
		resp.PositionSec = room.Position()
	} else {
		resp.State = core.NewPlaybackClock(clock).Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Orch.Rooms.List()})
}

func (h *Handlers) Listeners(c *gin.Context) {
	room, ok := h.Orch.Rooms.Lookup(c.Param("room"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room.ListenerSnapshot())
}

type ProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

type ProfileResponse struct {
	Name string `json:"name"`
}

func (h *Handlers) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, ProfileResponse{Name: c.GetString(displayNameKey)})
}

// UpdateProfile remembers a display name for future connections of this browser.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
		return
	}
	name, err := domain.NormalizeDisplayName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := sessions.Default(c)
	sess.Set(displayNameKey, name)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to save profile"})
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Name: name})
}

type MetadataRequest struct {
	VideoID string `json:"video_id" binding:"required"`
}

func (h *Handlers) VideoMetadata(c *gin.Context) {
	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_id required"})
		return
	}

	meta, err := h.Metadata.Lookup(c.Request.Context(), req.VideoID)
	switch {
	case errors.Is(err, ErrMetadataNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "video metadata not found"})
		return
	case err != nil:
		log.Warn().Err(err).Str("module", "adapters.http").Str("video_id", req.VideoID).Msg("metadata lookup")
		c.JSON(http.StatusBadGateway, gin.H{"error": "metadata service unavailable"})
		return
	}
	c.JSON(http.StatusOK, meta)
}
