package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Flamichka/sync/internal/app/orch"
	"github.com/Flamichka/sync/internal/core"
	"github.com/Flamichka/sync/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Options tune the websocket transport.
type Options struct {
	ReadLimit      int64
	SendBuffer     int
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Limiter  *HandshakeLimiter
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, limiter *HandshakeLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	ctl := &SignalWSController{Orch: o, Limiter: limiter, opts: opts}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range ctl.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// WsSignalConn is the websocket side of core.SignalConnection.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame
	addr string

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *WsSignalConn) RemoteAddr() string { return c.addr }

// HandleSignal admits, upgrades and attaches one websocket connection.
// ctx bounds the connection lifetime; it must outlive the HTTP request.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	addr := c.ClientIP()
	if ctl.Limiter != nil && !ctl.Limiter.Allow(addr) {
		metrics.HandshakeRejects.Inc()
		log.Warn().Str("module", "adapters.signal").Str("ip", addr).Msg("handshake rate limited")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Str("ip", addr).Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
		addr: addr,
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)

	sess := ctl.Orch.Connect(orch.ConnectRequest{
		Room:      c.Query("room"),
		ForceHost: c.Query("force_host"),
		Role:      c.Query("role"),
		Name:      c.GetString("display_name"),
		UserAgent: c.Request.UserAgent(),
	}, conn, cancel)

	go ctl.readPump(ctx, cancel, sess, conn)
}
