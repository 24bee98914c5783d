package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/domain/party"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/middleware"
	"github.com/reignacare/service-booking/internal/platform/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a Handler. An empty origin list accepts any origin.
func NewHandler(registry *Registry, allowedOrigins []string, logger *zap.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		logger: logger,
	}
}

// RegisterRoutes mounts GET /ws; the token travels as ?token= since browsers cannot set headers.
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtManager *auth.JWTManager) {
	r.GET("/ws", middleware.QueryTokenAuthMiddleware(jwtManager), h.Connect)
}

// Connect handles GET /ws.
func (h *Handler) Connect(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(party.Ref{Role: party.Role(actor.Role), ID: actor.ID}, defaultOutboxSize)
	h.registry.Register(session)
	h.logger.Info("realtime session opened",
		zap.Stringer("party", session.Ref()),
		zap.Int("sessions", h.registry.Count()),
	)

	go h.writePump(conn, session)
	h.readPump(conn, session)
}

// readPump discards inbound frames and keeps the connection alive until the peer goes away.
func (h *Handler) readPump(conn *websocket.Conn, s *Session) {
	defer func() {
		h.registry.Unregister(s)
		_ = conn.Close()
		h.logger.Info("realtime session closed", zap.Stringer("party", s.Ref()))
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg := <-s.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
