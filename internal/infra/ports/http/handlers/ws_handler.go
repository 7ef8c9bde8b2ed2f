package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/fivepointers/pagerelay/internal/application/config"
	"github.com/fivepointers/pagerelay/internal/application/constant"
	"github.com/fivepointers/pagerelay/internal/domain/events"
	"github.com/fivepointers/pagerelay/internal/domain/models"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
	"github.com/fivepointers/pagerelay/internal/usecase"
)

const maxRoomKeyLen = 128

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	livenessWindow time.Duration
	pingInterval   time.Duration

	relay    usecase.RelayUsecase
	presence usecase.PresenceUsecase
	connRepo memory.ConnectionRepository
}

func NewWebSocketHandler(
	cfg *config.Config,
	relay usecase.RelayUsecase,
	presence usecase.PresenceUsecase,
	connRepo memory.ConnectionRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		livenessWindow: cfg.LivenessWindow,
		pingInterval:   cfg.PingInterval,
		relay:          relay,
		presence:       presence,
		connRepo:       connRepo,
	}
}

// Handle runs one connection's lifetime: admission, the read pump, and
// departure. A malformed room key is rejected before any room state is
// created.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	roomKey := c.Param("room")
	if roomKey == "" || len(roomKey) > maxRoomKeyLen {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room key"})
	}

	user := models.UserInfo{
		ID:    c.QueryParam("userId"),
		Name:  c.QueryParam("userName"),
		Color: c.QueryParam("userColor"),
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Name == "" {
		user.Name = "Anonymous"
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("WebSocket upgrade error", slog.Any(constant.Error, err))
		return err
	}

	ctx := c.Request().Context()
	connID := uuid.New()

	h.connRepo.Add(connID, ws)

	member, err := h.relay.HandleJoin(ctx, roomKey, runtime.Member{ConnID: connID, User: user})
	if err != nil {
		slog.Error(
			"admit connection",
			slog.Any(constant.Error, err),
			slog.String(constant.RoomKey, roomKey),
		)
		h.connRepo.Remove(connID)
		return nil
	}
	defer h.relay.HandleLeave(ctx, roomKey, connID)

	if err := ws.SetReadDeadline(time.Now().Add(h.livenessWindow)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		h.relay.Touch(roomKey, connID)
		return ws.SetReadDeadline(time.Now().Add(h.livenessWindow))
	})

	done := make(chan struct{})
	defer close(done)

	go h.pingLoop(connID, done)

	for {
		msgType, msg, err := ws.ReadMessage()
		if err != nil {
			// Covers both explicit closes and liveness-window expiry:
			// the deferred leave removes the member either way.
			h.logReadError(roomKey, connID, err)
			return nil
		}

		_ = ws.SetReadDeadline(time.Now().Add(h.livenessWindow))

		switch msgType {
		case websocket.BinaryMessage:
			h.relay.HandleDocumentUpdate(ctx, roomKey, connID, msg)

		case websocket.TextMessage:
			h.handleTextFrame(c, roomKey, connID, member, msg)
		}
	}
}

func (h *WebSocketHandler) handleTextFrame(c echo.Context, roomKey string, connID uuid.UUID, member runtime.Member, msg []byte) {
	var frame events.Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		slog.Warn(
			"unmarshal websocket frame",
			slog.Any(constant.Error, err),
			slog.String(constant.RoomKey, roomKey),
		)
		return
	}

	ctx := c.Request().Context()

	switch frame.Type {
	case events.TypePresenceUpdate:
		if err := h.presence.HandleUpdate(ctx, roomKey, connID, frame.Data); err != nil {
			slog.Warn(
				"handle presence update",
				slog.Any(constant.Error, err),
				slog.String(constant.RoomKey, roomKey),
			)
		}

	case events.TypePing:
		h.relay.Touch(roomKey, connID)

		pong, err := events.NewFrame(events.TypePong, events.PongEvent{Timestamp: time.Now().UnixMilli()})
		if err != nil {
			return
		}
		_ = h.connRepo.WriteJSON(connID, pong)

	default:
		slog.Debug(
			"unknown frame type",
			slog.String("frame_type", frame.Type),
			slog.String(constant.RoomKey, roomKey),
			slog.String(constant.UserID, member.User.ID),
		)
	}
}

func (h *WebSocketHandler) pingLoop(connID uuid.UUID, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.connRepo.Ping(connID); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) logReadError(roomKey string, connID uuid.UUID, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Info(
			"connection closed",
			slog.String(constant.RoomKey, roomKey),
			slog.Any(constant.ConnID, connID),
		)
		return
	}

	slog.Warn(
		"websocket read",
		slog.Any(constant.Error, err),
		slog.String(constant.RoomKey, roomKey),
		slog.Any(constant.ConnID, connID),
	)
}
