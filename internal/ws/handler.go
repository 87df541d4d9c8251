package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/party-queue/internal/queue"
	"github.com/party-queue/internal/room"
	"github.com/party-queue/pkg/models"
)

const (
	writeWait       = 10 * time.Second
	snapshotMessage = "snapshot"
)

// Listener streams raw room updates, e.g. from Redis Pub/Sub.
type Listener interface {
	Listen(ctx context.Context, roomCode string) (<-chan string, func() error, error)
}

// RoomReader is the part of the room service the socket needs.
type RoomReader interface {
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	GetQueue(ctx context.Context, code string) ([]queue.Entry, error)
	NowPlaying(ctx context.Context, code string) (*queue.Entry, error)
}

type Handler struct {
	rooms    RoomReader
	listener Listener
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler builds the realtime handler. An empty allowedOrigins list
// accepts any origin.
func NewHandler(rooms RoomReader, listener Listener, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}

	return &Handler{
		rooms:    rooms,
		listener: listener,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws/:code", h.HandleWebSocket)
}

// HandleWebSocket sends the current queue, then forwards every update
// published for the room until either side goes away.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	code := room.NormalizeCode(c.Param("code"))
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if _, err := h.rooms.GetRoomByCode(ctx, code); err != nil {
		c.JSON(room.StatusCode(err), gin.H{"error": "room not found or inactive"})
		return
	}

	updates, closeUpdates, err := h.listener.Listen(ctx, code)
	if err != nil {
		h.logger.Error("failed to subscribe to room updates", zap.String("room_code", code), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime updates unavailable"})
		return
	}
	defer closeUpdates()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	userID := c.GetString("user_id")
	h.logger.Debug("websocket connected", zap.String("room_code", code), zap.String("user_id", userID))

	if err := h.sendSnapshot(ctx, conn, code); err != nil {
		h.logger.Warn("failed to send room snapshot", zap.String("room_code", code), zap.Error(err))
		return
	}

	// The read loop only notices the peer closing; clients never send commands.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read error", zap.Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.writeClose(conn)
			return
		case payload, ok := <-updates:
			if !ok {
				h.writeClose(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				h.logger.Debug("failed to forward room update", zap.String("room_code", code), zap.Error(err))
				return
			}
		}
	}
}

func (h *Handler) sendSnapshot(ctx context.Context, conn *websocket.Conn, code string) error {
	entries, err := h.rooms.GetQueue(ctx, code)
	if err != nil {
		return err
	}
	playing, err := h.rooms.NowPlaying(ctx, code)
	if err != nil {
		return err
	}

	message, err := json.Marshal(room.Update{
		Type:       snapshotMessage,
		RoomCode:   code,
		NowPlaying: playing,
		Queue:      entries,
	})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, message)
}

func (h *Handler) writeClose(conn *websocket.Conn) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		h.logger.Debug("failed to send close frame", zap.Error(err))
	}
}
