package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/am4rknvl/chatcore/internal/auth"
	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/repository"
	"github.com/am4rknvl/chatcore/internal/services"
	"github.com/am4rknvl/chatcore/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to realtime connections and runs the
// connect sequence from §4.4: authenticate, displace any prior socket,
// register, sync membership, mark online, greet, drain offline, then
// hand off to the inbound loop.
type Handler struct {
	registry       *Registry
	jwtService     *auth.JWTService
	store          *session.Store
	bus            *session.Bus
	messages       *services.MessageService
	chatRooms      *repository.ChatRoomRepository
	connCfg        ConnectionConfig
	allowedOrigins []string
}

func NewHandler(
	registry *Registry,
	jwtService *auth.JWTService,
	store *session.Store,
	bus *session.Bus,
	messages *services.MessageService,
	chatRooms *repository.ChatRoomRepository,
	connCfg ConnectionConfig,
	allowedOrigins []string,
) *Handler {
	return &Handler{
		registry:       registry,
		jwtService:     jwtService,
		store:          store,
		bus:            bus,
		messages:       messages,
		chatRooms:      chatRooms,
		connCfg:        connCfg,
		allowedOrigins: allowedOrigins,
	}
}

// HandleWebSocket is the /ws upgrade endpoint.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := bearerToken(c.Request)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}

	claims, err := h.jwtService.ValidateAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	if len(h.allowedOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			for _, pattern := range h.allowedOrigins {
				if matchOrigin(pattern, origin) {
					return true
				}
			}
			return false
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	h.connect(c.Request.Context(), conn, claims.UserID)
}

// connect runs the full §4.4 connect sequence.
func (h *Handler) connect(ctx context.Context, conn *websocket.Conn, userID uuid.UUID) {
	connection := NewConnection(userID, conn, h.registry, h.store, h.bus, h.messages, h.connCfg)

	if prev := h.registry.Register(connection); prev != nil {
		prev.Close(websocket.CloseNormalClosure, "replaced by a new connection")
	}

	h.syncMembership(ctx, userID)

	if err := h.store.MarkOnline(ctx, userID); err != nil {
		log.Warn().Err(err).Str("uid", userID.String()).Msg("degraded mode: failed to mark online")
	}

	connection.sendFrame(models.ServerConnectedFrame{
		Type:      models.FrameConnected,
		UserID:    userID,
		Timestamp: time.Now(),
	})

	go connection.WritePump()

	h.drainOffline(ctx, connection, userID)

	connection.ReadPump(ctx)
}

// syncMembership is C5: materialize the user's chat membership into the
// Session Store so the Delivery Engine can enumerate fan-out targets
// without a database round-trip per publish.
func (h *Handler) syncMembership(ctx context.Context, userID uuid.UUID) {
	rooms, err := h.chatRooms.GetByUserID(userID)
	if err != nil {
		log.Warn().Err(err).Str("uid", userID.String()).Msg("membership sync failed")
		return
	}

	for _, room := range rooms {
		if err := h.store.AddUserToChat(ctx, userID, room.ID); err != nil {
			log.Warn().Err(err).Str("uid", userID.String()).Str("chat_id", room.ID.String()).Msg("degraded mode: membership sync entry failed")
		}
	}
}

// drainOffline is §4.7's reconnect path: resend every queued event and
// mark delivery using the same guarded update as the live path.
func (h *Handler) drainOffline(ctx context.Context, connection *Connection, userID uuid.UUID) {
	payloads, err := h.store.DrainOffline(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("uid", userID.String()).Msg("degraded mode: offline drain failed")
		return
	}

	for _, payload := range payloads {
		if !connection.Enqueue(payload) {
			continue
		}

		var envelope models.Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			continue
		}

		messageID := envelope.MessageID
		if envelope.Message != nil {
			messageID = envelope.Message.ID
		}
		if messageID == uuid.Nil {
			continue
		}

		if _, err := h.messages.MarkDelivered(messageID, userID); err != nil {
			log.Warn().Err(err).Str("message_id", messageID.String()).Msg("failed to mark delivered on offline drain")
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com.
func matchOrigin(pattern, origin string) bool {
	if pattern == origin {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil {
			originHost = u.Hostname()
		}
		patHost := strings.TrimPrefix(pattern, "*.")
		if strings.HasSuffix(originHost, patHost) {
			return true
		}
	}
	return false
}
