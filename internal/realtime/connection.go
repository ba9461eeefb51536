package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/services"
	"github.com/am4rknvl/chatcore/internal/session"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 10240
)

// Connection is one authenticated socket: its own inbound read loop and
// outbound writer, matching the cooperative-per-connection model of §5 —
// no suspension point ever holds a lock across I/O.
type Connection struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte

	registry *Registry
	store    *session.Store
	bus      *session.Bus
	messages *services.MessageService

	pingInterval    time.Duration
	maxMissed       int
	rateLimitMax    int64
	rateLimitWindow time.Duration
}

// ConnectionConfig carries the realtime environment knobs (§6: ping
// interval, max missed pongs, rate-limit parameters) down to each socket.
type ConnectionConfig struct {
	PingInterval    time.Duration
	MaxMissedPongs  int
	RateLimitMax    int64
	RateLimitWindow time.Duration
}

func NewConnection(
	userID uuid.UUID,
	conn *websocket.Conn,
	registry *Registry,
	store *session.Store,
	bus *session.Bus,
	messages *services.MessageService,
	cfg ConnectionConfig,
) *Connection {
	return &Connection{
		userID:          userID,
		conn:            conn,
		send:            make(chan []byte, 256),
		registry:        registry,
		store:           store,
		bus:             bus,
		messages:        messages,
		pingInterval:    cfg.PingInterval,
		maxMissed:       cfg.MaxMissedPongs,
		rateLimitMax:    cfg.RateLimitMax,
		rateLimitWindow: cfg.RateLimitWindow,
	}
}

// Enqueue schedules data for the outbound writer, dropping it if the
// buffer is full rather than blocking the caller (the Delivery Engine
// treats a full buffer the same as a dead socket).
func (c *Connection) Enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) sendFrame(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal outbound frame")
		return false
	}
	return c.Enqueue(data)
}

func (c *Connection) sendError(message string) {
	c.sendFrame(models.ServerErrorFrame{
		Type:      models.FrameError,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// ReadPump reads client frames until the connection closes or the
// liveness deadline (pingInterval * maxMissed) elapses without any
// frame, including a pong.
func (c *Connection) ReadPump(ctx context.Context) {
	defer func() {
		c.registry.Unregister(c)
		_ = c.store.MarkOffline(context.Background(), c.userID)
		c.conn.Close()
	}()

	deadline := c.pingInterval * time.Duration(c.maxMissed)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("uid", c.userID.String()).Msg("websocket read error")
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.dispatch(ctx, data)
	}
}

// WritePump owns all writes to the socket: outbound frames and periodic
// pings. Only this goroutine ever calls conn.Write*, per the gorilla
// websocket single-writer requirement.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.sendFrame(models.ServerPingFrame{Type: models.FramePing})
		}
	}
}

// Close sends a close frame with the given code and closes the socket.
// Used by the handler to close a connection displaced by a newer one for
// the same user.
func (c *Connection) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.conn.Close()
}

func (c *Connection) dispatch(ctx context.Context, data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("invalid frame")
		return
	}

	switch envelope.Type {
	case models.FramePong:
		// Liveness already reset above; nothing else to do.

	case models.FrameMessage:
		c.handleMessage(ctx, data)

	case models.FrameRead:
		c.handleRead(ctx, data)

	case models.FrameEditMessage:
		c.handleEdit(ctx, data)

	default:
		log.Debug().Str("type", envelope.Type).Str("uid", c.userID.String()).Msg("ignoring unknown frame type")
	}
}

func (c *Connection) handleMessage(ctx context.Context, data []byte) {
	var frame models.ClientMessageFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendError("invalid message payload")
		return
	}

	allowed, err := c.store.RateCheck(ctx, c.userID, c.rateLimitMax, c.rateLimitWindow)
	if err != nil {
		log.Warn().Err(err).Msg("rate check failed, allowing by default (degraded mode)")
		allowed = true
	}
	if !allowed {
		c.sendError("rate_limited")
		return
	}

	msg, err := c.messages.SendMessage(frame.ChatRoomID, c.userID, frame.Content)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	envelope := models.Envelope{
		Type:       models.FrameMessage,
		ChatRoomID: msg.ChatRoomID,
		Message:    msg,
	}
	if err := c.bus.PublishToChatRetry(ctx, msg.ChatRoomID, envelope); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("failed to publish message to bus")
	}
}

func (c *Connection) handleRead(ctx context.Context, data []byte) {
	var frame models.ClientReadFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendError("invalid read payload")
		return
	}

	if _, err := c.messages.MarkMessagesAsRead(frame.MessageIDs, c.userID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Connection) handleEdit(ctx context.Context, data []byte) {
	var frame models.ClientEditFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendError("invalid edit payload")
		return
	}

	if err := c.messages.EditMessage(frame.MessageID, c.userID, frame.Content); err != nil {
		c.sendError(err.Error())
		return
	}

	now := time.Now()
	envelope := models.Envelope{
		Type:       models.FrameMessageEdited,
		ChatRoomID: frame.ChatRoomID,
		MessageID:  frame.MessageID,
		NewContent: frame.Content,
		EditedAt:   &now,
	}
	if err := c.bus.PublishToChatRetry(ctx, frame.ChatRoomID, envelope); err != nil {
		log.Error().Err(err).Str("message_id", frame.MessageID.String()).Msg("failed to publish edit to bus")
	}
}
