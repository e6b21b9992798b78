package websocket

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for base64 audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Connection id, distinct from the client-chosen session ids carried
	// inside messages.
	id string

	recording     *usecase.RecordingService
	transcription *usecase.TranscriptionService

	logger *zap.Logger
}

// ServeWS handles websocket requests from the peer.
func ServeWS(
	hub *Hub,
	c echo.Context,
	recording *usecase.RecordingService,
	transcription *usecase.TranscriptionService,
	logger *zap.Logger,
) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            uuid.NewString(),
		recording:     recording,
		transcription: transcription,
		logger:        logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection into the services.
// Messages from one connection are processed sequentially, which is what
// keeps chunk append order equal to arrival order.
func (c *Client) readPump() {
	defer func() {
		// Transport loss stops every running transcription, not just the
		// ones this connection started.
		c.transcription.StopAll()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text frame", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one JSON text frame.
func (c *Client) processMessage(message []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	switch msg.Type {
	case TypeAudioChunk:
		c.handleAudioChunk(msg)
	case TypeStopRecording:
		c.handleStopRecording(msg)
	case TypeStartTranscription:
		c.transcription.Start(msg.SessionID)
	case TypeFinalizeTranscription:
		c.transcription.Finalize(msg.SessionID)
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

// handleAudioChunk buffers the chunk for recording, forwards it to a running
// transcription, and always acks the sequence number.
func (c *Client) handleAudioChunk(msg InboundMessage) {
	defer c.reply(AudioAck{Type: TypeAudioAck, Seq: msg.Seq})

	data, err := base64.StdEncoding.DecodeString(msg.Bytes)
	if err != nil {
		c.logger.Error("Failed to decode audio chunk",
			zap.String("sessionId", msg.SessionID),
			zap.Int("seq", msg.Seq),
			zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	receipt := c.recording.AppendChunk(msg.SessionID, data, msg.Mime)
	if receipt.Closed {
		c.logger.Warn("Audio chunk for closed session dropped",
			zap.String("sessionId", msg.SessionID),
			zap.Int("seq", msg.Seq))
		return
	}

	c.transcription.EnqueueAudio(msg.SessionID, data)
}

func (c *Client) handleStopRecording(msg InboundMessage) {
	saved, err := c.recording.Finalize(msg.SessionID)
	if err != nil {
		c.logger.Warn("Stop recording failed",
			zap.String("sessionId", msg.SessionID),
			zap.Error(err))
		c.reply(RecordingSaved{
			Type:  TypeRecordingSaved,
			OK:    false,
			Error: "unknown session",
		})
		return
	}

	c.reply(RecordingSaved{
		Type:      TypeRecordingSaved,
		OK:        true,
		SessionID: msg.SessionID,
		Size:      saved.Size,
		Filename:  saved.Filename,
	})
}

// reply sends a direct response to this client only.
func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Client send buffer full, dropping reply",
			zap.String("clientId", c.id))
	}
}
