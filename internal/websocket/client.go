package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/internal/protocol"
	"github.com/Error404m/aws-voice-bot/internal/turn"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound frame size. Generous enough for large capture frames.
	maxMessageSize = 1 << 20
	// Outbound queue length. Synthesized audio bursts ahead of playback.
	sendQueueSize = 256
)

// WriteData is one queued outbound frame.
type WriteData struct {
	Type    int
	Payload []byte
}

// Client is one session connection. It owns the socket, pumps frames in both
// directions, and feeds the turn controller. It implements turn.Sender.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	controller *turn.Controller
	send       chan WriteData
	done       chan struct{}
	logger     *zap.Logger
	openedAt   time.Time
	closeOnce  sync.Once
}

var _ turn.Sender = (*Client)(nil)

// NewClient wraps an upgraded connection and registers it with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendQueueSize),
		done:     make(chan struct{}),
		logger:   logger,
		openedAt: time.Now(),
	}
}

// Bind attaches the turn controller. The controller needs the client as its
// Sender, so construction happens in two steps.
func (c *Client) Bind(controller *turn.Controller) {
	c.controller = controller
}

// Start registers with the hub and launches both pumps.
func (c *Client) Start() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		// The hub already shut down; refuse the connection.
		c.shutdown()
		c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// SendControl encodes and enqueues one JSON control message.
func (c *Client) SendControl(msg interface{}) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: data})
}

// SendAudio enqueues one binary PCM frame.
func (c *Client) SendAudio(frame []byte) error {
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: frame})
}

func (c *Client) enqueue(data WriteData) error {
	select {
	case <-c.done:
		return errors.New("connection is closed")
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
	}
	if data.Type == websocket.BinaryMessage {
		// A peer that stops reading must not stall the collaborator pipeline;
		// audio frames are droppable.
		c.hub.metrics.FramesDropped.Inc()
		c.logger.Warn("send queue full, dropping audio frame")
		return nil
	}
	// Control messages carry turn outcomes the peer must see, so wait out a
	// short stall before giving up.
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.New("connection is closed")
	case <-time.After(writeWait):
		c.logger.Warn("send queue stalled, dropping control message")
		return errors.New("send queue stalled")
	}
}

// readPump reads frames from the socket and feeds the controller. Text frames
// are decoded control messages; binary frames are raw PCM.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			// Nobody drains the unregister channel once the hub has stopped.
			c.shutdown()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected connection close", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			msg, err := protocol.Decode(data)
			if err != nil {
				// A malformed control frame is a protocol violation; the
				// connection cannot be trusted afterwards.
				c.logger.Warn("protocol violation, closing connection", zap.Error(err))
				c.SendControl(protocol.NewError("invalid control message: " + err.Error()))
				return
			}
			c.controller.HandleControl(msg)

		case websocket.BinaryMessage:
			c.controller.PushAudio(data)
		}
	}
}

// writePump drains the send queue to the socket and keeps the connection
// alive with pings. It exits when the queue is closed by shutdown.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(data.Type, data.Payload); err != nil {
				c.logger.Warn("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush anything already queued, like a final error frame, before
			// the close handshake.
			for {
				select {
				case data := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(data.Type, data.Payload); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

// shutdown releases the controller and stops both pumps. Safe to call more
// than once; the send queue stays open so late pipeline writes cannot panic.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.controller.Close()
		close(c.done)
	})
}
