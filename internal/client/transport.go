// Package client implements the terminal client side of the voice session:
// the WebSocket transport, the microphone capture pipeline and the playback
// scheduler for synthesized audio.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/internal/protocol"
)

// Handler receives inbound session events. Nil callbacks are skipped.
type Handler struct {
	OnTranscript   func(text string, isFinal bool, language string)
	OnModelText    func(text string)
	OnAudio        func(frame []byte)
	OnTurnComplete func()
	OnError        func(reason string)
	OnInfo         func(status string)
	OnClosed       func(err error)
}

// Transport is one client connection to the live-audio endpoint. It guards
// the turn protocol: frames are only writable between start-turn and
// end-turn, and closing is idempotent.
type Transport struct {
	conn    *websocket.Conn
	handler Handler
	logger  *zap.Logger

	writeMu   sync.Mutex
	turnOpen  bool
	closeOnce sync.Once
	closed    chan struct{}
	readDone  chan struct{}
}

// Dial connects to the session endpoint. token, when non-empty, is sent as a
// query parameter because browser-compatible servers read it from there.
func Dial(ctx context.Context, url string, token string, handler Handler, logger *zap.Logger) (*Transport, error) {
	if token != "" {
		url = url + "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("unexpected handshake status %d", resp.StatusCode)
	}

	t := &Transport{
		conn:     conn,
		handler:  handler,
		logger:   logger,
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// StartTurn opens a user turn with the capture format and language hints.
func (t *Transport) StartTurn(sampleRate int, language string, altLanguages []string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.isClosed() {
		return entities.ErrConnectionClosed
	}
	if t.turnOpen {
		return fmt.Errorf("%w: turn already open", entities.ErrTurnInProgress)
	}
	if err := t.writeControl(protocol.NewStartTurn(sampleRate, language, altLanguages)); err != nil {
		return err
	}
	t.turnOpen = true
	return nil
}

// SendFrame writes one binary PCM frame. Calling it outside an open turn is
// a protocol violation and fails without touching the socket.
func (t *Transport) SendFrame(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.isClosed() {
		return entities.ErrConnectionClosed
	}
	if !t.turnOpen {
		return fmt.Errorf("%w: no open turn for audio frame", entities.ErrProtocolViolation)
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// EndTurn signals the end of the inbound audio segment.
func (t *Transport) EndTurn() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.isClosed() {
		return entities.ErrConnectionClosed
	}
	if !t.turnOpen {
		return nil
	}
	t.turnOpen = false
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(protocol.SentinelAudioStreamEnd)); err != nil {
		return fmt.Errorf("failed to send end-turn: %w", err)
	}
	return nil
}

// Ping sends an application-level health check.
func (t *Transport) Ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.isClosed() {
		return entities.ErrConnectionClosed
	}
	return t.writeControl(&protocol.PingMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MessageTypePing},
	})
}

func (t *Transport) writeControl(msg interface{}) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send control message: %w", err)
	}
	return nil
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Close tears down the connection. Safe to call more than once and after a
// remote close.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.writeMu.Lock()
		t.turnOpen = false
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		t.conn.Close()
	})
	return nil
}

// Done is closed once the read loop has exited. After that no handler
// callback will fire again.
func (t *Transport) Done() <-chan struct{} {
	return t.readDone
}

func (t *Transport) readLoop() {
	defer close(t.readDone)
	defer t.Close()

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if !t.isClosed() && t.handler.OnClosed != nil {
				t.handler.OnClosed(fmt.Errorf("%w: %v", entities.ErrConnectionClosed, err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if t.handler.OnAudio != nil {
				t.handler.OnAudio(data)
			}

		case websocket.TextMessage:
			msg, err := protocol.Decode(data)
			if err != nil {
				t.logger.Warn("ignoring malformed server frame", zap.Error(err))
				continue
			}
			t.dispatch(msg)
		}
	}
}

func (t *Transport) dispatch(msg interface{}) {
	switch m := msg.(type) {
	case *protocol.TranscriptMessage:
		if t.handler.OnTranscript != nil {
			t.handler.OnTranscript(m.Text, m.IsFinal, m.LanguageCode)
		}
	case *protocol.ModelTextMessage:
		if t.handler.OnModelText != nil {
			t.handler.OnModelText(m.Text)
		}
	case *protocol.TurnCompleteMessage:
		t.writeMu.Lock()
		// In continuous mode the server can finish a turn the client never
		// explicitly ended.
		t.turnOpen = false
		t.writeMu.Unlock()
		if t.handler.OnTurnComplete != nil {
			t.handler.OnTurnComplete()
		}
	case *protocol.ErrorMessage:
		if t.handler.OnError != nil {
			t.handler.OnError(m.Message)
		}
	case *protocol.InfoMessage:
		if t.handler.OnInfo != nil {
			t.handler.OnInfo(m.Message)
		}
	case *protocol.PongMessage:
		// Health check answered; nothing to do.
	default:
		t.logger.Warn("ignoring unexpected server message")
	}
}
