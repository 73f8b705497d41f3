package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/adapters/llm"
	"github.com/Error404m/aws-voice-bot/adapters/stt"
	"github.com/Error404m/aws-voice-bot/adapters/tts"
	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/internal/config"
	"github.com/Error404m/aws-voice-bot/internal/metrics"
	"github.com/Error404m/aws-voice-bot/internal/protocol"
	"github.com/Error404m/aws-voice-bot/internal/turn"
)

var testMetrics = metrics.New()

// newTestServer upgrades every request into a full session wired to mock
// collaborators.
func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		session := entities.NewSession()
		client := NewClient(hub, conn, zap.NewNop())
		controller := turn.NewController(
			context.Background(),
			session,
			client,
			turn.Collaborators{
				Recognizer:  &stt.MockSpeechToText{Transcript: "what is cloudfront"},
				Model:       &llm.MockLLM{Reply: "CloudFront is a CDN."},
				Synthesizer: &tts.MockTTS{Chunks: [][]byte{{1, 2}, {3, 4}}},
			},
			turn.Options{
				Mode:        config.ModeStrictTurn,
				TurnTimeout: 5 * time.Second,
				Encoding:    "LINEAR16",
			},
			zap.NewNop(),
			testMetrics,
		)
		client.Bind(controller)
		client.Start()
	}))
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestSessionRoundTrip(t *testing.T) {
	hub := NewHub(zap.NewNop(), testMetrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := newTestServer(t, hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	start := map[string]interface{}{"type": "start", "sampleRate": 16000, "languageCode": "en-US"}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("failed to send start: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 320)); err != nil {
		t.Fatalf("failed to send audio: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("AUDIO_STREAM_END")); err != nil {
		t.Fatalf("failed to send sentinel: %v", err)
	}

	var sawModelText, sawTurnComplete bool
	var audioBytes int
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !sawTurnComplete {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed before turn completion: %v", err)
		}
		switch messageType {
		case websocket.TextMessage:
			var base struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(data, &base); err != nil {
				t.Fatalf("invalid control frame %q: %v", data, err)
			}
			switch base.Type {
			case "llmResponse":
				sawModelText = true
				if base.Text != "CloudFront is a CDN." {
					t.Errorf("model text = %q", base.Text)
				}
			case "turn_complete":
				sawTurnComplete = true
			case "error":
				t.Fatalf("unexpected error frame: %s", data)
			}
		case websocket.BinaryMessage:
			audioBytes += len(data)
		}
	}

	if !sawModelText {
		t.Error("model text frame never arrived")
	}
	if audioBytes != 4 {
		t.Errorf("audio bytes = %d, want 4", audioBytes)
	}
}

func TestMalformedControlFrameClosesConnection(t *testing.T) {
	hub := NewHub(zap.NewNop(), testMetrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := newTestServer(t, hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("failed to send frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	sawError := false
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			// The server tears the connection down after the error frame.
			break
		}
		if messageType == websocket.TextMessage && strings.Contains(string(data), `"error"`) {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error frame before the close")
	}
}

func TestControlMessagesSurviveFullSendQueue(t *testing.T) {
	hub := NewHub(zap.NewNop(), testMetrics)
	c := NewClient(hub, nil, zap.NewNop())

	for i := 0; i < sendQueueSize; i++ {
		if err := c.SendAudio([]byte{1, 1}); err != nil {
			t.Fatalf("failed to queue frame %d: %v", i, err)
		}
	}
	// A full queue drops further audio silently.
	if err := c.SendAudio([]byte{2, 2}); err != nil {
		t.Fatalf("overflow audio frame returned %v, want nil", err)
	}
	if len(c.send) != sendQueueSize {
		t.Fatalf("queue length = %d, want %d", len(c.send), sendQueueSize)
	}

	// A control message waits for room instead of being dropped.
	go func() {
		time.Sleep(20 * time.Millisecond)
		<-c.send
	}()
	if err := c.SendControl(protocol.NewError("speech synthesis failed")); err != nil {
		t.Fatalf("control message was not delivered: %v", err)
	}

	sawControl := false
	for len(c.send) > 0 {
		if data := <-c.send; data.Type == websocket.TextMessage {
			sawControl = true
		}
	}
	if !sawControl {
		t.Error("error frame never reached the send queue")
	}
}

func TestStoppedHubDoesNotBlockConnections(t *testing.T) {
	hub := NewHub(zap.NewNop(), testMetrics)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := newTestServer(t, hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// The live connection is torn down by the shutdown.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if e, ok := err.(net.Error); ok && e.Timeout() {
				t.Fatal("connection left hanging after hub shutdown")
			}
			break
		}
	}

	// A connection arriving after shutdown is refused, not wedged on the
	// register channel.
	late := dial(t, server)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := late.ReadMessage(); err != nil {
			if e, ok := err.(net.Error); ok && e.Timeout() {
				t.Fatal("late connection left hanging after hub shutdown")
			}
			break
		}
	}
}
