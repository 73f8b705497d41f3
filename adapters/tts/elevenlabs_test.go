package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestConvertTextToSpeechStreamsChunks(t *testing.T) {
	audio := bytes.Repeat([]byte{0x01, 0x02}, 3000)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/voice-1/stream") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_24000" {
			t.Errorf("output_format = %q, want pcm_24000", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q, want test-key", got)
		}
		var body synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body.Text != "hello" {
			t.Errorf("text = %q, want hello", body.Text)
		}
		if body.LanguageCode != "en" {
			t.Errorf("language_code = %q, want en", body.LanguageCode)
		}
		w.Write(audio)
	}))
	defer server.Close()

	adapter := NewElevenLabsTTS(Config{
		APIKey:     "test-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
		ChunkSize:  1024,
	}, zap.NewNop())

	audioChan, err := adapter.ConvertTextToSpeech(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("ConvertTextToSpeech failed: %v", err)
	}

	var received []byte
	for chunk := range audioChan {
		received = append(received, chunk...)
	}
	if !bytes.Equal(received, audio) {
		t.Errorf("received %d bytes, want %d identical bytes", len(received), len(audio))
	}
}

func TestConvertTextToSpeechRejectsEmptyText(t *testing.T) {
	adapter := NewElevenLabsTTS(Config{APIKey: "k", VoiceID: "v"}, zap.NewNop())
	if _, err := adapter.ConvertTextToSpeech(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestConvertTextToSpeechPropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid voice"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewElevenLabsTTS(Config{
		APIKey:     "bad-key",
		APIBaseURL: server.URL,
		VoiceID:    "voice-1",
	}, zap.NewNop())

	if _, err := adapter.ConvertTextToSpeech(context.Background(), "hello", ""); err == nil {
		t.Error("expected error for non-200 response")
	}
}
