package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// Config holds the ElevenLabs adapter settings.
type Config struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
}

// ElevenLabsTTS implements TextToSpeech against the ElevenLabs streaming API.
type ElevenLabsTTS struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewElevenLabsTTS creates an ElevenLabs adapter.
func NewElevenLabsTTS(config Config, logger *zap.Logger) *ElevenLabsTTS {
	if config.APIBaseURL == "" {
		config.APIBaseURL = "https://api.elevenlabs.io"
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_multilingual_v2"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "pcm_24000"
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 4096
	}
	return &ElevenLabsTTS{
		config:     config,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

type synthesisRequest struct {
	Text         string `json:"text"`
	ModelID      string `json:"model_id"`
	LanguageCode string `json:"language_code,omitempty"`
}

func (e *ElevenLabsTTS) ConvertTextToSpeech(ctx context.Context, text string, languageHint string) (<-chan []byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text to synthesize is empty")
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:         text,
		ModelID:      e.config.ModelID,
		LanguageCode: languageHint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		e.config.APIBaseURL, e.config.VoiceID, e.config.OutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call elevenlabs: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, string(body))
	}

	audioChan := make(chan []byte, 8)
	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		for {
			chunk := make([]byte, e.config.ChunkSize)
			n, readErr := io.ReadFull(resp.Body, chunk)
			if n > 0 {
				select {
				case audioChan <- chunk[:n]:
				case <-ctx.Done():
					return
				}
			}
			if readErr != nil {
				if readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
					e.logger.Error("failed to read synthesis stream", zap.Error(readErr))
				}
				return
			}
		}
	}()

	return audioChan, nil
}
