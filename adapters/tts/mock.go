package tts

import (
	"context"

	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// MockTTS emits fixed audio chunks for tests and offline development.
type MockTTS struct {
	// Chunks are sent on the returned channel in order.
	Chunks [][]byte
	// Err, when set, fails ConvertTextToSpeech.
	Err error
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

func (m *MockTTS) ConvertTextToSpeech(ctx context.Context, text string, languageHint string) (<-chan []byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	audioChan := make(chan []byte, len(m.Chunks))
	go func() {
		defer close(audioChan)
		for _, chunk := range m.Chunks {
			select {
			case audioChan <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}
