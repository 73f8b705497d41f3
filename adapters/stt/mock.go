package stt

import (
	"context"
	"strings"
	"sync"

	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// MockSpeechToText is an in-memory recognizer for tests and offline
// development. It transcribes every audio chunk to a fixed phrase.
type MockSpeechToText struct {
	// Transcript is returned as the final result when audio was streamed.
	Transcript string
	// InterimEvery emits an interim result after each N chunks when > 0.
	InterimEvery int
	// InitErr, when set, fails InitTranscribeStreaming.
	InitErr error
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

func (m *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	if m.InitErr != nil {
		return nil, m.InitErr
	}
	return &mockStream{
		parent:  m,
		ctx:     ctx,
		lang:    config.Language,
		results: make(chan repositories.TranscriptResult, 8),
	}, nil
}

type mockStream struct {
	parent *MockSpeechToText
	ctx    context.Context
	lang   string

	mu      sync.Mutex
	chunks  int
	ended   bool
	results chan repositories.TranscriptResult
}

func (s *mockStream) Stream(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 || s.ended {
		return nil
	}
	s.chunks++
	if s.parent.InterimEvery > 0 && s.chunks%s.parent.InterimEvery == 0 {
		words := strings.Fields(s.parent.Transcript)
		n := s.chunks / s.parent.InterimEvery
		if n > len(words) {
			n = len(words)
		}
		select {
		case s.results <- repositories.TranscriptResult{
			Text:         strings.Join(words[:n], " "),
			LanguageCode: s.lang,
		}:
		default:
		}
	}
	return nil
}

func (s *mockStream) Results() <-chan repositories.TranscriptResult {
	return s.results
}

func (s *mockStream) End() (repositories.TranscriptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	final := repositories.TranscriptResult{IsFinal: true}
	if s.chunks > 0 {
		final.Text = s.parent.Transcript
		final.LanguageCode = s.lang
	}
	if !s.ended {
		s.ended = true
		if final.Text != "" {
			select {
			case s.results <- final:
			default:
			}
		}
		close(s.results)
	}
	return final, nil
}
