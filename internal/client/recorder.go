package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Error404m/aws-voice-bot/internal/audio"
)

// RecordingSpeaker tees every played frame into an in-memory buffer and
// writes the accumulated audio as a WAV file on Close.
type RecordingSpeaker struct {
	inner      Speaker
	dir        string
	sampleRate int

	mu  sync.Mutex
	pcm []byte
}

// NewRecordingSpeaker wraps a speaker so responses are also saved under dir.
func NewRecordingSpeaker(inner Speaker, dir string, sampleRate int) *RecordingSpeaker {
	return &RecordingSpeaker{inner: inner, dir: dir, sampleRate: sampleRate}
}

var _ Speaker = (*RecordingSpeaker)(nil)

func (r *RecordingSpeaker) Play(pcm []byte) error {
	r.mu.Lock()
	r.pcm = append(r.pcm, pcm...)
	r.mu.Unlock()
	return r.inner.Play(pcm)
}

// Flush writes the audio recorded so far to a timestamped WAV file and
// clears the buffer. Recording nothing is not an error.
func (r *RecordingSpeaker) Flush() (string, error) {
	r.mu.Lock()
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()

	if len(pcm) == 0 {
		return "", nil
	}
	wav, err := audio.WrapWAV(pcm, r.sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to build wav: %w", err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording dir: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("response-%s.wav", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	return path, nil
}

func (r *RecordingSpeaker) Close() error {
	if _, err := r.Flush(); err != nil {
		return err
	}
	return r.inner.Close()
}
