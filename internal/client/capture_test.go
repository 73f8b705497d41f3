package client

import (
	"context"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/internal/audio"
)

// scriptedSource plays back fixed sample blocks.
type scriptedSource struct {
	mu       sync.Mutex
	blocks   [][]float32
	startErr error
	stopped  bool
}

func (s *scriptedSource) Start(ctx context.Context) error {
	return s.startErr
}

func (s *scriptedSource) Read(buf []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || len(s.blocks) == 0 {
		return 0, io.EOF
	}
	block := s.blocks[0]
	s.blocks = s.blocks[1:]
	n := copy(buf, block)
	return n, nil
}

func (s *scriptedSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func collectFrames(frames <-chan []byte) [][]byte {
	var out [][]byte
	for frame := range frames {
		out = append(out, frame)
	}
	return out
}

func TestCaptureFramesAtTargetRate(t *testing.T) {
	// Two blocks of 480 samples at 48kHz resample to 160 samples each at
	// 16kHz; with 160-sample frames that is one frame per block.
	block := make([]float32, 480)
	for i := range block {
		block[i] = 0.5
	}
	source := &scriptedSource{blocks: [][]float32{block, block}}

	capture, err := NewCapture(source, 48000, 16000, 160, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}
	frames, err := capture.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	collected := collectFrames(frames)
	capture.Stop()

	if len(collected) != 2 {
		t.Fatalf("frames = %d, want 2", len(collected))
	}
	for i, frame := range collected {
		if len(frame) != 160*audio.BytesPerSample {
			t.Errorf("frame %d is %d bytes, want %d", i, len(frame), 160*audio.BytesPerSample)
		}
	}

	// Constant 0.5 input survives the pipeline as a constant near half scale.
	samples, err := audio.BytesToSamples(collected[0])
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}
	for _, sample := range samples {
		if sample < 16000 || sample > 16512 {
			t.Fatalf("sample = %d, want near 16384", sample)
		}
	}
}

func TestCaptureClampsOutOfRangeSamples(t *testing.T) {
	block := make([]float32, 320)
	for i := range block {
		block[i] = 4.0
	}
	source := &scriptedSource{blocks: [][]float32{block}}

	capture, err := NewCapture(source, 16000, 16000, 320, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}
	frames, err := capture.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	collected := collectFrames(frames)
	capture.Stop()

	if len(collected) != 1 {
		t.Fatalf("frames = %d, want 1", len(collected))
	}
	samples, _ := audio.BytesToSamples(collected[0])
	for _, sample := range samples {
		if sample != 32767 {
			t.Fatalf("sample = %d, want full positive scale", sample)
		}
	}
}

func TestCaptureFlushesTrailingPartialFrame(t *testing.T) {
	// 100 samples against a 64-sample frame: one full frame plus a 36-sample
	// tail that must be flushed on stop.
	block := make([]float32, 100)
	source := &scriptedSource{blocks: [][]float32{block}}

	capture, err := NewCapture(source, 16000, 16000, 64, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}
	frames, err := capture.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	collected := collectFrames(frames)
	capture.Stop()

	if len(collected) != 2 {
		t.Fatalf("frames = %d, want full frame plus tail", len(collected))
	}
	if len(collected[0]) != 64*audio.BytesPerSample {
		t.Errorf("full frame is %d bytes", len(collected[0]))
	}
	if len(collected[1]) != 36*audio.BytesPerSample {
		t.Errorf("tail frame is %d bytes, want %d", len(collected[1]), 36*audio.BytesPerSample)
	}
}

func TestCaptureStartFailurePropagates(t *testing.T) {
	source := &scriptedSource{startErr: io.ErrClosedPipe}
	capture, err := NewCapture(source, 16000, 16000, 64, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}
	if _, err := capture.Start(context.Background()); err == nil {
		t.Error("expected Start to propagate the source error")
	}
}

func TestCaptureStopIsOrderedAndIdempotent(t *testing.T) {
	source := &scriptedSource{blocks: [][]float32{make([]float32, 64)}}
	capture, err := NewCapture(source, 16000, 16000, 64, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}
	frames, err := capture.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	collectFrames(frames)

	if err := capture.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := capture.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if !source.stopped {
		t.Error("source was never stopped")
	}
}
