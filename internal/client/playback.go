package client

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/internal/audio"
)

// Clock abstracts time for the scheduler so tests can drive it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Speaker consumes raw 16-bit little-endian PCM.
type Speaker interface {
	Play(pcm []byte) error
	Close() error
}

// Scheduler sequences synthesized audio frames onto the speaker without gaps
// or overlap. Each frame starts at the later of now and the playhead; the
// playhead then advances by the frame's duration.
type Scheduler struct {
	speaker    Speaker
	sampleRate int
	clock      Clock
	logger     *zap.Logger

	mu       sync.Mutex
	playhead time.Time
}

// NewScheduler creates a playback scheduler for the given output rate.
func NewScheduler(speaker Speaker, sampleRate int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		speaker:    speaker,
		sampleRate: sampleRate,
		clock:      realClock{},
		logger:     logger,
	}
}

// withClock substitutes the time source. Tests only.
func (s *Scheduler) withClock(clock Clock) *Scheduler {
	s.clock = clock
	return s
}

// Schedule queues one frame and returns its start time. Frames that are not
// a whole number of samples are dropped.
func (s *Scheduler) Schedule(frame []byte) (time.Time, error) {
	if len(frame) == 0 {
		return time.Time{}, nil
	}
	if len(frame)%audio.BytesPerSample != 0 {
		s.logger.Warn("dropping odd-length playback frame", zap.Int("bytes", len(frame)))
		return time.Time{}, fmt.Errorf("frame is not a whole number of samples: %d bytes", len(frame))
	}

	s.mu.Lock()
	now := s.clock.Now()
	startAt := now
	if s.playhead.After(now) {
		startAt = s.playhead
	}
	s.playhead = startAt.Add(audio.Duration(len(frame), s.sampleRate))
	s.mu.Unlock()

	if wait := startAt.Sub(now); wait > 0 {
		s.clock.Sleep(wait)
	}
	if err := s.speaker.Play(frame); err != nil {
		return startAt, fmt.Errorf("failed to play frame: %w", err)
	}
	return startAt, nil
}

// ResetPlayhead clears the schedule at a turn boundary so the next response
// starts immediately instead of after stale scheduled time.
func (s *Scheduler) ResetPlayhead() {
	s.mu.Lock()
	s.playhead = time.Time{}
	s.mu.Unlock()
}

// Playhead returns the time the last scheduled frame will finish.
func (s *Scheduler) Playhead() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playhead
}

// Close releases the speaker.
func (s *Scheduler) Close() error {
	return s.speaker.Close()
}

// FFplaySpeaker streams PCM to an ffplay subprocess.
type FFplaySpeaker struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewFFplaySpeaker starts ffplay reading s16le PCM from stdin.
func NewFFplaySpeaker(sampleRate int) (*FFplaySpeaker, error) {
	cmd := exec.Command("ffplay",
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", "mono",
		"-nodisp",
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open playback pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffplay: %w", err)
	}
	return &FFplaySpeaker{cmd: cmd, stdin: stdin}, nil
}

var _ Speaker = (*FFplaySpeaker)(nil)

func (f *FFplaySpeaker) Play(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stdin == nil {
		return fmt.Errorf("speaker is closed")
	}
	if _, err := f.stdin.Write(pcm); err != nil {
		return fmt.Errorf("failed to write to speaker: %w", err)
	}
	return nil
}

func (f *FFplaySpeaker) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stdin == nil {
		return nil
	}
	f.stdin.Close()
	f.stdin = nil
	if f.cmd.Process != nil {
		f.cmd.Wait()
	}
	return nil
}
