package client

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// bufferSpeaker records played frames.
type bufferSpeaker struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (b *bufferSpeaker) Play(pcm []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.frames = append(b.frames, append([]byte(nil), pcm...))
	return nil
}

func (b *bufferSpeaker) Close() error { return nil }

func newTestScheduler() (*Scheduler, *fakeClock, *bufferSpeaker) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	speaker := &bufferSpeaker{}
	// 24000 Hz: 48000 bytes per second of audio.
	scheduler := NewScheduler(speaker, 24000, zap.NewNop()).withClock(clock)
	return scheduler, clock, speaker
}

func TestScheduleBackToBackFramesAreContiguous(t *testing.T) {
	scheduler, clock, speaker := newTestScheduler()

	// 4800 bytes = 2400 samples = 100ms at 24kHz.
	frame := make([]byte, 4800)
	base := clock.Now()

	first, err := scheduler.Schedule(frame)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if !first.Equal(base) {
		t.Errorf("first frame start = %v, want %v", first, base)
	}

	// The second frame arrives immediately but must start where the first
	// ends, not now.
	second, err := scheduler.Schedule(frame)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if want := base.Add(100 * time.Millisecond); !second.Equal(want) {
		t.Errorf("second frame start = %v, want %v", second, want)
	}
	if got := scheduler.Playhead(); !got.Equal(base.Add(200 * time.Millisecond)) {
		t.Errorf("playhead = %v, want %v", got, base.Add(200*time.Millisecond))
	}
	if len(speaker.frames) != 2 {
		t.Errorf("played frames = %d, want 2", len(speaker.frames))
	}
}

func TestScheduleAfterGapStartsImmediately(t *testing.T) {
	scheduler, clock, _ := newTestScheduler()
	frame := make([]byte, 4800)

	scheduler.Schedule(frame)
	// Playback finished long ago by the time the next frame arrives.
	clock.advance(5 * time.Second)

	start, err := scheduler.Schedule(frame)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if !start.Equal(clock.Now()) {
		t.Errorf("frame after gap start = %v, want now %v", start, clock.Now())
	}
}

func TestScheduleNeverOverlapsFrames(t *testing.T) {
	scheduler, _, _ := newTestScheduler()

	var prevStart, prevEnd time.Time
	sizes := []int{4800, 960, 9600, 2400, 4800}
	for i, size := range sizes {
		start, err := scheduler.Schedule(make([]byte, size))
		if err != nil {
			t.Fatalf("Schedule frame %d failed: %v", i, err)
		}
		if i > 0 && start.Before(prevEnd) {
			t.Errorf("frame %d starts at %v before previous ends at %v", i, start, prevEnd)
		}
		prevStart = start
		prevEnd = scheduler.Playhead()
		if !prevEnd.After(prevStart) {
			t.Errorf("frame %d has no duration", i)
		}
	}
}

func TestScheduleDropsOddLengthFrames(t *testing.T) {
	scheduler, _, speaker := newTestScheduler()

	before := scheduler.Playhead()
	if _, err := scheduler.Schedule(make([]byte, 4801)); err == nil {
		t.Error("expected error for odd-length frame")
	}
	if len(speaker.frames) != 0 {
		t.Errorf("odd frame reached the speaker")
	}
	if !scheduler.Playhead().Equal(before) {
		t.Errorf("playhead moved for a dropped frame")
	}
}

func TestResetPlayheadClearsSchedule(t *testing.T) {
	scheduler, clock, _ := newTestScheduler()
	frame := make([]byte, 48000)

	scheduler.Schedule(frame)
	if !scheduler.Playhead().After(clock.Now().Add(500 * time.Millisecond)) {
		t.Fatalf("playhead should be ~1s ahead")
	}

	scheduler.ResetPlayhead()
	start, err := scheduler.Schedule(make([]byte, 4800))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if !start.Equal(clock.Now()) {
		t.Errorf("frame after reset starts at %v, want now", start)
	}
}
