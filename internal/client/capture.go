package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/internal/audio"
)

// SampleSource produces mono float32 samples at a fixed rate.
type SampleSource interface {
	// Start begins producing samples. It fails when the device cannot be
	// opened or access is denied.
	Start(ctx context.Context) error
	// Read fills buf and returns the number of samples read. io.EOF signals
	// that the source stopped.
	Read(buf []float32) (int, error)
	// Stop releases the device.
	Stop() error
}

// Capture converts raw microphone samples into wire frames: samples are
// clamped, resampled to the target rate, quantized to 16-bit PCM and cut
// into fixed-size frames.
type Capture struct {
	source     SampleSource
	sourceRate int
	targetRate int
	framer     *audio.Framer
	logger     *zap.Logger

	mu      sync.Mutex
	frames  chan []byte
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	readErr error
}

// NewCapture builds a capture pipeline. frameSamples is the wire frame size
// in samples at the target rate.
func NewCapture(source SampleSource, sourceRate, targetRate, frameSamples int, logger *zap.Logger) (*Capture, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d -> %d", sourceRate, targetRate)
	}
	framer, err := audio.NewFramer(frameSamples)
	if err != nil {
		return nil, err
	}
	return &Capture{
		source:     source,
		sourceRate: sourceRate,
		targetRate: targetRate,
		framer:     framer,
		logger:     logger,
	}, nil
}

// Start opens the device and returns the frame channel. The channel closes
// after Stop, once the trailing partial frame has been flushed.
func (c *Capture) Start(ctx context.Context) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil, fmt.Errorf("capture already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := c.source.Start(runCtx); err != nil {
		cancel()
		return nil, err
	}

	c.started = true
	c.cancel = cancel
	c.readErr = nil
	c.frames = make(chan []byte, 32)
	c.done = make(chan struct{})
	go c.run(runCtx)
	return c.frames, nil
}

func (c *Capture) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.frames)

	buf := make([]float32, 2048)
	for {
		n, err := c.source.Read(buf)
		if n > 0 {
			c.push(ctx, buf[:n])
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				c.logger.Warn("capture read failed", zap.Error(err))
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
			}
			// Emit whatever is left as a final short frame.
			if tail := c.framer.Flush(); len(tail) > 0 {
				c.emit(ctx, tail)
			}
			return
		}
	}
}

func (c *Capture) push(ctx context.Context, samples []float32) {
	clamped := make([]float32, len(samples))
	for i, s := range samples {
		clamped[i] = audio.Clamp(s)
	}
	resampled := audio.Resample(clamped, c.sourceRate, c.targetRate)
	for _, frame := range c.framer.Push(audio.Quantize(resampled)) {
		c.emit(ctx, frame)
	}
}

func (c *Capture) emit(ctx context.Context, frame []byte) {
	select {
	case c.frames <- frame:
	case <-ctx.Done():
	}
}

// Stop releases the device and waits for the pipeline to drain. The order
// matters: the source stops first so no samples are produced while the
// trailing frame is flushed.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	err := c.source.Stop()
	cancel()
	<-done
	return err
}

// Err returns the device failure that ended the last run, if any.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// FFmpegSource captures microphone audio through an ffmpeg subprocess that
// emits raw mono float32 samples on stdout.
type FFmpegSource struct {
	device     string
	sampleRate int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *strings.Builder
}

// NewFFmpegSource creates a source reading from the given input device. An
// empty device picks the platform default.
func NewFFmpegSource(device string, sampleRate int) *FFmpegSource {
	if device == "" {
		device = defaultCaptureDevice()
	}
	return &FFmpegSource{device: device, sampleRate: sampleRate}
}

var _ SampleSource = (*FFmpegSource)(nil)

func captureFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "alsa"
	}
}

func defaultCaptureDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return ":0"
	default:
		return "default"
	}
}

func (f *FFmpegSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", captureFormat(),
		"-i", f.device,
		"-ac", "1",
		"-ar", strconv.Itoa(f.sampleRate),
		"-f", "f32le",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open capture pipe: %w", err)
	}
	stderr := &strings.Builder{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start ffmpeg: %v", entities.ErrDeviceUnavailable, err)
	}

	f.cmd = cmd
	f.stdout = stdout
	f.stderr = stderr
	return nil
}

func (f *FFmpegSource) Read(buf []float32) (int, error) {
	f.mu.Lock()
	stdout := f.stdout
	f.mu.Unlock()
	if stdout == nil {
		return 0, io.EOF
	}

	raw := make([]byte, len(buf)*4)
	n, err := stdout.Read(raw)
	samples := n / 4
	for i := 0; i < samples; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		buf[i] = math.Float32frombits(bits)
	}
	if err != nil {
		return samples, f.mapError(err)
	}
	return samples, nil
}

// mapError classifies ffmpeg failures from its stderr output so callers can
// distinguish missing devices from denied access.
func (f *FFmpegSource) mapError(err error) error {
	f.mu.Lock()
	detail := ""
	if f.stderr != nil {
		detail = f.stderr.String()
	}
	f.mu.Unlock()

	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "not permitted"):
		return fmt.Errorf("%w: %s", entities.ErrPermissionDenied, strings.TrimSpace(detail))
	case strings.Contains(lower, "no such"), strings.Contains(lower, "cannot open"), strings.Contains(lower, "device"):
		if err == io.EOF && detail == "" {
			return io.EOF
		}
		return fmt.Errorf("%w: %s", entities.ErrDeviceUnavailable, strings.TrimSpace(detail))
	default:
		return err
	}
}

func (f *FFmpegSource) Stop() error {
	f.mu.Lock()
	cmd := f.cmd
	f.cmd = nil
	f.mu.Unlock()
	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	cmd.Wait()
	return nil
}
