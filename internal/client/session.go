package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/entities"
)

// SessionOptions carries the audio formats and language hints for a client
// session.
type SessionOptions struct {
	// CaptureRate is the device sample rate in Hz.
	CaptureRate int
	// WireRate is the upload PCM rate in Hz.
	WireRate int
	// PlaybackRate is the synthesized PCM rate in Hz.
	PlaybackRate int
	// FrameSamples is the upload frame size in samples at the wire rate.
	FrameSamples int
	Language     string
	AltLanguages []string
}

// Session ties the transport, capture pipeline and playback scheduler into
// one conversation loop.
type Session struct {
	transport *Transport
	capture   *Capture
	scheduler *Scheduler
	opts      SessionOptions
	logger    *zap.Logger

	playQueue    chan []byte
	playDone     chan struct{}
	turnComplete chan struct{}
	turnFailed   chan string
	closed       chan error
}

// NewSession dials the server and assembles the client pipelines. The caller
// supplies the microphone source and speaker so tests can slot in fakes.
func NewSession(ctx context.Context, url, token string, source SampleSource, speaker Speaker, opts SessionOptions, logger *zap.Logger) (*Session, error) {
	if opts.CaptureRate <= 0 {
		opts.CaptureRate = 48000
	}
	if opts.WireRate <= 0 {
		opts.WireRate = 16000
	}
	if opts.PlaybackRate <= 0 {
		opts.PlaybackRate = 24000
	}
	if opts.FrameSamples <= 0 {
		opts.FrameSamples = 4096
	}

	capture, err := NewCapture(source, opts.CaptureRate, opts.WireRate, opts.FrameSamples, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		capture:      capture,
		scheduler:    NewScheduler(speaker, opts.PlaybackRate, logger),
		opts:         opts,
		logger:       logger,
		playQueue:    make(chan []byte, 64),
		playDone:     make(chan struct{}),
		turnComplete: make(chan struct{}, 1),
		turnFailed:   make(chan string, 1),
		closed:       make(chan error, 1),
	}

	transport, err := Dial(ctx, url, token, Handler{
		OnTranscript: func(text string, isFinal bool, language string) {
			if isFinal {
				fmt.Printf("\ryou: %s\n", text)
			} else {
				fmt.Printf("\r... %s", text)
			}
		},
		OnModelText: func(text string) {
			fmt.Printf("bot: %s\n", text)
		},
		OnAudio: func(frame []byte) {
			// Scheduling sleeps until the frame's start time, so it must not
			// run on the transport read loop.
			select {
			case s.playQueue <- frame:
			default:
				logger.Warn("playback queue full, dropping frame")
			}
		},
		OnTurnComplete: func() {
			select {
			case s.turnComplete <- struct{}{}:
			default:
			}
		},
		OnError: func(reason string) {
			select {
			case s.turnFailed <- reason:
			default:
			}
		},
		OnInfo: func(status string) {
			s.logger.Info("server status", zap.String("status", status))
		},
		OnClosed: func(err error) {
			select {
			case s.closed <- err:
			default:
			}
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	s.transport = transport

	go s.playLoop()
	return s, nil
}

func (s *Session) playLoop() {
	defer close(s.playDone)
	for frame := range s.playQueue {
		if _, err := s.scheduler.Schedule(frame); err != nil {
			s.logger.Warn("playback frame rejected", zap.Error(err))
		}
	}
}

// RunTurn records one utterance and plays back the response. The microphone
// stays open for at most utterance, or until ctx is cancelled.
func (s *Session) RunTurn(ctx context.Context, utterance time.Duration) error {
	s.scheduler.ResetPlayhead()

	if err := s.transport.StartTurn(s.opts.WireRate, s.opts.Language, s.opts.AltLanguages); err != nil {
		return err
	}

	captureCtx, cancelCapture := context.WithTimeout(ctx, utterance)
	defer cancelCapture()

	frames, err := s.capture.Start(captureCtx)
	if err != nil {
		s.transport.EndTurn()
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	for frame := range frames {
		if err := s.transport.SendFrame(frame); err != nil {
			s.capture.Stop()
			return err
		}
	}
	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("failed to stop capture cleanly", zap.Error(err))
	}

	if err := s.transport.EndTurn(); err != nil {
		return err
	}
	if err := s.capture.Err(); err != nil {
		// The device died mid-utterance. Whatever was captured is already on
		// its way, but the caller must know the turn was cut short.
		return fmt.Errorf("microphone failed during capture: %w", err)
	}

	select {
	case <-s.turnComplete:
		return nil
	case reason := <-s.turnFailed:
		return fmt.Errorf("%w: %s", entities.ErrCollaboratorFailure, reason)
	case err := <-s.closed:
		if err == nil {
			err = entities.ErrConnectionClosed
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the session down in order: microphone first, then the
// connection, then playback once the queue has drained. The playback queue is
// only closed once the transport read loop has exited, so an inbound frame
// racing the shutdown cannot land on a closed channel.
func (s *Session) Close() error {
	s.capture.Stop()
	s.transport.Close()
	<-s.transport.Done()
	close(s.playQueue)
	<-s.playDone
	return s.scheduler.Close()
}
