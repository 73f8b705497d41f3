// Package turn drives the turn-taking state machine of one voice session. It
// consumes decoded control messages and inbound audio frames, orchestrates the
// recognition, generation and synthesis collaborators, and pushes transcripts,
// generated text and synthesized audio back through the connection.
package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/domain/repositories"
	"github.com/Error404m/aws-voice-bot/internal/config"
	"github.com/Error404m/aws-voice-bot/internal/metrics"
	"github.com/Error404m/aws-voice-bot/internal/protocol"
)

// Sender is the outbound half of the session connection.
type Sender interface {
	// SendControl enqueues one JSON control message.
	SendControl(msg interface{}) error
	// SendAudio enqueues one binary PCM frame.
	SendAudio(frame []byte) error
}

// Collaborators bundles the external services a session talks to. History may
// be nil when persistence is disabled.
type Collaborators struct {
	Recognizer  repositories.SpeechToText
	Model       repositories.LargeLanguageModel
	Synthesizer repositories.TextToSpeech
	History     repositories.HistoryStore
}

// Options carries the turn-taking parameters from configuration.
type Options struct {
	// Mode is ModeContinuous or ModeStrictTurn.
	Mode string
	// TurnTimeout bounds the whole collaborator chain for one turn.
	TurnTimeout time.Duration
	// ExtendDeadlineOnInterim resets the turn deadline on interim transcripts.
	ExtendDeadlineOnInterim bool
	// Encoding is the recognition encoding, e.g. "LINEAR16".
	Encoding string
	// DefaultLanguage is used when start-turn carries no language hint.
	DefaultLanguage string
}

// Controller owns the turn state machine for one session. Control messages
// and audio frames arrive from the connection read loop; the collaborator
// pipeline for a completed utterance runs on its own goroutine.
type Controller struct {
	session *entities.Session
	sender  Sender
	collab  Collaborators
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu          sync.Mutex
	stream      repositories.SpeechToTextStreaming
	chat        repositories.ChatSession
	turnCtx     context.Context
	turnCancel  context.CancelFunc
	turnTimer   *time.Timer
	turnStarted time.Time
	turnLang    string
	closed      bool
}

// NewController creates a controller for a fresh session in the Idle state.
func NewController(ctx context.Context, session *entities.Session, sender Sender, collab Collaborators, opts Options, logger *zap.Logger, m *metrics.Metrics) *Controller {
	if opts.Mode == "" {
		opts.Mode = config.ModeContinuous
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 60 * time.Second
	}
	rootCtx, rootCancel := context.WithCancel(ctx)
	return &Controller{
		session:    session,
		sender:     sender,
		collab:     collab,
		opts:       opts,
		logger:     logger.With(zap.String("sessionId", session.ID)),
		metrics:    m,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
}

// SessionID returns the session identifier.
func (c *Controller) SessionID() string {
	return c.session.ID
}

// State returns the current turn state.
func (c *Controller) State() entities.TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// HandleControl dispatches one decoded control message.
func (c *Controller) HandleControl(msg interface{}) {
	switch m := msg.(type) {
	case *protocol.StartTurnMessage:
		c.startTurn(m)
	case *protocol.EndTurnMessage:
		// The collaborator pipeline must not block the connection read loop.
		go c.endTurn()
	case *protocol.PingMessage:
		c.sendControl(protocol.NewPong(m.Data))
	case *protocol.PongMessage:
		// Answer to our own ping; nothing to do.
	default:
		c.logger.Warn("ignoring unexpected control message")
		c.sendControl(protocol.NewError("unexpected control message for server"))
	}
}

// PushAudio forwards one inbound binary frame to the recognizer. Frames that
// arrive outside a listening turn are dropped.
func (c *Controller) PushAudio(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != entities.TurnStateListening || c.stream == nil {
		c.metrics.FramesDropped.Inc()
		return
	}
	if len(data)%2 != 0 {
		// Not a whole number of 16-bit samples; corrupt frame.
		c.metrics.FramesDropped.Inc()
		c.logger.Warn("dropping odd-length audio frame", zap.Int("bytes", len(data)))
		return
	}

	c.metrics.FramesReceived.Inc()
	c.metrics.BytesReceived.Add(float64(len(data)))

	if err := c.stream.Stream(data); err != nil {
		c.logger.Error("failed to forward audio to recognizer", zap.Error(err))
		c.metrics.RecognitionFailures.Inc()
		c.failTurnLocked("speech recognition failed")
	}
}

func (c *Controller) startTurn(msg *protocol.StartTurnMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.session.State != entities.TurnStateIdle {
		c.mu.Unlock()
		c.metrics.TurnsRejected.Inc()
		c.logger.Warn("rejecting start while turn in progress",
			zap.String("state", string(c.session.State)))
		c.sendControl(protocol.NewError("a turn is already in progress"))
		return
	}

	language := msg.LanguageCode
	if language == "" {
		language = c.opts.DefaultLanguage
	}
	c.session.Config = entities.SessionConfig{
		Language:     language,
		AltLanguages: msg.AltLanguageCodes,
		DisplayName:  msg.DisplayName,
		SampleRate:   msg.SampleRate,
	}

	turnCtx, cancel := context.WithCancel(c.rootCtx)
	stream, err := c.collab.Recognizer.InitTranscribeStreaming(turnCtx, repositories.AudioConfig{
		SampleRate:   msg.SampleRate,
		Encoding:     c.opts.Encoding,
		Language:     language,
		AltLanguages: msg.AltLanguageCodes,
	})
	if err != nil {
		cancel()
		c.mu.Unlock()
		c.logger.Error("failed to open recognition stream", zap.Error(err))
		c.metrics.RecognitionFailures.Inc()
		c.metrics.TurnsFailed.Inc()
		c.sendControl(protocol.NewError("speech recognition unavailable"))
		return
	}

	c.session.Transition(entities.TurnStateListening)
	c.session.BeginTurn()
	c.stream = stream
	c.turnCtx = turnCtx
	c.turnCancel = cancel
	c.turnStarted = time.Now()
	c.turnLang = language
	c.turnTimer = time.AfterFunc(c.opts.TurnTimeout, c.turnTimedOut)
	c.metrics.TurnsStarted.Inc()
	c.mu.Unlock()

	c.logger.Info("turn started",
		zap.Int("sampleRate", msg.SampleRate),
		zap.String("language", language))

	go c.relayTranscripts(stream)
}

// relayTranscripts forwards recognition results to the client as they arrive.
// In continuous mode a final result also finishes the turn without waiting
// for an explicit end signal.
func (c *Controller) relayTranscripts(stream repositories.SpeechToTextStreaming) {
	for result := range stream.Results() {
		if !result.IsFinal {
			if result.Text != "" {
				c.sendControl(protocol.NewTranscript(result.Text, false, result.LanguageCode))
			}
			if c.opts.ExtendDeadlineOnInterim {
				c.extendDeadline()
			}
			continue
		}
		// The final transcript is sent from endTurn once recognition has
		// settled; relaying it here too would duplicate it on the wire.
		if c.opts.Mode == config.ModeContinuous {
			// endTurn drains this stream, so it must not run on the goroutine
			// that is consuming it.
			go c.endTurn()
		}
	}
}

func (c *Controller) extendDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnTimer != nil {
		c.turnTimer.Reset(c.opts.TurnTimeout)
	}
}

func (c *Controller) turnTimedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State == entities.TurnStateIdle || c.session.State == entities.TurnStateError {
		return
	}
	c.logger.Warn("turn timed out", zap.Duration("timeout", c.opts.TurnTimeout))
	c.failTurnLocked("turn timed out")
}

// endTurn finalizes the inbound half of the turn and, when the utterance is
// non-empty, runs the generation and synthesis pipeline.
func (c *Controller) endTurn() {
	c.mu.Lock()
	if c.session.State != entities.TurnStateListening || c.stream == nil {
		// End signals outside a listening turn are ignored.
		c.mu.Unlock()
		return
	}
	stream := c.stream
	c.stream = nil
	c.session.Transition(entities.TurnStateAwaitingCompletion)
	c.mu.Unlock()

	final, err := stream.End()
	if err != nil {
		c.logger.Error("failed to finalize recognition", zap.Error(err))
		c.metrics.RecognitionFailures.Inc()
		c.failTurn("speech recognition failed")
		return
	}

	text := strings.TrimSpace(final.Text)
	if text == "" {
		c.mu.Lock()
		if err := c.session.Transition(entities.TurnStateIdle); err != nil {
			// The turn timed out or failed while recognition drained; its
			// error is already on the wire.
			c.mu.Unlock()
			return
		}
		c.session.DropCurrentTurn()
		c.stopTurnLocked()
		c.mu.Unlock()
		c.metrics.TurnsNoOp.Inc()
		c.logger.Info("discarding empty turn")
		c.sendControl(protocol.NewTurnComplete())
		return
	}

	language := final.LanguageCode
	c.mu.Lock()
	if language == "" {
		language = c.turnLang
	}
	if err := c.session.Transition(entities.TurnStateResponding); err != nil {
		c.mu.Unlock()
		return
	}
	if current := c.session.CurrentTurn(); current != nil {
		current.FinalizeUser(text, language)
	}
	ctx := c.turnCtx
	if ctx == nil {
		ctx = c.rootCtx
	}
	c.mu.Unlock()

	// The client must see the settled transcript before any generated text.
	c.sendControl(protocol.NewTranscript(text, true, language))
	c.respond(ctx, text, language)
}

// respond runs generation and synthesis for one finalized utterance. ctx is
// the per-turn context, cancelled on timeout or failure.
func (c *Controller) respond(ctx context.Context, text, language string) {
	chat, err := c.chatSession(ctx)
	if err != nil {
		c.logger.Error("failed to create chat session", zap.Error(err))
		c.metrics.GenerationFailures.Inc()
		c.failTurn("response generation failed")
		return
	}

	reply, err := chat.SendMessage(ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: text,
	})
	if err != nil {
		c.logger.Error("failed to generate response", zap.Error(err))
		c.metrics.GenerationFailures.Inc()
		c.failTurn("response generation failed")
		return
	}
	c.sendControl(protocol.NewModelText(reply.Content))

	audioChan, err := c.collab.Synthesizer.ConvertTextToSpeech(ctx, reply.Content, language)
	if err != nil {
		c.logger.Error("failed to start synthesis", zap.Error(err))
		c.metrics.SynthesisFailures.Inc()
		c.failTurn("speech synthesis failed")
		return
	}
	for frame := range audioChan {
		if err := c.sender.SendAudio(frame); err != nil {
			c.logger.Warn("failed to send audio frame", zap.Error(err))
			c.failTurn("connection write failed")
			return
		}
		c.metrics.FramesSent.Inc()
		c.metrics.BytesSent.Add(float64(len(frame)))
	}
	if err := ctx.Err(); err != nil {
		c.failTurn("speech synthesis failed")
		return
	}

	c.mu.Lock()
	if err := c.session.Transition(entities.TurnStateIdle); err != nil {
		// The turn was failed while the pipeline ran; an error already went
		// out and the completion signal must not follow it.
		c.mu.Unlock()
		return
	}
	var completed entities.ChatTurn
	if current := c.session.CurrentTurn(); current != nil {
		current.CompleteAssistant(reply.Content)
		completed = *current
	}
	started := c.turnStarted
	c.stopTurnLocked()
	c.mu.Unlock()

	c.sendControl(protocol.NewTurnComplete())
	c.metrics.TurnsCompleted.Inc()
	c.metrics.TurnDuration.Observe(time.Since(started).Seconds())
	c.persistTurn(completed)

	c.logger.Info("turn completed",
		zap.Duration("duration", time.Since(started)),
		zap.Int("userChars", len(text)),
		zap.Int("assistantChars", len(reply.Content)))
}

// chatSession lazily creates the model conversation, seeded with any stored
// history, and reuses it for the rest of the session.
func (c *Controller) chatSession(ctx context.Context) (repositories.ChatSession, error) {
	c.mu.Lock()
	chat := c.chat
	c.mu.Unlock()
	if chat != nil {
		return chat, nil
	}

	var history []repositories.ChatMessage
	if c.collab.History != nil {
		turns, err := c.collab.History.Turns(ctx, c.session.ID)
		if err != nil {
			c.logger.Warn("failed to load conversation history", zap.Error(err))
		}
		for _, turn := range turns {
			history = append(history,
				repositories.ChatMessage{Role: repositories.UserRole, Content: turn.UserText},
				repositories.ChatMessage{Role: repositories.AssistantRole, Content: turn.AssistantText},
			)
		}
	}

	chat, err := c.collab.Model.GenerateChat(ctx, history)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chat = chat
	c.mu.Unlock()
	return chat, nil
}

func (c *Controller) persistTurn(turn entities.ChatTurn) {
	if c.collab.History == nil || !turn.AssistantComplete {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.collab.History.AppendTurn(ctx, c.session.ID, turn); err != nil {
		c.logger.Warn("failed to persist turn", zap.Error(err))
	}
}

// failTurn sends exactly one error message for the active turn and returns
// the session to Idle so the connection can keep serving turns.
func (c *Controller) failTurn(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failTurnLocked(reason)
}

func (c *Controller) failTurnLocked(reason string) {
	if c.session.State == entities.TurnStateIdle || c.session.State == entities.TurnStateError {
		return
	}
	c.session.DropCurrentTurn()
	c.session.Transition(entities.TurnStateIdle)
	c.stopTurnLocked()
	c.metrics.TurnsFailed.Inc()
	go c.sendControl(protocol.NewError(reason))
}

// stopTurnLocked releases per-turn resources. Callers hold c.mu.
func (c *Controller) stopTurnLocked() {
	if c.turnTimer != nil {
		c.turnTimer.Stop()
		c.turnTimer = nil
	}
	if c.turnCancel != nil {
		c.turnCancel()
		c.turnCancel = nil
	}
	c.turnCtx = nil
	c.stream = nil
}

func (c *Controller) sendControl(msg interface{}) {
	if err := c.sender.SendControl(msg); err != nil {
		c.logger.Warn("failed to send control message", zap.Error(err))
	}
}

// Close tears the controller down when the connection ends. It is safe to
// call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.session.State != entities.TurnStateError {
		c.session.Transition(entities.TurnStateError)
	}
	c.stopTurnLocked()
	c.mu.Unlock()

	c.rootCancel()
	c.logger.Info("controller closed",
		zap.Int("turns", len(c.session.Turns)))
}
