package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TurnState is the turn-taking state of a session. The cycle is
// Idle -> Listening -> AwaitingCompletion -> Responding -> Idle; Error is
// terminal for the session and requires a fresh connection to recover.
type TurnState string

const (
	TurnStateIdle               TurnState = "idle"
	TurnStateListening          TurnState = "listening"
	TurnStateAwaitingCompletion TurnState = "awaiting_completion"
	TurnStateResponding         TurnState = "responding"
	TurnStateError              TurnState = "error"
)

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s TurnState) CanTransitionTo(next TurnState) bool {
	if next == TurnStateError {
		// Transport-level failure can interrupt any state.
		return s != TurnStateError
	}
	switch s {
	case TurnStateIdle:
		return next == TurnStateListening
	case TurnStateListening:
		// Empty no-op turns go straight back to Idle.
		return next == TurnStateAwaitingCompletion || next == TurnStateIdle
	case TurnStateAwaitingCompletion:
		return next == TurnStateResponding || next == TurnStateIdle
	case TurnStateResponding:
		return next == TurnStateIdle
	default:
		return false
	}
}

// SessionConfig carries session-scoped hints supplied at start-turn.
type SessionConfig struct {
	// Language is the primary recognition language hint, e.g. "en-IN".
	Language string `json:"language"`
	// AltLanguages are alternate recognition language hints.
	AltLanguages []string `json:"alt_languages,omitempty"`
	// DisplayName is an optional caller-supplied name for the session.
	DisplayName string `json:"display_name,omitempty"`
	// SampleRate is the inbound capture rate in Hz.
	SampleRate int `json:"sample_rate"`
}

// ChatTurn is one user-utterance/assistant-reply pair. The user side is open
// while audio streams and becomes final once the end-turn signal or a final
// transcript is observed; the assistant side is pending until its payload has
// fully arrived.
type ChatTurn struct {
	UserText          string     `json:"user_text"`
	AssistantText     string     `json:"assistant_text,omitempty"`
	DetectedLanguage  string     `json:"detected_language,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	UserFinal         bool       `json:"user_final"`
	AssistantComplete bool       `json:"assistant_complete"`
}

// FinalizeUser marks the user side of the turn final.
func (t *ChatTurn) FinalizeUser(text, language string) {
	t.UserText = text
	t.DetectedLanguage = language
	t.UserFinal = true
}

// CompleteAssistant records the assistant reply and closes the turn.
func (t *ChatTurn) CompleteAssistant(text string) {
	now := time.Now()
	t.AssistantText = text
	t.AssistantComplete = true
	t.CompletedAt = &now
}

// IsNoOp reports whether the user utterance produced no usable text.
func (t *ChatTurn) IsNoOp() bool {
	return strings.TrimSpace(t.UserText) == ""
}

// Session is one logical conversation attached to one transport connection.
// It is owned exclusively by the connection that created it.
type Session struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	State     TurnState     `json:"state"`
	Config    SessionConfig `json:"config"`
	Turns     []ChatTurn    `json:"turns"`
}

// NewSession creates a session in the Idle state.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		State:     TurnStateIdle,
		Turns:     make([]ChatTurn, 0),
	}
}

// Transition moves the session to next, enforcing the state machine.
func (s *Session) Transition(next TurnState) error {
	if !s.State.CanTransitionTo(next) {
		return errors.New("illegal turn transition from " + string(s.State) + " to " + string(next))
	}
	s.State = next
	return nil
}

// BeginTurn appends a new open turn and returns it.
func (s *Session) BeginTurn() *ChatTurn {
	s.Turns = append(s.Turns, ChatTurn{StartedAt: time.Now()})
	return &s.Turns[len(s.Turns)-1]
}

// CurrentTurn returns the most recent turn, or nil when none exists.
func (s *Session) CurrentTurn() *ChatTurn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// DropCurrentTurn removes the most recent turn. Used for no-op turns that are
// discarded without any collaborator call.
func (s *Session) DropCurrentTurn() {
	if len(s.Turns) > 0 {
		s.Turns = s.Turns[:len(s.Turns)-1]
	}
}

// Validate checks structural invariants of the session.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	switch s.State {
	case TurnStateIdle, TurnStateListening, TurnStateAwaitingCompletion, TurnStateResponding, TurnStateError:
	default:
		return errors.New("invalid session state")
	}
	return nil
}
