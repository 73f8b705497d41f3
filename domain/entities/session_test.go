package entities

import (
	"testing"
)

func TestTurnStateTransitions(t *testing.T) {
	legal := []struct {
		from, to TurnState
	}{
		{TurnStateIdle, TurnStateListening},
		{TurnStateListening, TurnStateAwaitingCompletion},
		{TurnStateListening, TurnStateIdle},
		{TurnStateAwaitingCompletion, TurnStateResponding},
		{TurnStateAwaitingCompletion, TurnStateIdle},
		{TurnStateResponding, TurnStateIdle},
		{TurnStateIdle, TurnStateError},
		{TurnStateResponding, TurnStateError},
	}
	for _, tc := range legal {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct {
		from, to TurnState
	}{
		{TurnStateIdle, TurnStateResponding},
		{TurnStateIdle, TurnStateAwaitingCompletion},
		{TurnStateListening, TurnStateResponding},
		{TurnStateResponding, TurnStateListening},
		{TurnStateAwaitingCompletion, TurnStateListening},
		{TurnStateError, TurnStateIdle},
		{TurnStateError, TurnStateError},
	}
	for _, tc := range illegal {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

// A start-turn must only be accepted in Idle: Listening is reachable from
// Idle and from nowhere else.
func TestListeningOnlyReachableFromIdle(t *testing.T) {
	states := []TurnState{
		TurnStateIdle,
		TurnStateListening,
		TurnStateAwaitingCompletion,
		TurnStateResponding,
		TurnStateError,
	}
	for _, from := range states {
		got := from.CanTransitionTo(TurnStateListening)
		want := from == TurnStateIdle
		if got != want {
			t.Errorf("%s -> listening: got %v, want %v", from, got, want)
		}
	}
}

func TestSessionTransition(t *testing.T) {
	s := NewSession()
	if s.State != TurnStateIdle {
		t.Fatalf("new session should be idle, got %s", s.State)
	}

	if err := s.Transition(TurnStateListening); err != nil {
		t.Fatalf("idle -> listening failed: %v", err)
	}

	if err := s.Transition(TurnStateResponding); err == nil {
		t.Error("listening -> responding should be rejected")
	}
	if s.State != TurnStateListening {
		t.Errorf("state should be unchanged after rejected transition, got %s", s.State)
	}
}

func TestSessionTurnLifecycle(t *testing.T) {
	s := NewSession()

	turn := s.BeginTurn()
	if turn == nil {
		t.Fatal("BeginTurn returned nil")
	}
	if s.CurrentTurn() != turn {
		t.Error("CurrentTurn should return the turn just begun")
	}

	turn.FinalizeUser("how do I create an S3 bucket", "en-IN")
	if !turn.UserFinal {
		t.Error("turn should be user-final")
	}
	if turn.IsNoOp() {
		t.Error("turn with text should not be a no-op")
	}

	turn.CompleteAssistant("Use the S3 console or aws s3 mb.")
	if !turn.AssistantComplete {
		t.Error("turn should be assistant-complete")
	}
	if turn.CompletedAt == nil {
		t.Error("completed turn should carry a completion time")
	}
}

func TestNoOpTurnDiscard(t *testing.T) {
	s := NewSession()
	turn := s.BeginTurn()
	turn.FinalizeUser("   ", "")

	if !turn.IsNoOp() {
		t.Error("whitespace-only transcript should be a no-op")
	}

	s.DropCurrentTurn()
	if len(s.Turns) != 0 {
		t.Errorf("no-op turn should be discarded, have %d turns", len(s.Turns))
	}
	// Dropping with no turns is harmless.
	s.DropCurrentTurn()
}

func TestSessionValidate(t *testing.T) {
	s := NewSession()
	if err := s.Validate(); err != nil {
		t.Errorf("fresh session should validate: %v", err)
	}

	s.ID = ""
	if err := s.Validate(); err == nil {
		t.Error("session without id should not validate")
	}

	s = NewSession()
	s.State = TurnState("bogus")
	if err := s.Validate(); err == nil {
		t.Error("session with unknown state should not validate")
	}
}
