package entities

import "errors"

// Error taxonomy for voice sessions. Callers classify failures with errors.Is
// and decide whether a turn, or the whole session, is over.
var (
	// ErrPermissionDenied means microphone access was refused by the user or OS.
	ErrPermissionDenied = errors.New("audio device permission denied")

	// ErrDeviceUnavailable means no usable capture or playback device exists.
	// Fatal for the turn, not the session.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrConnectionClosed means the transport could not open or dropped
	// unexpectedly. Session-fatal; the caller must establish a new session.
	ErrConnectionClosed = errors.New("transport connection closed")

	// ErrProtocolViolation means a malformed or out-of-order message arrived.
	// The message is dropped and the session continues.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrCollaboratorFailure means a recognition, generation, or synthesis call
	// failed or timed out. Turn-fatal; the session returns to idle.
	ErrCollaboratorFailure = errors.New("collaborator call failed")

	// ErrDecodeFailure means an audio frame could not be decoded. The frame is
	// dropped and playback continues.
	ErrDecodeFailure = errors.New("audio frame decode failed")

	// ErrTurnInProgress means a start-turn arrived while another turn was still
	// in flight.
	ErrTurnInProgress = errors.New("turn already in progress")
)
