// Package protocol defines the control-message half of the session wire
// protocol. Text frames are UTF-8 JSON objects discriminated by a "type"
// field; binary frames are raw little-endian 16-bit mono PCM and never pass
// through this package.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType defines the type of a control message.
type MessageType string

// Supported message types.
const (
	MessageTypeStartTurn    MessageType = "start"
	MessageTypeEndTurn      MessageType = "stop"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeTranscript   MessageType = "transcript"
	MessageTypeModelText    MessageType = "llmResponse"
	MessageTypeTurnComplete MessageType = "turn_complete"
	MessageTypeError        MessageType = "error"
	MessageTypeInfo         MessageType = "info"
)

// Lighter clients may send a bare text frame instead of a JSON end-turn
// message. Both literals are accepted.
const (
	SentinelAudioStreamEnd = "AUDIO_STREAM_END"
	SentinelEndTurn        = "END_TURN"
)

// typeAliases maps alternate discriminant spellings to canonical types.
var typeAliases = map[string]MessageType{
	"start-turn": MessageTypeStartTurn,
	"end-turn":   MessageTypeEndTurn,
	"model_text": MessageTypeModelText,
}

// BaseMessage is the common structure of all control messages.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// StartTurnMessage opens a user turn and carries the capture audio format and
// optional language hints.
type StartTurnMessage struct {
	BaseMessage
	SampleRate       int      `json:"sampleRate"`
	LanguageCode     string   `json:"languageCode,omitempty"`
	AltLanguageCodes []string `json:"altLanguageCodes,omitempty"`
	DisplayName      string   `json:"displayName,omitempty"`
}

// EndTurnMessage signals that the current inbound audio segment is complete.
type EndTurnMessage struct {
	BaseMessage
}

// PingMessage is a connection health check; the peer answers with pong.
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage answers a ping.
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// TranscriptMessage relays recognized text, interim or final.
type TranscriptMessage struct {
	BaseMessage
	Text         string `json:"text"`
	IsFinal      bool   `json:"isFinal"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// ModelTextMessage relays generated assistant text ahead of synthesized audio.
type ModelTextMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// TurnCompleteMessage tells the client that synthesis for this turn has
// finished and no more audio frames will follow.
type TurnCompleteMessage struct {
	BaseMessage
}

// ErrorMessage carries a human-readable failure reason.
type ErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// InfoMessage carries a status string.
type InfoMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// Decode parses one text frame into its typed message. Bare sentinel frames
// decode as an EndTurnMessage; alias discriminants are normalized.
func Decode(data []byte) (interface{}, error) {
	switch string(data) {
	case SentinelAudioStreamEnd, SentinelEndTurn:
		return &EndTurnMessage{BaseMessage{MessageTypeEndTurn}}, nil
	}

	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON control message: %w", err)
	}

	msgType := base.Type
	if canonical, ok := typeAliases[string(msgType)]; ok {
		msgType = canonical
	}

	switch msgType {
	case MessageTypeStartTurn:
		var msg StartTurnMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid start message: %w", err)
		}
		msg.Type = MessageTypeStartTurn
		if err := validateStartTurn(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeEndTurn:
		return &EndTurnMessage{BaseMessage{MessageTypeEndTurn}}, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypePong:
		var msg PongMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid pong message: %w", err)
		}
		return &msg, nil

	case MessageTypeTranscript:
		var msg TranscriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcript message: %w", err)
		}
		return &msg, nil

	case MessageTypeModelText:
		var msg ModelTextMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid model text message: %w", err)
		}
		msg.Type = MessageTypeModelText
		return &msg, nil

	case MessageTypeTurnComplete:
		return &TurnCompleteMessage{BaseMessage{MessageTypeTurnComplete}}, nil

	case MessageTypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid error message: %w", err)
		}
		return &msg, nil

	case MessageTypeInfo:
		var msg InfoMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid info message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %q", base.Type)
	}
}

func validateStartTurn(msg *StartTurnMessage) error {
	if msg.SampleRate < 8000 || msg.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000, got %d", msg.SampleRate)
	}
	return nil
}

// Encode serializes a control message to its canonical wire form.
func Encode(msg interface{}) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode control message: %w", err)
	}
	return data, nil
}

// NewStartTurn builds a start message for the given capture format.
func NewStartTurn(sampleRate int, language string, altLanguages []string) *StartTurnMessage {
	return &StartTurnMessage{
		BaseMessage:      BaseMessage{MessageTypeStartTurn},
		SampleRate:       sampleRate,
		LanguageCode:     language,
		AltLanguageCodes: altLanguages,
	}
}

// NewEndTurn builds an end-turn message.
func NewEndTurn() *EndTurnMessage {
	return &EndTurnMessage{BaseMessage{MessageTypeEndTurn}}
}

// NewTranscript builds a transcript relay message.
func NewTranscript(text string, isFinal bool, language string) *TranscriptMessage {
	return &TranscriptMessage{
		BaseMessage:  BaseMessage{MessageTypeTranscript},
		Text:         text,
		IsFinal:      isFinal,
		LanguageCode: language,
	}
}

// NewModelText builds a generated-text relay message.
func NewModelText(text string) *ModelTextMessage {
	return &ModelTextMessage{
		BaseMessage: BaseMessage{MessageTypeModelText},
		Text:        text,
	}
}

// NewTurnComplete builds the message terminating an assistant turn.
func NewTurnComplete() *TurnCompleteMessage {
	return &TurnCompleteMessage{BaseMessage{MessageTypeTurnComplete}}
}

// NewError builds an error message with a human-readable reason.
func NewError(reason string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{MessageTypeError},
		Message:     reason,
	}
}

// NewInfo builds an informational status message.
func NewInfo(status string) *InfoMessage {
	return &InfoMessage{
		BaseMessage: BaseMessage{MessageTypeInfo},
		Message:     status,
	}
}

// NewPong answers a ping, echoing its payload.
func NewPong(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{MessageTypePong},
		Data:        data,
	}
}
