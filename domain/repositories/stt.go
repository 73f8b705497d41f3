package repositories

import "context"

// SpeechToText abstracts streaming speech recognition services.
type SpeechToText interface {
	// InitTranscribeStreaming opens a streaming recognition session for one
	// user turn. The returned stream accepts raw PCM and emits interim and
	// final transcripts on Results.
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig describes the inbound audio for recognition.
type AudioConfig struct {
	SampleRate   int      `json:"sample_rate"`
	Encoding     string   `json:"encoding"`
	Language     string   `json:"language"`
	AltLanguages []string `json:"alt_languages,omitempty"`
}

// TranscriptResult is one recognition result, interim or final.
type TranscriptResult struct {
	Text         string `json:"text"`
	IsFinal      bool   `json:"is_final"`
	LanguageCode string `json:"language_code,omitempty"`
}

// SpeechToTextStreaming is an active recognition stream for a single turn.
type SpeechToTextStreaming interface {
	// Stream forwards one chunk of raw PCM audio.
	Stream(data []byte) error
	// Results emits interim and final transcripts as they arrive. The channel
	// is closed when the stream ends.
	Results() <-chan TranscriptResult
	// End signals end of audio and blocks until the final transcript (or an
	// error) is available. The stream is unusable afterwards.
	End() (TranscriptResult, error)
}
