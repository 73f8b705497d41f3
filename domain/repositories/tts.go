package repositories

import "context"

// TextToSpeech abstracts speech synthesis. Implementations stream raw 16-bit
// little-endian PCM chunks on the returned channel and close it when the
// synthesis is complete.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, languageHint string) (<-chan []byte, error)
}
