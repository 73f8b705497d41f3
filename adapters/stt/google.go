package stt

import (
	"context"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud.
type GoogleSpeechToText struct {
	logger *zap.Logger
}

// NewGoogleSpeechToText creates a Google Cloud recognition adapter.
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                 encoding,
		SampleRateHertz:          int32(config.SampleRate),
		LanguageCode:             config.Language,
		AlternativeLanguageCodes: config.AltLanguages,
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: recognitionConfig,
				// Interim results are relayed to the client while the user is
				// still speaking.
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	streamInstance := &GoogleSpeechToTextStream{
		client:    client,
		stream:    stream,
		ctx:       ctx,
		logger:    g.logger,
		results:   make(chan repositories.TranscriptResult, 32),
		finalChan: make(chan repositories.TranscriptResult, 1),
		errorChan: make(chan error, 1),
	}
	go streamInstance.receiveResults()

	return streamInstance, nil
}

// GoogleSpeechToTextStream is one streaming recognition session.
type GoogleSpeechToTextStream struct {
	client        *speech.Client
	stream        speechpb.Speech_StreamingRecognizeClient
	ctx           context.Context
	logger        *zap.Logger
	audioReceived bool
	results       chan repositories.TranscriptResult
	finalChan     chan repositories.TranscriptResult
	errorChan     chan error
}

func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	g.audioReceived = true

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) Results() <-chan repositories.TranscriptResult {
	return g.results
}

func (g *GoogleSpeechToTextStream) End() (repositories.TranscriptResult, error) {
	defer g.cleanup()

	if !g.audioReceived {
		// No audio means nothing to recognize; the caller treats the empty
		// transcript as a no-op turn.
		return repositories.TranscriptResult{IsFinal: true}, nil
	}

	if err := g.stream.CloseSend(); err != nil {
		return repositories.TranscriptResult{}, fmt.Errorf("failed to close send stream: %w", err)
	}

	select {
	case <-g.ctx.Done():
		return repositories.TranscriptResult{}, fmt.Errorf("context cancelled while waiting for result: %w", g.ctx.Err())
	case err := <-g.errorChan:
		return repositories.TranscriptResult{}, err
	case result := <-g.finalChan:
		return result, nil
	}
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	defer close(g.results)

	var final repositories.TranscriptResult
	final.IsFinal = true

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.finalChan <- final
			return
		}
		if err != nil {
			g.errorChan <- fmt.Errorf("failed to receive response: %w", err)
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := repositories.TranscriptResult{
				Text:         result.Alternatives[0].Transcript,
				IsFinal:      result.IsFinal,
				LanguageCode: result.LanguageCode,
			}
			if result.IsFinal {
				final.Text = transcript.Text
				final.LanguageCode = transcript.LanguageCode
				// Final results drive turn completion and must reach the
				// consumer even when it is behind.
				select {
				case g.results <- transcript:
				case <-g.ctx.Done():
					return
				}
				continue
			}
			select {
			case g.results <- transcript:
			case <-g.ctx.Done():
				return
			default:
				// A stalled consumer must not block the receive loop; stale
				// interims are droppable.
				g.logger.Warn("dropping interim transcript, consumer is behind")
			}
		}
	}
}

func (g *GoogleSpeechToTextStream) cleanup() {
	if g.client != nil {
		g.client.Close()
	}
}

// getAudioEncoding converts string encoding to the Speech API enum.
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
