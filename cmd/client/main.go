// Command client is a terminal voice client. It records the microphone with
// ffmpeg, streams the audio to the server, and plays the synthesized answer
// through ffplay.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/internal/client"
)

func main() {
	var (
		serverURL    = flag.String("url", "ws://localhost:8080/ws/live-audio", "live-audio endpoint")
		token        = flag.String("token", "", "session token when the server requires auth")
		device       = flag.String("device", "", "capture device (platform default when empty)")
		captureRate  = flag.Int("capture-rate", 48000, "microphone sample rate in Hz")
		wireRate     = flag.Int("wire-rate", 16000, "upload sample rate in Hz")
		playbackRate = flag.Int("playback-rate", 24000, "synthesized audio sample rate in Hz")
		language     = flag.String("language", "en-US", "recognition language hint")
		utterance    = flag.Duration("utterance", 8*time.Second, "maximum recording window per turn")
		saveDir      = flag.String("save", "", "directory to save responses as WAV files")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var speaker client.Speaker
	ffplay, err := client.NewFFplaySpeaker(*playbackRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start playback: %v\n", err)
		os.Exit(1)
	}
	speaker = ffplay
	if *saveDir != "" {
		speaker = client.NewRecordingSpeaker(ffplay, *saveDir, *playbackRate)
	}

	source := client.NewFFmpegSource(*device, *captureRate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := client.NewSession(ctx, *serverURL, *token, source, speaker, client.SessionOptions{
		CaptureRate:  *captureRate,
		WireRate:     *wireRate,
		PlaybackRate: *playbackRate,
		Language:     *language,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	fmt.Println("press enter to speak, ctrl-d to quit")
	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		fmt.Printf("listening for up to %s...\n", *utterance)
		if err := session.RunTurn(ctx, *utterance); err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		fmt.Println("press enter to speak again, ctrl-d to quit")
	}
}
