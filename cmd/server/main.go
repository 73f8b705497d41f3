package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Error404m/aws-voice-bot/adapters/llm"
	"github.com/Error404m/aws-voice-bot/adapters/redisstore"
	"github.com/Error404m/aws-voice-bot/adapters/stt"
	"github.com/Error404m/aws-voice-bot/adapters/tts"
	"github.com/Error404m/aws-voice-bot/internal/api"
	"github.com/Error404m/aws-voice-bot/internal/auth"
	"github.com/Error404m/aws-voice-bot/internal/config"
	"github.com/Error404m/aws-voice-bot/internal/metrics"
	"github.com/Error404m/aws-voice-bot/internal/turn"
	"github.com/Error404m/aws-voice-bot/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	collab, cleanup, err := buildCollaborators(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize collaborators", zap.Error(err))
	}
	defer cleanup()

	var issuer *auth.Issuer
	if cfg.Auth.Enabled {
		issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	}

	hub := websocket.NewHub(logger, m)
	go hub.Run(ctx)

	server := api.NewServer(cfg, hub, collab, issuer, m, logger)
	e := server.Routes()

	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Session.Mode))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("server is shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// buildCollaborators wires the external services. Missing API keys fall back
// to the in-memory mocks so the server is runnable in development.
func buildCollaborators(ctx context.Context, cfg *config.Config, logger *zap.Logger) (turn.Collaborators, func(), error) {
	collab := turn.Collaborators{}
	cleanups := []func(){}
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		collab.Recognizer = stt.NewGoogleSpeechToText(logger)
	} else {
		logger.Warn("no Google credentials, using mock recognizer")
		collab.Recognizer = &stt.MockSpeechToText{Transcript: "tell me about aws"}
	}

	if cfg.Gemini.APIKey != "" {
		model, err := llm.NewGeminiLLM(ctx, llm.Config{
			APIKey:            cfg.Gemini.APIKey,
			Model:             cfg.Gemini.Model,
			SystemInstruction: cfg.Gemini.SystemInstruction,
			Timeout:           time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		}, logger)
		if err != nil {
			cleanup()
			return collab, nil, err
		}
		collab.Model = model
	} else {
		logger.Warn("no Gemini API key, using mock model")
		collab.Model = &llm.MockLLM{Reply: "I can help with AWS questions once a model key is configured."}
	}

	if cfg.ElevenLabs.APIKey != "" {
		collab.Synthesizer = tts.NewElevenLabsTTS(tts.Config{
			APIKey:       cfg.ElevenLabs.APIKey,
			APIBaseURL:   cfg.ElevenLabs.APIBaseURL,
			VoiceID:      cfg.ElevenLabs.VoiceID,
			ModelID:      cfg.ElevenLabs.ModelID,
			OutputFormat: cfg.ElevenLabs.OutputFormat,
			ChunkSize:    cfg.ElevenLabs.ChunkSize,
		}, logger)
	} else {
		logger.Warn("no ElevenLabs API key, using silent mock synthesizer")
		collab.Synthesizer = &tts.MockTTS{Chunks: [][]byte{make([]byte, 4800)}}
	}

	if !cfg.Redis.Disabled {
		store, err := redisstore.NewHistoryStore(ctx, redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			TTL:       cfg.Redis.TTL(),
			MaxTurns:  cfg.Redis.MaxTurns,
			MaxTokens: cfg.Redis.MaxTokens,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, keeping history in memory", zap.Error(err))
			collab.History = redisstore.NewMemoryHistoryStore(cfg.Redis.MaxTurns)
		} else {
			collab.History = store
			cleanups = append(cleanups, func() { store.Close() })
		}
	} else {
		collab.History = redisstore.NewMemoryHistoryStore(cfg.Redis.MaxTurns)
	}

	return collab, cleanup, nil
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
