// Package config loads the service configuration from a YAML file with
// environment-variable overrides for secrets and deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session modes. Continuous lets a final recognition result end the turn on
// its own; strict-turn waits for the client's explicit end-turn signal.
const (
	ModeContinuous = "continuous"
	ModeStrictTurn = "strict_turn"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Speech     SpeechConfig     `yaml:"speech"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SessionConfig contains the turn-taking and audio-format parameters.
type SessionConfig struct {
	// Mode selects between call-style and one-question-at-a-time turn taking.
	Mode string `yaml:"mode"`
	// TurnTimeoutSeconds bounds the whole collaborator chain for one turn.
	TurnTimeoutSeconds int `yaml:"turn_timeout_seconds"`
	// InboundSampleRate is the client->server PCM rate in Hz.
	InboundSampleRate int `yaml:"inbound_sample_rate"`
	// OutboundSampleRate is the server->client synthesis PCM rate in Hz.
	OutboundSampleRate int `yaml:"outbound_sample_rate"`
	// FrameSamples is the capture frame size in samples.
	FrameSamples int `yaml:"frame_samples"`
	// ExtendDeadlineOnInterim extends the turn deadline each time an interim
	// transcript arrives.
	ExtendDeadlineOnInterim bool `yaml:"extend_deadline_on_interim"`
}

// GeminiConfig configures the generation collaborator.
type GeminiConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	SystemInstruction string `yaml:"system_instruction"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// ElevenLabsConfig configures the synthesis collaborator.
type ElevenLabsConfig struct {
	APIKey       string `yaml:"api_key"`
	APIBaseURL   string `yaml:"api_base_url"`
	VoiceID      string `yaml:"voice_id"`
	ModelID      string `yaml:"model_id"`
	OutputFormat string `yaml:"output_format"`
	ChunkSize    int    `yaml:"chunk_size"`
}

// SpeechConfig configures the recognition collaborator.
type SpeechConfig struct {
	Encoding        string `yaml:"encoding"`
	DefaultLanguage string `yaml:"default_language"`
}

// RedisConfig configures the conversation history store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	TTLHours  int    `yaml:"ttl_hours"`
	MaxTurns  int    `yaml:"max_turns"`
	MaxTokens int    `yaml:"max_tokens"`
	Disabled  bool   `yaml:"disabled"`
}

// AuthConfig configures the optional JWT gate on the session endpoint.
type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"`
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with working development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
		},
		Session: SessionConfig{
			Mode:               ModeContinuous,
			TurnTimeoutSeconds: 60,
			InboundSampleRate:  16000,
			OutboundSampleRate: 24000,
			FrameSamples:       4096,
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 30,
			SystemInstruction: "You are AWS Help Bot, a friendly voice assistant that answers " +
				"questions about Amazon Web Services. Keep answers short and conversational " +
				"since they are read aloud. If a question is not about AWS, say so politely.",
		},
		ElevenLabs: ElevenLabsConfig{
			OutputFormat: "pcm_24000",
			ChunkSize:    1024,
		},
		Speech: SpeechConfig{
			Encoding:        "LINEAR16",
			DefaultLanguage: "en-US",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			TTLHours:  24,
			MaxTurns:  50,
			MaxTokens: 8000,
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the optional YAML file at path, applies environment overrides,
// and validates the result. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	// Missing .env is fine; environment may be set by the deployment.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("ELEVEN_LABS_API_KEY"); v != "" {
		c.ElevenLabs.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// Validate performs validation of every configuration section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth config: jwt_secret is required when auth is enabled")
	}
	return nil
}

// Validate checks the server section.
func (s ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

// Validate checks the session section.
func (s SessionConfig) Validate() error {
	if s.Mode != ModeContinuous && s.Mode != ModeStrictTurn {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeContinuous, ModeStrictTurn, s.Mode)
	}
	if s.TurnTimeoutSeconds <= 0 {
		return fmt.Errorf("turn timeout must be positive, got %d", s.TurnTimeoutSeconds)
	}
	if s.InboundSampleRate < 8000 || s.InboundSampleRate > 48000 {
		return fmt.Errorf("inbound sample rate must be between 8000 and 48000, got %d", s.InboundSampleRate)
	}
	if s.OutboundSampleRate < 8000 || s.OutboundSampleRate > 48000 {
		return fmt.Errorf("outbound sample rate must be between 8000 and 48000, got %d", s.OutboundSampleRate)
	}
	if s.FrameSamples <= 0 {
		return fmt.Errorf("frame size must be positive, got %d", s.FrameSamples)
	}
	// Keep per-frame latency within a few hundred milliseconds.
	if frameMs := s.FrameSamples * 1000 / s.InboundSampleRate; frameMs > 500 {
		return fmt.Errorf("frame of %d samples is %dms at %dHz, exceeding the 500ms latency bound",
			s.FrameSamples, frameMs, s.InboundSampleRate)
	}
	return nil
}

// Validate checks the redis section.
func (r RedisConfig) Validate() error {
	if r.Disabled {
		return nil
	}
	if r.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if r.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", r.MaxTurns)
	}
	return nil
}

// TurnTimeout returns the session-level collaborator deadline.
func (s SessionConfig) TurnTimeout() time.Duration {
	return time.Duration(s.TurnTimeoutSeconds) * time.Second
}

// TTL returns the history retention period.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// TokenTTL returns the session token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}
