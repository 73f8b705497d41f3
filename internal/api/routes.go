// Package api wires the HTTP surface: the health and metrics endpoints, the
// token and conversation REST routes, and the live-audio WebSocket upgrade.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/domain/entities"
	"github.com/Error404m/aws-voice-bot/internal/auth"
	"github.com/Error404m/aws-voice-bot/internal/config"
	"github.com/Error404m/aws-voice-bot/internal/metrics"
	"github.com/Error404m/aws-voice-bot/internal/turn"
	ws "github.com/Error404m/aws-voice-bot/internal/websocket"
)

// Server holds the dependencies of the HTTP surface.
type Server struct {
	config   *config.Config
	hub      *ws.Hub
	collab   turn.Collaborators
	issuer   *auth.Issuer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the HTTP server wiring. issuer may be nil when auth is
// disabled; collab.History may be nil when persistence is disabled.
func NewServer(cfg *config.Config, hub *ws.Hub, collab turn.Collaborators, issuer *auth.Issuer, m *metrics.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		config:  cfg,
		hub:     hub,
		collab:  collab,
		issuer:  issuer,
		metrics: m,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes builds the echo instance with all endpoints registered.
func (s *Server) Routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.config.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ws/live-audio", s.handleLiveAudio)

	v1 := e.Group("/api/v1")
	v1.POST("/token", s.handleToken)
	v1.GET("/conversations/:id", s.handleConversation)

	return e
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "aws-voice-bot",
	})
}

func (s *Server) handleToken(c echo.Context) error {
	if s.issuer == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "authentication is disabled"})
	}
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	token, err := s.issuer.GenerateSessionToken(req.SessionName)
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to issue token"})
	}
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: s.config.Auth.TokenTTLMinutes * 60,
	})
}

func (s *Server) handleConversation(c echo.Context) error {
	if s.collab.History == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation history is disabled"})
	}
	sessionID := c.Param("id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "conversation id is required"})
	}

	turns, err := s.collab.History.Turns(c.Request().Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to load conversation",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load conversation"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"turns":      turns,
	})
}

// handleLiveAudio upgrades the connection and hands it to the session layer.
// Authentication, when enabled, accepts a bearer header or a token query
// parameter since browser WebSocket clients cannot set headers.
func (s *Server) handleLiveAudio(c echo.Context) error {
	if s.issuer != nil {
		token := bearerToken(c.Request())
		if token == "" {
			token = c.QueryParam("token")
		}
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing session token"})
		}
		if _, err := s.issuer.ValidateToken(token); err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid session token"})
		}
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	session := entities.NewSession()
	client := ws.NewClient(s.hub, conn, s.logger.With(zap.String("sessionId", session.ID)))
	controller := turn.NewController(
		context.Background(),
		session,
		client,
		s.collab,
		turn.Options{
			Mode:                    s.config.Session.Mode,
			TurnTimeout:             s.config.Session.TurnTimeout(),
			ExtendDeadlineOnInterim: s.config.Session.ExtendDeadlineOnInterim,
			Encoding:                s.config.Speech.Encoding,
			DefaultLanguage:         s.config.Speech.DefaultLanguage,
		},
		s.logger,
		s.metrics,
	)
	client.Bind(controller)
	client.Start()
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}
