// Package websocket carries the duplex session transport. Each connection is
// one voice session: JSON control messages travel as text frames and raw PCM
// audio as binary frames, multiplexed on the same socket.
package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Error404m/aws-voice-bot/internal/metrics"
)

// Hub tracks the set of live session connections.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run owns the client set until ctx is cancelled. On shutdown every live
// connection is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.metrics.ActiveSessions.Inc()
			h.metrics.SessionsOpened.Inc()
			h.logger.Info("session connected",
				zap.String("sessionId", client.controller.SessionID()),
				zap.Int("activeSessions", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.metrics.ActiveSessions.Dec()
				h.metrics.SessionsClosed.Inc()
				h.metrics.SessionDuration.Observe(time.Since(client.openedAt).Seconds())
				client.shutdown()
				h.logger.Info("session disconnected",
					zap.String("sessionId", client.controller.SessionID()),
					zap.Int("activeSessions", len(h.clients)))
			}

		case <-ctx.Done():
			// Closing done first lets readPumps that race the shutdown skip
			// the unregister channel nobody is draining anymore.
			close(h.done)
			for client := range h.clients {
				client.shutdown()
				delete(h.clients, client)
			}
			return
		}
	}
}
