// HTTP and WebSocket surface for the chat relay.
//
// DESIGN: Request flow:
//   - handleHealth(): static readiness probe
//   - handleChat():   WebSocket accept, one Controller per connection,
//     sequential read loop (prompts on one connection never interleave)
package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/costoptimizer/chat-relay/internal/config"
	"github.com/costoptimizer/chat-relay/internal/monitoring"
	"github.com/costoptimizer/chat-relay/internal/usage"
)

// ServiceName appears in the health payload.
const ServiceName = "chat-relay"

// Server exposes the chat WebSocket and the health endpoint.
type Server struct {
	cfg       *config.Config
	gateway   Gateway
	estimator usage.Estimator
	telemetry *monitoring.Tracker
	archive   TurnRecorder
	httpSrv   *http.Server
}

// NewServer wires the relay's HTTP surface. archive may be nil.
func NewServer(cfg *config.Config, gateway Gateway, estimator usage.Estimator, telemetry *monitoring.Tracker, archive TurnRecorder) *Server {
	s := &Server{
		cfg:       cfg,
		gateway:   gateway,
		estimator: estimator,
		telemetry: telemetry,
		archive:   archive,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws/chat", s.handleChat)

	s.httpSrv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: config.DefaultReadHeaderTimeout,
		// No WriteTimeout: streaming turns hold connections open for the
		// full upstream latency.
	}

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks serving connections until Shutdown.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.cfg.Server.Addr).Msg("relay listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleHealth returns a static readiness payload.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"healthy","service":"` + ServiceName + `"}`))
}

// handleChat upgrades to WebSocket and runs the connection's read loop.
// The loop is sequential: a frame is not read until the previous one is
// fully handled, which serializes turns per connection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Server.OriginPatterns,
	})
	if err != nil {
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	conn.SetReadLimit(config.MaxInboundMessageBytes)

	ctrl := NewController(ControllerConfig{
		Threshold: s.cfg.Quota.Threshold,
		Gateway:   s.gateway,
		Estimator: s.estimator,
		Emitter:   NewEmitter(s.cfg.Streaming.ChunkSize, s.cfg.Streaming.ChunkDelay.Std()),
		Sink:      &wsSink{conn: conn},
		Telemetry: s.telemetry,
		Archive:   s.archive,
	})

	log.Info().
		Str("session_id", ctrl.Session().ID).
		Str("remote", r.RemoteAddr).
		Msg("websocket connection established")
	s.telemetry.RecordConnection(&monitoring.ConnectionEvent{
		Timestamp: time.Now(),
		SessionID: ctrl.Session().ID,
		Event:     "connect",
	})

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			log.Info().
				Str("session_id", ctrl.Session().ID).
				Int("close_status", int(status)).
				Msg("websocket disconnected")
			break
		}
		ctrl.HandleMessage(ctx, data)
	}

	ctrl.Close()
	s.telemetry.RecordConnection(&monitoring.ConnectionEvent{
		Timestamp: time.Now(),
		SessionID: ctrl.Session().ID,
		Event:     "disconnect",
		Turns:     len(ctrl.Session().Transcript),
		Usage:     ctrl.Session().UsageCount,
	})
	conn.Close(websocket.StatusNormalClosure, "")
}
