// Package relay implements the server between capture clients and the
// transcription provider: one websocket session per client, a commit gate
// deciding when buffered audio becomes a transcription request, and the
// event pump translating provider events into client transcript messages.
package relay

import (
	"context"
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/leonardotrapani/voxrelay/internal/config"
	"github.com/leonardotrapani/voxrelay/internal/metrics"
)

type Server struct {
	manager *config.Manager
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	app     *fiber.App
}

func NewServer(manager *config.Manager, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	s := &Server{
		manager: manager,
		metrics: m,
		log:     log,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

// handleWS owns one client connection for its lifetime. Config is
// snapshotted here so a concurrent reload never changes a session
// mid-flight.
func (s *Server) handleWS(conn *websocket.Conn) {
	defer conn.Close()

	sess := newSession(conn, s.manager.Get(), s.metrics, s.log)
	sess.log.Infow("client connected")
	sess.run()
}

// Run serves on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.manager.Get().Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.RunListener(ctx, ln)
}

// RunListener serves on ln until ctx is cancelled. Split out so tests can
// bind an ephemeral port.
func (s *Server) RunListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	s.log.Infow("relay listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}
