// Package web serves the performance dashboard and the live feature
// stream. It is a first-party consumer of the hivemind read contract:
// everything it shows comes from snapshots, never interior state.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/DigiScore/kc-plus/internal/log"
	"github.com/DigiScore/kc-plus/pkg/hivemind"
	"github.com/DigiScore/kc-plus/pkg/hub"
)

// Diagnostics is the slice of ingestion-loop counters the dashboard shows.
type Diagnostics interface {
	Ticks() uint64
	DegenerateCount() uint64
}

// StreamFrame is one websocket payload on /ws/stream.
type StreamFrame struct {
	Session string          `json:"session"`
	Seq     uint64          `json:"seq"`
	EDA     float64         `json:"eda"`
	Dancer  hivemind.Vector `json:"dancer"`
	Sampled float64         `json:"sampled"`
	Running bool            `json:"running"`
}

// Server is the dashboard and feature-stream server.
type Server struct {
	app  *fiber.App
	port string

	mind    *hivemind.Hivemind
	session string
	diag    Diagnostics
	every   time.Duration

	streamHub *hub.Hub
}

// NewServer builds the server. every is the broadcast cadence, usually the
// ingestion cadence.
func NewServer(port, session string, mind *hivemind.Hivemind, diag Diagnostics, every time.Duration) *Server {
	s := &Server{
		port:      port,
		mind:      mind,
		session:   session,
		diag:      diag,
		every:     every,
		streamHub: hub.New("feature"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "kc-plus dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/session", s.handleSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/stream", websocket.New(s.handleStreamWS))

	s.app = app
	return s
}

// Run serves until ctx is cancelled, broadcasting one StreamFrame per
// cadence interval. It satisfies the director's Runner interface.
func (s *Server) Run(ctx context.Context) error {
	go s.streamHub.Run()
	defer s.streamHub.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.Listen(":" + s.port); err != nil {
			errCh <- err
		}
	}()
	defer s.app.Shutdown()

	log.Info("web: dashboard up", "port", s.port)

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			state := s.mind.Snapshot()
			seq++
			norm := state.Normalized[0]
			s.streamHub.BroadcastJSON(StreamFrame{
				Session: s.session,
				Seq:     seq,
				EDA:     norm[len(norm)-1],
				Dancer:  state.Dancer,
				Sampled: state.Sampled,
				Running: state.Running,
			})
			if !state.Running {
				// Piece over; push the final frame and exit.
				return nil
			}
		}
	}
}

func (s *Server) handleState(c *fiber.Ctx) error {
	state := s.mind.Snapshot()
	resp := fiber.Map{
		"session": s.session,
		"state":   state,
	}
	if s.diag != nil {
		resp["diagnostics"] = fiber.Map{
			"ticks":            s.diag.Ticks(),
			"degenerate_count": s.diag.DegenerateCount(),
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"session": s.session})
}

func (s *Server) handleStreamWS(c *websocket.Conn) {
	hub.NewSubscriber(s.streamHub, c).Run()
}

// SubscriberCount reports connected stream subscribers.
func (s *Server) SubscriberCount() int {
	return s.streamHub.SubscriberCount()
}
