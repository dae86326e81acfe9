// Package web exposes the safe controller over HTTP and WebSocket.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/latchwork/gatekeeper/internal/log"
	"github.com/latchwork/gatekeeper/pkg/auth"
	"github.com/latchwork/gatekeeper/pkg/ingest"
	"github.com/latchwork/gatekeeper/pkg/store"
	"github.com/latchwork/gatekeeper/pkg/unlock"
)

// Server is the controller's outward face: the REST API for auth,
// enrollment and the unlock flow, plus the sensor WebSocket endpoints.
type Server struct {
	app  *fiber.App
	port string

	store   *store.Store
	machine *unlock.Machine
	hub     *ingest.Hub
	signer  *auth.Signer
}

// NewServer wires the API routes around the given components.
func NewServer(port string, st *store.Store, machine *unlock.Machine, hub *ingest.Hub, signer *auth.Signer) *Server {
	s := &Server{
		port:    port,
		store:   st,
		machine: machine,
		hub:     hub,
		signer:  signer,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Gatekeeper",
		DisableStartupMessage: true,
	})

	// CORS for the local dashboard
	app.Use(cors.New())

	api := app.Group("/api")
	api.Post("/auth/login", s.handleLogin)

	// Unlock flow runs on the device panel, before anyone is logged in.
	api.Post("/unlock/face", s.handleScanFace)
	api.Post("/unlock/pin", s.handleSubmitPIN)
	api.Post("/unlock/voice", s.handleSubmitVoice)
	api.Get("/unlock/state", s.handleUnlockState)
	api.Post("/lock", s.handleLock)

	// Everything below needs a valid token.
	authed := api.Group("", s.RequireUser)
	authed.Get("/events", s.handleListEvents)
	authed.Get("/sensors/recent", s.handleRecentSamples)
	authed.Post("/setup/face", s.handleEnrollFace)
	authed.Post("/setup/pin", s.handleEnrollPIN)
	authed.Post("/setup/phrase", s.handleEnrollPhrase)

	admin := authed.Group("", s.RequireAdmin)
	admin.Get("/users", s.handleListUsers)
	admin.Post("/users", s.handleCreateUser)
	admin.Get("/users/:id", s.handleGetUser)
	admin.Put("/users/:id", s.handleUpdateUser)
	admin.Delete("/users/:id", s.handleDeleteUser)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sensor", websocket.New(s.handleSensorWS))
	app.Get("/ws/dashboard", websocket.New(s.handleDashboardWS))

	s.app = app
	return s
}

// Start runs the broadcast hub and listens for connections. Blocks
// until the server shuts down.
func (s *Server) Start() error {
	go s.hub.Run()

	log.Info("listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
