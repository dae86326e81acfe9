package web

import (
	"github.com/gofiber/websocket/v2"

	"github.com/latchwork/gatekeeper/internal/log"
	"github.com/latchwork/gatekeeper/pkg/ingest"
	"github.com/latchwork/gatekeeper/pkg/wire"
)

// handleSensorWS reads the sensor producer's stream. Each connection
// gets its own pipeline so smoothing windows and alert cooldowns never
// bleed between devices.
func (s *Server) handleSensorWS(c *websocket.Conn) {
	log.Info("sensor producer connected", "remote", c.RemoteAddr().String())
	p := ingest.NewPipeline()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Info("sensor producer disconnected", "remote", c.RemoteAddr().String())
			return
		}

		msg, err := wire.ParseMessage(data)
		if err != nil {
			log.Warn("dropping malformed sensor message", "error", err)
			continue
		}
		if msg.Type != wire.TypeSensorData {
			log.Warn("unexpected message type from producer", "type", msg.Type)
			continue
		}

		var sample wire.SensorData
		if err := msg.ParseData(&sample); err != nil {
			log.Warn("dropping malformed sensor payload", "error", err)
			continue
		}

		s.hub.Ingest(p, sample)
	}
}

// handleDashboardWS attaches a dashboard client to the broadcast hub.
func (s *Server) handleDashboardWS(c *websocket.Conn) {
	ingest.NewObserver(s.hub, c).Run()
}
