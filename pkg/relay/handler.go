package relay

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint
func RequireUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		c.SendStatus(fiber.StatusUpgradeRequired)
		return c.JSON(fiber.Map{
			"error": "websocket upgrade required",
		})
	}
}

// Handler upgrades the request and serves it with the hub. The handshake
// carries the credential in ?token= and the room in ?accidentId=.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.ServeConn(context.Background(), c, c.Query("token"), c.Query("accidentId"))
	})
}
