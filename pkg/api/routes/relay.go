package routes

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/relay"
)

func RelayRouter(router fiber.Router, hub *relay.Hub, ingressAuth fiber.Handler) {
	router.Get("/ws", relay.RequireUpgrade(), hub.Handler())

	router.Get("/rooms", func(c *fiber.Ctx) error {
		return c.JSON(hub.Rooms())
	})

	router.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(hub.Cache().List())
	})

	router.Get("/locations/:entityType/:entityId", func(c *fiber.Ctx) error {
		return getLocation(c, hub)
	})

	router.Post("/location", ingressAuth, func(c *fiber.Ctx) error {
		return postLocation(c, hub)
	})
}

const locationLookupTimeout = 2 * time.Second

// getLocation serves the last known position of one entity, including positions
// only another replica has seen
func getLocation(c *fiber.Ctx, hub *relay.Hub) error {
	entityType := ctdf.EntityType(strings.ToUpper(c.Params("entityType")))

	ctx, cancel := context.WithTimeout(c.Context(), locationLookupTimeout)
	defer cancel()

	update, ok := hub.Cache().Get(ctx, entityType, c.Params("entityId"))
	if !ok {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find a recent location for this entity",
		})
	}

	return c.JSON(update)
}

// postLocation is the fallback ingress for clients that cannot hold a websocket open
func postLocation(c *fiber.Ctx, hub *relay.Hub) error {
	update, err := ctdf.DecodeLocationUpdate(c.Body())
	if err != nil {
		log.Warn().Err(err).Str("ip", c.IP()).Msg("Rejected location update")

		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	hub.IngestLocation(*update)

	c.SendStatus(fiber.StatusAccepted)
	return c.JSON(fiber.Map{
		"success": true,
	})
}
