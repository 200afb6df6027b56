package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/corridor/pkg/api/routes"
	"github.com/travigo/corridor/pkg/auth"
	"github.com/travigo/corridor/pkg/corridor"
	"github.com/travigo/corridor/pkg/relay"
)

type Services struct {
	Engine    *corridor.Engine
	Hub       *relay.Hub
	Publisher routes.IncidentPublisher
	Verifier  auth.Verifier
}

func NewApp(services Services) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("version", routes.APIVersion)

	ensureValidToken := EnsureValidToken(services.Verifier)

	routes.RelayRouter(webApp.Group("/relay"), services.Hub, ensureValidToken)
	routes.CorridorRouter(webApp.Group("/corridor"), services.Engine, services.Publisher, ensureValidToken)

	return webApp
}
