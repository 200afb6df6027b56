package routes

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/corridor/pkg/corridor"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/geo"
	"github.com/travigo/corridor/pkg/hospitals"
	"github.com/travigo/corridor/pkg/signals"
)

const brokerPublishTimeout = 5 * time.Second

// IncidentPublisher announces incident registration and cancellation to every replica
type IncidentPublisher interface {
	PublishIncident(ctx context.Context, incident ctdf.Incident) error
	PublishCancel(ctx context.Context, incidentID string, reason string) error
}

type corridorRoutes struct {
	engine    *corridor.Engine
	publisher IncidentPublisher
}

func CorridorRouter(router fiber.Router, engine *corridor.Engine, publisher IncidentPublisher, controlAuth fiber.Handler) {
	routes := &corridorRoutes{
		engine:    engine,
		publisher: publisher,
	}

	router.Get("/active", routes.getActive)
	router.Get("/signals", routes.listSignals)
	router.Get("/missions", routes.listMissions)
	router.Get("/incidents", routes.listIncidents)

	router.Post("/incidents", controlAuth, routes.postIncident)
	router.Delete("/incidents/:identifier", controlAuth, routes.deleteIncident)
	router.Post("/incidents/:identifier/hospital", controlAuth, routes.postHospitalRouting)
}

func (r *corridorRoutes) getActive(c *fiber.Ctx) error {
	return c.JSON(r.engine.ActiveCorridors())
}

func (r *corridorRoutes) listSignals(c *fiber.Ctx) error {
	groups := []string{"basic"}
	if c.QueryBool("detail") {
		groups = append(groups, "detailed")
	}

	registered := r.engine.Registry().List()
	views := make([]signals.View, 0, len(registered))
	for _, signal := range registered {
		views = append(views, signal.Snapshot())
	}

	viewsReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, views)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce signals",
		})
	}

	return c.JSON(viewsReduced)
}

func (r *corridorRoutes) listMissions(c *fiber.Ctx) error {
	return c.JSON(r.engine.Missions())
}

func (r *corridorRoutes) listIncidents(c *fiber.Ctx) error {
	return c.JSON(r.engine.Incidents())
}

func (r *corridorRoutes) postIncident(c *fiber.Ctx) error {
	var incident ctdf.Incident
	if err := c.BodyParser(&incident); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "Could not parse incident",
		})
	}

	if incident.ID == "" {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": "No accidentId set",
		})
	}
	if !incident.Scene.Valid() {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": geo.ErrInvalidPoint.Error(),
		})
	}
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = time.Now()
	}

	// Registered locally as well so the caller can rely on it straight away,
	// the broker copy arriving later is idempotent
	if err := r.engine.RegisterIncident(incident); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if r.publisher != nil {
		ctx, cancel := context.WithTimeout(c.Context(), brokerPublishTimeout)
		defer cancel()

		if err := r.publisher.PublishIncident(ctx, incident); err != nil {
			c.SendStatus(fiber.StatusBadGateway)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	c.SendStatus(fiber.StatusCreated)
	return c.JSON(incident)
}

func (r *corridorRoutes) deleteIncident(c *fiber.Ctx) error {
	identifier := c.Params("identifier")
	reason := c.Query("reason", "cancelled")

	restored, err := r.engine.CancelIncident(identifier, reason)
	if errors.Is(err, corridor.ErrUnknownIncident) {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find Incident matching Incident Identifier",
		})
	} else if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if r.publisher != nil {
		ctx, cancel := context.WithTimeout(c.Context(), brokerPublishTimeout)
		defer cancel()

		if err := r.publisher.PublishCancel(ctx, identifier, reason); err != nil {
			c.SendStatus(fiber.StatusBadGateway)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"restored": restored,
	})
}

func (r *corridorRoutes) postHospitalRouting(c *fiber.Ctx) error {
	var requestBody struct {
		HospitalID string `json:"hospitalId"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&requestBody); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse hospital routing request",
			})
		}
	}

	hospital, err := r.engine.StartHospitalRouting(c.Context(), c.Params("identifier"), requestBody.HospitalID)
	switch {
	case errors.Is(err, corridor.ErrUnknownIncident), errors.Is(err, hospitals.ErrNotFound):
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(hospital)
}
