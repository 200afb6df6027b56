package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/bridge"
	"github.com/travigo/corridor/pkg/broker"
	"github.com/travigo/corridor/pkg/ctdf"
	"github.com/travigo/corridor/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

const publishTimeout = 10 * time.Second

var brokerFlag = &cli.StringFlag{
	Name:    "broker",
	Value:   broker.KindRedis,
	Usage:   "pub/sub transport: redis, mqtt or stomp",
	EnvVars: []string{"CORRIDOR_BROKER"},
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Publish synthetic events onto the broker",
		Subcommands: []*cli.Command{
			{
				Name:  "test-sos",
				Usage: "publish a test SOS",
				Flags: []cli.Flag{
					brokerFlag,
					&cli.StringFlag{
						Name:  "id",
						Usage: "incident identifier, generated when empty",
					},
					&cli.Float64Flag{
						Name:  "lat",
						Value: 18.5160,
					},
					&cli.Float64Flag{
						Name:  "lng",
						Value: 73.8420,
					},
					&cli.StringFlag{
						Name:  "severity",
						Value: "HIGH",
					},
				},
				Action: func(c *cli.Context) error {
					incident, err := SyntheticIncident(c.String("id"), c.Float64("lat"), c.Float64("lng"), c.String("severity"))
					if err != nil {
						return err
					}

					return withBroker(c.String("broker"), func(ctx context.Context, transport broker.Broker) error {
						if err := bridge.SendIncident(ctx, transport, incident); err != nil {
							return err
						}

						log.Info().Str("incident", incident.ID).Msg("Published test SOS")
						return nil
					})
				},
			},
			{
				Name:  "cancel",
				Usage: "cancel an incident and release its corridor",
				Flags: []cli.Flag{
					brokerFlag,
					&cli.StringFlag{
						Name:     "id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "reason",
						Value: "cancelled",
					},
				},
				Action: func(c *cli.Context) error {
					return withBroker(c.String("broker"), func(ctx context.Context, transport broker.Broker) error {
						if err := bridge.SendCancel(ctx, transport, c.String("id"), c.String("reason")); err != nil {
							return err
						}

						log.Info().Str("incident", c.String("id")).Msg("Published cancellation")
						return nil
					})
				},
			},
			{
				Name:  "test-location",
				Usage: "publish a single position report",
				Flags: []cli.Flag{
					brokerFlag,
					&cli.StringFlag{
						Name:     "entity",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Value: string(ctdf.EntityTypeAmbulance),
					},
					&cli.StringFlag{
						Name:  "incident",
						Usage: "incident the entity is responding to",
					},
					&cli.Float64Flag{
						Name:     "lat",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     "lng",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					update, err := SyntheticLocation(c.String("incident"), c.String("entity"), c.String("type"), c.Float64("lat"), c.Float64("lng"))
					if err != nil {
						return err
					}

					return withBroker(c.String("broker"), func(ctx context.Context, transport broker.Broker) error {
						return bridge.SendLocation(ctx, transport, update)
					})
				},
			},
		},
	}
}

func withBroker(kind string, publish func(ctx context.Context, transport broker.Broker) error) error {
	if kind == broker.KindMemory {
		return fmt.Errorf("the %s broker is only reachable from inside the relay process", kind)
	}
	if kind == broker.KindRedis {
		if err := redis_client.Connect(); err != nil {
			return err
		}
	}

	transport, err := broker.New(broker.GetConfig(kind))
	if err != nil {
		return err
	}
	defer transport.Close()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := transport.Connect(ctx); err != nil {
		return err
	}

	return publish(ctx, transport)
}

// SyntheticIncident builds a synthetic incident, generating an identifier when none is given
func SyntheticIncident(id string, latitude float64, longitude float64, severity string) (ctdf.Incident, error) {
	if id == "" {
		id = "ACC-TEST-" + strings.ToUpper(uuid.NewString()[:8])
	}

	incident := ctdf.Incident{
		ID:          id,
		Scene:       ctdf.NewGeoPoint(latitude, longitude),
		Description: "Synthetic test incident",
		Severity:    severity,
		ReportedAt:  time.Now(),
	}

	if !incident.Scene.Valid() {
		return incident, fmt.Errorf("scene %f,%f is not a valid coordinate", latitude, longitude)
	}

	return incident, nil
}

func SyntheticLocation(incidentID string, entityID string, entityType string, latitude float64, longitude float64) (ctdf.LocationUpdate, error) {
	update := ctdf.LocationUpdate{
		AccidentID: incidentID,
		EntityID:   entityID,
		EntityType: ctdf.EntityType(entityType),
		Location:   ctdf.NewGeoPoint(latitude, longitude),
	}
	update.Normalise(time.Now())

	if !update.Location.Valid() {
		return update, ctdf.ErrInvalidLocation
	}

	return update, nil
}
