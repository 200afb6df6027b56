package api

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/corridor/pkg/auth"
	"github.com/travigo/corridor/pkg/bridge"
	"github.com/travigo/corridor/pkg/broker"
	"github.com/travigo/corridor/pkg/corridor"
	"github.com/travigo/corridor/pkg/elastic_client"
	"github.com/travigo/corridor/pkg/fixtures"
	"github.com/travigo/corridor/pkg/hospitals"
	"github.com/travigo/corridor/pkg/notify"
	"github.com/travigo/corridor/pkg/redis_client"
	"github.com/travigo/corridor/pkg/relay"
	"github.com/travigo/corridor/pkg/signals"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "Provides the realtime relay and corridor engine",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run relay server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "fixtures",
						Value: "data/fixtures",
						Usage: "directory containing the signal, hospital and incident seed data",
					},
					&cli.StringFlag{
						Name:    "broker",
						Value:   broker.KindRedis,
						Usage:   "pub/sub transport: memory, redis, mqtt or stomp",
						EnvVars: []string{"CORRIDOR_BROKER"},
					},
					&cli.BoolFlag{
						Name:  "location-mirror",
						Value: true,
						Usage: "mirror last known locations into redis",
					},
					&cli.BoolFlag{
						Name:  "notify",
						Value: true,
						Usage: "queue case status notifications for downstream services",
					},
				},
				Action: func(c *cli.Context) error {
					brokerConfig := broker.GetConfig(c.String("broker"))
					relayConfig := relay.GetConfig()

					if brokerConfig.Kind == broker.KindRedis || c.Bool("location-mirror") || c.Bool("notify") {
						if err := redis_client.Connect(); err != nil {
							return err
						}
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					verifier, err := auth.GetVerifier()
					if err != nil {
						return err
					}

					fixtureSet, err := fixtures.Load(c.String("fixtures"))
					if err != nil {
						return err
					}

					registry := signals.NewRegistry()
					directory := hospitals.NewStaticDirectory(nil)
					engine := corridor.NewEngine(corridor.GetConfig(), registry, directory)
					fixtureSet.Apply(registry, directory, engine)

					locationCache := relay.NewLocationCache(relayConfig.LocationCacheSize)
					if c.Bool("location-mirror") {
						locationCache.WithMirror(relay.NewRedisMirror(redis_client.Client, relayConfig.LocationMirrorTTL))
					}

					transport, err := broker.New(brokerConfig)
					if err != nil {
						return err
					}

					hub := relay.NewHub(relayConfig, verifier, locationCache).WithForwarder(engine)
					corridorBridge := bridge.NewBridge(transport, hub, engine)
					hub.WithPublisher(corridorBridge)
					engine.AddSink(corridorBridge)

					if c.Bool("notify") {
						producer, err := notify.OpenProducer(redis_client.QueueConnection)
						if err != nil {
							return err
						}
						defer producer.Close()

						engine.AddSink(producer)
					}

					if elastic_client.Client != nil {
						engine.AddSink(elastic_client.NewAuditSink())
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					if err := corridorBridge.Start(ctx); err != nil {
						return err
					}

					webApp := NewApp(Services{
						Engine:    engine,
						Hub:       hub,
						Publisher: corridorBridge,
						Verifier:  verifier,
					})

					var wg conc.WaitGroup
					wg.Go(func() {
						log.Info().Str("listen", c.String("listen")).Str("broker", brokerConfig.Kind).Msg("Starting relay server")

						if err := webApp.Listen(c.String("listen")); err != nil {
							log.Error().Err(err).Msg("Relay server stopped")
						}
					})

					osSignals := make(chan os.Signal, 1)
					signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(osSignals)

					<-osSignals // wait for signal
					go func() {
						<-osSignals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					log.Info().Msg("Shutting down relay server")

					if err := webApp.Shutdown(); err != nil {
						log.Error().Err(err).Msg("Failed to shut down web server")
					}
					wg.Wait()

					hub.Close()
					if err := corridorBridge.Stop(); err != nil {
						log.Error().Err(err).Msg("Failed to close broker")
					}

					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
		},
	}
}
