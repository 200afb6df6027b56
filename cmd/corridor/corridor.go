package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/api"
	"github.com/travigo/corridor/pkg/events"
	"github.com/travigo/corridor/pkg/fixtures"
	"github.com/travigo/corridor/pkg/notify"
	"github.com/urfave/cli/v2"
)

func main() {
	if os.Getenv("CORRIDOR_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("CORRIDOR_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "corridor",
		Description: "Green corridor control and realtime relay for emergency responders",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			fixtures.RegisterCLI(),
			notify.RegisterCLI(),
			events.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
