package main

import (
	"os"
	"time"

	"github.com/fleetguard/fleetguard/pkg/dataimporter"
	"github.com/fleetguard/fleetguard/pkg/events"
	"github.com/fleetguard/fleetguard/pkg/monitor"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("FLEETGUARD_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("FLEETGUARD_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "fleetguard",
		Description: "Single binary of truth for FleetGuard - runs all the services",

		Commands: []*cli.Command{
			monitor.RegisterCLI(),
			events.RegisterCLI(),
			dataimporter.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
