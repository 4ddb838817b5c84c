package monitor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetguard/fleetguard/pkg/api"
	"github.com/fleetguard/fleetguard/pkg/compliance"
	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/fleetguard/fleetguard/pkg/policies"
	"github.com/fleetguard/fleetguard/pkg/redis_client"
	"github.com/fleetguard/fleetguard/pkg/webfleet"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Realtime policy compliance monitoring engine",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the compliance monitoring engine",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web API",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					config := GetConfig()
					if err := config.Validate(); err != nil {
						log.Fatal().Err(err).Msg("Invalid monitor configuration")
					}

					registry := policies.NewRegistry()
					if err := registry.LoadFromDatabase(context.Background()); err != nil {
						return err
					}

					source, err := webfleet.NewClientFromEnvironment()
					if err != nil {
						return err
					}

					publisher, err := NewQueuePublisher()
					if err != nil {
						return err
					}

					tracker := compliance.NewTracker(config.DebounceCooldown, config.ViolationTimeout)
					evaluator := compliance.NewEvaluator(registry, config.Timezone, config.EnforceTemporal)

					engine := NewMonitor(source, registry, evaluator, tracker, publisher, config)
					engine.Snapshots = CreateSnapshotCache(config.ViolationTimeout)

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					go engine.Run(ctx)

					go func() {
						dependencies := api.Dependencies{
							Snapshots:  engine,
							Violations: tracker,
							Publisher:  publisher,
							Geofences:  registry,
						}

						if err := api.SetupServer(c.String("listen"), dependencies); err != nil {
							log.Fatal().Err(err).Msg("Web API server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()

					return nil
				},
			},
			{
				Name:  "cycle",
				Usage: "run a single evaluation cycle and print the resulting delta",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					config := GetConfig()
					if err := config.Validate(); err != nil {
						log.Fatal().Err(err).Msg("Invalid monitor configuration")
					}

					registry := policies.NewRegistry()
					if err := registry.LoadFromDatabase(context.Background()); err != nil {
						return err
					}

					source, err := webfleet.NewClientFromEnvironment()
					if err != nil {
						return err
					}

					tracker := compliance.NewTracker(config.DebounceCooldown, config.ViolationTimeout)
					evaluator := compliance.NewEvaluator(registry, config.Timezone, config.EnforceTemporal)

					engine := NewMonitor(source, registry, evaluator, tracker, nil, config)

					delta, err := engine.RunCycle(context.Background())
					if err != nil {
						return err
					}

					pretty.Println(delta)

					return nil
				},
			},
		},
	}
}
