package events

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetguard/fleetguard/pkg/consumer"
	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/fleetguard/fleetguard/pkg/elastic_client"
	"github.com/fleetguard/fleetguard/pkg/monitor"
	"github.com/fleetguard/fleetguard/pkg/redis_client"
	"github.com/fleetguard/fleetguard/pkg/webfleet"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Provides the violation alert dispatch runner",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the violation event dispatcher",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					buzzer, err := webfleet.NewClientFromEnvironment()
					if err != nil {
						log.Warn().Err(err).Msg("Running without buzzer dispatch")
						buzzer = nil
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       monitor.ViolationEventsQueueName,
						NumberConsumers: 2,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewViolationEventBatchConsumer(buzzer),
					}
					redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
		},
	}
}
