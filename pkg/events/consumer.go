package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/fleetguard/fleetguard/pkg/elastic_client"
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/fleetguard/fleetguard/pkg/util"
	"github.com/fleetguard/fleetguard/pkg/webfleet"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
)

const defaultBuzzerOutputName = "Low Bridge"
const defaultBuzzerDuration = 5

// The default filter only fires the physical output for events the
// tracker flagged for alerting
const defaultAlertFilter = "ShouldAlert"

// ViolationEventBatchConsumer fans each violation event out to the
// alert surfaces: the Mongo alert log, Elasticsearch (if configured)
// and the vehicle's external buzzer output.
type ViolationEventBatchConsumer struct {
	buzzer *webfleet.Client

	buzzerOutputName string
	buzzerDuration   int

	alertFilter *vm.Program

	debug bool
}

func NewViolationEventBatchConsumer(buzzer *webfleet.Client) *ViolationEventBatchConsumer {
	consumer := &ViolationEventBatchConsumer{
		buzzer: buzzer,

		buzzerOutputName: util.GetEnvironmentDefault("FLEETGUARD_BUZZER_OUTPUT", defaultBuzzerOutputName),
		buzzerDuration:   defaultBuzzerDuration,

		debug: os.Getenv("FLEETGUARD_DEBUG") == "YES",
	}

	if val := os.Getenv("FLEETGUARD_BUZZER_DURATION"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			consumer.buzzerDuration = parsed
		}
	}

	filterSource := util.GetEnvironmentDefault("FLEETGUARD_ALERT_FILTER", defaultAlertFilter)

	program, err := expr.Compile(filterSource, expr.Env(fleetdf.ViolationEvent{}), expr.AsBool())
	if err != nil {
		log.Fatal().Err(err).Str("filter", filterSource).Msg("Failed to compile alert filter")
	}
	consumer.alertFilter = program

	return consumer
}

func (consumer *ViolationEventBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var violationEvent *fleetdf.ViolationEvent
		if err := json.Unmarshal([]byte(payload), &violationEvent); err != nil {
			log.Error().Err(err).Msg("Failed to decode violation event")
			continue
		}

		if consumer.debug {
			pretty.Println(violationEvent)
		}

		consumer.archiveEvent(violationEvent)

		if consumer.shouldDispatchAlert(violationEvent) {
			consumer.triggerBuzzer(violationEvent)
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume violation event")
		}
	}
}

func (consumer *ViolationEventBatchConsumer) shouldDispatchAlert(event *fleetdf.ViolationEvent) bool {
	output, err := expr.Run(consumer.alertFilter, *event)
	if err != nil {
		log.Error().Err(err).Msg("Alert filter evaluation failed")
		return false
	}

	return output.(bool)
}

func (consumer *ViolationEventBatchConsumer) triggerBuzzer(event *fleetdf.ViolationEvent) {
	if consumer.buzzer == nil {
		log.Warn().Str("vehicle", event.VehicleRef).Msg("No buzzer client configured, skipping alert dispatch")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := consumer.buzzer.SwitchOutput(ctx, event.VehicleRef, consumer.buzzerOutputName, true, consumer.buzzerDuration)
	if err != nil {
		log.Error().Err(err).Str("vehicle", event.VehicleRef).Msg("Failed to trigger buzzer output")
	}
}

func (consumer *ViolationEventBatchConsumer) archiveEvent(event *fleetdf.ViolationEvent) {
	violationEventsCollection := database.GetCollection("violation_events")

	_, err := violationEventsCollection.InsertOne(context.Background(), event)
	if err != nil {
		log.Error().Err(err).Str("vehicle", event.VehicleRef).Msg("Failed to archive violation event")
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return
	}

	yearNumber, weekNumber := event.Timestamp.ISOWeek()
	indexName := fmt.Sprintf("fleetguard-violation-events-%d-%d", yearNumber, weekNumber)

	elastic_client.IndexRequest(indexName, bytes.NewReader(eventBytes))
}
