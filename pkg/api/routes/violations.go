package routes

import (
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
)

type ViolationStore interface {
	Violations() []fleetdf.ViolationRecord
	Record(vehicleRef string) (fleetdf.ViolationRecord, bool)
	Acknowledge(vehicleRef string) *fleetdf.ViolationEvent
}

type EventPublisher interface {
	Publish(event *fleetdf.ViolationEvent) error
}

func ViolationsRouter(router fiber.Router, store ViolationStore, publisher EventPublisher) {
	router.Get("/", func(c *fiber.Ctx) error {
		violations := store.Violations()

		violationsReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, violations)

		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce violations",
			})
		}

		return c.JSON(violationsReduced)
	})

	router.Get("/:identifier", func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		record, exists := store.Record(identifier)
		if !exists {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Vehicle has no tracked violation",
			})
		}

		return c.JSON(record)
	})

	router.Post("/:identifier/acknowledge", func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		event := store.Acknowledge(identifier)
		if event == nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Vehicle has no active violation to acknowledge",
			})
		}

		if publisher != nil {
			if err := publisher.Publish(event); err != nil {
				log.Error().Err(err).Str("vehicle", identifier).Msg("Failed to publish violation event")
			}
		}

		return c.JSON(event)
	})
}
