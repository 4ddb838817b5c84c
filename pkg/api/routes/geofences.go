package routes

import (
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

type GeofenceSource interface {
	Geofences() []*fleetdf.Geofence
	Geofence(ref string) *fleetdf.Geofence
}

func GeofencesRouter(router fiber.Router, geofences GeofenceSource) {
	router.Get("/", func(c *fiber.Ctx) error {
		geofencesReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, geofences.Geofences())

		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce geofences",
			})
		}

		return c.JSON(geofencesReduced)
	})

	// Export in the interchange schema the management tooling expects
	router.Get("/:identifier/document", func(c *fiber.Ctx) error {
		geofence := geofences.Geofence(c.Params("identifier"))
		if geofence == nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Unknown geofence",
			})
		}

		document, err := geofence.ToDocument()
		if err != nil {
			c.SendStatus(fiber.StatusUnprocessableEntity)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(document)
	})
}
