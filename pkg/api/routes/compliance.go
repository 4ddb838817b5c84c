package routes

import (
	"context"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

type SnapshotSource interface {
	Latest(ctx context.Context) (*fleetdf.ComplianceSnapshot, error)
}

func ComplianceRouter(router fiber.Router, snapshots SnapshotSource) {
	router.Get("/", func(c *fiber.Ctx) error {
		snapshot, err := snapshots.Latest(c.Context())
		if err != nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "No compliance snapshot available yet",
			})
		}

		snapshotReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, snapshot)

		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce snapshot",
			})
		}

		return c.JSON(snapshotReduced)
	})
}
