package api

import (
	"os"

	"github.com/fleetguard/fleetguard/pkg/api/routes"
	"github.com/gofiber/fiber/v2"
)

// Dependencies are the live engine components the API exposes. The API
// runs inside the monitor process - the violation table is volatile and
// only exists there.
type Dependencies struct {
	Snapshots  routes.SnapshotSource
	Violations routes.ViolationStore
	Publisher  routes.EventPublisher
	Geofences  routes.GeofenceSource
}

func SetupServer(listen string, deps Dependencies) error {
	webApp := fiber.New()

	webApp.Use(NewLogger())

	webApp.Get("version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "fleetguard"})
	})

	complianceGroup := webApp.Group("/compliance")
	routes.ComplianceRouter(complianceGroup, deps.Snapshots)

	violationsGroup := webApp.Group("/violations")
	if os.Getenv("FLEETGUARD_AUTH0_DOMAIN") != "" {
		violationsGroup.Use(EnsureValidToken())
	}
	routes.ViolationsRouter(violationsGroup, deps.Violations, deps.Publisher)

	geofencesGroup := webApp.Group("/geofences")
	routes.GeofencesRouter(geofencesGroup, deps.Geofences)

	return webApp.Listen(listen)
}
