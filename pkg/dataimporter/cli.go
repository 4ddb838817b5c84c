package dataimporter

import (
	"fmt"

	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Imports geofence and policy reference data",
		Subcommands: []*cli.Command{
			{
				Name:      "geofences",
				Usage:     "import geofence documents from a JSON file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one file argument")
					}

					if err := database.Connect(); err != nil {
						return err
					}

					return ImportGeofences(c.Args().First())
				},
			},
			{
				Name:      "policies",
				Usage:     "import policy definitions from a YAML file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one file argument")
					}

					if err := database.Connect(); err != nil {
						return err
					}

					return ImportPolicies(c.Args().First())
				},
			},
			{
				Name:      "export-geofence",
				Usage:     "print a geofence in the interchange JSON schema",
				ArgsUsage: "<identifier>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one identifier argument")
					}

					if err := database.Connect(); err != nil {
						return err
					}

					documentBytes, err := ExportGeofence(c.Args().First())
					if err != nil {
						return err
					}

					fmt.Println(string(documentBytes))

					return nil
				},
			},
		},
	}
}
