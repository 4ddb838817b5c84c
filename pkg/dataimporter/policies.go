package dataimporter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/fleetguard/fleetguard/pkg/policies"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

type policyDocument struct {
	Identifier string   `yaml:"identifier"`
	Name       string   `yaml:"name"`
	Vehicles   []string `yaml:"vehicles"`

	SpatialRules []struct {
		Geofence string `yaml:"geofence"`
		Access   string `yaml:"access"`
	} `yaml:"spatialrules"`

	TemporalRules []struct {
		Windows []struct {
			Days  []string `yaml:"days"`
			Start string   `yaml:"start"`
			End   string   `yaml:"end"`
		} `yaml:"windows"`
	} `yaml:"temporalrules"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ImportPolicies loads policy definitions from a YAML file (any number
// of documents) and upserts them into Mongo. Geofence references are
// validated against the already imported geofences.
func ImportPolicies(path string) error {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	registry := policies.NewRegistry()
	if err := registry.LoadFromDatabase(context.Background()); err != nil {
		return err
	}

	policiesCollection := database.GetCollection("policies")
	decoder := yaml.NewDecoder(bytes.NewReader(fileBytes))

	imported := 0
	for {
		var document policyDocument
		if decoder.Decode(&document) != nil {
			break
		}

		policy, err := document.toPolicy()
		if err != nil {
			log.Error().Err(err).Str("policy", document.Identifier).Msg("Skipping invalid policy document")
			continue
		}

		// Eager validation against the loaded geofence set
		if err := registry.AddPolicy(policy); err != nil {
			log.Error().Err(err).Str("policy", policy.PrimaryIdentifier).Msg("Skipping invalid policy document")
			continue
		}

		searchQuery := bson.M{"primaryidentifier": policy.PrimaryIdentifier}
		opts := options.Replace().SetUpsert(true)

		_, err = policiesCollection.ReplaceOne(context.Background(), searchQuery, policy, opts)
		if err != nil {
			return err
		}

		imported += 1
	}

	log.Info().Int("imported", imported).Str("file", path).Msg("Imported policies")

	return nil
}

func (d *policyDocument) toPolicy() (*fleetdf.Policy, error) {
	if d.Identifier == "" {
		return nil, fmt.Errorf("policy document has no identifier")
	}

	policy := &fleetdf.Policy{
		PrimaryIdentifier: d.Identifier,
		Name:              d.Name,
		Vehicles:          d.Vehicles,
	}

	for _, rule := range d.SpatialRules {
		policy.SpatialRules = append(policy.SpatialRules, fleetdf.SpatialRule{
			GeofenceRef: rule.Geofence,
			Access:      fleetdf.SpatialAccess(rule.Access),
		})
	}

	for _, rule := range d.TemporalRules {
		temporalRule := fleetdf.TemporalRule{}

		for _, window := range rule.Windows {
			weeklyWindow := fleetdf.WeeklyWindow{}

			for _, dayName := range window.Days {
				day, known := weekdayNames[strings.ToLower(dayName)]
				if !known {
					return nil, fmt.Errorf("unknown weekday %q", dayName)
				}

				weeklyWindow.Days = append(weeklyWindow.Days, day)
			}

			start, err := fleetdf.ParseMinuteOfDay(window.Start)
			if err != nil {
				return nil, err
			}

			end, err := fleetdf.ParseMinuteOfDay(window.End)
			if err != nil {
				return nil, err
			}

			weeklyWindow.Start = start
			weeklyWindow.End = end

			temporalRule.PermittedWindows = append(temporalRule.PermittedWindows, weeklyWindow)
		}

		policy.TemporalRules = append(policy.TemporalRules, temporalRule)
	}

	return policy, nil
}
