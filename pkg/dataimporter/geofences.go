package dataimporter

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ImportGeofences loads geofence documents from a JSON file (either a
// single document or an array) and upserts them into Mongo. Documents
// that fail validation are reported and skipped.
func ImportGeofences(path string) error {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var documents []*fleetdf.GeofenceDocument
	if err := json.Unmarshal(fileBytes, &documents); err != nil {
		var document fleetdf.GeofenceDocument
		if err := json.Unmarshal(fileBytes, &document); err != nil {
			return err
		}

		documents = append(documents, &document)
	}

	geofencesCollection := database.GetCollection("geofences")

	imported := 0
	for _, document := range documents {
		geofence, err := document.ToGeofence(identifierFromName(document.Name))
		if err != nil {
			log.Error().Err(err).Str("name", document.Name).Msg("Skipping invalid geofence document")
			continue
		}

		searchQuery := bson.M{"primaryidentifier": geofence.PrimaryIdentifier}
		opts := options.Replace().SetUpsert(true)

		_, err = geofencesCollection.ReplaceOne(context.Background(), searchQuery, geofence, opts)
		if err != nil {
			return err
		}

		imported += 1
	}

	log.Info().Int("imported", imported).Str("file", path).Msg("Imported geofences")

	return nil
}

// ExportGeofence writes one geofence back out in the interchange schema.
func ExportGeofence(identifier string) ([]byte, error) {
	geofencesCollection := database.GetCollection("geofences")

	var geofence *fleetdf.Geofence
	err := geofencesCollection.FindOne(context.Background(), bson.M{"primaryidentifier": identifier}).Decode(&geofence)
	if err != nil {
		return nil, err
	}

	document, err := geofence.ToDocument()
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(document, "", "  ")
}

func identifierFromName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}
