package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createReferenceDataIndexes()
	createViolationEventIndexes()
}

func createReferenceDataIndexes() {
	geofencesCollection := GetCollection("geofences")
	geofencesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := geofencesCollection.Indexes().CreateMany(context.Background(), geofencesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	policiesCollection := GetCollection("policies")
	policiesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "vehicles", Value: 1}},
		},
	}

	opts = options.CreateIndexes()
	_, err = policiesCollection.Indexes().CreateMany(context.Background(), policiesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createViolationEventIndexes() {
	violationEventsCollection := GetCollection("violation_events")
	violationEventsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "vehicle_ref", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := violationEventsCollection.Indexes().CreateMany(context.Background(), violationEventsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
