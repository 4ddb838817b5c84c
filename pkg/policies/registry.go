package policies

import (
	"context"
	"sync"

	"github.com/fleetguard/fleetguard/pkg/database"
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

// Registry holds the geofence and policy reference data for a
// monitoring session. The engine treats it as read only between loads;
// assignment updates are last-write-wins per vehicle.
type Registry struct {
	mutex sync.RWMutex

	geofences map[string]*fleetdf.Geofence
	policies  map[string]*fleetdf.Policy

	// vehicle ref -> policy identifier
	assignments map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		geofences:   map[string]*fleetdf.Geofence{},
		policies:    map[string]*fleetdf.Policy{},
		assignments: map[string]string{},
	}
}

// LoadFromDatabase pulls every geofence and policy document from Mongo.
// Entities that fail validation are reported and skipped - one bad
// polygon must not take monitoring down.
func (r *Registry) LoadFromDatabase(ctx context.Context) error {
	geofencesCollection := database.GetCollection("geofences")

	cursor, err := geofencesCollection.Find(ctx, bson.M{})
	if err != nil {
		return err
	}

	var geofences []*fleetdf.Geofence
	if err := cursor.All(ctx, &geofences); err != nil {
		return err
	}

	for _, geofence := range geofences {
		if err := r.AddGeofence(geofence); err != nil {
			log.Error().Err(err).Str("geofence", geofence.PrimaryIdentifier).Msg("Skipping invalid geofence")
		}
	}

	policiesCollection := database.GetCollection("policies")

	cursor, err = policiesCollection.Find(ctx, bson.M{})
	if err != nil {
		return err
	}

	var policies []*fleetdf.Policy
	if err := cursor.All(ctx, &policies); err != nil {
		return err
	}

	for _, policy := range policies {
		if err := r.AddPolicy(policy); err != nil {
			log.Error().Err(err).Str("policy", policy.PrimaryIdentifier).Msg("Skipping invalid policy")
		}
	}

	log.Info().
		Int("geofences", len(r.geofences)).
		Int("policies", len(r.policies)).
		Int("vehicles", len(r.assignments)).
		Msg("Loaded policy registry")

	return nil
}

func (r *Registry) AddGeofence(geofence *fleetdf.Geofence) error {
	if err := geofence.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.geofences[geofence.PrimaryIdentifier] = geofence

	return nil
}

func (r *Registry) AddPolicy(policy *fleetdf.Policy) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := policy.Validate(r.geofences); err != nil {
		return err
	}

	r.policies[policy.PrimaryIdentifier] = policy

	for _, vehicleRef := range policy.Vehicles {
		r.assignments[vehicleRef] = policy.PrimaryIdentifier
	}

	return nil
}

// AssignPolicy maps a vehicle to a policy, replacing any previous
// assignment.
func (r *Registry) AssignPolicy(vehicleRef string, policyIdentifier string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.policies[policyIdentifier]; !exists {
		return fleetdf.NewConfigurationError(policyIdentifier, "cannot assign unknown policy")
	}

	r.assignments[vehicleRef] = policyIdentifier

	return nil
}

// PolicyFor resolves a vehicle's policy. Vehicles with no assignment
// are Full Use and get nil.
func (r *Registry) PolicyFor(vehicleRef string) *fleetdf.Policy {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	policyIdentifier, assigned := r.assignments[vehicleRef]
	if !assigned {
		return nil
	}

	return r.policies[policyIdentifier]
}

// Geofence implements compliance.GeofenceLookup.
func (r *Registry) Geofence(ref string) *fleetdf.Geofence {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.geofences[ref]
}

func (r *Registry) Geofences() []*fleetdf.Geofence {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var geofences []*fleetdf.Geofence
	for _, geofence := range r.geofences {
		geofences = append(geofences, geofence)
	}

	return geofences
}
