package fleetdf

// SpatialAccess fixes what being inside the referenced geofence means
// for the vehicle.
type SpatialAccess string

const (
	// Vehicle must remain inside the geofence ("inside = allowed").
	// Leaving it is an out of bounds condition.
	SpatialAccessAllowed SpatialAccess = "allowed"

	// Vehicle must stay out of the geofence ("inside = restricted"),
	// e.g. a low bridge exclusion zone. Entering it is an immediate
	// violation.
	SpatialAccessRestricted SpatialAccess = "restricted"
)

type SpatialRule struct {
	GeofenceRef string        `groups:"basic" bson:"geofenceref"`
	Access      SpatialAccess `groups:"basic" bson:"access"`
}

// Policy is the ordered rule set assigned to a vehicle. A policy with no
// rules at all is "Full Use" - unrestricted.
type Policy struct {
	PrimaryIdentifier string `groups:"basic" bson:"primaryidentifier"`
	Name              string `groups:"basic" bson:"name"`

	SpatialRules  []SpatialRule  `groups:"basic" bson:"spatialrules,omitempty"`
	TemporalRules []TemporalRule `groups:"basic" bson:"temporalrules,omitempty"`

	// Vehicles currently assigned to this policy
	Vehicles []string `groups:"basic" bson:"vehicles,omitempty"`
}

func (p *Policy) IsUnrestricted() bool {
	return len(p.SpatialRules) == 0 && len(p.TemporalRules) == 0
}

// Validate checks rule shape and that every referenced geofence resolves
// and is itself well formed.
func (p *Policy) Validate(geofences map[string]*Geofence) error {
	for _, rule := range p.SpatialRules {
		if rule.Access != SpatialAccessAllowed && rule.Access != SpatialAccessRestricted {
			return NewConfigurationError(p.PrimaryIdentifier, "spatial rule access must be allowed or restricted")
		}

		geofence, exists := geofences[rule.GeofenceRef]
		if !exists {
			return NewConfigurationError(p.PrimaryIdentifier, "spatial rule references unknown geofence "+rule.GeofenceRef)
		}

		if err := geofence.Validate(); err != nil {
			return err
		}
	}

	for _, rule := range p.TemporalRules {
		for _, window := range rule.PermittedWindows {
			if err := window.Validate(); err != nil {
				return NewConfigurationError(p.PrimaryIdentifier, err.Error())
			}
		}
	}

	return nil
}
