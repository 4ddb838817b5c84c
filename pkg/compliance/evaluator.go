package compliance

import (
	"fmt"
	"time"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/rs/zerolog/log"
)

// GeofenceLookup resolves a spatial rule's geofence reference. Returns
// nil for unknown references.
type GeofenceLookup interface {
	Geofence(ref string) *fleetdf.Geofence
}

// Evaluator classifies a single position sample against a vehicle's
// policy. It is stateless - debounce and lifecycle live in the Tracker.
type Evaluator struct {
	Geofences GeofenceLookup

	// Timezone the temporal rules are evaluated in. One fixed zone for
	// the whole system, DST follows the zone's wall clock.
	Timezone *time.Location

	EnforceTemporal bool

	now func() time.Time
}

func NewEvaluator(geofences GeofenceLookup, timezone *time.Location, enforceTemporal bool) *Evaluator {
	if timezone == nil {
		timezone = time.UTC
	}

	return &Evaluator{
		Geofences:       geofences,
		Timezone:        timezone,
		EnforceTemporal: enforceTemporal,
		now:             time.Now,
	}
}

// SetClock swaps the time source, for tests needing deterministic
// evaluation timestamps.
func (e *Evaluator) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate runs every spatial and temporal rule of the policy against
// the sample. Multiple spatial rules combine with OR on the breached
// side - breaching any one boundary is enough. A nil or empty policy is
// Full Use and always compliant.
//
// Keep-out breaches (inside a restricted fence) classify straight to
// Violation. A keep-in breach alone is only OutOfBounds and never alerts
// by itself.
func (e *Evaluator) Evaluate(policy *fleetdf.Policy, sample fleetdf.PositionSample) (*fleetdf.ComplianceResult, error) {
	if !sample.Location.IsValid() {
		return nil, fmt.Errorf("sample for %s has an invalid location", sample.VehicleRef)
	}

	result := &fleetdf.ComplianceResult{
		VehicleRef:        sample.VehicleRef,
		Class:             fleetdf.ComplianceClassCompliant,
		Kind:              fleetdf.ViolationKindNone,
		TemporalPermitted: true,
		Sample:            sample,
		EvaluatedAt:       e.now(),
	}

	if policy == nil || policy.IsUnrestricted() {
		return result, nil
	}

	keepInBreached := false
	keepOutBreached := false

	for _, rule := range policy.SpatialRules {
		geofence := e.Geofences.Geofence(rule.GeofenceRef)
		if geofence == nil {
			log.Error().
				Str("policy", policy.PrimaryIdentifier).
				Str("geofence", rule.GeofenceRef).
				Msg("Spatial rule references unknown geofence, skipping rule")
			continue
		}

		inside, err := geofence.Contains(sample.Location)
		if err != nil {
			log.Error().Err(err).
				Str("policy", policy.PrimaryIdentifier).
				Str("geofence", rule.GeofenceRef).
				Msg("Skipping unusable geofence")
			continue
		}

		result.EvaluatedGeofences = append(result.EvaluatedGeofences, geofence.PrimaryIdentifier)

		switch rule.Access {
		case fleetdf.SpatialAccessAllowed:
			if !inside {
				keepInBreached = true
			}
		case fleetdf.SpatialAccessRestricted:
			if inside {
				keepOutBreached = true
			}
		}
	}

	if e.EnforceTemporal {
		localTime := sample.RecordedAt.In(e.Timezone)

		for _, rule := range policy.TemporalRules {
			if !rule.IsPermitted(localTime) {
				result.TemporalPermitted = false
				break
			}
		}
	}

	switch {
	case keepOutBreached && !result.TemporalPermitted:
		result.Class = fleetdf.ComplianceClassViolation
		result.Kind = fleetdf.ViolationKindBoundaryTime
	case keepOutBreached:
		result.Class = fleetdf.ComplianceClassViolation
		result.Kind = fleetdf.ViolationKindBoundary
	case keepInBreached && !result.TemporalPermitted:
		result.Class = fleetdf.ComplianceClassViolation
		result.Kind = fleetdf.ViolationKindBoundaryTime
	case keepInBreached:
		result.Class = fleetdf.ComplianceClassOutOfBounds
	case !result.TemporalPermitted:
		result.Class = fleetdf.ComplianceClassViolation
		result.Kind = fleetdf.ViolationKindTime
	}

	return result, nil
}
