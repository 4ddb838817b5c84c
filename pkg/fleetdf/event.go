package fleetdf

import (
	"encoding/json"
	"time"
)

type ViolationTransition string

const (
	ViolationTransitionEntered      ViolationTransition = "entered"
	ViolationTransitionRefreshed    ViolationTransition = "refreshed"
	ViolationTransitionCleared      ViolationTransition = "cleared"
	ViolationTransitionAcknowledged ViolationTransition = "acknowledged"
	ViolationTransitionTimedOut     ViolationTransition = "timedOut"
)

// ViolationEvent is the payload the alert dispatch collaborators
// (dashboard panel, buzzer trigger, log) subscribe to.
type ViolationEvent struct {
	VehicleRef string `groups:"basic" json:"vehicle_ref" bson:"vehicle_ref"`

	Kind       ViolationKind       `groups:"basic" json:"kind" bson:"kind"`
	Transition ViolationTransition `groups:"basic" json:"transition" bson:"transition"`

	StartedAt time.Time `groups:"basic" json:"started_at" bson:"started_at"`
	Timestamp time.Time `groups:"basic" json:"timestamp" bson:"timestamp"`

	Location Location `groups:"basic" json:"location" bson:"location"`

	// ShouldAlert marks events that warrant a fresh physical alert -
	// an entered transition, or a refresh after the cooldown lapsed
	ShouldAlert bool `groups:"basic" json:"should_alert" bson:"should_alert"`
}

func (e *ViolationEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}
