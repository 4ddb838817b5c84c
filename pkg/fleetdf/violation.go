package fleetdf

import "time"

type ViolationState string

const (
	ViolationStateClear ViolationState = "Clear"

	// Unconfirmed possible violation inside the debounce window
	ViolationStatePending ViolationState = "Pending"

	ViolationStateActive ViolationState = "Active"

	// Confirmed but silenced by an operator, still tracked until it
	// clears or times out
	ViolationStateAcknowledged ViolationState = "Acknowledged"
)

// ViolationRecord is the per vehicle entry in the violation table.
// Volatile - a restart resets every vehicle to Clear.
type ViolationRecord struct {
	VehicleRef string `groups:"basic" json:"vehicle_ref"`

	State ViolationState `groups:"basic" json:"state"`
	Kind  ViolationKind  `groups:"basic" json:"kind"`

	StartedAt       time.Time `groups:"basic" json:"started_at"`
	LastConfirmedAt time.Time `groups:"basic" json:"last_confirmed_at"`

	LastLocation Location `groups:"basic" json:"last_location"`
}
