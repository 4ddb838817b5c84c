package fleetdf

import (
	"encoding/json"
	"time"
)

type ComplianceClass string

const (
	ComplianceClassCompliant   ComplianceClass = "Compliant"
	ComplianceClassOutOfBounds ComplianceClass = "OutOfBounds"
	ComplianceClassViolation   ComplianceClass = "Violation"
)

type ViolationKind string

const (
	ViolationKindNone         ViolationKind = ""
	ViolationKindBoundary     ViolationKind = "boundary"
	ViolationKindTime         ViolationKind = "time"
	ViolationKindBoundaryTime ViolationKind = "boundary+time"
)

// ComplianceResult is the per sample classification for one vehicle.
// Derived data, never stored long term.
type ComplianceResult struct {
	VehicleRef string `groups:"basic"`

	Class ComplianceClass `groups:"basic"`
	Kind  ViolationKind   `groups:"basic"`

	// Geofences that were actually evaluated for the sample
	EvaluatedGeofences []string `groups:"detailed"`

	TemporalPermitted bool `groups:"detailed"`

	Sample      PositionSample `groups:"basic"`
	EvaluatedAt time.Time      `groups:"basic"`
}

// SnapshotEntry is one vehicle's row in a compliance snapshot.
type SnapshotEntry struct {
	VehicleRef string `groups:"basic" json:"vehicle_ref"`

	Class ComplianceClass `groups:"basic" json:"class"`
	Kind  ViolationKind   `groups:"basic" json:"kind,omitempty"`

	Location    Location  `groups:"basic" json:"location"`
	RecordedAt  time.Time `groups:"basic" json:"recorded_at"`
	EvaluatedAt time.Time `groups:"basic" json:"evaluated_at"`
}

// ComplianceSnapshot is the full fleet state after one evaluation cycle.
// Stale is set instead of wiping the snapshot when the telemetry fetch
// fails - the last known state stays visible.
type ComplianceSnapshot struct {
	RecordedAt time.Time `groups:"basic" json:"recorded_at"`
	Stale      bool      `groups:"basic" json:"stale"`

	Vehicles map[string]*SnapshotEntry `groups:"basic" json:"vehicles"`
}

func (s *ComplianceSnapshot) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *ComplianceSnapshot) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
