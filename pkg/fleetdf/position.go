package fleetdf

import "time"

// PositionSample is a single vehicle position report from the telemetry
// source. Immutable once created, one per vehicle per poll.
type PositionSample struct {
	VehicleRef string `groups:"basic"`

	Location Location `groups:"basic"`

	RecordedAt time.Time `groups:"basic"`

	// IgnitionOn is nil when the source did not report an engine state
	IgnitionOn *bool `groups:"basic"`
}
