package fleetdf

import "fmt"

// ConfigurationError marks a geofence or policy definition as unusable.
// The entity is skipped and reported, it never takes the whole
// evaluation cycle down with it.
type ConfigurationError struct {
	Entity string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Entity, e.Reason)
}

func NewConfigurationError(entity string, reason string) *ConfigurationError {
	return &ConfigurationError{
		Entity: entity,
		Reason: reason,
	}
}
