package policies

import (
	"testing"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
)

func depotGeofence() *fleetdf.Geofence {
	return &fleetdf.Geofence{
		PrimaryIdentifier: "depot",
		Name:              "Depot",
		Boundary: []fleetdf.Location{
			fleetdf.NewLocation(0, 0),
			fleetdf.NewLocation(0, 10),
			fleetdf.NewLocation(10, 10),
			fleetdf.NewLocation(10, 0),
		},
	}
}

func TestRegistry_AddGeofenceRejectsInvalid(t *testing.T) {
	registry := NewRegistry()

	geofence := &fleetdf.Geofence{
		PrimaryIdentifier: "broken",
		Boundary: []fleetdf.Location{
			fleetdf.NewLocation(0, 0),
		},
	}

	if err := registry.AddGeofence(geofence); err == nil {
		t.Fatalf("expected error for degenerate geofence")
	}
	if registry.Geofence("broken") != nil {
		t.Errorf("expected invalid geofence not stored")
	}
}

func TestRegistry_AddPolicyRejectsUnknownGeofenceRef(t *testing.T) {
	registry := NewRegistry()

	policy := &fleetdf.Policy{
		PrimaryIdentifier: "dangling",
		SpatialRules: []fleetdf.SpatialRule{
			{GeofenceRef: "no-such-fence", Access: fleetdf.SpatialAccessAllowed},
		},
	}

	if err := registry.AddPolicy(policy); err == nil {
		t.Fatalf("expected error for unknown geofence reference")
	}
}

func TestRegistry_PolicyAssignmentFromPolicyDocument(t *testing.T) {
	registry := NewRegistry()

	if err := registry.AddGeofence(depotGeofence()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	policy := &fleetdf.Policy{
		PrimaryIdentifier: "depot-only",
		SpatialRules: []fleetdf.SpatialRule{
			{GeofenceRef: "depot", Access: fleetdf.SpatialAccessAllowed},
		},
		Vehicles: []string{"TRUCK-1", "TRUCK-2"},
	}

	if err := registry.AddPolicy(policy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assigned := registry.PolicyFor("TRUCK-1")
	if assigned == nil || assigned.PrimaryIdentifier != "depot-only" {
		t.Errorf("expected TRUCK-1 assigned to depot-only")
	}
}

func TestRegistry_UnassignedVehicleGetsNil(t *testing.T) {
	registry := NewRegistry()

	if registry.PolicyFor("TRUCK-99") != nil {
		t.Errorf("expected nil policy for unassigned vehicle")
	}
}

func TestRegistry_AssignPolicyLastWriteWins(t *testing.T) {
	registry := NewRegistry()

	if err := registry.AddGeofence(depotGeofence()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := &fleetdf.Policy{
		PrimaryIdentifier: "depot-only",
		SpatialRules: []fleetdf.SpatialRule{
			{GeofenceRef: "depot", Access: fleetdf.SpatialAccessAllowed},
		},
		Vehicles: []string{"TRUCK-1"},
	}
	second := &fleetdf.Policy{
		PrimaryIdentifier: "full-use",
	}

	if err := registry.AddPolicy(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.AddPolicy(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := registry.AssignPolicy("TRUCK-1", "full-use"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assigned := registry.PolicyFor("TRUCK-1")
	if assigned == nil || assigned.PrimaryIdentifier != "full-use" {
		t.Errorf("expected reassignment to replace the previous policy")
	}
}

func TestRegistry_AssignPolicyUnknownPolicy(t *testing.T) {
	registry := NewRegistry()

	if err := registry.AssignPolicy("TRUCK-1", "no-such-policy"); err == nil {
		t.Errorf("expected error assigning unknown policy")
	}
}
