package compliance

import (
	"testing"
	"time"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)}

	tracker := NewTracker(DefaultCooldown, DefaultTimeout)
	tracker.SetClock(clock.Now)

	return tracker, clock
}

func violationResult(vehicleRef string, recordedAt time.Time) *fleetdf.ComplianceResult {
	return &fleetdf.ComplianceResult{
		VehicleRef: vehicleRef,
		Class:      fleetdf.ComplianceClassViolation,
		Kind:       fleetdf.ViolationKindBoundary,
		Sample: fleetdf.PositionSample{
			VehicleRef: vehicleRef,
			Location:   fleetdf.NewLocation(51.5, -0.12),
			RecordedAt: recordedAt,
		},
	}
}

func compliantResult(vehicleRef string, recordedAt time.Time) *fleetdf.ComplianceResult {
	return &fleetdf.ComplianceResult{
		VehicleRef: vehicleRef,
		Class:      fleetdf.ComplianceClassCompliant,
		Sample: fleetdf.PositionSample{
			VehicleRef: vehicleRef,
			Location:   fleetdf.NewLocation(51.6, -0.12),
			RecordedAt: recordedAt,
		},
	}
}

func TestTracker_SingleSampleDoesNotAlert(t *testing.T) {
	tracker, clock := newTestTracker()

	if event := tracker.Apply(violationResult("TRUCK-1", clock.Now())); event != nil {
		t.Fatalf("expected no event on first violation sample, got %s", event.Transition)
	}

	record, exists := tracker.Record("TRUCK-1")
	if !exists {
		t.Fatalf("expected a pending record")
	}
	if record.State != fleetdf.ViolationStatePending {
		t.Errorf("expected pending state, got %s", record.State)
	}
}

func TestTracker_TransientBlipClearsSilently(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	clock.Advance(30 * time.Second)
	if event := tracker.Apply(compliantResult("TRUCK-1", clock.Now())); event != nil {
		t.Fatalf("expected pending record to decay silently, got %s", event.Transition)
	}

	if _, exists := tracker.Record("TRUCK-1"); exists {
		t.Errorf("expected record removed after transient blip")
	}
}

func TestTracker_SecondSampleConfirmsAndAlerts(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	clock.Advance(30 * time.Second)
	event := tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	if event == nil {
		t.Fatalf("expected entered event on confirming sample")
	}
	if event.Transition != fleetdf.ViolationTransitionEntered {
		t.Errorf("expected entered transition, got %s", event.Transition)
	}
	if !event.ShouldAlert {
		t.Errorf("expected entered event to alert")
	}

	record, _ := tracker.Record("TRUCK-1")
	if record.State != fleetdf.ViolationStateActive {
		t.Errorf("expected active state, got %s", record.State)
	}
}

func TestTracker_CooldownSuppressesRepeatAlerts(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	// still within the cooldown window, confirmations stay silent
	for i := 0; i < 5; i++ {
		clock.Advance(30 * time.Second)
		if event := tracker.Apply(violationResult("TRUCK-1", clock.Now())); event != nil {
			t.Fatalf("expected no event within cooldown, got %s", event.Transition)
		}
	}
}

func TestTracker_RefireAfterCooldown(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	clock.Advance(DefaultCooldown)
	event := tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	if event == nil {
		t.Fatalf("expected refreshed event after cooldown")
	}
	if event.Transition != fleetdf.ViolationTransitionRefreshed {
		t.Errorf("expected refreshed transition, got %s", event.Transition)
	}
	if !event.ShouldAlert {
		t.Errorf("expected refreshed event to alert")
	}
}

func TestTracker_ActiveClearEmitsCleared(t *testing.T) {
	tracker, clock := newTestTracker()

	startedAt := clock.Now()
	tracker.Apply(violationResult("TRUCK-1", startedAt))
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	clock.Advance(30 * time.Second)
	event := tracker.Apply(compliantResult("TRUCK-1", clock.Now()))
	if event == nil {
		t.Fatalf("expected cleared event")
	}
	if event.Transition != fleetdf.ViolationTransitionCleared {
		t.Errorf("expected cleared transition, got %s", event.Transition)
	}
	if event.ShouldAlert {
		t.Errorf("cleared events must not alert")
	}
	if !event.StartedAt.Equal(startedAt) {
		t.Errorf("expected cleared event to carry the original start time")
	}

	if _, exists := tracker.Record("TRUCK-1"); exists {
		t.Errorf("expected record removed after clear")
	}
}

func TestTracker_CooldownSurvivesClear(t *testing.T) {
	tracker, clock := newTestTracker()

	// first offence: pending, active, cleared
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	tracker.Apply(compliantResult("TRUCK-1", clock.Now()))

	// immediate re-offence stays pending until the cooldown since the
	// first alert has lapsed
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	if event := tracker.Apply(violationResult("TRUCK-1", clock.Now())); event != nil {
		t.Fatalf("expected re-offence within cooldown to stay silent, got %s", event.Transition)
	}

	clock.Advance(DefaultCooldown)
	event := tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	if event == nil || event.Transition != fleetdf.ViolationTransitionEntered {
		t.Fatalf("expected entered event once cooldown lapsed")
	}
}

func TestTracker_Acknowledge(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	event := tracker.Acknowledge("TRUCK-1")
	if event == nil {
		t.Fatalf("expected acknowledged event")
	}
	if event.Transition != fleetdf.ViolationTransitionAcknowledged {
		t.Errorf("expected acknowledged transition, got %s", event.Transition)
	}

	// acknowledged records stay silenced even past the cooldown
	clock.Advance(DefaultCooldown + time.Minute)
	if event := tracker.Apply(violationResult("TRUCK-1", clock.Now())); event != nil {
		t.Errorf("expected acknowledged record to stay silent, got %s", event.Transition)
	}

	// but still clear normally
	clock.Advance(30 * time.Second)
	event = tracker.Apply(compliantResult("TRUCK-1", clock.Now()))
	if event == nil || event.Transition != fleetdf.ViolationTransitionCleared {
		t.Fatalf("expected acknowledged record to clear")
	}
}

func TestTracker_AcknowledgeWithoutActiveRecord(t *testing.T) {
	tracker, clock := newTestTracker()

	if event := tracker.Acknowledge("TRUCK-1"); event != nil {
		t.Errorf("expected nil for unknown vehicle")
	}

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	if event := tracker.Acknowledge("TRUCK-1"); event != nil {
		t.Errorf("expected nil for pending record")
	}
}

func TestTracker_ExpireStaleTimesOutActive(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	clock.Advance(30 * time.Second)
	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	// telemetry stops arriving
	clock.Advance(DefaultTimeout + time.Minute)

	events := tracker.ExpireStale()
	if len(events) != 1 {
		t.Fatalf("expected 1 timed out event, got %d", len(events))
	}
	if events[0].Transition != fleetdf.ViolationTransitionTimedOut {
		t.Errorf("expected timedOut transition, got %s", events[0].Transition)
	}

	if _, exists := tracker.Record("TRUCK-1"); exists {
		t.Errorf("expected record removed after timeout")
	}
}

func TestTracker_ExpireStaleDecaysPendingSilently(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))

	clock.Advance(DefaultCooldown + time.Minute)

	events := tracker.ExpireStale()
	if len(events) != 0 {
		t.Fatalf("expected pending decay to emit no events, got %d", len(events))
	}
	if _, exists := tracker.Record("TRUCK-1"); exists {
		t.Errorf("expected pending record removed")
	}
}

func TestTracker_IndependentVehicles(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	tracker.Apply(violationResult("TRUCK-2", clock.Now()))

	clock.Advance(30 * time.Second)
	firstEvent := tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	secondEvent := tracker.Apply(violationResult("TRUCK-2", clock.Now()))

	if firstEvent == nil || secondEvent == nil {
		t.Fatalf("expected both vehicles to alert independently")
	}

	if len(tracker.Violations()) != 2 {
		t.Errorf("expected 2 tracked records, got %d", len(tracker.Violations()))
	}
}

func TestTracker_Reset(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Apply(violationResult("TRUCK-1", clock.Now()))
	tracker.Reset()

	if len(tracker.Violations()) != 0 {
		t.Errorf("expected no records after reset")
	}
}
