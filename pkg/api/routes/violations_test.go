package routes

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/gofiber/fiber/v2"
)

type mockViolationStore struct {
	records map[string]fleetdf.ViolationRecord
	active  map[string]bool
}

func (s *mockViolationStore) Violations() []fleetdf.ViolationRecord {
	var records []fleetdf.ViolationRecord
	for _, record := range s.records {
		records = append(records, record)
	}
	return records
}

func (s *mockViolationStore) Record(vehicleRef string) (fleetdf.ViolationRecord, bool) {
	record, exists := s.records[vehicleRef]
	return record, exists
}

func (s *mockViolationStore) Acknowledge(vehicleRef string) *fleetdf.ViolationEvent {
	if !s.active[vehicleRef] {
		return nil
	}

	return &fleetdf.ViolationEvent{
		VehicleRef: vehicleRef,
		Kind:       fleetdf.ViolationKindBoundary,
		Transition: fleetdf.ViolationTransitionAcknowledged,
		Timestamp:  time.Now(),
	}
}

type failingPublisher struct {
	err   error
	calls int
}

func (p *failingPublisher) Publish(event *fleetdf.ViolationEvent) error {
	p.calls += 1
	return p.err
}

func newViolationsApp(store *mockViolationStore, publisher EventPublisher) *fiber.App {
	app := fiber.New()
	ViolationsRouter(app.Group("/violations"), store, publisher)
	return app
}

func TestAcknowledge_PublishesEvent(t *testing.T) {
	store := &mockViolationStore{active: map[string]bool{"TRUCK-1": true}}
	publisher := &failingPublisher{}
	app := newViolationsApp(store, publisher)

	resp, err := app.Test(httptest.NewRequest("POST", "/violations/TRUCK-1/acknowledge", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if publisher.calls != 1 {
		t.Errorf("expected 1 publish call, got %d", publisher.calls)
	}
}

func TestAcknowledge_PublishFailureStillSucceeds(t *testing.T) {
	store := &mockViolationStore{active: map[string]bool{"TRUCK-1": true}}
	publisher := &failingPublisher{err: errors.New("queue unavailable")}
	app := newViolationsApp(store, publisher)

	// the acknowledgement itself took effect, a failed event publish is
	// logged but must not fail the request
	resp, err := app.Test(httptest.NewRequest("POST", "/violations/TRUCK-1/acknowledge", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if publisher.calls != 1 {
		t.Errorf("expected 1 publish call, got %d", publisher.calls)
	}
}

func TestAcknowledge_NoActiveViolation(t *testing.T) {
	store := &mockViolationStore{active: map[string]bool{}}
	publisher := &failingPublisher{}
	app := newViolationsApp(store, publisher)

	resp, err := app.Test(httptest.NewRequest("POST", "/violations/TRUCK-1/acknowledge", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if publisher.calls != 0 {
		t.Errorf("expected no publish calls, got %d", publisher.calls)
	}
}
