package compliance

import (
	"sync"
	"time"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCooldown = 5 * time.Minute
	DefaultTimeout  = 30 * time.Minute
)

// Tracker owns the in-memory violation table and the debounce, cooldown
// and expiry rules around it. One tracker per monitoring session - it is
// created at session start, torn down at stop, and never persisted.
//
// All mutation goes through a single mutex so scheduler commits and
// asynchronous operator acknowledgements cannot lose updates.
type Tracker struct {
	mutex sync.Mutex

	records map[string]*fleetdf.ViolationRecord

	// Last alert per vehicle, kept across cleared records so the
	// cooldown still applies to a vehicle that re-offends immediately
	lastAlert map[string]time.Time

	cooldown time.Duration
	timeout  time.Duration

	now func() time.Time
}

func NewTracker(cooldown time.Duration, timeout time.Duration) *Tracker {
	return &Tracker{
		records:   map[string]*fleetdf.ViolationRecord{},
		lastAlert: map[string]time.Time{},
		cooldown:  cooldown,
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetClock swaps the time source, for tests driving the state machine
// without a live clock.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Apply feeds one classification result through the state machine and
// returns the transition event it produced, if any.
func (t *Tracker) Apply(result *fleetdf.ComplianceResult) *fleetdf.ViolationEvent {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	currentTime := t.now()
	record := t.records[result.VehicleRef]

	if result.Class != fleetdf.ComplianceClassViolation {
		if record == nil {
			return nil
		}

		// Pending never alerted, so it decays silently
		if record.State == fleetdf.ViolationStatePending {
			delete(t.records, result.VehicleRef)
			return nil
		}

		delete(t.records, result.VehicleRef)
		return &fleetdf.ViolationEvent{
			VehicleRef: result.VehicleRef,
			Kind:       record.Kind,
			Transition: fleetdf.ViolationTransitionCleared,
			StartedAt:  record.StartedAt,
			Timestamp:  currentTime,
			Location:   result.Sample.Location,
		}
	}

	if record == nil {
		t.records[result.VehicleRef] = &fleetdf.ViolationRecord{
			VehicleRef:      result.VehicleRef,
			State:           fleetdf.ViolationStatePending,
			Kind:            result.Kind,
			StartedAt:       result.Sample.RecordedAt,
			LastConfirmedAt: currentTime,
			LastLocation:    result.Sample.Location,
		}

		return nil
	}

	record.Kind = result.Kind
	record.LastConfirmedAt = currentTime
	record.LastLocation = result.Sample.Location

	switch record.State {
	case fleetdf.ViolationStatePending:
		// A confirming sample promotes to Active once the cooldown
		// since the vehicle's previous alert has lapsed
		if !t.cooldownElapsed(result.VehicleRef, currentTime) {
			return nil
		}

		record.State = fleetdf.ViolationStateActive
		t.lastAlert[result.VehicleRef] = currentTime

		return &fleetdf.ViolationEvent{
			VehicleRef:  result.VehicleRef,
			Kind:        record.Kind,
			Transition:  fleetdf.ViolationTransitionEntered,
			StartedAt:   record.StartedAt,
			Timestamp:   currentTime,
			Location:    record.LastLocation,
			ShouldAlert: true,
		}

	case fleetdf.ViolationStateActive:
		// Already alerted - only re-fire once the cooldown lapses
		if !t.cooldownElapsed(result.VehicleRef, currentTime) {
			return nil
		}

		t.lastAlert[result.VehicleRef] = currentTime

		return &fleetdf.ViolationEvent{
			VehicleRef:  result.VehicleRef,
			Kind:        record.Kind,
			Transition:  fleetdf.ViolationTransitionRefreshed,
			StartedAt:   record.StartedAt,
			Timestamp:   currentTime,
			Location:    record.LastLocation,
			ShouldAlert: true,
		}
	}

	// Acknowledged stays silenced until it clears or times out
	return nil
}

func (t *Tracker) cooldownElapsed(vehicleRef string, currentTime time.Time) bool {
	lastAlert, alerted := t.lastAlert[vehicleRef]
	if !alerted {
		return true
	}

	return currentTime.Sub(lastAlert) >= t.cooldown
}

// Acknowledge silences an Active violation. The record stays tracked
// until it clears or times out.
func (t *Tracker) Acknowledge(vehicleRef string) *fleetdf.ViolationEvent {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	record := t.records[vehicleRef]
	if record == nil || record.State != fleetdf.ViolationStateActive {
		return nil
	}

	currentTime := t.now()
	record.State = fleetdf.ViolationStateAcknowledged

	return &fleetdf.ViolationEvent{
		VehicleRef: vehicleRef,
		Kind:       record.Kind,
		Transition: fleetdf.ViolationTransitionAcknowledged,
		StartedAt:  record.StartedAt,
		Timestamp:  currentTime,
		Location:   record.LastLocation,
	}
}

// ExpireStale sweeps the table. Pending entries with no confirmation
// within the cooldown window decay silently; Active and Acknowledged
// entries unconfirmed for longer than the timeout emit timedOut - a
// safety expiry for when telemetry stops arriving, not a correctness
// guarantee.
func (t *Tracker) ExpireStale() []*fleetdf.ViolationEvent {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	currentTime := t.now()
	var events []*fleetdf.ViolationEvent

	for vehicleRef, record := range t.records {
		age := currentTime.Sub(record.LastConfirmedAt)

		if record.State == fleetdf.ViolationStatePending {
			if age > t.cooldown {
				delete(t.records, vehicleRef)
			}
			continue
		}

		if age > t.timeout {
			log.Info().
				Str("vehicle", vehicleRef).
				Dur("age", age).
				Msg("Expiring stale violation record")

			delete(t.records, vehicleRef)
			events = append(events, &fleetdf.ViolationEvent{
				VehicleRef: vehicleRef,
				Kind:       record.Kind,
				Transition: fleetdf.ViolationTransitionTimedOut,
				StartedAt:  record.StartedAt,
				Timestamp:  currentTime,
				Location:   record.LastLocation,
			})
		}
	}

	return events
}

// Violations returns a copy of every currently tracked record.
func (t *Tracker) Violations() []fleetdf.ViolationRecord {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var records []fleetdf.ViolationRecord
	for _, record := range t.records {
		records = append(records, *record)
	}

	return records
}

// Record returns a copy of one vehicle's record, if it has one.
func (t *Tracker) Record(vehicleRef string) (fleetdf.ViolationRecord, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	record := t.records[vehicleRef]
	if record == nil {
		return fleetdf.ViolationRecord{}, false
	}

	return *record, true
}

// Reset drops every record, used at monitoring session teardown.
func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.records = map[string]*fleetdf.ViolationRecord{}
	t.lastAlert = map[string]time.Time{}
}
