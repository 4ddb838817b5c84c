package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetguard/fleetguard/pkg/compliance"
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/fleetguard/fleetguard/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const maxEvaluationGoroutines = 8

// TelemetrySource supplies the latest position batch, the one network
// suspension point per cycle.
type TelemetrySource interface {
	FetchPositions(ctx context.Context, limit int) ([]fleetdf.PositionSample, error)
}

// EventPublisher hands violation events to the alert dispatch side.
type EventPublisher interface {
	Publish(event *fleetdf.ViolationEvent) error
}

// PolicyLookup resolves a vehicle's assigned policy, nil for Full Use.
type PolicyLookup interface {
	PolicyFor(vehicleRef string) *fleetdf.Policy
}

// TransientFetchError marks a failed telemetry fetch. The cycle is
// skipped, no violation state changes, and the loop retries next tick.
type TransientFetchError struct {
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient telemetry fetch failure: %s", e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// CycleDelta is what one evaluation cycle produced: the fleet snapshot
// plus every violation state transition that occurred.
type CycleDelta struct {
	Snapshot *fleetdf.ComplianceSnapshot
	Events   []*fleetdf.ViolationEvent
}

// Monitor drives the evaluation pipeline: fetch positions, classify
// each sample, commit the results into the violation tracker and emit
// the transition delta.
type Monitor struct {
	Source    TelemetrySource
	Policies  PolicyLookup
	Evaluator *compliance.Evaluator
	Tracker   *compliance.Tracker
	Publisher EventPublisher
	Snapshots *SnapshotCache

	Config Config

	busy atomic.Bool

	snapshotMutex sync.RWMutex
	lastSnapshot  *fleetdf.ComplianceSnapshot

	now func() time.Time
}

func NewMonitor(source TelemetrySource, policies PolicyLookup, evaluator *compliance.Evaluator, tracker *compliance.Tracker, publisher EventPublisher, config Config) *Monitor {
	return &Monitor{
		Source:    source,
		Policies:  policies,
		Evaluator: evaluator,
		Tracker:   tracker,
		Publisher: publisher,
		Config:    config,
		now:       time.Now,
	}
}

// Run ticks until the context is cancelled. A tick that fires while the
// previous cycle is still processing is skipped - no unbounded queueing.
func (m *Monitor) Run(ctx context.Context) {
	log.Info().
		Dur("interval", m.Config.PollInterval).
		Bool("realtime", m.Config.RealtimeMonitoring).
		Msg("Starting compliance monitor")

	ticker := time.NewTicker(m.Config.PollInterval)
	defer ticker.Stop()

	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.Tracker.Reset()
			log.Info().Msg("Compliance monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if !m.busy.CompareAndSwap(false, true) {
		log.Warn().Msg("Previous evaluation cycle still running, skipping tick")
		return
	}
	defer m.busy.Store(false)

	startTime := m.now()

	delta, err := m.RunCycle(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Evaluation cycle failed")
		return
	}

	log.Debug().
		Int("vehicles", len(delta.Snapshot.Vehicles)).
		Int("events", len(delta.Events)).
		Str("duration", m.now().Sub(startTime).String()).
		Msg("Evaluation cycle complete")
}

// RunCycle performs a single evaluation cycle. Evaluation across
// vehicles runs in parallel (disjoint keys); committing transitions
// into the tracker is serialized.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleDelta, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.Config.FetchTimeout)
	defer cancel()

	samples, err := m.Source.FetchPositions(fetchCtx, m.Config.ResultsLimit)
	if err != nil {
		m.markSnapshotStale()
		return nil, &TransientFetchError{Err: err}
	}

	if m.Config.RequireIgnition {
		util.InPlaceFilter(&samples, func(sample fleetdf.PositionSample) bool {
			return sample.IgnitionOn == nil || *sample.IgnitionOn
		})
	}

	if len(samples) > m.Config.ResultsLimit {
		samples = samples[:m.Config.ResultsLimit]
	}

	evaluationPool := pool.NewWithResults[*fleetdf.ComplianceResult]().WithMaxGoroutines(maxEvaluationGoroutines)
	for _, sample := range samples {
		evaluationPool.Go(func() *fleetdf.ComplianceResult {
			policy := m.Policies.PolicyFor(sample.VehicleRef)

			result, err := m.Evaluator.Evaluate(policy, sample)
			if err != nil {
				// Bad sample - skip it, the vehicle keeps its prior state
				log.Warn().Err(err).Str("vehicle", sample.VehicleRef).Msg("Skipping unevaluable sample")
				return nil
			}

			return result
		})
	}
	results := evaluationPool.Wait()

	snapshot := &fleetdf.ComplianceSnapshot{
		RecordedAt: m.now(),
		Vehicles:   map[string]*fleetdf.SnapshotEntry{},
	}

	var events []*fleetdf.ViolationEvent

	for _, result := range results {
		if result == nil {
			continue
		}

		if event := m.Tracker.Apply(result); event != nil {
			events = append(events, event)
		}

		snapshot.Vehicles[result.VehicleRef] = &fleetdf.SnapshotEntry{
			VehicleRef:  result.VehicleRef,
			Class:       result.Class,
			Kind:        result.Kind,
			Location:    result.Sample.Location,
			RecordedAt:  result.Sample.RecordedAt,
			EvaluatedAt: result.EvaluatedAt,
		}
	}

	events = append(events, m.Tracker.ExpireStale()...)

	m.storeSnapshot(ctx, snapshot)
	m.publish(events)

	return &CycleDelta{
		Snapshot: snapshot,
		Events:   events,
	}, nil
}

func (m *Monitor) publish(events []*fleetdf.ViolationEvent) {
	if m.Publisher == nil {
		return
	}

	for _, event := range events {
		if err := m.Publisher.Publish(event); err != nil {
			log.Error().Err(err).Str("vehicle", event.VehicleRef).Msg("Failed to publish violation event")
		}
	}
}

func (m *Monitor) storeSnapshot(ctx context.Context, snapshot *fleetdf.ComplianceSnapshot) {
	m.snapshotMutex.Lock()
	m.lastSnapshot = snapshot
	m.snapshotMutex.Unlock()

	if m.Snapshots != nil {
		if err := m.Snapshots.Save(ctx, snapshot); err != nil {
			log.Error().Err(err).Msg("Failed to cache compliance snapshot")
		}
	}
}

// markSnapshotStale keeps the last known snapshot visible on fetch
// failure instead of clearing it. The snapshot is replaced rather than
// mutated - pointers already handed out by Latest may be read
// concurrently.
func (m *Monitor) markSnapshotStale() {
	m.snapshotMutex.Lock()
	defer m.snapshotMutex.Unlock()

	if m.lastSnapshot == nil {
		return
	}

	staleSnapshot := *m.lastSnapshot
	staleSnapshot.Stale = true
	m.lastSnapshot = &staleSnapshot
}

// Latest returns the most recent snapshot, which may be marked stale.
func (m *Monitor) Latest(ctx context.Context) (*fleetdf.ComplianceSnapshot, error) {
	m.snapshotMutex.RLock()
	defer m.snapshotMutex.RUnlock()

	if m.lastSnapshot == nil {
		return nil, fmt.Errorf("no evaluation cycle has completed yet")
	}

	return m.lastSnapshot, nil
}
