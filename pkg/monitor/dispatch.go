package monitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/fleetguard/fleetguard/pkg/redis_client"
)

const ViolationEventsQueueName = "violation-events-queue"

// QueuePublisher pushes violation events onto the redis queue the
// dispatch consumers (dashboard, buzzer, log) read from.
type QueuePublisher struct {
	queue rmq.Queue
}

func NewQueuePublisher() (*QueuePublisher, error) {
	queue, err := redis_client.QueueConnection.OpenQueue(ViolationEventsQueueName)
	if err != nil {
		return nil, err
	}

	return &QueuePublisher{queue: queue}, nil
}

func (p *QueuePublisher) Publish(event *fleetdf.ViolationEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.queue.PublishBytes(eventBytes)
}

const snapshotCacheKey = "fleetguard-compliance-snapshot"

// SnapshotCache keeps the latest fleet snapshot in redis so other
// processes (web API, dashboards) can read it without touching the
// engine.
type SnapshotCache struct {
	cache *cache.Cache[*fleetdf.ComplianceSnapshot]
}

func CreateSnapshotCache(expiration time.Duration) *SnapshotCache {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(expiration))

	return &SnapshotCache{
		cache: cache.New[*fleetdf.ComplianceSnapshot](redisStore),
	}
}

func (c *SnapshotCache) Save(ctx context.Context, snapshot *fleetdf.ComplianceSnapshot) error {
	return c.cache.Set(ctx, snapshotCacheKey, snapshot)
}

func (c *SnapshotCache) Get(ctx context.Context) (*fleetdf.ComplianceSnapshot, error) {
	return c.cache.Get(ctx, snapshotCacheKey)
}
