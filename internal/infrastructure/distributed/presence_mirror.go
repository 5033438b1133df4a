// Package distributed mirrors viewer presence into Redis so dashboards
// watching a fleet of hosts can see who is connected where. The in-process
// registry stays the source of truth: every key carries a TTL, so a lost
// write only delays what expiry would fix anyway.
package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"playcast/internal/core/domain"
	"playcast/internal/core/ports"
	"playcast/pkg/batch"
	"playcast/pkg/config"
	dlock "playcast/pkg/distributed"
)

const (
	mirrorBatchSize     = 16
	mirrorBatchInterval = 250 * time.Millisecond
)

// presenceRecord is the JSON document stored per connected peer.
type presenceRecord struct {
	Address     string           `json:"address"`
	SessionID   domain.SessionID `json:"session_id"`
	ConnectedAt time.Time        `json:"connected_at"`
	InstanceID  string           `json:"instance_id"`
}

// presenceEvent is published on the events channel for live watchers.
type presenceEvent struct {
	Type       string    `json:"type"` // "peer.joined" or "peer.left"
	InstanceID string    `json:"instance_id"`
	Address    string    `json:"address"`
	Timestamp  time.Time `json:"timestamp"`
}

// mirrorOperation represents a batched Redis operation
type mirrorOperation struct {
	kind   string // "set", "sadd", "srem", "del", "publish"
	key    string
	value  interface{}
	ttl    time.Duration
	client *redis.Client
}

// Execute executes a single Redis operation
func (op *mirrorOperation) Execute(ctx context.Context) error {
	switch op.kind {
	case "set":
		data, ok := op.value.([]byte)
		if !ok {
			return fmt.Errorf("invalid value type for set operation")
		}
		return op.client.Set(ctx, op.key, data, op.ttl).Err()
	case "sadd":
		member, ok := op.value.(string)
		if !ok {
			return fmt.Errorf("invalid value type for sadd operation")
		}
		if err := op.client.SAdd(ctx, op.key, member).Err(); err != nil {
			return err
		}
		if op.ttl > 0 {
			return op.client.Expire(ctx, op.key, op.ttl).Err()
		}
		return nil
	case "srem":
		member, ok := op.value.(string)
		if !ok {
			return fmt.Errorf("invalid value type for srem operation")
		}
		return op.client.SRem(ctx, op.key, member).Err()
	case "del":
		return op.client.Del(ctx, op.key).Err()
	case "publish":
		data, ok := op.value.([]byte)
		if !ok {
			return fmt.Errorf("invalid value type for publish operation")
		}
		return op.client.Publish(ctx, op.key, data).Err()
	default:
		return fmt.Errorf("unknown operation type: %s", op.kind)
	}
}

// mirrorProcessor processes batches of Redis operations using a pipeline
type mirrorProcessor struct {
	client *redis.Client
}

// ProcessBatch flushes a batch of operations through one round trip
func (p *mirrorProcessor) ProcessBatch(ctx context.Context, operations []batch.Operation) error {
	if len(operations) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()

	for _, op := range operations {
		mop, ok := op.(*mirrorOperation)
		if !ok {
			continue
		}
		switch mop.kind {
		case "set":
			if data, ok := mop.value.([]byte); ok {
				pipe.Set(ctx, mop.key, data, mop.ttl)
			}
		case "sadd":
			if member, ok := mop.value.(string); ok {
				pipe.SAdd(ctx, mop.key, member)
				if mop.ttl > 0 {
					pipe.Expire(ctx, mop.key, mop.ttl)
				}
			}
		case "srem":
			if member, ok := mop.value.(string); ok {
				pipe.SRem(ctx, mop.key, member)
			}
		case "del":
			pipe.Del(ctx, mop.key)
		case "publish":
			if data, ok := mop.value.([]byte); ok {
				pipe.Publish(ctx, mop.key, data)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// RedisPresenceMirror reflects the session registry into Redis with
// batched, TTL'd writes. One instance per host holds a lock so stale
// processes can't fight over the same identity.
type RedisPresenceMirror struct {
	client     *redis.Client
	batcher    *batch.Batcher
	lock       *dlock.Lock
	instanceID string
	prefix     string
	ttl        time.Duration
	logger     *zap.SugaredLogger
}

func newRedisMirror(client *redis.Client, lock *dlock.Lock, instanceID, prefix string, ttl time.Duration, logger *zap.SugaredLogger) *RedisPresenceMirror {
	m := &RedisPresenceMirror{
		client:     client,
		lock:       lock,
		instanceID: instanceID,
		prefix:     prefix,
		ttl:        ttl,
		logger:     logger,
	}
	m.batcher = batch.NewBatcher(mirrorBatchSize, mirrorBatchInterval, &mirrorProcessor{client: client})
	return m
}

func (m *RedisPresenceMirror) peerKey(address string) string {
	return m.prefix + "presence:" + m.instanceID + ":" + address
}

func (m *RedisPresenceMirror) peerSetKey() string {
	return m.prefix + "instance:" + m.instanceID + ":peers"
}

func (m *RedisPresenceMirror) eventsChannel() string {
	return m.prefix + "events"
}

// PeerJoined queues the peer document, set membership and join event.
func (m *RedisPresenceMirror) PeerJoined(ctx context.Context, peer domain.PeerRecord) error {
	record, err := json.Marshal(presenceRecord{
		Address:     peer.Address,
		SessionID:   peer.SessionID,
		ConnectedAt: peer.ConnectedAt,
		InstanceID:  m.instanceID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}
	event, err := json.Marshal(presenceEvent{
		Type:       "peer.joined",
		InstanceID: m.instanceID,
		Address:    peer.Address,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}

	m.batcher.Add(&mirrorOperation{kind: "set", key: m.peerKey(peer.Address), value: record, ttl: m.ttl, client: m.client})
	m.batcher.Add(&mirrorOperation{kind: "sadd", key: m.peerSetKey(), value: peer.Address, ttl: m.ttl, client: m.client})
	m.batcher.Add(&mirrorOperation{kind: "publish", key: m.eventsChannel(), value: event, client: m.client})
	return nil
}

// PeerLeft queues removal of the peer document and a leave event.
func (m *RedisPresenceMirror) PeerLeft(ctx context.Context, address string) error {
	event, err := json.Marshal(presenceEvent{
		Type:       "peer.left",
		InstanceID: m.instanceID,
		Address:    address,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}

	m.batcher.Add(&mirrorOperation{kind: "del", key: m.peerKey(address), client: m.client})
	m.batcher.Add(&mirrorOperation{kind: "srem", key: m.peerSetKey(), value: address, client: m.client})
	m.batcher.Add(&mirrorOperation{kind: "publish", key: m.eventsChannel(), value: event, client: m.client})
	return nil
}

// Ping reports whether Redis is reachable. Registered as a health
// probe when the mirror is enabled.
func (m *RedisPresenceMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close flushes pending writes, drops this instance's peer set and
// releases the host lock. Peer documents expire on their own.
func (m *RedisPresenceMirror) Close(ctx context.Context) error {
	if err := m.batcher.Flush(ctx); err != nil && m.logger != nil {
		m.logger.Warnw("failed to flush presence mirror", "error", err)
	}
	m.batcher.Stop()

	if err := m.client.Del(ctx, m.peerSetKey()).Err(); err != nil && m.logger != nil {
		m.logger.Debugw("failed to drop instance peer set", "error", err)
	}
	if m.lock != nil {
		if err := m.lock.Unlock(ctx); err != nil && m.logger != nil {
			m.logger.Debugw("failed to release host presence lock", "error", err)
		}
	}
	return m.client.Close()
}

// NewPresenceMirror picks the mirror implementation from config. Any
// failure degrades to the no-op mirror: presence is advisory and must
// never keep the host from streaming.
func NewPresenceMirror(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) ports.PresenceMirror {
	if !cfg.Redis.Enabled {
		return NewNoopMirror()
	}

	client, err := NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, logger)
	if err != nil {
		logger.Warnw("redis unavailable, presence mirror disabled", "error", err)
		return NewNoopMirror()
	}

	instanceID := hostInstanceID()
	locks := dlock.NewLockManager(client, cfg.Redis.KeyPrefix)
	lock := locks.AcquireLock("lock:host:"+instanceID, cfg.Redis.TTL)
	acquired, err := lock.TryLock(ctx)
	if err != nil || !acquired {
		logger.Warnw("host presence lock not acquired, presence mirror disabled",
			"instance_id", instanceID,
			"error", err,
		)
		client.Close()
		return NewNoopMirror()
	}

	logger.Infow("presence mirror enabled",
		"instance_id", instanceID,
		"key_prefix", cfg.Redis.KeyPrefix,
		"ttl", cfg.Redis.TTL,
	)
	return newRedisMirror(client, lock, instanceID, cfg.Redis.KeyPrefix, cfg.Redis.TTL, logger)
}

func hostInstanceID() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "host"
	}
	return name
}
