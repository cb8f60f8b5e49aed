package persistence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AuditEntry is one recorded gateway event
type AuditEntry struct {
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// RedisAuditStore appends gateway lifecycle events to a Redis Stream so
// credential refreshes, disconnects and entity accesses survive process
// restarts and can be consumed by external tooling.
type RedisAuditStore struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
	logger    logger.Logger
}

// NewRedisAuditStore creates a Redis-backed audit store
func NewRedisAuditStore(client *redis.Client, streamKey string, maxLen int64, log logger.Logger) *RedisAuditStore {
	return &RedisAuditStore{
		client:    client,
		streamKey: streamKey,
		maxLen:    maxLen,
		logger:    log,
	}
}

// SubscribeAll attaches the store to every audited event type on the bus
func (r *RedisAuditStore) SubscribeAll(bus eventbus.EventBusInterface) {
	for _, eventType := range []string{
		eventbus.EventTypeCredentialRefreshed,
		eventbus.EventTypeCredentialRefreshFailed,
		eventbus.EventTypeAccountDisconnected,
		eventbus.EventTypeEntityFetched,
		eventbus.EventTypeClassificationMismatch,
	} {
		bus.Subscribe(eventType, r.Record)
	}
}

// Record appends one bus event to the audit stream
func (r *RedisAuditStore) Record(ctx context.Context, event eventbus.Event) error {
	data, err := json.Marshal(event.Data())
	if err != nil {
		r.logger.Error("Failed to serialize audit event data", zap.Error(err))
		return err
	}

	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamKey,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      event.Type(),
			"source":    event.Source(),
			"timestamp": event.Timestamp().UnixNano(),
			"data":      data,
		},
	}).Result()

	if err != nil {
		r.logger.Error("Failed to append audit event",
			zap.String("stream", r.streamKey),
			zap.String("eventType", event.Type()),
			zap.Error(err))
		return err
	}

	r.logger.Debug("Audit event recorded",
		zap.String("stream", r.streamKey),
		zap.String("eventType", event.Type()))

	return nil
}

// EntriesSince reads audit entries recorded after the given stream ID.
// An empty ID reads from the beginning.
func (r *RedisAuditStore) EntriesSince(ctx context.Context, lastID string) ([]AuditEntry, string, error) {
	if lastID == "" {
		lastID = "0"
	}

	exists, err := r.client.Exists(ctx, r.streamKey).Result()
	if err != nil {
		return nil, lastID, err
	}
	if exists == 0 {
		return []AuditEntry{}, lastID, nil
	}

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.client.XRead(readCtx, &redis.XReadArgs{
		Streams: []string{r.streamKey, lastID},
		Count:   1000,
		Block:   0,
	}).Result()
	if err != nil {
		if err == redis.Nil || err == context.DeadlineExceeded {
			return []AuditEntry{}, lastID, nil
		}
		r.logger.Error("Failed to read audit stream",
			zap.String("stream", r.streamKey),
			zap.Error(err))
		return nil, lastID, err
	}

	var entries []AuditEntry
	for _, streamRes := range res {
		for _, msg := range streamRes.Messages {
			entries = append(entries, parseAuditEntry(msg))
			lastID = msg.ID
		}
	}
	return entries, lastID, nil
}

// Len returns the current audit stream length
func (r *RedisAuditStore) Len(ctx context.Context) int64 {
	length, err := r.client.XLen(ctx, r.streamKey).Result()
	if err != nil {
		return 0
	}
	return length
}

// parseAuditEntry converts a Redis Stream message to an AuditEntry
func parseAuditEntry(msg redis.XMessage) AuditEntry {
	entry := AuditEntry{}

	if typeStr, ok := msg.Values["type"].(string); ok {
		entry.Type = typeStr
	}
	if source, ok := msg.Values["source"].(string); ok {
		entry.Source = source
	}
	if timestampStr, ok := msg.Values["timestamp"].(string); ok {
		if timestamp, err := strconv.ParseInt(timestampStr, 10, 64); err == nil {
			entry.Timestamp = time.Unix(0, timestamp)
		}
	}
	if dataStr, ok := msg.Values["data"].(string); ok && dataStr != "" && dataStr != "null" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(dataStr), &data); err == nil {
			entry.Data = data
		}
	}
	return entry
}
