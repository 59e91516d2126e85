package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/redis/go-redis/v9"
)

// MessageLogKey is the Redis list holding relay history
const MessageLogKey = "tg_messages"

// MessageLog is the capped, newest-first relay history
type MessageLog interface {
	Append(ctx context.Context, msg models.RelayMessage) error
	// List returns every retained entry, index 0 being the most recent
	List(ctx context.Context) ([]models.RelayMessage, error)
}

// FilterByConnection keeps the entries addressed to or from connectionID, preserving order
func FilterByConnection(msgs []models.RelayMessage, connectionID string) []models.RelayMessage {
	out := make([]models.RelayMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.BelongsTo(connectionID) {
			out = append(out, m)
		}
	}
	return out
}

// RedisMessageLog stores the history as a trimmed Redis list
type RedisMessageLog struct {
	rdb      *redis.Client
	key      string
	capacity int64
	logger   *slog.Logger
}

func NewRedisMessageLog(rdb *redis.Client, capacity int, logger *slog.Logger) *RedisMessageLog {
	return &RedisMessageLog{rdb: rdb, key: MessageLogKey, capacity: int64(capacity), logger: logger}
}

// Append pushes msg at the head and trims the tail in one MULTI/EXEC
func (l *RedisMessageLog) Append(ctx context.Context, msg models.RelayMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, l.key, b)
		pipe.LTrim(ctx, l.key, 0, l.capacity-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append relay message: %w", err)
	}
	return nil
}

func (l *RedisMessageLog) List(ctx context.Context) ([]models.RelayMessage, error) {
	raw, err := l.rdb.LRange(ctx, l.key, 0, l.capacity-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list relay messages: %w", err)
	}

	msgs := make([]models.RelayMessage, 0, len(raw))
	for _, r := range raw {
		var m models.RelayMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			l.logger.Warn("skipping malformed relay message", "key", l.key, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// MemoryMessageLog is the process-local history used when Redis is not configured
type MemoryMessageLog struct {
	mu       sync.RWMutex
	entries  []models.RelayMessage // newest first
	capacity int
}

func NewMemoryMessageLog(capacity int) *MemoryMessageLog {
	return &MemoryMessageLog{capacity: capacity}
}

func (l *MemoryMessageLog) Append(ctx context.Context, msg models.RelayMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]models.RelayMessage{msg}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	return nil
}

func (l *MemoryMessageLog) List(ctx context.Context) ([]models.RelayMessage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.RelayMessage, len(l.entries))
	copy(out, l.entries)
	return out, nil
}
