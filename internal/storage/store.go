package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"signal-feed/internal/cache"
	"signal-feed/internal/config"
)

var (
	// ErrNotConfigured indicates the mirror was not initialised.
	ErrNotConfigured = errors.New("storage: redis not configured")
)

// NewClient configures a redis client from runtime settings and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Mirror copies the latest snapshot into a redis hash and publishes the broadcast payload.
type Mirror struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// NewMirror wires a redis client into a Mirror.
func NewMirror(client redis.UniversalClient, key, channel string) *Mirror {
	return &Mirror{client: client, key: key, channel: channel}
}

// Close releases the underlying client.
func (m *Mirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Write stores every snapshot entry under its symbol and, when a channel is set,
// publishes payload on it. Both commands go out in one pipeline.
func (m *Mirror) Write(ctx context.Context, snap cache.Snapshot, payload []byte) error {
	if m == nil || m.client == nil {
		return ErrNotConfigured
	}
	if len(snap) == 0 {
		return nil
	}

	fields, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = m.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, m.key, fields)
		if m.channel != "" && len(payload) > 0 {
			p.Publish(ctx, m.channel, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}
	return nil
}

// Read loads the mirrored snapshot.
func (m *Mirror) Read(ctx context.Context) (cache.Snapshot, error) {
	if m == nil || m.client == nil {
		return nil, ErrNotConfigured
	}
	raw, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	return decodeSnapshot(raw)
}

func encodeSnapshot(snap cache.Snapshot) (map[string]any, error) {
	fields := make(map[string]any, len(snap))
	for symbol, q := range snap {
		b, err := json.Marshal(NewQuoteRecord(symbol, q))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", symbol, err)
		}
		fields[symbol] = string(b)
	}
	return fields, nil
}

func decodeSnapshot(raw map[string]string) (cache.Snapshot, error) {
	snap := make(cache.Snapshot, len(raw))
	for symbol, v := range raw {
		var rec QuoteRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", symbol, err)
		}
		snap[symbol] = rec.Quote()
	}
	return snap, nil
}
