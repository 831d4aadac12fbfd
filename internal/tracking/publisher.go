// Package tracking holds the analytics emitters the session orchestrator
// dispatches to. Payloads stay inside the deployment: they are queued in a
// Redis list or kept in memory for inspection.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultOutboxKey is the Redis list analytics payloads are pushed onto.
	DefaultOutboxKey = "traffic:analytics:outbox"
	// DefaultOutboxLimit caps the outbox length.
	DefaultOutboxLimit = 1000
)

// Publisher pushes payloads onto a capped Redis list, newest first.
type Publisher struct {
	client *redis.Client
	key    string
	limit  int64
}

// NewPublisher creates an outbox publisher. Empty key and non-positive
// limit fall back to the defaults.
func NewPublisher(client *redis.Client, key string, limit int) *Publisher {
	if key == "" {
		key = DefaultOutboxKey
	}
	if limit <= 0 {
		limit = DefaultOutboxLimit
	}
	return &Publisher{client: client, key: key, limit: int64(limit)}
}

// Emit implements session.Emitter.
func (p *Publisher) Emit(ctx context.Context, payload domain.AnalyticsPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analytics payload: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, p.key, body)
	pipe.LTrim(ctx, p.key, 0, p.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to outbox %s: %w", p.key, err)
	}
	return nil
}

// Recent returns up to n queued payloads, newest first.
func (p *Publisher) Recent(ctx context.Context, n int) ([]domain.AnalyticsPayload, error) {
	if n <= 0 {
		return []domain.AnalyticsPayload{}, nil
	}
	raw, err := p.client.LRange(ctx, p.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read outbox %s: %w", p.key, err)
	}
	out := make([]domain.AnalyticsPayload, 0, len(raw))
	for _, r := range raw {
		var pl domain.AnalyticsPayload
		if err := json.Unmarshal([]byte(r), &pl); err != nil {
			return nil, fmt.Errorf("decode outbox entry: %w", err)
		}
		out = append(out, pl)
	}
	return out, nil
}

// Len returns the outbox length.
func (p *Publisher) Len(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, p.key).Result()
}

// Recorder keeps the most recent payloads in memory. It is the emitter
// used when Redis is not configured.
type Recorder struct {
	mu       sync.Mutex
	payloads []domain.AnalyticsPayload
	limit    int
}

// NewRecorder creates a recorder keeping at most limit payloads.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultOutboxLimit
	}
	return &Recorder{limit: limit}
}

// Emit implements session.Emitter.
func (r *Recorder) Emit(ctx context.Context, payload domain.AnalyticsPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	if over := len(r.payloads) - r.limit; over > 0 {
		r.payloads = append(r.payloads[:0:0], r.payloads[over:]...)
	}
	return nil
}

// Payloads returns a copy of the recorded payloads, oldest first.
func (r *Recorder) Payloads() []domain.AnalyticsPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AnalyticsPayload(nil), r.payloads...)
}
