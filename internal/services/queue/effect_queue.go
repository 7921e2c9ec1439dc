package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/combat-engine/pkg/combat"
	queuePkg "github.com/jwebster45206/combat-engine/pkg/queue"
)

// requestsKey is the global queue consumed by workers.
const requestsKey = "requests"

// EffectQueue manages the global request queue plus per-encounter
// lists of pending damage effects (ongoing damage, hazards) that are
// applied when the encounter's turn advances.
type EffectQueue struct {
	client *Client
}

func NewEffectQueue(client *Client) *EffectQueue {
	return &EffectQueue{
		client: client,
	}
}

func effectsKey(encounterID uuid.UUID) string {
	return fmt.Sprintf("pending-effects:%s", encounterID.String())
}

// EnqueueEffect adds a pending damage effect to the end of the queue
// for an encounter
func (eq *EffectQueue) EnqueueEffect(ctx context.Context, encounterID uuid.UUID, target string, instruction combat.DamageInstruction) error {
	payload, err := json.Marshal(PendingEffect{Target: target, Damage: instruction})
	if err != nil {
		return fmt.Errorf("failed to serialize pending effect: %w", err)
	}
	key := effectsKey(encounterID)
	if err := eq.client.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue pending effect: %w", err)
	}
	return nil
}

// DequeueEffects removes and returns all pending effects for an encounter
func (eq *EffectQueue) DequeueEffects(ctx context.Context, encounterID uuid.UUID) ([]PendingEffect, error) {
	key := effectsKey(encounterID)

	raw, err := eq.client.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to dequeue pending effects: %w", err)
	}
	if len(raw) > 0 {
		if err := eq.client.rdb.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear pending effects after dequeue: %w", err)
		}
	}
	return parseEffects(raw)
}

// PeekEffects returns pending effects without removing them
func (eq *EffectQueue) PeekEffects(ctx context.Context, encounterID uuid.UUID, limit int) ([]PendingEffect, error) {
	key := effectsKey(encounterID)

	end := int64(limit - 1)
	if limit <= 0 {
		end = -1 // Get all
	}
	raw, err := eq.client.rdb.LRange(ctx, key, 0, end).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to peek pending effects: %w", err)
	}
	return parseEffects(raw)
}

// ClearEffects removes all pending effects for an encounter
func (eq *EffectQueue) ClearEffects(ctx context.Context, encounterID uuid.UUID) error {
	key := effectsKey(encounterID)
	if err := eq.client.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear pending effects: %w", err)
	}
	return nil
}

// EffectDepth returns the number of pending effects for an encounter
func (eq *EffectQueue) EffectDepth(ctx context.Context, encounterID uuid.UUID) (int, error) {
	key := effectsKey(encounterID)
	count, err := eq.client.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending effect depth: %w", err)
	}
	return int(count), nil
}

// PendingEffect is a queued damage instruction waiting for the
// encounter's turn to advance.
type PendingEffect struct {
	Target string                   `json:"target"`
	Damage combat.DamageInstruction `json:"damage"`
}

func parseEffects(raw []string) ([]PendingEffect, error) {
	effects := make([]PendingEffect, 0, len(raw))
	for _, r := range raw {
		var pe PendingEffect
		if err := json.Unmarshal([]byte(r), &pe); err != nil {
			return nil, fmt.Errorf("failed to parse pending effect: %w", err)
		}
		effects = append(effects, pe)
	}
	return effects, nil
}

// EnqueueRequest adds a unified request to the global requests queue
func (eq *EffectQueue) EnqueueRequest(ctx context.Context, req *queuePkg.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := eq.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// DequeueRequest removes and returns the next request from the global queue
// Returns nil if queue is empty
func (eq *EffectQueue) DequeueRequest(ctx context.Context) (*queuePkg.Request, error) {
	result, err := eq.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	req, err := queuePkg.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	return req, nil
}

// BlockingDequeueRequest blocks until a request is available, then returns it.
// Returns nil without error when the wait times out.
func (eq *EffectQueue) BlockingDequeueRequest(ctx context.Context) (*queuePkg.Request, error) {
	result, err := eq.client.rdb.BLPop(ctx, 0, requestsKey).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queuePkg.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	return req, nil
}

// RequestQueueDepth returns the number of requests in the global queue
func (eq *EffectQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := eq.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}
