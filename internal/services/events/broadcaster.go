package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/combat-engine/pkg/combat"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued     EventType = "request.queued"
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeRequestCompleted  EventType = "request.completed"
	EventTypeRequestFailed     EventType = "request.failed"
	EventTypeCombat            EventType = "combat.event"
)

// Event represents a generic event structure
type Event struct {
	Type        EventType              `json:"type"`
	RequestID   string                 `json:"request_id,omitempty"`
	EncounterID string                 `json:"encounter_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// ChannelName returns the pub/sub channel for an encounter
func ChannelName(encounterID uuid.UUID) string {
	return fmt.Sprintf("encounter-events:%s", encounterID.String())
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, encounterID uuid.UUID, requestID string, requestType string) error {
	event := Event{
		Type:        EventTypeRequestQueued,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]interface{}{
			"status": "queued",
			"type":   requestType,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishRequestProcessing publishes a request.processing event
func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, encounterID uuid.UUID, requestID string, requestType string) error {
	event := Event{
		Type:        EventTypeRequestProcessing,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]interface{}{
			"status": "processing",
			"type":   requestType,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishRequestCompleted publishes a request.completed event
func (b *Broadcaster) PublishRequestCompleted(ctx context.Context, encounterID uuid.UUID, requestID string, result map[string]interface{}) error {
	event := Event{
		Type:        EventTypeRequestCompleted,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]interface{}{
			"status": "completed",
			"result": result,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, encounterID uuid.UUID, requestID string, errorMsg string) error {
	event := Event{
		Type:        EventTypeRequestFailed,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]interface{}{
			"status": "failed",
			"error":  errorMsg,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishCombatEvents publishes engine events drained from an
// encounter after a mutation. Each combat event keeps its own type
// string in the data payload so SSE clients can dispatch on it.
func (b *Broadcaster) PublishCombatEvents(ctx context.Context, encounterID uuid.UUID, requestID string, combatEvents []combat.Event) error {
	for _, ce := range combatEvents {
		event := Event{
			Type:        EventTypeCombat,
			RequestID:   requestID,
			EncounterID: encounterID.String(),
			Data: map[string]interface{}{
				"combat_event": string(ce.Type),
				"combatant_id": ce.CombatantID,
				"detail":       ce.Data,
			},
		}
		if err := b.publishToEncounter(ctx, encounterID, event); err != nil {
			return err
		}
	}
	return nil
}

// publishToEncounter publishes an event to the encounter-specific channel
func (b *Broadcaster) publishToEncounter(ctx context.Context, encounterID uuid.UUID, event Event) error {
	channel := ChannelName(encounterID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
