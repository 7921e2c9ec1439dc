package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/combat-engine/internal/services/queue"
	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
	queuePkg "github.com/jwebster45206/combat-engine/pkg/queue"
	"github.com/jwebster45206/combat-engine/pkg/storage"
)

// EffectProcessor applies queued combat requests to encounter state.
// It's used by the worker; the HTTP handlers apply synchronous
// mutations directly.
type EffectProcessor struct {
	storage     storage.Storage
	effectQueue *queue.EffectQueue
	logger      *slog.Logger
}

// NewEffectProcessor creates a new effect processor
func NewEffectProcessor(storage storage.Storage, effectQueue *queue.EffectQueue, logger *slog.Logger) *EffectProcessor {
	return &EffectProcessor{
		storage:     storage,
		effectQueue: effectQueue,
		logger:      logger,
	}
}

// Process loads the target encounter, applies the request, saves the
// result, and returns a summary plus the combat events the mutation
// produced. State is saved only if the mutation succeeded, so a
// rejected request leaves the stored encounter untouched.
func (p *EffectProcessor) Process(ctx context.Context, req *queuePkg.Request) (map[string]interface{}, []combat.Event, error) {
	e, err := p.storage.LoadEncounter(ctx, req.EncounterID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load encounter: %w", err)
	}
	if e == nil {
		return nil, nil, fmt.Errorf("encounter not found: %s", req.EncounterID.String())
	}

	result, err := p.apply(ctx, e, req)
	if err != nil {
		return nil, nil, err
	}

	if err := p.storage.SaveEncounter(ctx, e.ID, e); err != nil {
		return nil, nil, fmt.Errorf("failed to save encounter: %w", err)
	}

	return result, e.DrainEvents(), nil
}

func (p *EffectProcessor) apply(ctx context.Context, e *encounter.Encounter, req *queuePkg.Request) (map[string]interface{}, error) {
	switch req.Type {
	case queuePkg.RequestTypeDamage:
		if req.Damage == nil {
			return nil, fmt.Errorf("damage request %s has no instruction", req.RequestID)
		}
		outcome, err := e.ApplyDamage(req.Target, *req.Damage)
		if err != nil {
			return nil, fmt.Errorf("failed to apply damage: %w", err)
		}
		return map[string]interface{}{
			"final_damage": outcome.FinalDamage,
			"hp":           outcome.HP,
			"dead":         outcome.IsDead,
		}, nil

	case queuePkg.RequestTypeHeal:
		outcome, err := e.ApplyHealing(req.Target, req.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to apply healing: %w", err)
		}
		return map[string]interface{}{
			"amount":  outcome.Amount,
			"hp":      outcome.HP,
			"revived": outcome.Revived,
		}, nil

	case queuePkg.RequestTypeTempHP:
		outcome, err := e.ApplyTemporaryHP(req.Target, req.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to grant temporary hp: %w", err)
		}
		return map[string]interface{}{
			"temp_hp": outcome.TempHP,
		}, nil

	case queuePkg.RequestTypeDeathSave:
		result, err := e.ApplyDeathSave(req.Target, req.Roll)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve death save: %w", err)
		}
		return map[string]interface{}{
			"status":    string(result.Status),
			"successes": result.Successes,
			"failures":  result.Failures,
		}, nil

	case queuePkg.RequestTypeAdvanceTurn:
		// Pending effects (ongoing damage, hazards) fire before the
		// clock moves.
		applied, err := p.applyPendingEffects(ctx, e)
		if err != nil {
			return nil, err
		}
		entry, err := e.AdvanceTurn(req.Nominee)
		if err != nil {
			return nil, fmt.Errorf("failed to advance turn: %w", err)
		}
		return map[string]interface{}{
			"active":          entry.CombatantID,
			"round":           e.Clock.Round,
			"effects_applied": applied,
		}, nil

	default:
		return nil, fmt.Errorf("unknown request type: %s", req.Type)
	}
}

// applyPendingEffects drains the encounter's pending effect queue and
// applies each instruction. A single effect that no longer applies
// (target removed or already defeated) is logged and skipped rather
// than failing the whole turn.
func (p *EffectProcessor) applyPendingEffects(ctx context.Context, e *encounter.Encounter) (int, error) {
	if p.effectQueue == nil {
		return 0, nil
	}

	effects, err := p.effectQueue.DequeueEffects(ctx, e.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to dequeue pending effects: %w", err)
	}

	applied := 0
	for _, pe := range effects {
		if _, err := e.ApplyDamage(pe.Target, pe.Damage); err != nil {
			p.logger.Warn("Skipping pending effect",
				"encounter_id", e.ID.String(),
				"target", pe.Target,
				"source", pe.Damage.Source,
				"error", err,
			)
			continue
		}
		applied++
	}
	return applied, nil
}
