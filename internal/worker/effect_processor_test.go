package worker

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/combat-engine/internal/services/queue"
	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/dice"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
	"github.com/jwebster45206/combat-engine/pkg/initiative"
	queuePkg "github.com/jwebster45206/combat-engine/pkg/queue"
	"github.com/jwebster45206/combat-engine/pkg/storage"
)

func newTestProcessor(t *testing.T) (*EffectProcessor, *storage.MockStorage, *queue.EffectQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	eq := queue.NewEffectQueue(queue.NewClientWithRedis(rdb, logger))
	ms := storage.NewMockStorage()
	return NewEffectProcessor(ms, eq, logger), ms, eq
}

func seedEncounter(t *testing.T, ms *storage.MockStorage) *encounter.Encounter {
	t.Helper()
	e, err := encounter.New("skirmish", initiative.SystemStandard, false)
	if err != nil {
		t.Fatalf("encounter.New() error = %v", err)
	}
	specs := []*combatant.Spec{
		{ID: "hero", Kind: combatant.KindPC, MaxHP: 20, Stats: combatant.Stats5e{Dexterity: 16}},
		{ID: "goblin", Kind: combatant.KindMonster, MaxHP: 7, Stats: combatant.Stats5e{Dexterity: 14}},
	}
	for _, s := range specs {
		if _, err := e.AddCombatant(s); err != nil {
			t.Fatalf("AddCombatant(%s) error = %v", s.ID, err)
		}
	}
	if _, err := e.RollInitiative(dice.NewFixed(18, 6)); err != nil {
		t.Fatalf("RollInitiative() error = %v", err)
	}
	e.DrainEvents()
	if err := ms.SaveEncounter(context.Background(), e.ID, e); err != nil {
		t.Fatalf("SaveEncounter() error = %v", err)
	}
	return e
}

func TestProcessDamage(t *testing.T) {
	p, ms, _ := newTestProcessor(t)
	e := seedEncounter(t, ms)

	req := &queuePkg.Request{
		RequestID:   uuid.New().String(),
		Type:        queuePkg.RequestTypeDamage,
		EncounterID: e.ID,
		Target:      "goblin",
		Damage:      &combat.DamageInstruction{Amount: 5, Type: combatant.DamageSlashing},
	}

	result, combatEvents, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result["final_damage"] != 5 || result["hp"] != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(combatEvents) != 1 || combatEvents[0].Type != combat.EventDamageApplied {
		t.Errorf("expected one damage event, got %+v", combatEvents)
	}

	saved, err := ms.LoadEncounter(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("LoadEncounter() error = %v", err)
	}
	goblin, err := saved.Combatant("goblin")
	if err != nil {
		t.Fatalf("Combatant(goblin) error = %v", err)
	}
	if goblin.HP != 2 {
		t.Errorf("expected saved HP 2, got %d", goblin.HP)
	}
}

func TestProcessHealAndDeathSave(t *testing.T) {
	p, ms, _ := newTestProcessor(t)
	e := seedEncounter(t, ms)

	if _, err := e.ApplyDamage("hero", combat.DamageInstruction{Amount: 20}); err != nil {
		t.Fatalf("ApplyDamage() error = %v", err)
	}
	e.DrainEvents()

	t.Run("death save", func(t *testing.T) {
		result, _, err := p.Process(context.Background(), &queuePkg.Request{
			RequestID:   uuid.New().String(),
			Type:        queuePkg.RequestTypeDeathSave,
			EncounterID: e.ID,
			Target:      "hero",
			Roll:        14,
		})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if result["successes"] != 1 {
			t.Errorf("expected 1 success, got %v", result["successes"])
		}
	})

	t.Run("heal revives", func(t *testing.T) {
		result, _, err := p.Process(context.Background(), &queuePkg.Request{
			RequestID:   uuid.New().String(),
			Type:        queuePkg.RequestTypeHeal,
			EncounterID: e.ID,
			Target:      "hero",
			Amount:      6,
		})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if result["revived"] != true || result["hp"] != 6 {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}

func TestProcessAdvanceTurnAppliesPendingEffects(t *testing.T) {
	p, ms, eq := newTestProcessor(t)
	e := seedEncounter(t, ms)
	ctx := context.Background()

	burn := combat.DamageInstruction{Amount: 3, Type: combatant.DamageFire, Source: "burning"}
	if err := eq.EnqueueEffect(ctx, e.ID, "goblin", burn); err != nil {
		t.Fatalf("EnqueueEffect() error = %v", err)
	}

	result, combatEvents, err := p.Process(ctx, &queuePkg.Request{
		RequestID:   uuid.New().String(),
		Type:        queuePkg.RequestTypeAdvanceTurn,
		EncounterID: e.ID,
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result["effects_applied"] != 1 {
		t.Errorf("expected 1 effect applied, got %v", result["effects_applied"])
	}
	if result["active"] != "goblin" {
		t.Errorf("expected goblin active, got %v", result["active"])
	}

	// Damage event from the pending effect, then the turn event.
	if len(combatEvents) != 2 ||
		combatEvents[0].Type != combat.EventDamageApplied ||
		combatEvents[1].Type != combat.EventTurnAdvanced {
		t.Errorf("unexpected events: %+v", combatEvents)
	}

	depth, err := eq.EffectDepth(ctx, e.ID)
	if err != nil {
		t.Fatalf("EffectDepth() error = %v", err)
	}
	if depth != 0 {
		t.Errorf("expected drained effect queue, got depth %d", depth)
	}
}

func TestProcessErrors(t *testing.T) {
	p, ms, _ := newTestProcessor(t)
	e := seedEncounter(t, ms)
	ctx := context.Background()

	t.Run("unknown encounter", func(t *testing.T) {
		_, _, err := p.Process(ctx, &queuePkg.Request{
			RequestID:   uuid.New().String(),
			Type:        queuePkg.RequestTypeDamage,
			EncounterID: uuid.New(),
			Target:      "hero",
			Damage:      &combat.DamageInstruction{Amount: 1},
		})
		if err == nil {
			t.Error("expected error for unknown encounter")
		}
	})

	t.Run("damage without instruction", func(t *testing.T) {
		_, _, err := p.Process(ctx, &queuePkg.Request{
			RequestID:   uuid.New().String(),
			Type:        queuePkg.RequestTypeDamage,
			EncounterID: e.ID,
			Target:      "hero",
		})
		if err == nil {
			t.Error("expected error for missing damage instruction")
		}
	})

	t.Run("unknown request type", func(t *testing.T) {
		_, _, err := p.Process(ctx, &queuePkg.Request{
			RequestID:   uuid.New().String(),
			Type:        queuePkg.RequestType("teleport"),
			EncounterID: e.ID,
		})
		if err == nil {
			t.Error("expected error for unknown request type")
		}
	})
}
