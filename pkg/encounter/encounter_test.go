package encounter

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/dice"
	"github.com/jwebster45206/combat-engine/pkg/initiative"
)

func newTestEncounter(t *testing.T, system initiative.System) *Encounter {
	t.Helper()
	e, err := New("test fight", system, false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func addCombatant(t *testing.T, e *Encounter, spec *combatant.Spec) *combatant.Combatant {
	t.Helper()
	c, err := e.AddCombatant(spec)
	if err != nil {
		t.Fatalf("AddCombatant(%s) error = %v", spec.ID, err)
	}
	return c
}

func TestNew(t *testing.T) {
	e := newTestEncounter(t, initiative.SystemStandard)
	if e.ID.String() == "" {
		t.Error("expected generated ID")
	}
	if e.Clock.Round != 1 {
		t.Errorf("expected round 1, got %d", e.Clock.Round)
	}

	if _, err := New("bad", "speed-factor", false); !errors.Is(err, combatant.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown system, got %v", err)
	}
}

func TestRosterManagement(t *testing.T) {
	e := newTestEncounter(t, initiative.SystemStandard)
	addCombatant(t, e, &combatant.Spec{ID: "a", Kind: combatant.KindPC, MaxHP: 10})

	t.Run("rejects duplicate IDs", func(t *testing.T) {
		_, err := e.AddCombatant(&combatant.Spec{ID: "a", Kind: combatant.KindPC, MaxHP: 10})
		if !errors.Is(err, combatant.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		if _, err := e.Combatant("a"); err != nil {
			t.Errorf("Combatant(a) error = %v", err)
		}
		if _, err := e.Combatant("zz"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("remove invalidates the order", func(t *testing.T) {
		addCombatant(t, e, &combatant.Spec{ID: "b", Kind: combatant.KindPC, MaxHP: 10})
		if _, err := e.RollInitiative(dice.NewSource(1)); err != nil {
			t.Fatalf("RollInitiative() error = %v", err)
		}
		if err := e.RemoveCombatant("b"); err != nil {
			t.Fatalf("RemoveCombatant() error = %v", err)
		}
		if e.Order != nil {
			t.Error("expected order invalidated after removal")
		}
		if err := e.RemoveCombatant("zz"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEncounterOperationsEmitEvents(t *testing.T) {
	e := newTestEncounter(t, initiative.SystemStandard)
	addCombatant(t, e, &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20, Concentrating: true})
	addCombatant(t, e, &combatant.Spec{ID: "rat", Kind: combatant.KindMonster, MaxHP: 5})

	if _, err := e.RollInitiative(dice.NewFixed(10, 5)); err != nil {
		t.Fatalf("RollInitiative() error = %v", err)
	}

	out, err := e.ApplyDamage("hero", combat.DamageInstruction{Amount: 8, Source: "trap"})
	if err != nil {
		t.Fatalf("ApplyDamage() error = %v", err)
	}
	if !out.ConcentrationCheckRequired {
		t.Error("expected concentration check for a concentrating target")
	}

	if _, err := e.ApplyHealing("hero", 4); err != nil {
		t.Fatalf("ApplyHealing() error = %v", err)
	}
	if _, err := e.ApplyTemporaryHP("hero", 6); err != nil {
		t.Fatalf("ApplyTemporaryHP() error = %v", err)
	}
	if err := e.BreakConcentration("hero"); err != nil {
		t.Fatalf("BreakConcentration() error = %v", err)
	}
	if _, err := e.AdvanceTurn(""); err != nil {
		t.Fatalf("AdvanceTurn() error = %v", err)
	}

	events := e.DrainEvents()
	wantTypes := []combat.EventType{
		combat.EventOrderComputed,
		combat.EventDamageApplied,
		combat.EventHealingApplied,
		combat.EventTempHPGranted,
		combat.EventConcentrationBroken,
		combat.EventTurnAdvanced,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(events))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d: got %s, want %s", i, events[i].Type, want)
		}
		if events[i].EncounterID != e.ID.String() {
			t.Errorf("event %d missing encounter ID", i)
		}
	}

	if got := e.DrainEvents(); len(got) != 0 {
		t.Errorf("expected drained event list, got %d", len(got))
	}
}

func TestAdvanceTurn(t *testing.T) {
	t.Run("requires a rolled order", func(t *testing.T) {
		e := newTestEncounter(t, initiative.SystemStandard)
		if _, err := e.AdvanceTurn(""); !errors.Is(err, combatant.ErrInvariant) {
			t.Errorf("expected ErrInvariant, got %v", err)
		}
	})

	t.Run("skips defeated monsters when enabled", func(t *testing.T) {
		e, err := New("skirmish", initiative.SystemStandard, true)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		addCombatant(t, e, &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20, Stats: combatant.Stats5e{Dexterity: 18}})
		addCombatant(t, e, &combatant.Spec{ID: "rat", Kind: combatant.KindMonster, MaxHP: 5, Stats: combatant.Stats5e{Dexterity: 14}})
		addCombatant(t, e, &combatant.Spec{ID: "wolf", Kind: combatant.KindMonster, MaxHP: 11, Stats: combatant.Stats5e{Dexterity: 10}})

		// hero 20+4, rat 15+2, wolf 10+0: hero, rat, wolf.
		if _, err := e.RollInitiative(dice.NewFixed(20, 15, 10)); err != nil {
			t.Fatalf("RollInitiative() error = %v", err)
		}

		if _, err := e.ApplyDamage("rat", combat.DamageInstruction{Amount: 5}); err != nil {
			t.Fatalf("ApplyDamage() error = %v", err)
		}

		entry, err := e.AdvanceTurn("")
		if err != nil {
			t.Fatalf("AdvanceTurn() error = %v", err)
		}
		if entry.CombatantID != "wolf" {
			t.Errorf("expected the dead rat skipped, active = %s", entry.CombatantID)
		}
	})

	t.Run("popcorn accepts a nominated next combatant", func(t *testing.T) {
		e := newTestEncounter(t, initiative.SystemPopcorn)
		addCombatant(t, e, &combatant.Spec{ID: "a", Name: "Aria", Kind: combatant.KindPC, MaxHP: 10})
		addCombatant(t, e, &combatant.Spec{ID: "b", Name: "Borin", Kind: combatant.KindPC, MaxHP: 10})
		addCombatant(t, e, &combatant.Spec{ID: "c", Name: "Cale", Kind: combatant.KindPC, MaxHP: 10})

		if _, err := e.RollInitiative(dice.NewFixed(18, 10, 4)); err != nil {
			t.Fatalf("RollInitiative() error = %v", err)
		}

		entry, err := e.AdvanceTurn("c")
		if err != nil {
			t.Fatalf("AdvanceTurn() error = %v", err)
		}
		if entry.CombatantID != "c" {
			t.Errorf("expected nominated combatant active, got %s", entry.CombatantID)
		}

		if _, err := e.AdvanceTurn("zz"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown nominee, got %v", err)
		}
	})

	t.Run("nomination outside popcorn is rejected", func(t *testing.T) {
		e := newTestEncounter(t, initiative.SystemStandard)
		addCombatant(t, e, &combatant.Spec{ID: "a", Kind: combatant.KindPC, MaxHP: 10})
		if _, err := e.RollInitiative(dice.NewFixed(10)); err != nil {
			t.Fatalf("RollInitiative() error = %v", err)
		}
		if _, err := e.AdvanceTurn("a"); !errors.Is(err, combatant.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestActiveCombatant(t *testing.T) {
	e := newTestEncounter(t, initiative.SystemStandard)
	addCombatant(t, e, &combatant.Spec{ID: "a", Name: "Aria", Kind: combatant.KindPC, MaxHP: 10})
	addCombatant(t, e, &combatant.Spec{ID: "b", Name: "Borin", Kind: combatant.KindPC, MaxHP: 10})

	if _, err := e.ActiveCombatant(); !errors.Is(err, combatant.ErrInvariant) {
		t.Errorf("expected ErrInvariant before rolling, got %v", err)
	}

	if _, err := e.RollInitiative(dice.NewFixed(18, 4)); err != nil {
		t.Fatalf("RollInitiative() error = %v", err)
	}
	active, err := e.ActiveCombatant()
	if err != nil {
		t.Fatalf("ActiveCombatant() error = %v", err)
	}
	if active.ID != "a" {
		t.Errorf("expected a active, got %s", active.ID)
	}
}

func TestEncounterJSONRoundTrip(t *testing.T) {
	e := newTestEncounter(t, initiative.SystemGroup)
	addCombatant(t, e, &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20, Stats: combatant.Stats5e{Dexterity: 14}})
	addCombatant(t, e, &combatant.Spec{ID: "g1", Name: "Goblin 1", Kind: combatant.KindMonster, MaxHP: 7})
	if _, err := e.RollInitiative(dice.NewFixed(12, 9)); err != nil {
		t.Fatalf("RollInitiative() error = %v", err)
	}
	if _, err := e.ApplyDamage("hero", combat.DamageInstruction{Amount: 5}); err != nil {
		t.Fatalf("ApplyDamage() error = %v", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var loaded Encounter
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if loaded.ID != e.ID || loaded.System != e.System {
		t.Errorf("identity lost: %+v", loaded)
	}
	hero, err := loaded.Combatant("hero")
	if err != nil {
		t.Fatalf("Combatant(hero) error = %v", err)
	}
	if hero.HP != 15 {
		t.Errorf("expected HP 15 after round trip, got %d", hero.HP)
	}
	if hero.Sheet == nil {
		t.Error("expected combatant sheet rebuilt")
	}
	if loaded.Order == nil || len(loaded.Order.Entries) != 2 {
		t.Errorf("expected order preserved, got %+v", loaded.Order)
	}
}
