package combatant

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("resolves defaults from spec", func(t *testing.T) {
		c, err := New(&Spec{
			ID:    "goblin_1",
			Kind:  KindMonster,
			MaxHP: 7,
			AC:    15,
			Stats: Stats5e{Dexterity: 14},
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if c.HP != 7 {
			t.Errorf("expected HP to default to MaxHP 7, got %d", c.HP)
		}
		if c.Name != "goblin_1" {
			t.Errorf("expected name to default to ID, got %q", c.Name)
		}
		if c.Sheet == nil {
			t.Error("expected sheet to be built")
		}
	})

	t.Run("preserves explicit HP", func(t *testing.T) {
		c, err := New(&Spec{ID: "rogue", Kind: KindPC, MaxHP: 20, HP: 12})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if c.HP != 12 {
			t.Errorf("expected HP 12, got %d", c.HP)
		}
	})

	t.Run("clamps HP above MaxHP", func(t *testing.T) {
		c, err := New(&Spec{ID: "rogue", Kind: KindPC, MaxHP: 20, HP: 50})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if c.HP != 20 {
			t.Errorf("expected HP clamped to 20, got %d", c.HP)
		}
	})

	t.Run("rejects non-positive max HP", func(t *testing.T) {
		_, err := New(&Spec{ID: "x", Kind: KindPC, MaxHP: 0})
		if !errors.Is(err, ErrInvariant) {
			t.Errorf("expected ErrInvariant, got %v", err)
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := New(&Spec{ID: "x", Kind: "npc", MaxHP: 5})
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("rejects unknown damage type in modifier set", func(t *testing.T) {
		_, err := New(&Spec{
			ID:          "x",
			Kind:        KindMonster,
			MaxHP:       5,
			Resistances: []DamageType{"sonic"},
		})
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("nil spec", func(t *testing.T) {
		if _, err := New(nil); err == nil {
			t.Error("expected error for nil spec")
		}
	})
}

func TestAbilityMod(t *testing.T) {
	cases := []struct {
		score int
		want  int
	}{
		{1, -5},
		{7, -2},
		{8, -1},
		{9, -1},
		{10, 0},
		{11, 0},
		{12, 1},
		{15, 2},
		{17, 3},
		{20, 5},
	}
	for _, tc := range cases {
		if got := AbilityMod(tc.score); got != tc.want {
			t.Errorf("AbilityMod(%d) = %d, want %d", tc.score, got, tc.want)
		}
	}
}

func TestGrantTempHP(t *testing.T) {
	c := &Combatant{TempHP: 5}

	c.GrantTempHP(3)
	if c.TempHP != 5 {
		t.Errorf("temp HP must not stack down: got %d, want 5", c.TempHP)
	}

	c.GrantTempHP(8)
	if c.TempHP != 8 {
		t.Errorf("higher temp HP should replace: got %d, want 8", c.TempHP)
	}
}

func TestSetHPClamps(t *testing.T) {
	c := &Combatant{MaxHP: 10}

	c.SetHP(-4)
	if c.HP != 0 {
		t.Errorf("expected HP clamped to 0, got %d", c.HP)
	}

	c.SetHP(99)
	if c.HP != 10 {
		t.Errorf("expected HP clamped to MaxHP, got %d", c.HP)
	}
}

func TestLifeStateQueries(t *testing.T) {
	pc := &Combatant{Kind: KindPC, MaxHP: 10}
	if pc.IsUnconscious() {
		t.Error("PC with HP > 0 should not be unconscious")
	}

	pc.HP = 0
	if !pc.IsUnconscious() || !pc.IsDying() {
		t.Error("PC at 0 HP should be unconscious and dying")
	}

	pc.Stabilized = true
	if pc.IsDying() {
		t.Error("stabilized PC should not be dying")
	}
	if pc.IsDefeated() {
		t.Error("stabilized PC is not defeated")
	}

	pc.Dead = true
	if !pc.IsDefeated() {
		t.Error("dead PC is defeated")
	}

	monster := &Combatant{Kind: KindMonster, MaxHP: 5, HP: 0, Dead: true}
	if monster.IsUnconscious() {
		t.Error("monsters are never unconscious")
	}
	if !monster.IsDefeated() {
		t.Error("dead monster is defeated")
	}
}

func TestModifierSetLookups(t *testing.T) {
	c := &Combatant{
		Resistances:     []DamageType{DamageFire, DamageCold},
		Immunities:      []DamageType{DamagePoison},
		Vulnerabilities: []DamageType{DamageRadiant},
	}

	if !c.HasResistance(DamageFire) {
		t.Error("expected fire resistance")
	}
	if c.HasResistance(DamageRadiant) {
		t.Error("unexpected radiant resistance")
	}
	if !c.HasImmunity(DamagePoison) {
		t.Error("expected poison immunity")
	}
	if !c.HasVulnerability(DamageRadiant) {
		t.Error("expected radiant vulnerability")
	}
	if c.HasResistance(DamageUntyped) {
		t.Error("untyped damage must never match a modifier set")
	}
}

func TestJSONRoundTripRebuildsSheet(t *testing.T) {
	c, err := New(&Spec{
		ID:    "wizard",
		Name:  "Elora",
		Kind:  KindPC,
		MaxHP: 22,
		AC:    12,
		Stats: Stats5e{Dexterity: 16, Constitution: 14},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.HP = 9
	c.TempHP = 4
	c.Concentrating = true

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var loaded Combatant
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if loaded.HP != 9 || loaded.TempHP != 4 || !loaded.Concentrating {
		t.Errorf("mutable state lost in round trip: %+v", loaded)
	}
	if loaded.Sheet == nil {
		t.Fatal("expected sheet to be rebuilt on unmarshal")
	}
	if loaded.DexMod() != 3 {
		t.Errorf("expected DEX mod 3, got %d", loaded.DexMod())
	}
}

func TestParseDamageType(t *testing.T) {
	if _, err := ParseDamageType("fire"); err != nil {
		t.Errorf("fire should parse: %v", err)
	}
	if _, err := ParseDamageType(""); err != nil {
		t.Errorf("empty (untyped) should parse: %v", err)
	}
	if _, err := ParseDamageType("sonic"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown type, got %v", err)
	}
}
