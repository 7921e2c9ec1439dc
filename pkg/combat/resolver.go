// Package combat implements the damage, healing, death-save, and
// turn-clock rules of the encounter engine. All functions operate on
// explicit arguments and perform no dice rolls; callers supply rolled
// values, so every resolution is deterministic and testable.
package combat

import (
	"fmt"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

// MassiveDamageDC is the Constitution save DC owed when a combatant
// survives a single hit dealing at least its maximum HP.
const MassiveDamageDC = 15

// Modifier describes which damage-type modifier was applied to a hit.
// Precedence is immune > resistant > vulnerable > normal.
type Modifier string

const (
	ModifierImmune     Modifier = "immune"
	ModifierResistant  Modifier = "resistant"
	ModifierVulnerable Modifier = "vulnerable"
	ModifierNormal     Modifier = "normal"
)

// DamageInstruction describes one incoming hit. Amount is the raw
// rolled damage before type modifiers; critical doubling of dice
// happens upstream, the flag is carried through for the audit trail.
type DamageInstruction struct {
	Amount   int                  `json:"amount"`
	Type     combatant.DamageType `json:"type,omitempty"`
	Critical bool                 `json:"critical,omitempty"`
	Source   string               `json:"source,omitempty"`

	// Per-call overrides suppress the matching modifier lookup.
	IgnoreResistance    bool `json:"ignore_resistance,omitempty"`
	IgnoreImmunity      bool `json:"ignore_immunity,omitempty"`
	IgnoreVulnerability bool `json:"ignore_vulnerability,omitempty"`
}

// DamageOutcome reports the full effect of one resolved hit. The
// resolver signals follow-up saves (concentration, massive damage)
// but never rolls them.
type DamageOutcome struct {
	CombatantID string               `json:"combatant_id"`
	Source      string               `json:"source,omitempty"`
	Type        combatant.DamageType `json:"type,omitempty"`
	Critical    bool                 `json:"critical,omitempty"`
	Modifier    Modifier             `json:"modifier"`

	RawAmount      int `json:"raw_amount"`
	FinalDamage    int `json:"final_damage"`
	TempHPAbsorbed int `json:"temp_hp_absorbed"`
	PreviousHP     int `json:"previous_hp"`
	HP             int `json:"hp"`

	// WasUnconscious is set when HP transitioned from >0 to 0 on this hit.
	WasUnconscious bool `json:"was_unconscious,omitempty"`
	// IsDead is set when the hit killed outright: any monster at 0 HP,
	// or a PC whose single-hit damage reached MaxHP + remaining HP.
	IsDead bool `json:"is_dead,omitempty"`

	ConcentrationCheckRequired bool `json:"concentration_check_required,omitempty"`
	ConcentrationDC            int  `json:"concentration_dc,omitempty"`

	MassiveDamageCheckRequired bool `json:"massive_damage_check_required,omitempty"`
	MassiveDamageDC            int  `json:"massive_damage_dc,omitempty"`
}

// ApplyDamage resolves inst against c and mutates the combatant's
// ledger. The full outcome is computed before any field is written, so
// an error never leaves partial state behind.
//
// Healing must go through ApplyHealing; a non-positive amount here is
// rejected rather than redirected.
func ApplyDamage(c *combatant.Combatant, inst DamageInstruction) (DamageOutcome, error) {
	if c == nil {
		return DamageOutcome{}, fmt.Errorf("combatant cannot be nil")
	}
	if inst.Amount <= 0 {
		return DamageOutcome{}, fmt.Errorf("%w: raw damage must be positive, got %d", combatant.ErrInvariant, inst.Amount)
	}
	if _, err := combatant.ParseDamageType(string(inst.Type)); err != nil {
		return DamageOutcome{}, err
	}

	mod := resolveModifier(c, inst)
	finalDamage := inst.Amount
	switch mod {
	case ModifierImmune:
		finalDamage = 0
	case ModifierResistant:
		finalDamage = inst.Amount / 2
	case ModifierVulnerable:
		finalDamage = inst.Amount * 2
	}

	tempAbsorbed := min(c.TempHP, finalDamage)
	hpDamage := min(c.HP, finalDamage-tempAbsorbed)
	prevHP := c.HP
	newHP := prevHP - hpDamage

	outcome := DamageOutcome{
		CombatantID:    c.ID,
		Source:         inst.Source,
		Type:           inst.Type,
		Critical:       inst.Critical,
		Modifier:       mod,
		RawAmount:      inst.Amount,
		FinalDamage:    finalDamage,
		TempHPAbsorbed: tempAbsorbed,
		PreviousHP:     prevHP,
		HP:             newHP,
		WasUnconscious: prevHP > 0 && newHP == 0,
	}

	switch c.Kind {
	case combatant.KindMonster:
		outcome.IsDead = newHP == 0
	case combatant.KindPC:
		// Instant death: one hit deals MaxHP past the remaining HP.
		outcome.IsDead = c.Dead || finalDamage >= c.MaxHP+prevHP
	}

	if c.Concentrating && finalDamage > 0 {
		outcome.ConcentrationCheckRequired = true
		outcome.ConcentrationDC = ConcentrationDC(finalDamage)
	}
	if !outcome.IsDead && finalDamage >= c.MaxHP {
		outcome.MassiveDamageCheckRequired = true
		outcome.MassiveDamageDC = MassiveDamageDC
	}

	// Commit.
	c.TempHP -= tempAbsorbed
	c.HP = newHP
	if outcome.IsDead {
		c.Dead = true
	}
	if c.IsPC() && prevHP == 0 && finalDamage > 0 {
		// Damage re-opens a stabilized dying episode.
		c.Stabilized = false
	}

	return outcome, nil
}

func resolveModifier(c *combatant.Combatant, inst DamageInstruction) Modifier {
	switch {
	case c.HasImmunity(inst.Type) && !inst.IgnoreImmunity:
		return ModifierImmune
	case c.HasResistance(inst.Type) && !inst.IgnoreResistance:
		return ModifierResistant
	case c.HasVulnerability(inst.Type) && !inst.IgnoreVulnerability:
		return ModifierVulnerable
	default:
		return ModifierNormal
	}
}

// HealOutcome reports the effect of a healing or temporary HP grant.
type HealOutcome struct {
	CombatantID string `json:"combatant_id"`
	Amount      int    `json:"amount"`
	Temporary   bool   `json:"temporary,omitempty"`
	PreviousHP  int    `json:"previous_hp"`
	HP          int    `json:"hp"`
	TempHP      int    `json:"temp_hp"`
	// Revived is set when healing brought an unconscious PC back above 0 HP.
	Revived bool `json:"revived,omitempty"`
}

// ApplyHealing restores hit points, capped at MaxHP. Healing an
// unconscious PC revives it and clears the death-save counters.
// Dead combatants cannot be healed.
func ApplyHealing(c *combatant.Combatant, amount int) (HealOutcome, error) {
	if c == nil {
		return HealOutcome{}, fmt.Errorf("combatant cannot be nil")
	}
	if amount <= 0 {
		return HealOutcome{}, fmt.Errorf("%w: healing amount must be positive, got %d", combatant.ErrInvariant, amount)
	}
	if c.Dead {
		return HealOutcome{}, fmt.Errorf("%w: cannot heal a dead combatant", combatant.ErrInvariant)
	}

	prevHP := c.HP
	c.SetHP(prevHP + amount)

	outcome := HealOutcome{
		CombatantID: c.ID,
		Amount:      amount,
		PreviousHP:  prevHP,
		HP:          c.HP,
		TempHP:      c.TempHP,
		Revived:     c.IsPC() && prevHP == 0 && c.HP > 0,
	}
	if outcome.Revived {
		c.DeathSaves = combatant.DeathSaves{}
		c.Stabilized = false
	}
	return outcome, nil
}

// ApplyTemporaryHP grants temporary hit points. Temporary HP never
// stacks: the stored value becomes the greater of old and new.
func ApplyTemporaryHP(c *combatant.Combatant, amount int) (HealOutcome, error) {
	if c == nil {
		return HealOutcome{}, fmt.Errorf("combatant cannot be nil")
	}
	if amount <= 0 {
		return HealOutcome{}, fmt.Errorf("%w: temporary HP must be positive, got %d", combatant.ErrInvariant, amount)
	}
	if c.Dead {
		return HealOutcome{}, fmt.Errorf("%w: cannot grant temporary HP to a dead combatant", combatant.ErrInvariant)
	}

	c.GrantTempHP(amount)
	return HealOutcome{
		CombatantID: c.ID,
		Amount:      amount,
		Temporary:   true,
		PreviousHP:  c.HP,
		HP:          c.HP,
		TempHP:      c.TempHP,
	}, nil
}
