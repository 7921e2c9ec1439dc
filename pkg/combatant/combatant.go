package combatant

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/d20"
)

// Kind distinguishes player characters from monsters. Monsters have no
// death-save phase: a monster at 0 HP is dead.
type Kind string

const (
	KindPC      Kind = "pc"
	KindMonster Kind = "monster"
)

// Stats5e represents the six core D&D 5e ability scores
type Stats5e struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// ToAttributes converts Stats5e to a map for d20.Actor compatibility
func (s *Stats5e) ToAttributes() map[string]int {
	return map[string]int{
		"strength":     s.Strength,
		"dexterity":    s.Dexterity,
		"constitution": s.Constitution,
		"intelligence": s.Intelligence,
		"wisdom":       s.Wisdom,
		"charisma":     s.Charisma,
	}
}

// AbilityMod computes the standard ability modifier: floor((score-10)/2).
func AbilityMod(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}

// DeathSaves tracks the death saving throw counters for a dying PC.
// Both counters stay in [0,3].
type DeathSaves struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Spec is the serializable specification for a Combatant. Defaults are
// resolved once, in New; the runtime Combatant never re-checks for
// missing fields.
type Spec struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Kind            Kind         `json:"kind"`
	MaxHP           int          `json:"max_hp"`
	HP              int          `json:"hp,omitempty"` // defaults to MaxHP
	TempHP          int          `json:"temp_hp,omitempty"`
	AC              int          `json:"ac,omitempty"`
	Stats           Stats5e      `json:"stats,omitempty"`
	InitiativeBonus int          `json:"initiative_bonus,omitempty"` // flat bonus on top of the DEX modifier
	Resistances     []DamageType `json:"resistances,omitempty"`
	Immunities      []DamageType `json:"immunities,omitempty"`
	Vulnerabilities []DamageType `json:"vulnerabilities,omitempty"`
	Conditions      []string     `json:"conditions,omitempty"`
	Concentrating   bool         `json:"concentrating,omitempty"`
}

// Combatant is one participant in an encounter. Its hit-point and
// death-save fields are mutated only through the combat package, which
// preserves the ledger invariants: 0 <= HP <= MaxHP, TempHP >= 0,
// death-save counters in [0,3].
type Combatant struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Kind            Kind         `json:"kind"`
	HP              int          `json:"hp"`
	MaxHP           int          `json:"max_hp"`
	TempHP          int          `json:"temp_hp"`
	AC              int          `json:"ac"`
	Stats           Stats5e      `json:"stats"`
	InitiativeBonus int          `json:"initiative_bonus,omitempty"`
	Initiative      int          `json:"initiative,omitempty"` // last computed initiative value
	Resistances     []DamageType `json:"resistances,omitempty"`
	Immunities      []DamageType `json:"immunities,omitempty"`
	Vulnerabilities []DamageType `json:"vulnerabilities,omitempty"`
	Conditions      []string     `json:"conditions,omitempty"`
	Concentrating   bool         `json:"concentrating,omitempty"`
	DeathSaves      DeathSaves   `json:"death_saves"`

	// Dead is terminal. Monsters die at 0 HP; PCs die on three failed
	// death saves or single-hit overflow past MaxHP + remaining HP.
	Dead bool `json:"dead,omitempty"`

	// Stabilized means the combatant is at 0 HP but owes no further
	// death saves until damaged again.
	Stabilized bool `json:"stabilized,omitempty"`

	// Sheet is the static d20 character sheet built from the spec.
	// Ability lookups go through it; mutable hit-point state lives on
	// the Combatant itself.
	Sheet *d20.Actor `json:"-"`
}

// New creates a Combatant from a Spec, resolving defaults and
// validating the damage-type modifier sets.
func New(spec *Spec) (*Combatant, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: spec cannot be nil", ErrConfiguration)
	}
	if spec.ID == "" {
		return nil, fmt.Errorf("%w: combatant id is required", ErrConfiguration)
	}
	if spec.MaxHP <= 0 {
		return nil, fmt.Errorf("%w: max HP must be positive, got %d", ErrInvariant, spec.MaxHP)
	}
	switch spec.Kind {
	case KindPC, KindMonster:
	case "":
		return nil, fmt.Errorf("%w: combatant kind is required", ErrConfiguration)
	default:
		return nil, fmt.Errorf("%w: unknown combatant kind %q", ErrConfiguration, spec.Kind)
	}
	for _, set := range [][]DamageType{spec.Resistances, spec.Immunities, spec.Vulnerabilities} {
		for _, dt := range set {
			if _, err := ParseDamageType(string(dt)); err != nil {
				return nil, err
			}
			if dt == DamageUntyped {
				return nil, fmt.Errorf("%w: modifier sets cannot contain the untyped tag", ErrConfiguration)
			}
		}
	}

	hp := spec.HP
	if hp <= 0 || hp > spec.MaxHP {
		hp = spec.MaxHP
	}
	tempHP := spec.TempHP
	if tempHP < 0 {
		tempHP = 0
	}
	name := spec.Name
	if name == "" {
		name = spec.ID
	}

	c := &Combatant{
		ID:              spec.ID,
		Name:            name,
		Kind:            spec.Kind,
		HP:              hp,
		MaxHP:           spec.MaxHP,
		TempHP:          tempHP,
		AC:              spec.AC,
		Stats:           spec.Stats,
		InitiativeBonus: spec.InitiativeBonus,
		Resistances:     spec.Resistances,
		Immunities:      spec.Immunities,
		Vulnerabilities: spec.Vulnerabilities,
		Conditions:      spec.Conditions,
		Concentrating:   spec.Concentrating,
	}
	if err := c.buildSheet(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Combatant) buildSheet() error {
	actor, err := d20.NewActor(c.ID).
		WithHP(c.MaxHP).
		WithAC(c.AC).
		WithAttributes(c.Stats.ToAttributes()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build actor sheet: %w", err)
	}
	c.Sheet = actor
	return nil
}

// Ability returns the named ability score from the sheet, falling back
// to the stored stats when no sheet is present.
func (c *Combatant) Ability(name string) int {
	if c.Sheet != nil {
		if v, ok := c.Sheet.Attribute(name); ok {
			return v
		}
	}
	switch name {
	case "strength":
		return c.Stats.Strength
	case "dexterity":
		return c.Stats.Dexterity
	case "constitution":
		return c.Stats.Constitution
	case "intelligence":
		return c.Stats.Intelligence
	case "wisdom":
		return c.Stats.Wisdom
	case "charisma":
		return c.Stats.Charisma
	}
	return 0
}

// DexMod returns the combatant's Dexterity modifier.
func (c *Combatant) DexMod() int {
	return AbilityMod(c.Ability("dexterity"))
}

// InitiativeMod is the DEX modifier plus any flat initiative bonus.
func (c *Combatant) InitiativeMod() int {
	return c.DexMod() + c.InitiativeBonus
}

// IsPC reports whether this combatant is player-controlled.
func (c *Combatant) IsPC() bool { return c.Kind == KindPC }

// IsUnconscious reports whether a PC is at 0 HP but not dead.
// Monsters are never unconscious; at 0 HP they are dead.
func (c *Combatant) IsUnconscious() bool {
	return c.Kind == KindPC && c.HP == 0 && !c.Dead
}

// IsDying reports whether the combatant owes death saving throws.
func (c *Combatant) IsDying() bool {
	return c.IsUnconscious() && !c.Stabilized
}

// IsDefeated reports whether the combatant is out of the fight: dead,
// for either kind. Unconscious PCs still take turns for death saves.
func (c *Combatant) IsDefeated() bool {
	return c.Dead
}

// SetHP clamps n into [0, MaxHP] and stores it.
func (c *Combatant) SetHP(n int) {
	if n < 0 {
		n = 0
	}
	if n > c.MaxHP {
		n = c.MaxHP
	}
	c.HP = n
}

// GrantTempHP applies temporary hit points. Temporary HP never stacks:
// the stored value becomes the greater of old and new.
func (c *Combatant) GrantTempHP(n int) {
	if n > c.TempHP {
		c.TempHP = n
	}
}

// HasResistance reports whether dt is in the resistance set.
func (c *Combatant) HasResistance(dt DamageType) bool {
	return containsType(c.Resistances, dt)
}

// HasImmunity reports whether dt is in the immunity set.
func (c *Combatant) HasImmunity(dt DamageType) bool {
	return containsType(c.Immunities, dt)
}

// HasVulnerability reports whether dt is in the vulnerability set.
func (c *Combatant) HasVulnerability(dt DamageType) bool {
	return containsType(c.Vulnerabilities, dt)
}

func containsType(set []DamageType, dt DamageType) bool {
	if dt == DamageUntyped {
		return false
	}
	for _, t := range set {
		if t == dt {
			return true
		}
	}
	return false
}

// combatantJSON mirrors Combatant for serialization without the
// custom method set.
type combatantJSON Combatant

// UnmarshalJSON reconstructs a Combatant and rebuilds its sheet.
func (c *Combatant) UnmarshalJSON(data []byte) error {
	var raw combatantJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal combatant: %w", err)
	}
	*c = Combatant(raw)
	if c.MaxHP > 0 {
		if err := c.buildSheet(); err != nil {
			return err
		}
	}
	return nil
}
