// Package encounter holds the state of one combat session: the
// roster, the computed turn order, and the round clock. Every
// mutation goes through the combat and initiative packages and
// appends a typed event, so renderers and persistence subscribe to
// one stream instead of registering callbacks on each subsystem.
package encounter

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/dice"
	"github.com/jwebster45206/combat-engine/pkg/initiative"
)

// ErrNotFound indicates the combatant is not part of the encounter.
var ErrNotFound = errors.New("combatant not found")

// Encounter is the state of one combat session.
type Encounter struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name,omitempty"`
	System     initiative.System      `json:"system"`
	Combatants []*combatant.Combatant `json:"combatants"`
	Order      *initiative.Order      `json:"order,omitempty"`
	Clock      *combat.Clock          `json:"clock"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`

	// Events accumulates combat events since the last drain. The API
	// layer drains and publishes them after each mutating request.
	Events []combat.Event `json:"-"`
}

// New creates an empty encounter under the given initiative system.
func New(name string, system initiative.System, skipDefeated bool) (*Encounter, error) {
	if _, err := initiative.ParseSystem(string(system)); err != nil {
		return nil, err
	}
	clock := combat.NewClock()
	clock.SkipDefeated = skipDefeated
	now := time.Now().UTC()
	return &Encounter{
		ID:         uuid.New(),
		Name:       name,
		System:     system,
		Combatants: []*combatant.Combatant{},
		Clock:      clock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AddCombatant builds a combatant from spec and adds it to the roster.
// IDs must be unique within the encounter.
func (e *Encounter) AddCombatant(spec *combatant.Spec) (*combatant.Combatant, error) {
	c, err := combatant.New(spec)
	if err != nil {
		return nil, err
	}
	for _, existing := range e.Combatants {
		if existing.ID == c.ID {
			return nil, fmt.Errorf("%w: duplicate combatant id %q", combatant.ErrConfiguration, c.ID)
		}
	}
	e.Combatants = append(e.Combatants, c)
	return c, nil
}

// RemoveCombatant drops a combatant from the roster. Any computed
// order is invalidated; the caller re-rolls initiative afterwards.
func (e *Encounter) RemoveCombatant(id string) error {
	for i, c := range e.Combatants {
		if c.ID == id {
			e.Combatants = append(e.Combatants[:i], e.Combatants[i+1:]...)
			e.Order = nil
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Combatant looks up a roster member by ID.
func (e *Encounter) Combatant(id string) (*combatant.Combatant, error) {
	for _, c := range e.Combatants {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// RollInitiative computes the turn order for the roster under the
// encounter's system and resets the clock to round 1.
func (e *Encounter) RollInitiative(r dice.Roller) (*initiative.Order, error) {
	order, err := initiative.ComputeOrder(e.Combatants, e.System, r)
	if err != nil {
		return nil, err
	}
	e.Order = order
	skip := e.Clock.SkipDefeated
	e.Clock = combat.NewClock()
	e.Clock.SkipDefeated = skip

	e.appendEvent(combat.Event{
		Type:        combat.EventOrderComputed,
		EncounterID: e.ID.String(),
		Data: map[string]interface{}{
			"system":  string(e.System),
			"entries": len(order.Entries),
		},
	})
	return order, nil
}

// ApplyDamage resolves a damage instruction against a roster member.
func (e *Encounter) ApplyDamage(id string, inst combat.DamageInstruction) (combat.DamageOutcome, error) {
	c, err := e.Combatant(id)
	if err != nil {
		return combat.DamageOutcome{}, err
	}
	outcome, err := combat.ApplyDamage(c, inst)
	if err != nil {
		return combat.DamageOutcome{}, err
	}

	data := map[string]interface{}{
		"final_damage": outcome.FinalDamage,
		"modifier":     string(outcome.Modifier),
		"hp":           outcome.HP,
	}
	if outcome.Source != "" {
		data["source"] = outcome.Source
	}
	if outcome.IsDead {
		data["dead"] = true
	}
	if outcome.WasUnconscious {
		data["unconscious"] = true
	}
	if outcome.ConcentrationCheckRequired {
		data["concentration_dc"] = outcome.ConcentrationDC
	}
	if outcome.MassiveDamageCheckRequired {
		data["massive_damage_dc"] = outcome.MassiveDamageDC
	}
	e.appendEvent(combat.Event{
		Type:        combat.EventDamageApplied,
		EncounterID: e.ID.String(),
		CombatantID: id,
		Data:        data,
	})
	return outcome, nil
}

// ApplyHealing restores hit points to a roster member.
func (e *Encounter) ApplyHealing(id string, amount int) (combat.HealOutcome, error) {
	c, err := e.Combatant(id)
	if err != nil {
		return combat.HealOutcome{}, err
	}
	outcome, err := combat.ApplyHealing(c, amount)
	if err != nil {
		return combat.HealOutcome{}, err
	}
	e.appendEvent(combat.Event{
		Type:        combat.EventHealingApplied,
		EncounterID: e.ID.String(),
		CombatantID: id,
		Data: map[string]interface{}{
			"amount":  amount,
			"hp":      outcome.HP,
			"revived": outcome.Revived,
		},
	})
	return outcome, nil
}

// ApplyTemporaryHP grants non-stacking temporary hit points.
func (e *Encounter) ApplyTemporaryHP(id string, amount int) (combat.HealOutcome, error) {
	c, err := e.Combatant(id)
	if err != nil {
		return combat.HealOutcome{}, err
	}
	outcome, err := combat.ApplyTemporaryHP(c, amount)
	if err != nil {
		return combat.HealOutcome{}, err
	}
	e.appendEvent(combat.Event{
		Type:        combat.EventTempHPGranted,
		EncounterID: e.ID.String(),
		CombatantID: id,
		Data: map[string]interface{}{
			"amount":  amount,
			"temp_hp": outcome.TempHP,
		},
	})
	return outcome, nil
}

// ApplyDeathSave resolves a death saving throw for a dying PC.
func (e *Encounter) ApplyDeathSave(id string, roll int) (combat.DeathSaveResult, error) {
	c, err := e.Combatant(id)
	if err != nil {
		return combat.DeathSaveResult{}, err
	}
	result, err := combat.ApplyDeathSave(c, roll)
	if err != nil {
		return combat.DeathSaveResult{}, err
	}
	e.appendEvent(combat.Event{
		Type:        combat.EventDeathSaveResolved,
		EncounterID: e.ID.String(),
		CombatantID: id,
		Data: map[string]interface{}{
			"roll":      roll,
			"status":    string(result.Status),
			"successes": result.Successes,
			"failures":  result.Failures,
		},
	})
	return result, nil
}

// Stabilize force-stabilizes a dying PC without a roll.
func (e *Encounter) Stabilize(id string) error {
	c, err := e.Combatant(id)
	if err != nil {
		return err
	}
	if err := combat.Stabilize(c); err != nil {
		return err
	}
	e.appendEvent(combat.Event{
		Type:        combat.EventStabilized,
		EncounterID: e.ID.String(),
		CombatantID: id,
	})
	return nil
}

// Revive restores an unconscious PC to the given HP.
func (e *Encounter) Revive(id string, hp int) error {
	c, err := e.Combatant(id)
	if err != nil {
		return err
	}
	if err := combat.Revive(c, hp); err != nil {
		return err
	}
	e.appendEvent(combat.Event{
		Type:        combat.EventRevived,
		EncounterID: e.ID.String(),
		CombatantID: id,
		Data:        map[string]interface{}{"hp": hp},
	})
	return nil
}

// BreakConcentration clears a combatant's concentrating flag.
func (e *Encounter) BreakConcentration(id string) error {
	c, err := e.Combatant(id)
	if err != nil {
		return err
	}
	if combat.BreakConcentration(c) {
		e.appendEvent(combat.Event{
			Type:        combat.EventConcentrationBroken,
			EncounterID: e.ID.String(),
			CombatantID: id,
		})
	}
	return nil
}

// AdvanceTurn moves the clock to the next entry of the computed order.
// Under popcorn initiative the caller may pass the ID of the nominated
// next combatant; the engine never picks one itself. For all other
// systems nominee must be empty.
func (e *Encounter) AdvanceTurn(nominee string) (*initiative.Entry, error) {
	if e.Order == nil || len(e.Order.Entries) == 0 {
		return nil, fmt.Errorf("%w: no turn order has been rolled", combatant.ErrInvariant)
	}

	if nominee != "" {
		if e.System != initiative.SystemPopcorn {
			return nil, fmt.Errorf("%w: nominated turns are only valid under popcorn initiative", combatant.ErrConfiguration)
		}
		idx := e.Order.IndexOf(nominee)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, nominee)
		}
		e.Clock.Turn = idx
	} else {
		if _, err := e.Clock.Advance(len(e.Order.Entries), e.defeatedAt); err != nil {
			return nil, err
		}
	}

	entry := &e.Order.Entries[e.Clock.Turn]
	e.appendEvent(combat.Event{
		Type:        combat.EventTurnAdvanced,
		EncounterID: e.ID.String(),
		CombatantID: entry.CombatantID,
		Data: map[string]interface{}{
			"round": e.Clock.Round,
			"turn":  e.Clock.Turn,
		},
	})
	return entry, nil
}

func (e *Encounter) defeatedAt(idx int) bool {
	c, err := e.Combatant(e.Order.Entries[idx].CombatantID)
	if err != nil {
		return false
	}
	return c.IsDefeated()
}

// ActiveCombatant returns the roster member whose turn it is.
func (e *Encounter) ActiveCombatant() (*combatant.Combatant, error) {
	if e.Order == nil || len(e.Order.Entries) == 0 {
		return nil, fmt.Errorf("%w: no turn order has been rolled", combatant.ErrInvariant)
	}
	return e.Combatant(e.Order.Entries[e.Clock.Turn].CombatantID)
}

// DrainEvents returns and clears the pending event list.
func (e *Encounter) DrainEvents() []combat.Event {
	events := e.Events
	e.Events = nil
	return events
}

func (e *Encounter) appendEvent(ev combat.Event) {
	e.Events = append(e.Events, ev)
	e.UpdatedAt = time.Now().UTC()
}
