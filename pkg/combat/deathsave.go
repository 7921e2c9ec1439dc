package combat

import (
	"fmt"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

// DeathSaveStatus is the state of a dying PC after a saving throw.
type DeathSaveStatus string

const (
	// DeathSavePending means the episode continues: more saves are owed.
	DeathSavePending DeathSaveStatus = "pending"
	// DeathSaveStabilized means three successes were reached; both
	// counters reset and no further saves are owed until damaged again.
	DeathSaveStabilized DeathSaveStatus = "stabilized"
	// DeathSaveRevived means a natural 20 restored the PC to 1 HP.
	DeathSaveRevived DeathSaveStatus = "revived"
	// DeathSaveDead means three failures were reached. Terminal.
	DeathSaveDead DeathSaveStatus = "dead"
)

// DeathSaveResult reports the effect of one death saving throw.
type DeathSaveResult struct {
	CombatantID string          `json:"combatant_id"`
	Roll        int             `json:"roll"`
	Status      DeathSaveStatus `json:"status"`
	Successes   int             `json:"successes"`
	Failures    int             `json:"failures"`
}

// ApplyDeathSave resolves a death saving throw for a dying PC.
//
//	20      -> revived at 1 HP, counters reset
//	1       -> two failures
//	10..19  -> one success
//	2..9    -> one failure
//
// Three successes stabilize and reset both counters; three failures
// are terminal. Calling this on a combatant that is not dying is
// rejected with ErrInvariant: a dead combatant accepts no further
// death-save input, and a conscious or stabilized one owes none.
func ApplyDeathSave(c *combatant.Combatant, roll int) (DeathSaveResult, error) {
	if c == nil {
		return DeathSaveResult{}, fmt.Errorf("combatant cannot be nil")
	}
	if roll < 1 || roll > 20 {
		return DeathSaveResult{}, fmt.Errorf("%w: death save roll must be a d20 result, got %d", combatant.ErrInvariant, roll)
	}
	if !c.IsDying() {
		return DeathSaveResult{}, fmt.Errorf("%w: death save on combatant %s which is not dying", combatant.ErrInvariant, c.ID)
	}

	result := DeathSaveResult{CombatantID: c.ID, Roll: roll}

	switch {
	case roll == 20:
		c.SetHP(1)
		c.DeathSaves = combatant.DeathSaves{}
		c.Stabilized = false
		result.Status = DeathSaveRevived
		return result, nil
	case roll == 1:
		c.DeathSaves.Failures += 2
	case roll >= 10:
		c.DeathSaves.Successes++
	default:
		c.DeathSaves.Failures++
	}

	if c.DeathSaves.Failures >= 3 {
		c.DeathSaves.Failures = 3
		c.Dead = true
		result.Status = DeathSaveDead
	} else if c.DeathSaves.Successes >= 3 {
		c.DeathSaves = combatant.DeathSaves{}
		c.Stabilized = true
		result.Status = DeathSaveStabilized
	} else {
		result.Status = DeathSavePending
	}

	result.Successes = c.DeathSaves.Successes
	result.Failures = c.DeathSaves.Failures
	return result, nil
}

// Stabilize force-resets the death-save counters without a roll, e.g.
// after a successful Medicine check or a spell. Legal only while dying.
func Stabilize(c *combatant.Combatant) error {
	if c == nil {
		return fmt.Errorf("combatant cannot be nil")
	}
	if !c.IsDying() {
		return fmt.Errorf("%w: stabilize on combatant %s which is not dying", combatant.ErrInvariant, c.ID)
	}
	c.DeathSaves = combatant.DeathSaves{}
	c.Stabilized = true
	return nil
}

// Revive restores an unconscious PC to the given HP and clears its
// dying state. Dead combatants stay dead.
func Revive(c *combatant.Combatant, hp int) error {
	if c == nil {
		return fmt.Errorf("combatant cannot be nil")
	}
	if c.Dead {
		return fmt.Errorf("%w: cannot revive a dead combatant", combatant.ErrInvariant)
	}
	if hp <= 0 {
		return fmt.Errorf("%w: revive HP must be positive, got %d", combatant.ErrInvariant, hp)
	}
	if !c.IsUnconscious() {
		return fmt.Errorf("%w: revive on combatant %s which is not unconscious", combatant.ErrInvariant, c.ID)
	}
	c.SetHP(hp)
	c.DeathSaves = combatant.DeathSaves{}
	c.Stabilized = false
	return nil
}
