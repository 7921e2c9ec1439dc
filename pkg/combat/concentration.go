package combat

import "github.com/jwebster45206/combat-engine/pkg/combatant"

// ConcentrationDC computes the Constitution save DC to maintain
// concentration after taking damage: half the damage, minimum 10.
func ConcentrationDC(damage int) int {
	dc := damage / 2
	if dc < 10 {
		dc = 10
	}
	return dc
}

// BreakConcentration clears the concentrating flag. Removal of the
// spell effect itself is the caller's responsibility. Returns true if
// the combatant was concentrating.
func BreakConcentration(c *combatant.Combatant) bool {
	if c == nil || !c.Concentrating {
		return false
	}
	c.Concentrating = false
	return true
}
