// Package initiative computes turn order for a set of combatants under
// one of four conventions. Ordering is a pure function of the
// combatant data, the injected dice roller, and the chosen system:
// identical inputs always produce an identical order.
package initiative

import (
	"fmt"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

// System selects a turn-ordering convention. The set is closed;
// unknown identifiers are a configuration error, never silently
// defaulted to standard.
type System string

const (
	// SystemStandard rolls per combatant; ties break by DEX modifier
	// then name.
	SystemStandard System = "standard"
	// SystemGroup rolls once per group: each PC alone, monsters
	// grouped by name with trailing sequence numbers stripped.
	SystemGroup System = "group"
	// SystemSide rolls once per side, all PCs versus all monsters.
	SystemSide System = "side"
	// SystemPopcorn seeds the order with the standard rule; the
	// current actor nominates the next, supplied turn-by-turn by the
	// caller.
	SystemPopcorn System = "popcorn"
)

// ParseSystem validates a system identifier.
func ParseSystem(s string) (System, error) {
	switch System(s) {
	case SystemStandard, SystemGroup, SystemSide, SystemPopcorn:
		return System(s), nil
	default:
		return "", fmt.Errorf("%w: unknown initiative system %q", combatant.ErrConfiguration, s)
	}
}
