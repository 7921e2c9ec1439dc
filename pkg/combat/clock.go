package combat

import (
	"fmt"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

// Clock tracks the active position in a turn order and the round
// counter. It is pure index arithmetic; the order itself comes from
// the initiative package.
type Clock struct {
	Round int `json:"round"`
	Turn  int `json:"turn"` // index into the current order

	// SkipDefeated makes Advance pass over combatants reported as
	// defeated. Unconscious PCs are not defeated; they keep their turn
	// for death saves.
	SkipDefeated bool `json:"skip_defeated,omitempty"`
}

// NewClock returns a clock at round 1, first turn.
func NewClock() *Clock {
	return &Clock{Round: 1}
}

// Advance moves the clock to the next turn of an order with orderLen
// entries. The round counter increments when the clock wraps past the
// end of the order. When SkipDefeated is set, defeated reports whether
// the entry at an index is out of the fight; if every entry is
// defeated the clock completes one full pass and stops rather than
// looping forever.
func (k *Clock) Advance(orderLen int, defeated func(idx int) bool) (int, error) {
	if orderLen <= 0 {
		return 0, fmt.Errorf("%w: cannot advance an empty turn order", combatant.ErrInvariant)
	}
	if k.Turn < 0 || k.Turn >= orderLen {
		return 0, fmt.Errorf("%w: current turn index %d outside order of length %d", combatant.ErrInvariant, k.Turn, orderLen)
	}

	next := k.Turn
	for step := 1; step <= orderLen; step++ {
		next = (k.Turn + step) % orderLen
		if next == 0 {
			k.Round++
		}
		if !k.SkipDefeated || defeated == nil || !defeated(next) {
			break
		}
	}
	k.Turn = next
	return next, nil
}
