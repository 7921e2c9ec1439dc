package combatant

import "errors"

// Error taxonomy shared by the engine packages. Callers match with
// errors.Is; individual sites wrap these with context via fmt.Errorf.
var (
	// ErrConfiguration marks invalid configuration input: an unknown
	// initiative system or damage type tag.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvariant marks input that would corrupt combat bookkeeping:
	// non-positive max HP, non-positive raw damage, or a death save
	// against a combatant that is not dying. The engine rejects these
	// rather than silently correcting them.
	ErrInvariant = errors.New("invariant violation")
)
