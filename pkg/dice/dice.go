// Package dice provides the randomness abstraction for the combat engine.
// All rolls flow through an injected Roller so that resolution is
// deterministic and testable; nothing in the engine touches a global
// random source.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Roller is the randomness provider for engine rolls.
type Roller interface {
	// Roll returns a uniformly random result in [1, sides].
	Roll(sides int) int
}

// Mode selects how a d20 roll is made.
type Mode int

const (
	Normal Mode = iota
	Advantage
	Disadvantage
)

func (m Mode) String() string {
	switch m {
	case Advantage:
		return "advantage"
	case Disadvantage:
		return "disadvantage"
	default:
		return "normal"
	}
}

// Source is a seeded pseudo-random Roller.
type Source struct {
	rng *rand.Rand
}

// NewSource creates a Roller seeded with the given value. Identical
// seeds produce identical roll sequences.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

func (s *Source) Roll(sides int) int {
	if sides <= 0 {
		panic(fmt.Sprintf("dice: Roll called with non-positive sides %d", sides))
	}
	return s.rng.Intn(sides) + 1
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// D20 rolls a twenty-sided die under the given mode. Advantage takes
// the higher of two rolls, disadvantage the lower.
func D20(r Roller, mode Mode) int {
	first := r.Roll(20)
	if mode == Normal {
		return first
	}
	second := r.Roll(20)
	if mode == Advantage {
		return max(first, second)
	}
	return min(first, second)
}

// Fixed is a scripted Roller for tests. It returns the configured
// results in order and panics when the script is exhausted, so a test
// that consumes more rolls than it planned fails loudly.
type Fixed struct {
	rolls []int
	next  int
}

// NewFixed creates a Fixed roller that yields the given results in order.
func NewFixed(rolls ...int) *Fixed {
	return &Fixed{rolls: rolls}
}

func (f *Fixed) Roll(sides int) int {
	if f.next >= len(f.rolls) {
		panic(fmt.Sprintf("dice: Fixed roller exhausted after %d rolls", len(f.rolls)))
	}
	v := f.rolls[f.next]
	f.next++
	return v
}
