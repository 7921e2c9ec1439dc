package initiative

import (
	"fmt"
	"sort"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/dice"
)

// Entry is one position in a computed turn order.
type Entry struct {
	CombatantID string         `json:"combatant_id"`
	Name        string         `json:"name"`
	Kind        combatant.Kind `json:"kind"`
	Initiative  int            `json:"initiative"`
	DexMod      int            `json:"dex_mod"`
	// Group labels the initiative group for the group and side systems.
	Group string `json:"group,omitempty"`
}

// Order is a computed turn sequence.
type Order struct {
	System  System  `json:"system"`
	Entries []Entry `json:"entries"`
}

// IndexOf returns the position of a combatant in the order, or -1.
func (o *Order) IndexOf(combatantID string) int {
	for i, e := range o.Entries {
		if e.CombatantID == combatantID {
			return i
		}
	}
	return -1
}

// RollForCombatant rolls initiative for one combatant: a d20 (or the
// max/min of two under advantage/disadvantage) plus the combatant's
// initiative modifier. The result is stored on the combatant and
// returned.
func RollForCombatant(c *combatant.Combatant, r dice.Roller, mode dice.Mode) int {
	roll := dice.D20(r, mode)
	c.Initiative = roll + c.InitiativeMod()
	return c.Initiative
}

// ComputeOrder produces the turn sequence for the given system. The
// roller is consumed in the order combatants appear in the input
// slice, so a fixed roller yields a fully reproducible order. An empty
// input returns an empty order.
//
// Popcorn seeds the order with the standard rule; the nominated-next
// choice is supplied turn-by-turn by the caller, not simulated here.
func ComputeOrder(combatants []*combatant.Combatant, system System, r dice.Roller) (*Order, error) {
	if _, err := ParseSystem(string(system)); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: a dice roller is required", combatant.ErrConfiguration)
	}

	order := &Order{System: system, Entries: []Entry{}}
	if len(combatants) == 0 {
		return order, nil
	}

	switch system {
	case SystemStandard, SystemPopcorn:
		order.Entries = standardOrder(combatants, r)
	case SystemGroup:
		order.Entries = groupOrder(combatants, r)
	case SystemSide:
		order.Entries = sideOrder(combatants, r)
	}
	return order, nil
}

func entryFor(c *combatant.Combatant) Entry {
	return Entry{
		CombatantID: c.ID,
		Name:        c.Name,
		Kind:        c.Kind,
		Initiative:  c.Initiative,
		DexMod:      c.DexMod(),
	}
}

// standardOrder rolls per combatant and sorts by initiative
// descending, DEX modifier descending, then name ascending. The
// secondary and tertiary keys are fixed, never random.
func standardOrder(combatants []*combatant.Combatant, r dice.Roller) []Entry {
	entries := make([]Entry, 0, len(combatants))
	for _, c := range combatants {
		RollForCombatant(c, r, dice.Normal)
		entries = append(entries, entryFor(c))
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Initiative != b.Initiative {
			return a.Initiative > b.Initiative
		}
		if a.DexMod != b.DexMod {
			return a.DexMod > b.DexMod
		}
		return a.Name < b.Name
	})
}

type group struct {
	key        string
	label      string
	pc         bool
	members    []*combatant.Combatant
	modifier   int
	initiative int
}

// groupOrder rolls once per group using the highest initiative
// modifier among members. Each PC is its own group; monsters group by
// name with trailing sequence numbers stripped.
func groupOrder(combatants []*combatant.Combatant, r dice.Roller) []Entry {
	groups := buildGroups(combatants)

	// One roll per group, in first-appearance order.
	for _, g := range groups {
		g.initiative = dice.D20(r, dice.Normal) + g.modifier
		for _, m := range g.members {
			m.Initiative = g.initiative
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.initiative != b.initiative {
			return a.initiative > b.initiative
		}
		// PCs precede monsters on a tie.
		if a.pc != b.pc {
			return a.pc
		}
		if a.modifier != b.modifier {
			return a.modifier > b.modifier
		}
		return a.label < b.label
	})

	entries := make([]Entry, 0, len(combatants))
	for _, g := range groups {
		members := append([]*combatant.Combatant(nil), g.members...)
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.IsPC() != b.IsPC() {
				return a.IsPC()
			}
			if a.IsPC() && a.Initiative != b.Initiative {
				return a.Initiative > b.Initiative
			}
			return a.Name < b.Name
		})
		for _, m := range members {
			e := entryFor(m)
			e.Group = g.label
			entries = append(entries, e)
		}
	}
	return entries
}

func buildGroups(combatants []*combatant.Combatant) []*group {
	var groups []*group
	index := make(map[string]*group)

	for _, c := range combatants {
		var key, label string
		if c.IsPC() {
			key = "pc:" + c.ID
			label = c.Name
		} else {
			key = "monster:" + GroupName(c.Name)
			label = GroupLabel(GroupName(c.Name))
		}

		g, ok := index[key]
		if !ok {
			g = &group{key: key, label: label, pc: c.IsPC(), modifier: c.InitiativeMod()}
			index[key] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, c)
		if mod := c.InitiativeMod(); mod > g.modifier {
			g.modifier = mod
		}
	}
	return groups
}

// sideOrder rolls once per side (all PCs, all monsters) using each
// side's highest member modifier. The higher total acts first; the
// player side wins ties. Within a side the standard tie-break chain
// applies on the shared side initiative: DEX modifier descending, then
// name ascending.
func sideOrder(combatants []*combatant.Combatant, r dice.Roller) []Entry {
	var pcs, monsters []*combatant.Combatant
	for _, c := range combatants {
		if c.IsPC() {
			pcs = append(pcs, c)
		} else {
			monsters = append(monsters, c)
		}
	}

	// The PC side always rolls first so roller consumption is stable.
	pcInit := rollSide(pcs, r)
	monsterInit := rollSide(monsters, r)

	pcEntries := sideEntries(pcs, "Players")
	monsterEntries := sideEntries(monsters, "Monsters")

	if monsterInit > pcInit {
		return append(monsterEntries, pcEntries...)
	}
	return append(pcEntries, monsterEntries...)
}

func rollSide(side []*combatant.Combatant, r dice.Roller) int {
	if len(side) == 0 {
		return 0
	}
	mod := side[0].InitiativeMod()
	for _, c := range side[1:] {
		if m := c.InitiativeMod(); m > mod {
			mod = m
		}
	}
	init := dice.D20(r, dice.Normal) + mod
	for _, c := range side {
		c.Initiative = init
	}
	return init
}

func sideEntries(side []*combatant.Combatant, label string) []Entry {
	entries := make([]Entry, 0, len(side))
	for _, c := range side {
		e := entryFor(c)
		e.Group = label
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries
}
