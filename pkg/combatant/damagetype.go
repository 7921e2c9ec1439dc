package combatant

import "fmt"

// DamageType is a damage classification tag used by the resolver to
// look up resistances, immunities, and vulnerabilities.
type DamageType string

const (
	DamageAcid        DamageType = "acid"
	DamageBludgeoning DamageType = "bludgeoning"
	DamageCold        DamageType = "cold"
	DamageFire        DamageType = "fire"
	DamageForce       DamageType = "force"
	DamageLightning   DamageType = "lightning"
	DamageNecrotic    DamageType = "necrotic"
	DamagePiercing    DamageType = "piercing"
	DamagePoison      DamageType = "poison"
	DamagePsychic     DamageType = "psychic"
	DamageRadiant     DamageType = "radiant"
	DamageSlashing    DamageType = "slashing"
	DamageThunder     DamageType = "thunder"

	// DamageUntyped is the zero value. Untyped damage never matches a
	// modifier set.
	DamageUntyped DamageType = ""
)

var damageTypes = map[DamageType]bool{
	DamageAcid:        true,
	DamageBludgeoning: true,
	DamageCold:        true,
	DamageFire:        true,
	DamageForce:       true,
	DamageLightning:   true,
	DamageNecrotic:    true,
	DamagePiercing:    true,
	DamagePoison:      true,
	DamagePsychic:     true,
	DamageRadiant:     true,
	DamageSlashing:    true,
	DamageThunder:     true,
	DamageUntyped:     true,
}

// ParseDamageType validates a damage type tag. The empty string is
// valid and means untyped damage.
func ParseDamageType(s string) (DamageType, error) {
	dt := DamageType(s)
	if !damageTypes[dt] {
		return DamageUntyped, fmt.Errorf("%w: unknown damage type %q", ErrConfiguration, s)
	}
	return dt, nil
}
