package combat

// EventType classifies a combat event. Renderers and persistence
// subscribe to one typed stream instead of registering per-subsystem
// callbacks.
type EventType string

const (
	EventDamageApplied       EventType = "combat.damage_applied"
	EventHealingApplied      EventType = "combat.healing_applied"
	EventTempHPGranted       EventType = "combat.temp_hp_granted"
	EventDeathSaveResolved   EventType = "combat.death_save_resolved"
	EventStabilized          EventType = "combat.stabilized"
	EventRevived             EventType = "combat.revived"
	EventConcentrationBroken EventType = "combat.concentration_broken"
	EventOrderComputed       EventType = "combat.order_computed"
	EventTurnAdvanced        EventType = "combat.turn_advanced"
)

// Event is one entry in the combat event stream.
type Event struct {
	Type        EventType              `json:"type"`
	EncounterID string                 `json:"encounter_id,omitempty"`
	CombatantID string                 `json:"combatant_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}
