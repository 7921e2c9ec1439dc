package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/combat-engine/pkg/combat"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeDamage applies a damage instruction to a combatant
	RequestTypeDamage RequestType = "damage"

	// RequestTypeHeal applies healing to a combatant
	RequestTypeHeal RequestType = "heal"

	// RequestTypeTempHP grants temporary hit points to a combatant
	RequestTypeTempHP RequestType = "temp_hp"

	// RequestTypeDeathSave resolves a death saving throw
	RequestTypeDeathSave RequestType = "death_save"

	// RequestTypeAdvanceTurn advances the combat clock, applying any
	// pending effects queued for the encounter first
	RequestTypeAdvanceTurn RequestType = "advance_turn"
)

// Request represents a unified combat request in the queue
type Request struct {
	RequestID   string      `json:"request_id"`
	Type        RequestType `json:"type"`
	EncounterID uuid.UUID   `json:"encounter_id"`

	// Target combatant ID for damage, heal, temp_hp and death_save
	Target string `json:"target,omitempty"`

	// Damage-specific payload
	Damage *combat.DamageInstruction `json:"damage,omitempty"`

	// Heal and temp_hp amount
	Amount int `json:"amount,omitempty"`

	// Death save d20 result
	Roll int `json:"roll,omitempty"`

	// Popcorn nomination for advance_turn
	Nominee string `json:"nominee,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// MarshalJSON serializes the request to JSON for Redis storage
func (r *Request) MarshalJSON() ([]byte, error) {
	type Alias Request
	return json.Marshal(&struct {
		EncounterID string `json:"encounter_id"`
		*Alias
	}{
		EncounterID: r.EncounterID.String(),
		Alias:       (*Alias)(r),
	})
}

// UnmarshalJSON deserializes the request from JSON in Redis
func (r *Request) UnmarshalJSON(data []byte) error {
	type Alias Request
	aux := &struct {
		EncounterID string `json:"encounter_id"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	encounterID, err := uuid.Parse(aux.EncounterID)
	if err != nil {
		return err
	}

	r.EncounterID = encounterID
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
