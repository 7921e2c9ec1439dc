package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

// Storage defines a unified interface for all storage operations:
// encounter persistence (Redis) and combatant template loading
// (filesystem). The engine core never touches storage; only the API
// and worker layers do, after a mutation completes.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Encounter operations (Redis-backed)
	SaveEncounter(ctx context.Context, id uuid.UUID, e *encounter.Encounter) error
	LoadEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)
	DeleteEncounter(ctx context.Context, id uuid.UUID) error

	// Combatant template operations (filesystem-backed)
	ListTemplates(ctx context.Context) ([]string, error)
	GetTemplate(ctx context.Context, templateID string) (*combatant.Spec, error)
}
