package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	encounters map[uuid.UUID]*encounter.Encounter
	templates  map[string]*combatant.Spec
	pingError  error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		encounters: make(map[uuid.UUID]*encounter.Encounter),
		templates:  make(map[string]*combatant.Spec),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveEncounter mocks saving an encounter
func (m *MockStorage) SaveEncounter(ctx context.Context, id uuid.UUID, e *encounter.Encounter) error {
	if e == nil {
		return errors.New("encounter cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encounters[id] = e
	return nil
}

// LoadEncounter mocks loading an encounter
func (m *MockStorage) LoadEncounter(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, exists := m.encounters[id]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return e, nil
}

// DeleteEncounter mocks deleting an encounter
func (m *MockStorage) DeleteEncounter(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.encounters, id)
	return nil
}

// ListTemplates mocks listing combatant templates
func (m *MockStorage) ListTemplates(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.templates))
	for id := range m.templates {
		result = append(result, id)
	}
	return result, nil
}

// GetTemplate mocks getting a combatant template by ID
func (m *MockStorage) GetTemplate(ctx context.Context, templateID string) (*combatant.Spec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spec, exists := m.templates[templateID]
	if !exists {
		return nil, errors.New("template not found")
	}
	return spec, nil
}

// AddTemplate adds a combatant template to the mock storage (for testing)
func (m *MockStorage) AddTemplate(templateID string, spec *combatant.Spec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[templateID] = spec
}
