package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

const (
	// PollInterval is how often to check the encounter for updates
	PollInterval = 1 * time.Second
	// EffectTimeout is max time to wait for the worker to apply a
	// queued effect or turn request
	EffectTimeout = 30 * time.Second
)

// GetEncounter retrieves the current encounter state
func GetEncounter(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID) (*encounter.Encounter, error) {
	url := fmt.Sprintf("%s/v1/encounters/%s", baseURL, encounterID.String())
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create encounter request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send encounter request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("encounter endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var enc encounter.Encounter
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return nil, fmt.Errorf("failed to decode encounter: %w", err)
	}

	return &enc, nil
}

// PollForEncounterUpdate polls the encounter until its UpdatedAt
// timestamp moves past the given baseline, meaning the worker has
// applied a queued request. Returns the updated encounter.
func PollForEncounterUpdate(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID, since time.Time) (*encounter.Encounter, error) {
	timeout := time.After(EffectTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for encounter update (waited %v)", EffectTimeout)
		case <-ticker.C:
			enc, err := GetEncounter(ctx, client, baseURL, encounterID)
			if err != nil {
				// Log error but continue polling
				continue
			}

			if enc.UpdatedAt.After(since) {
				return enc, nil
			}
		}
	}
}
