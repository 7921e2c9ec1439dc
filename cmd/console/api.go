package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

// testConnection checks if the API is reachable
func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusServiceUnavailable
}

// listTemplates fetches the available combatant template IDs
func listTemplates(client *http.Client, baseURL string) ([]string, error) {
	resp, err := client.Get(baseURL + "/v1/templates")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("template list returned status %d", resp.StatusCode)
	}

	var result struct {
		Templates []string `json:"templates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode template list: %w", err)
	}
	return result.Templates, nil
}

// combatantEntry mirrors the API's roster entry shape: either a
// template reference or an inline spec.
type combatantEntry struct {
	Template string          `json:"template,omitempty"`
	Spec     *combatant.Spec `json:"spec,omitempty"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
}

type createEncounterRequest struct {
	Name       string           `json:"name,omitempty"`
	System     string           `json:"system,omitempty"`
	Combatants []combatantEntry `json:"combatants,omitempty"`
}

// createEncounter creates a new encounter on the API
func createEncounter(client *http.Client, baseURL string, req createEncounterRequest) (*encounter.Encounter, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal encounter request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/encounters", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create encounter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}

	var enc encounter.Encounter
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return nil, fmt.Errorf("failed to decode encounter: %w", err)
	}
	return &enc, nil
}

// getEncounter fetches the current encounter state
func getEncounter(client *http.Client, baseURL, encounterID string) (*encounter.Encounter, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/encounters/%s", baseURL, encounterID))
	if err != nil {
		return nil, fmt.Errorf("failed to get encounter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var enc encounter.Encounter
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return nil, fmt.Errorf("failed to decode encounter: %w", err)
	}
	return &enc, nil
}

// postAction sends a combat action to the encounter and returns the
// raw response body for display. Actions with no response body (204)
// return nil.
func postAction(client *http.Client, baseURL, encounterID, action string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", action, err)
		}
		body = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s/v1/encounters/%s/%s", baseURL, encounterID, action)
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post %s: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return io.ReadAll(resp.Body)
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, apiError(resp)
	}
}

type damageActionRequest struct {
	Target string                   `json:"target"`
	Damage combat.DamageInstruction `json:"damage"`
}

type amountActionRequest struct {
	Target string `json:"target"`
	Amount int    `json:"amount"`
}

type rollActionRequest struct {
	Target string `json:"target"`
	Roll   int    `json:"roll"`
}

type targetActionRequest struct {
	Target string `json:"target"`
}

type reviveActionRequest struct {
	Target string `json:"target"`
	HP     int    `json:"hp"`
}

type seedActionRequest struct {
	Seed int64 `json:"seed"`
}

type nomineeActionRequest struct {
	Nominee string `json:"nominee,omitempty"`
}

// apiError reads an ErrorResponse body and turns it into an error
func apiError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("%s (status %d)", errResp.Error, resp.StatusCode)
	}
	return fmt.Errorf("API returned status %d", resp.StatusCode)
}

// SSEEvent represents a parsed server-sent event
type SSEEvent struct {
	Event string
	Data  string
}

// listenToSSE connects to the encounter event stream and forwards
// parsed events onto the channel until the context is cancelled.
func listenToSSE(ctx context.Context, client *http.Client, baseURL, encounterID string, events chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/v1/events/encounters/%s", baseURL, encounterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The shared client has a request timeout; streaming needs its own
	// client without one.
	streamClient := &http.Client{Transport: client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SSE stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event SSEEvent
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			event.Event = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			event.Data = strings.TrimPrefix(line, "data: ")
		} else if line == "" && event.Event != "" {
			select {
			case events <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
			event = SSEEvent{}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("SSE stream error: %w", err)
	}
	return nil
}
