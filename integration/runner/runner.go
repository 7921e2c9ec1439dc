package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running combat-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence.
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	// This is a sequence - load all referenced cases
	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	encounterID, err := r.seedEncounter(ctx, suite.Encounter)
	if err != nil {
		result.Error = fmt.Errorf("failed to seed encounter: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Encounter = encounterID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, encounterID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] FAIL %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] OK %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// seedEncounter creates the encounter for a test run
func (r *Runner) seedEncounter(ctx context.Context, seed EncounterSeed) (uuid.UUID, error) {
	body, err := json.Marshal(seed)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to marshal encounter seed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.BaseURL+"/v1/encounters", bytes.NewBuffer(body))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to create encounter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return uuid.UUID{}, fmt.Errorf("create encounter returned %d: %s", resp.StatusCode, string(respBody))
	}

	var enc encounter.Encounter
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to decode created encounter: %w", err)
	}

	return enc.ID, nil
}

// runStep executes a single test step and checks expectations
func (r *Runner) runStep(ctx context.Context, encounterID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	preState, err := GetEncounter(ctx, r.Client, r.BaseURL, encounterID)
	if err != nil {
		result.Error = fmt.Errorf("failed to get encounter before step: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := r.postStep(ctx, encounterID, step); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	var postState *encounter.Encounter
	if step.Async {
		postState, err = PollForEncounterUpdate(ctx, r.Client, r.BaseURL, encounterID, preState.UpdatedAt)
	} else {
		postState, err = GetEncounter(ctx, r.Client, r.BaseURL, encounterID)
	}
	if err != nil {
		result.Error = fmt.Errorf("failed to get encounter after step: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := checkExpectations(step, postState); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// postStep sends the step's action to the API
func (r *Runner) postStep(ctx context.Context, encounterID uuid.UUID, step TestStep) error {
	payload := map[string]interface{}{}
	switch step.Action {
	case "initiative":
		if step.Seed != 0 {
			payload["seed"] = step.Seed
		}
	case "turn":
		if step.Nominee != "" {
			payload["nominee"] = step.Nominee
		}
	case "damage", "effects":
		damage := map[string]interface{}{"amount": step.Amount}
		if step.Type != "" {
			damage["type"] = step.Type
		}
		payload["target"] = step.Target
		payload["damage"] = damage
	case "heal", "temp-hp":
		payload["target"] = step.Target
		payload["amount"] = step.Amount
	case "death-save":
		payload["target"] = step.Target
		payload["roll"] = step.Roll
	case "stabilize", "concentration":
		payload["target"] = step.Target
	case "revive":
		payload["target"] = step.Target
		payload["hp"] = step.Amount
	default:
		return fmt.Errorf("unknown step action %q", step.Action)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", step.Action, err)
	}

	url := fmt.Sprintf("%s/v1/encounters/%s/%s", r.BaseURL, encounterID.String(), step.Action)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", step.Action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %s: %w", step.Action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", step.Action, resp.StatusCode, string(respBody))
	}

	return nil
}

// checkExpectations validates the test expectations against the
// encounter state after the step
func checkExpectations(step TestStep, post *encounter.Encounter) error {
	exp := step.Expectations

	if exp.HP != nil || exp.TempHP != nil || exp.Dead != nil || exp.Stabilized != nil ||
		exp.Concentrating != nil || exp.DeathSaveSuccesses != nil || exp.DeathSaveFailures != nil {
		if step.Target == "" {
			return fmt.Errorf("step %q has combatant expectations but no target", step.Name)
		}
		c, err := post.Combatant(step.Target)
		if err != nil {
			return fmt.Errorf("target %s not in encounter: %w", step.Target, err)
		}

		if exp.HP != nil && c.HP != *exp.HP {
			return fmt.Errorf("expected %s hp %d, got %d", c.ID, *exp.HP, c.HP)
		}
		if exp.TempHP != nil && c.TempHP != *exp.TempHP {
			return fmt.Errorf("expected %s temp_hp %d, got %d", c.ID, *exp.TempHP, c.TempHP)
		}
		if exp.Dead != nil && c.Dead != *exp.Dead {
			return fmt.Errorf("expected %s dead=%t, got %t", c.ID, *exp.Dead, c.Dead)
		}
		if exp.Stabilized != nil && c.Stabilized != *exp.Stabilized {
			return fmt.Errorf("expected %s stabilized=%t, got %t", c.ID, *exp.Stabilized, c.Stabilized)
		}
		if exp.Concentrating != nil && c.Concentrating != *exp.Concentrating {
			return fmt.Errorf("expected %s concentrating=%t, got %t", c.ID, *exp.Concentrating, c.Concentrating)
		}
		if exp.DeathSaveSuccesses != nil && c.DeathSaves.Successes != *exp.DeathSaveSuccesses {
			return fmt.Errorf("expected %s death save successes %d, got %d", c.ID, *exp.DeathSaveSuccesses, c.DeathSaves.Successes)
		}
		if exp.DeathSaveFailures != nil && c.DeathSaves.Failures != *exp.DeathSaveFailures {
			return fmt.Errorf("expected %s death save failures %d, got %d", c.ID, *exp.DeathSaveFailures, c.DeathSaves.Failures)
		}
	}

	if exp.Round != nil {
		if post.Clock == nil {
			return fmt.Errorf("expected round %d, but encounter has no clock", *exp.Round)
		}
		if post.Clock.Round != *exp.Round {
			return fmt.Errorf("expected round %d, got %d", *exp.Round, post.Clock.Round)
		}
	}

	if exp.OrderLength != nil {
		got := 0
		if post.Order != nil {
			got = len(post.Order.Entries)
		}
		if got != *exp.OrderLength {
			return fmt.Errorf("expected %d order entries, got %d", *exp.OrderLength, got)
		}
	}

	if exp.ActiveCombatant != nil {
		if post.Order == nil || len(post.Order.Entries) == 0 {
			return fmt.Errorf("expected active combatant %s, but no order is rolled", *exp.ActiveCombatant)
		}
		active := post.Order.Entries[post.Clock.Turn].CombatantID
		if active != *exp.ActiveCombatant {
			return fmt.Errorf("expected active combatant %s, got %s", *exp.ActiveCombatant, active)
		}
	}

	return nil
}
