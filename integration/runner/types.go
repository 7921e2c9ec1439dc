package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

// TestSuite defines a complete integration test scenario.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name      string        `json:"name"`
	Encounter EncounterSeed `json:"encounter,omitempty"` // Used for regular tests
	Steps     []TestStep    `json:"steps,omitempty"`     // Used for regular tests
	Cases     []string      `json:"cases,omitempty"`     // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// EncounterSeed describes the encounter created for a test run
type EncounterSeed struct {
	Name       string          `json:"name,omitempty"`
	System     string          `json:"system,omitempty"`
	Combatants []CombatantSeed `json:"combatants"`
}

// CombatantSeed mirrors the API's roster entry: inline spec or
// template reference with optional overrides.
type CombatantSeed struct {
	Template string          `json:"template,omitempty"`
	Spec     *combatant.Spec `json:"spec,omitempty"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
}

// TestStep defines a single combat action and its expected outcomes
type TestStep struct {
	Name   string `json:"name,omitempty"`
	Action string `json:"action"` // initiative, turn, damage, heal, temp-hp, death-save, stabilize, revive, concentration, effects
	Target string `json:"target,omitempty"`
	Amount int    `json:"amount,omitempty"`
	Type   string `json:"type,omitempty"` // damage type for damage/effects steps
	Roll   int    `json:"roll,omitempty"` // d20 roll for death-save steps
	Seed   int64  `json:"seed,omitempty"` // deterministic seed for initiative steps
	Nominee string `json:"nominee,omitempty"`

	// Async marks steps whose outcome is applied by the worker; the
	// runner polls the encounter instead of checking immediately.
	Async bool `json:"async,omitempty"`

	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes.
// Combatant fields check the step's Target; clock fields check the
// encounter as a whole.
type Expectations struct {
	HP                 *int    `json:"hp,omitempty"`
	TempHP             *int    `json:"temp_hp,omitempty"`
	Dead               *bool   `json:"dead,omitempty"`
	Stabilized         *bool   `json:"stabilized,omitempty"`
	Concentrating      *bool   `json:"concentrating,omitempty"`
	DeathSaveSuccesses *int    `json:"death_save_successes,omitempty"`
	DeathSaveFailures  *int    `json:"death_save_failures,omitempty"`
	Round              *int    `json:"round,omitempty"`
	ActiveCombatant    *string `json:"active_combatant,omitempty"`
	OrderLength        *int    `json:"order_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	Encounter uuid.UUID // ID of the encounter used for this test
}
