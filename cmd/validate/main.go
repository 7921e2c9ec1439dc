package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <template.json> [more templates...]\n", os.Args[0])
		os.Exit(1)
	}

	validator := &TemplateValidator{}
	failed := false

	for _, filename := range os.Args[1:] {
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}

	if failed {
		os.Exit(1)
	}
}

type TemplateValidator struct {
	errors []string
}

func (v *TemplateValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	// Validate filename format
	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("template file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidTemplateFilename(nameWithoutExt) {
		return fmt.Errorf("template filename '%s' must be lowercase snake_case (e.g., giant_rat.json, not GiantRat.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var spec combatant.Spec
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&spec); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.validateSpec(&spec, nameWithoutExt)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

func (v *TemplateValidator) validateSpec(spec *combatant.Spec, expectedID string) {
	if spec.ID == "" {
		v.addError("template is missing required field 'id'")
	} else {
		if !isValidID(spec.ID) {
			v.addError(fmt.Sprintf("id '%s' should be lowercase snake_case", spec.ID))
		}
		if spec.ID != expectedID {
			v.addError(fmt.Sprintf("id '%s' does not match filename '%s.json'", spec.ID, expectedID))
		}
	}

	// The engine constructor enforces the full rule set; running it here
	// surfaces the same errors the API would return at encounter creation.
	if _, err := combatant.New(spec); err != nil {
		v.addError(err.Error())
	}

	if spec.HP != 0 && spec.HP != spec.MaxHP {
		v.addError(fmt.Sprintf("template hp (%d) should be omitted or equal max_hp (%d); current HP belongs to encounters, not templates", spec.HP, spec.MaxHP))
	}

	if spec.Stats == (combatant.Stats5e{}) {
		v.addError("template has no ability scores; initiative ties fall back to DEX 0")
	}
}

func (v *TemplateValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidTemplateFilename(name string) bool {
	// Allow 'x.' prefix for experimental templates
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
