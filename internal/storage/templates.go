package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
)

// Combatant template operations (filesystem-backed). Templates are
// JSON combatant specs under <dataDir>/combatants.

func (r *RedisStorage) GetTemplate(ctx context.Context, templateID string) (*combatant.Spec, error) {
	path := filepath.Join(r.dataDir, "combatants", templateID+".json")
	r.logger.Debug("Loading combatant template", "templateID", templateID, "full_path", path)

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Error("Combatant template file not found", "path", path, "error", err)
			return nil, fmt.Errorf("combatant template not found: %s", templateID)
		}
		return nil, fmt.Errorf("failed to read combatant template file: %w", err)
	}

	var spec combatant.Spec
	if err := json.Unmarshal(file, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal combatant template: %w", err)
	}

	return &spec, nil
}

func (r *RedisStorage) ListTemplates(ctx context.Context) ([]string, error) {
	templatesDir := filepath.Join(r.dataDir, "combatants")
	templates := []string{}

	if _, err := os.Stat(templatesDir); os.IsNotExist(err) {
		r.logger.Debug("Combatants directory does not exist", "path", templatesDir)
		return templates, nil // Return empty list if directory doesn't exist
	}

	err := filepath.WalkDir(templatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		templates = append(templates, strings.TrimSuffix(filepath.Base(path), ".json"))
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk combatants directory", "error", err)
		return nil, fmt.Errorf("failed to list combatant templates: %w", err)
	}

	return templates, nil
}
