package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/combat-engine/internal/services/events"
	"github.com/jwebster45206/combat-engine/internal/services/queue"
	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/dice"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
	"github.com/jwebster45206/combat-engine/pkg/initiative"
	"github.com/jwebster45206/combat-engine/pkg/storage"
)

// EncounterHandler handles encounter lifecycle and combat actions.
type EncounterHandler struct {
	storage     storage.Storage
	broadcaster *events.Broadcaster
	effectQueue *queue.EffectQueue
	logger      *slog.Logger
}

func NewEncounterHandler(storage storage.Storage, broadcaster *events.Broadcaster, effectQueue *queue.EffectQueue, logger *slog.Logger) *EncounterHandler {
	return &EncounterHandler{
		storage:     storage,
		broadcaster: broadcaster,
		effectQueue: effectQueue,
		logger:      logger,
	}
}

// ServeHTTP routes encounter requests.
// Routes:
//
//	POST   /v1/encounters                                - Create encounter
//	GET    /v1/encounters/{id}                           - Read encounter
//	DELETE /v1/encounters/{id}                           - Delete encounter
//	POST   /v1/encounters/{id}/combatants                - Add a combatant
//	DELETE /v1/encounters/{id}/combatants/{combatantID}  - Remove a combatant
//	POST   /v1/encounters/{id}/initiative                - Roll initiative
//	POST   /v1/encounters/{id}/turn                      - Advance the turn
//	POST   /v1/encounters/{id}/damage                    - Apply damage
//	POST   /v1/encounters/{id}/heal                      - Apply healing
//	POST   /v1/encounters/{id}/temp-hp                   - Grant temporary HP
//	POST   /v1/encounters/{id}/death-save                - Resolve a death save
//	POST   /v1/encounters/{id}/stabilize                 - Stabilize a dying PC
//	POST   /v1/encounters/{id}/revive                    - Revive an unconscious PC
//	POST   /v1/encounters/{id}/concentration             - Break concentration
//	POST   /v1/encounters/{id}/effects                   - Queue a pending effect
func (h *EncounterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/encounters")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 1 && parts[0] == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	encounterID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid encounter ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid encounter ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, encounterID)
		case http.MethodDelete:
			h.handleDelete(w, r, encounterID)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	action := parts[1]

	if action == "combatants" {
		switch {
		case r.Method == http.MethodPost && len(parts) == 2:
			h.handleAddCombatant(w, r, encounterID)
		case r.Method == http.MethodDelete && len(parts) == 3:
			h.handleRemoveCombatant(w, r, encounterID, parts[2])
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed for combatants")
		}
		return
	}

	if r.Method != http.MethodPost || len(parts) != 2 {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Actions are POST only")
		return
	}

	switch action {
	case "initiative":
		h.handleRollInitiative(w, r, encounterID)
	case "turn":
		h.handleAdvanceTurn(w, r, encounterID)
	case "damage":
		h.handleDamage(w, r, encounterID)
	case "heal":
		h.handleHeal(w, r, encounterID)
	case "temp-hp":
		h.handleTempHP(w, r, encounterID)
	case "death-save":
		h.handleDeathSave(w, r, encounterID)
	case "stabilize":
		h.handleStabilize(w, r, encounterID)
	case "revive":
		h.handleRevive(w, r, encounterID)
	case "concentration":
		h.handleConcentration(w, r, encounterID)
	case "effects":
		h.handleQueueEffect(w, r, encounterID)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown encounter action: "+action)
	}
}

// CombatantEntry names a roster member for encounter creation: either
// an inline spec or a template reference with optional ID and name
// overrides.
type CombatantEntry struct {
	Template string          `json:"template,omitempty"`
	Spec     *combatant.Spec `json:"spec,omitempty"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
}

// CreateEncounterRequest defines the request body for creating a new encounter
type CreateEncounterRequest struct {
	Name         string            `json:"name,omitempty"`
	System       initiative.System `json:"system"`
	SkipDefeated bool              `json:"skip_defeated,omitempty"`
	Combatants   []CombatantEntry  `json:"combatants,omitempty"`
}

func (h *EncounterHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new encounter")

	var req CreateEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if req.System == "" {
		req.System = initiative.SystemStandard
	}

	e, err := encounter.New(req.Name, req.System, req.SkipDefeated)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	for _, entry := range req.Combatants {
		spec, err := h.resolveEntry(r, entry)
		if err != nil {
			h.logger.Warn("Failed to resolve combatant entry", "template", entry.Template, "error", err)
			writeError(w, h.logger, http.StatusBadRequest, "Failed to resolve combatant: "+err.Error())
			return
		}
		if _, err := e.AddCombatant(spec); err != nil {
			writeEngineError(w, h.logger, err)
			return
		}
	}

	if err := h.storage.SaveEncounter(r.Context(), e.ID, e); err != nil {
		h.logger.Error("Failed to save new encounter", "error", err, "id", e.ID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create encounter")
		return
	}

	h.logger.Debug("Encounter created successfully", "id", e.ID.String())
	writeJSON(w, h.logger, http.StatusCreated, e)
}

// resolveEntry turns a creation entry into a combatant spec, loading
// the template from storage when referenced.
func (h *EncounterHandler) resolveEntry(r *http.Request, entry CombatantEntry) (*combatant.Spec, error) {
	if entry.Template == "" {
		return entry.Spec, nil
	}

	spec, err := h.storage.GetTemplate(r.Context(), entry.Template)
	if err != nil {
		return nil, err
	}
	// Copy so two goblins from one template stay independent.
	resolved := *spec
	if entry.ID != "" {
		resolved.ID = entry.ID
	}
	if entry.Name != "" {
		resolved.Name = entry.Name
	}
	return &resolved, nil
}

func (h *EncounterHandler) handleRead(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, e)
}

func (h *EncounterHandler) handleDelete(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	if err := h.storage.DeleteEncounter(r.Context(), encounterID); err != nil {
		h.logger.Error("Failed to delete encounter", "error", err, "id", encounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete encounter")
		return
	}
	h.logger.Debug("Encounter deleted successfully", "id", encounterID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *EncounterHandler) handleAddCombatant(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var entry CombatantEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	spec, err := h.resolveEntry(r, entry)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Failed to resolve combatant: "+err.Error())
		return
	}

	c, err := e.AddCombatant(spec)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, c)
}

func (h *EncounterHandler) handleRemoveCombatant(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID, combatantID string) {
	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	if err := e.RemoveCombatant(combatantID); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RollInitiativeRequest defines the request body for rolling initiative.
// A zero seed means roll randomly; a fixed seed replays the same order.
type RollInitiativeRequest struct {
	Seed int64 `json:"seed,omitempty"`
}

func (h *EncounterHandler) handleRollInitiative(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req RollInitiativeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
	}
	if req.Seed == 0 {
		seed, err := dice.NewSeed()
		if err != nil {
			h.logger.Error("Failed to generate initiative seed", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to generate initiative seed")
			return
		}
		req.Seed = seed
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	order, err := e.RollInitiative(dice.NewSource(req.Seed))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, order)
}

// AdvanceTurnRequest defines the request body for advancing the turn.
// Nominee is only valid under popcorn initiative.
type AdvanceTurnRequest struct {
	Nominee string `json:"nominee,omitempty"`
}

func (h *EncounterHandler) handleAdvanceTurn(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req AdvanceTurnRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	// Queued ongoing effects land before the clock moves.
	effectsApplied := h.applyPendingEffects(r, e)

	entry, err := e.AdvanceTurn(req.Nominee)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"active":          entry,
		"round":           e.Clock.Round,
		"turn":            e.Clock.Turn,
		"effects_applied": effectsApplied,
	})
}

// applyPendingEffects drains the encounter's queued effects and
// resolves each as damage. Failures are logged and skipped so one bad
// effect cannot wedge the turn.
func (h *EncounterHandler) applyPendingEffects(r *http.Request, e *encounter.Encounter) int {
	if h.effectQueue == nil {
		return 0
	}
	effects, err := h.effectQueue.DequeueEffects(r.Context(), e.ID)
	if err != nil {
		h.logger.Error("Failed to dequeue pending effects", "error", err, "id", e.ID.String())
		return 0
	}
	applied := 0
	for _, effect := range effects {
		if _, err := e.ApplyDamage(effect.Target, effect.Damage); err != nil {
			h.logger.Warn("Skipping pending effect",
				"error", err,
				"target", effect.Target,
				"id", e.ID.String())
			continue
		}
		applied++
	}
	return applied
}

// DamageRequest defines the request body for applying damage
type DamageRequest struct {
	Target string                   `json:"target"`
	Damage combat.DamageInstruction `json:"damage"`
}

func (h *EncounterHandler) handleDamage(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req DamageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	outcome, err := e.ApplyDamage(req.Target, req.Damage)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, outcome)
}

// AmountRequest defines the request body for healing and temporary HP
type AmountRequest struct {
	Target string `json:"target"`
	Amount int    `json:"amount"`
}

func (h *EncounterHandler) handleHeal(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	outcome, err := e.ApplyHealing(req.Target, req.Amount)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, outcome)
}

func (h *EncounterHandler) handleTempHP(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	outcome, err := e.ApplyTemporaryHP(req.Target, req.Amount)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, outcome)
}

// DeathSaveRequest defines the request body for resolving a death save
type DeathSaveRequest struct {
	Target string `json:"target"`
	Roll   int    `json:"roll"`
}

func (h *EncounterHandler) handleDeathSave(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req DeathSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	result, err := e.ApplyDeathSave(req.Target, req.Roll)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// TargetRequest defines the request body for stabilize and concentration
type TargetRequest struct {
	Target string `json:"target"`
}

func (h *EncounterHandler) handleStabilize(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	if err := e.Stabilize(req.Target); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReviveRequest defines the request body for reviving an unconscious PC
type ReviveRequest struct {
	Target string `json:"target"`
	HP     int    `json:"hp"`
}

func (h *EncounterHandler) handleRevive(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req ReviveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	if err := e.Revive(req.Target, req.HP); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EncounterHandler) handleConcentration(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}

	if err := e.BreakConcentration(req.Target); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if !h.saveAndPublish(w, r, e) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EncounterHandler) handleQueueEffect(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	if h.effectQueue == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "Effect queue is not configured")
		return
	}

	var req DamageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	// Validate the target against current state before queueing.
	e, ok := h.loadEncounter(w, r, encounterID)
	if !ok {
		return
	}
	if _, err := e.Combatant(req.Target); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	if err := h.effectQueue.EnqueueEffect(r.Context(), encounterID, req.Target, req.Damage); err != nil {
		h.logger.Error("Failed to enqueue effect", "error", err, "id", encounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to enqueue effect")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// loadEncounter fetches an encounter and writes the error response on
// failure. The bool reports whether the caller should continue.
func (h *EncounterHandler) loadEncounter(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) (*encounter.Encounter, bool) {
	e, err := h.storage.LoadEncounter(r.Context(), encounterID)
	if err != nil {
		h.logger.Error("Failed to load encounter", "error", err, "id", encounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load encounter")
		return nil, false
	}
	if e == nil {
		h.logger.Warn("Encounter not found", "id", encounterID.String())
		writeError(w, h.logger, http.StatusNotFound, "Encounter not found")
		return nil, false
	}
	return e, true
}

// saveAndPublish persists the mutated encounter and broadcasts the
// combat events the mutation produced. The bool reports whether the
// caller should continue.
func (h *EncounterHandler) saveAndPublish(w http.ResponseWriter, r *http.Request, e *encounter.Encounter) bool {
	combatEvents := e.DrainEvents()

	if err := h.storage.SaveEncounter(r.Context(), e.ID, e); err != nil {
		h.logger.Error("Failed to save encounter", "error", err, "id", e.ID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save encounter")
		return false
	}

	if h.broadcaster != nil {
		if err := h.broadcaster.PublishCombatEvents(r.Context(), e.ID, "", combatEvents); err != nil {
			h.logger.Error("Failed to publish combat events", "error", err, "id", e.ID.String())
		}
	}
	return true
}
