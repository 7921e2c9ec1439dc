package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/combat-engine/internal/services/queue"
	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
	"github.com/jwebster45206/combat-engine/pkg/initiative"
	"github.com/jwebster45206/combat-engine/pkg/storage"
)

func newTestHandler(t *testing.T) (*EncounterHandler, *storage.MockStorage) {
	t.Helper()
	ms := storage.NewMockStorage()
	return NewEncounterHandler(ms, nil, nil, testLogger()), ms
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func createEncounter(t *testing.T, handler *EncounterHandler, req CreateEncounterRequest) *encounter.Encounter {
	t.Helper()
	w := postJSON(t, handler, "/v1/encounters", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e encounter.Encounter
	require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
	return &e
}

func TestCreateEncounter(t *testing.T) {
	handler, ms := newTestHandler(t)
	ms.AddTemplate("goblin", &combatant.Spec{
		ID:    "goblin",
		Name:  "Goblin",
		Kind:  combatant.KindMonster,
		MaxHP: 7,
	})

	t.Run("inline and template combatants", func(t *testing.T) {
		e := createEncounter(t, handler, CreateEncounterRequest{
			Name:   "ambush",
			System: initiative.SystemStandard,
			Combatants: []CombatantEntry{
				{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20}},
				{Template: "goblin", ID: "goblin-1", Name: "Goblin 1"},
				{Template: "goblin", ID: "goblin-2", Name: "Goblin 2"},
			},
		})

		assert.Len(t, e.Combatants, 3)
		assert.Equal(t, "goblin-1", e.Combatants[1].ID)
		assert.Equal(t, "Goblin 2", e.Combatants[2].Name)

		saved, err := ms.LoadEncounter(context.Background(), e.ID)
		require.NoError(t, err)
		require.NotNil(t, saved)
	})

	t.Run("defaults to standard initiative", func(t *testing.T) {
		e := createEncounter(t, handler, CreateEncounterRequest{Name: "brawl"})
		assert.Equal(t, initiative.SystemStandard, e.System)
	})

	t.Run("unknown initiative system", func(t *testing.T) {
		w := postJSON(t, handler, "/v1/encounters", CreateEncounterRequest{System: "speed-factor"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown template", func(t *testing.T) {
		w := postJSON(t, handler, "/v1/encounters", CreateEncounterRequest{
			Combatants: []CombatantEntry{{Template: "tarrasque"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/encounters", bytes.NewBufferString("{nope"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEncounterReadDelete(t *testing.T) {
	handler, _ := newTestHandler(t)
	e := createEncounter(t, handler, CreateEncounterRequest{Name: "duel"})

	t.Run("read", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/encounters/"+e.ID.String(), nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var got encounter.Encounter
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, e.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/encounters/"+uuid.New().String(), nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/encounters/not-a-uuid", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/encounters/"+e.ID.String(), nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/v1/encounters/"+e.ID.String(), nil)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRosterEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	e := createEncounter(t, handler, CreateEncounterRequest{
		Combatants: []CombatantEntry{
			{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20}},
		},
	})
	base := "/v1/encounters/" + e.ID.String()

	t.Run("add combatant", func(t *testing.T) {
		w := postJSON(t, handler, base+"/combatants", CombatantEntry{
			Spec: &combatant.Spec{ID: "wolf", Kind: combatant.KindMonster, MaxHP: 11},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var c combatant.Combatant
		require.NoError(t, json.NewDecoder(w.Body).Decode(&c))
		assert.Equal(t, "wolf", c.ID)
		assert.Equal(t, 11, c.HP)
	})

	t.Run("duplicate combatant rejected", func(t *testing.T) {
		w := postJSON(t, handler, base+"/combatants", CombatantEntry{
			Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("remove combatant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, base+"/combatants/wolf", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("remove unknown combatant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, base+"/combatants/ghost", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCombatActionEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	e := createEncounter(t, handler, CreateEncounterRequest{
		Combatants: []CombatantEntry{
			{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 20, Stats: combatant.Stats5e{Dexterity: 16}, Concentrating: true}},
			{Spec: &combatant.Spec{ID: "goblin", Kind: combatant.KindMonster, MaxHP: 7, Resistances: []combatant.DamageType{combatant.DamageFire}}},
		},
	})
	base := "/v1/encounters/" + e.ID.String()

	t.Run("roll initiative with seed is deterministic", func(t *testing.T) {
		w := postJSON(t, handler, base+"/initiative", RollInitiativeRequest{Seed: 7})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var first initiative.Order
		require.NoError(t, json.NewDecoder(w.Body).Decode(&first))
		require.Len(t, first.Entries, 2)

		w = postJSON(t, handler, base+"/initiative", RollInitiativeRequest{Seed: 7})
		require.Equal(t, http.StatusOK, w.Code)
		var second initiative.Order
		require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
		assert.Equal(t, first.Entries, second.Entries)
	})

	t.Run("damage applies resistance", func(t *testing.T) {
		w := postJSON(t, handler, base+"/damage", DamageRequest{
			Target: "goblin",
			Damage: combat.DamageInstruction{Amount: 5, Type: combatant.DamageFire},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var outcome combat.DamageOutcome
		require.NoError(t, json.NewDecoder(w.Body).Decode(&outcome))
		assert.Equal(t, 2, outcome.FinalDamage)
		assert.Equal(t, 5, outcome.HP)
	})

	t.Run("damage on unknown target", func(t *testing.T) {
		w := postJSON(t, handler, base+"/damage", DamageRequest{
			Target: "ghost",
			Damage: combat.DamageInstruction{Amount: 5},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-positive damage is rejected", func(t *testing.T) {
		w := postJSON(t, handler, base+"/damage", DamageRequest{
			Target: "goblin",
			Damage: combat.DamageInstruction{Amount: 0},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("heal", func(t *testing.T) {
		w := postJSON(t, handler, base+"/heal", AmountRequest{Target: "goblin", Amount: 2})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var outcome combat.HealOutcome
		require.NoError(t, json.NewDecoder(w.Body).Decode(&outcome))
		assert.Equal(t, 7, outcome.HP)
	})

	t.Run("temp hp", func(t *testing.T) {
		w := postJSON(t, handler, base+"/temp-hp", AmountRequest{Target: "hero", Amount: 5})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var outcome combat.HealOutcome
		require.NoError(t, json.NewDecoder(w.Body).Decode(&outcome))
		assert.Equal(t, 5, outcome.TempHP)
	})

	t.Run("death save on conscious PC is rejected", func(t *testing.T) {
		w := postJSON(t, handler, base+"/death-save", DeathSaveRequest{Target: "hero", Roll: 12})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("concentration break", func(t *testing.T) {
		w := postJSON(t, handler, base+"/concentration", TargetRequest{Target: "hero"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("advance turn", func(t *testing.T) {
		w := postJSON(t, handler, base+"/turn", AdvanceTurnRequest{})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotNil(t, resp["active"])
	})

	t.Run("nominee outside popcorn", func(t *testing.T) {
		w := postJSON(t, handler, base+"/turn", AdvanceTurnRequest{Nominee: "goblin"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		w := postJSON(t, handler, base+"/teleport", TargetRequest{Target: "hero"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDyingLifecycleEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	e := createEncounter(t, handler, CreateEncounterRequest{
		Combatants: []CombatantEntry{
			{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 10}},
		},
	})
	base := "/v1/encounters/" + e.ID.String()

	// Drop the hero to 0.
	w := postJSON(t, handler, base+"/damage", DamageRequest{
		Target: "hero",
		Damage: combat.DamageInstruction{Amount: 10},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("death save while dying", func(t *testing.T) {
		w := postJSON(t, handler, base+"/death-save", DeathSaveRequest{Target: "hero", Roll: 14})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result combat.DeathSaveResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		assert.Equal(t, 1, result.Successes)
	})

	t.Run("stabilize", func(t *testing.T) {
		w := postJSON(t, handler, base+"/stabilize", TargetRequest{Target: "hero"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("revive", func(t *testing.T) {
		w := postJSON(t, handler, base+"/revive", ReviveRequest{Target: "hero", HP: 4})
		assert.Equal(t, http.StatusNoContent, w.Code)

		req := httptest.NewRequest(http.MethodGet, base, nil)
		rw := httptest.NewRecorder()
		handler.ServeHTTP(rw, req)
		var got encounter.Encounter
		require.NoError(t, json.NewDecoder(rw.Body).Decode(&got))
		hero, err := got.Combatant("hero")
		require.NoError(t, err)
		assert.Equal(t, 4, hero.HP)
	})
}

func TestQueueEffectEndpoint(t *testing.T) {
	t.Run("unconfigured queue", func(t *testing.T) {
		handler, _ := newTestHandler(t)
		e := createEncounter(t, handler, CreateEncounterRequest{
			Combatants: []CombatantEntry{
				{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 10}},
			},
		})
		w := postJSON(t, handler, fmt.Sprintf("/v1/encounters/%s/effects", e.ID), DamageRequest{
			Target: "hero",
			Damage: combat.DamageInstruction{Amount: 2},
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("queues a pending effect", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		eq := queue.NewEffectQueue(queue.NewClientWithRedis(rdb, testLogger()))
		ms := storage.NewMockStorage()
		handler := NewEncounterHandler(ms, nil, eq, testLogger())

		e := createEncounter(t, handler, CreateEncounterRequest{
			Combatants: []CombatantEntry{
				{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 10}},
			},
		})

		w := postJSON(t, handler, fmt.Sprintf("/v1/encounters/%s/effects", e.ID), DamageRequest{
			Target: "hero",
			Damage: combat.DamageInstruction{Amount: 2, Type: combatant.DamagePoison, Source: "venom"},
		})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		depth, err := eq.EffectDepth(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})

	t.Run("advancing the turn drains queued effects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		eq := queue.NewEffectQueue(queue.NewClientWithRedis(rdb, testLogger()))
		ms := storage.NewMockStorage()
		handler := NewEncounterHandler(ms, nil, eq, testLogger())

		e := createEncounter(t, handler, CreateEncounterRequest{
			Combatants: []CombatantEntry{
				{Spec: &combatant.Spec{ID: "hero", Kind: combatant.KindPC, MaxHP: 10}},
				{Spec: &combatant.Spec{ID: "goblin", Kind: combatant.KindMonster, MaxHP: 7}},
			},
		})
		base := fmt.Sprintf("/v1/encounters/%s", e.ID)

		w := postJSON(t, handler, base+"/initiative", RollInitiativeRequest{Seed: 3})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = postJSON(t, handler, base+"/effects", DamageRequest{
			Target: "goblin",
			Damage: combat.DamageInstruction{Amount: 3, Type: combatant.DamageFire, Source: "burning"},
		})
		require.Equal(t, http.StatusAccepted, w.Code)

		w = postJSON(t, handler, base+"/turn", AdvanceTurnRequest{})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, float64(1), resp["effects_applied"])

		saved, err := ms.LoadEncounter(context.Background(), e.ID)
		require.NoError(t, err)
		goblin, err := saved.Combatant("goblin")
		require.NoError(t, err)
		assert.Equal(t, 4, goblin.HP)

		depth, err := eq.EffectDepth(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, depth)
	})

	t.Run("unknown target rejected before queueing", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		eq := queue.NewEffectQueue(queue.NewClientWithRedis(rdb, testLogger()))
		ms := storage.NewMockStorage()
		handler := NewEncounterHandler(ms, nil, eq, testLogger())

		e := createEncounter(t, handler, CreateEncounterRequest{})
		w := postJSON(t, handler, fmt.Sprintf("/v1/encounters/%s/effects", e.ID), DamageRequest{
			Target: "ghost",
			Damage: combat.DamageInstruction{Amount: 2},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
