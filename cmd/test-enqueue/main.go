package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/combat-engine/pkg/combat"
	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/queue"
)

func main() {
	redisURL := flag.String("redis", "localhost:6379", "Redis address")
	encounterID := flag.String("encounter", "00000000-0000-0000-0000-000000000001", "Encounter ID to target")
	target := flag.String("target", "goblin-1", "Combatant ID to target")
	flag.Parse()

	client := redis.NewClient(&redis.Options{Addr: *redisURL})
	defer client.Close()

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	fmt.Println("Connected to Redis successfully!")

	encID, err := uuid.Parse(*encounterID)
	if err != nil {
		log.Fatal("Invalid encounter ID:", err)
	}

	// Create a test damage request
	damageReq := &queue.Request{
		RequestID:   uuid.New().String(),
		Type:        queue.RequestTypeDamage,
		EncounterID: encID,
		Target:      *target,
		Damage: &combat.DamageInstruction{
			Amount: 8,
			Type:   combatant.DamageSlashing,
			Source: "longsword",
		},
		EnqueuedAt: time.Now(),
	}

	data, err := json.Marshal(damageReq)
	if err != nil {
		log.Fatal("Failed to marshal request:", err)
	}

	if err := client.RPush(ctx, "requests", data).Err(); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}

	fmt.Printf("Enqueued damage request: %s\n", damageReq.RequestID)

	// Create a test advance-turn request
	turnReq := &queue.Request{
		RequestID:   uuid.New().String(),
		Type:        queue.RequestTypeAdvanceTurn,
		EncounterID: encID,
		EnqueuedAt:  time.Now(),
	}

	data, err = json.Marshal(turnReq)
	if err != nil {
		log.Fatal("Failed to marshal request:", err)
	}

	if err := client.RPush(ctx, "requests", data).Err(); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}

	fmt.Printf("Enqueued advance-turn request: %s\n", turnReq.RequestID)

	// Check queue depth
	depth, err := client.LLen(ctx, "requests").Result()
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("\nQueue depth: %d requests\n", depth)
	fmt.Println("\nNow start the worker to see it process these requests!")
	fmt.Println("   Run: go run cmd/worker/main.go")
}
