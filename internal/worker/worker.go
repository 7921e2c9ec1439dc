package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/combat-engine/internal/services/events"
	"github.com/jwebster45206/combat-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/combat-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
)

// Worker processes combat requests from the queue
type Worker struct {
	id          string
	queue       *queue.EffectQueue
	processor   *EffectProcessor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(effectQueue *queue.EffectQueue, processor *EffectProcessor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	broadcaster := events.NewBroadcaster(redisClient, log)

	return &Worker{
		id:          workerID,
		queue:       effectQueue,
		processor:   processor,
		broadcaster: broadcaster,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	// Block waiting for next request (timeout after 5 seconds to check for shutdown)
	ctx, cancel := context.WithTimeout(w.ctx, workerTimeout)
	defer cancel()

	req, err := w.queue.BlockingDequeueRequest(ctx)
	if err != nil {
		// Real error (not timeout/cancellation)
		return fmt.Errorf("failed to dequeue request: %w", err)
	}

	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"encounter_id", req.EncounterID.String(),
	)

	// Try to acquire encounter lock
	locked, err := w.acquireEncounterLock(req.EncounterID)
	if err != nil {
		return fmt.Errorf("failed to acquire encounter lock: %w", err)
	}
	if !locked {
		// Another worker is processing this encounter
		// Re-queue at the end and try next request
		w.log.Info("Encounter already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"encounter_id", req.EncounterID.String(),
		)
		if err := w.queue.EnqueueRequest(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	// Process the request, blocking the worker until done
	defer w.releaseEncounterLock(req.EncounterID)
	return w.processRequest(req)
}

// acquireEncounterLock attempts to acquire a lock for an encounter
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireEncounterLock(encounterID uuid.UUID) (bool, error) {
	lockKey := fmt.Sprintf("encounter-lock:%s", encounterID.String())

	result, err := w.redisClient.SetNX(w.ctx, lockKey, w.id, 30*time.Second).Result()
	if err != nil {
		return false, err
	}

	return result, nil
}

// releaseEncounterLock releases the lock for an encounter
func (w *Worker) releaseEncounterLock(encounterID uuid.UUID) {
	lockKey := fmt.Sprintf("encounter-lock:%s", encounterID.String())

	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{lockKey}, w.id).Err(); err != nil {
		w.log.Error("Failed to release encounter lock", "error", err, "encounter_id", encounterID.String())
	}
}

// processRequest processes a single request using the EffectProcessor
func (w *Worker) processRequest(req *queuePkg.Request) error {
	w.log.Info("Processing request",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"encounter_id", req.EncounterID.String(),
	)

	start := time.Now()

	// Publish processing event
	if err := w.broadcaster.PublishRequestProcessing(w.ctx, req.EncounterID, req.RequestID, string(req.Type)); err != nil {
		w.log.Error("Failed to publish processing event", "error", err)
		// Don't fail the request just because event publishing failed
	}

	result, combatEvents, err := w.processor.Process(w.ctx, req)
	if err != nil {
		w.log.Error("Failed to process request",
			"error", err,
			"request_id", req.RequestID,
			"encounter_id", req.EncounterID.String(),
		)

		// Publish failure event
		if pubErr := w.broadcaster.PublishRequestFailed(w.ctx, req.EncounterID, req.RequestID, err.Error()); pubErr != nil {
			w.log.Error("Failed to publish failure event", "error", pubErr)
		}

		return fmt.Errorf("failed to process request: %w", err)
	}

	// Publish the combat events the mutation produced
	if err := w.broadcaster.PublishCombatEvents(w.ctx, req.EncounterID, req.RequestID, combatEvents); err != nil {
		w.log.Error("Failed to publish combat events", "error", err)
	}

	w.log.Info("Request processed successfully",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	result["duration_ms"] = time.Since(start).Milliseconds()
	if err := w.broadcaster.PublishRequestCompleted(w.ctx, req.EncounterID, req.RequestID, result); err != nil {
		w.log.Error("Failed to publish completion event", "error", err)
	}

	return nil
}
