// Package worker runs the background task loop that consumes reindex
// tasks from the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/services"
)

// reindexAllLock names the distributed lock held while a full reindex
// runs, so only one instance rebuilds the whole index at a time
const reindexAllLock = "reindex-all"

// Worker processes tasks from the task queue
type Worker struct {
	taskQueue driven.TaskQueue
	reindexer *services.Reindexer
	lock      driven.DistributedLock // optional
	logger    *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker
type Config struct {
	TaskQueue driven.TaskQueue
	Reindexer *services.Reindexer

	// Lock guards full reindexes across instances. Nil disables the
	// guard, which is fine for single-instance deployments.
	Lock   driven.DistributedLock
	Logger *slog.Logger

	// Concurrency is the number of concurrent task processors
	Concurrency int

	// DequeueTimeout is how long each poll waits for a task
	DequeueTimeout time.Duration
}

// New creates a task worker
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		reindexer:      cfg.Reindexer,
		lock:           cfg.Lock,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for one worker goroutine
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeReindexDocument:
		err = w.handleReindexDocument(ctx, task)
	case domain.TaskTypeReindexAll:
		err = w.handleReindexAll(ctx)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		task.Error = err.Error()
		if nackErr := w.taskQueue.Nack(ctx, task); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleReindexDocument handles a reindex_document task
func (w *Worker) handleReindexDocument(ctx context.Context, task *domain.Task) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return fmt.Errorf("document_id not found in task payload")
	}
	return w.reindexer.ReindexDocument(ctx, documentID)
}

// handleReindexAll handles a reindex_all task
func (w *Worker) handleReindexAll(ctx context.Context) error {
	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx, reindexAllLock, 30*time.Minute)
		if err != nil {
			return fmt.Errorf("acquire reindex lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("full reindex already running on another instance")
		}
		defer func() {
			if err := w.lock.Release(context.WithoutCancel(ctx), reindexAllLock); err != nil {
				w.logger.Error("failed to release reindex lock", "error", err)
			}
		}()
	}

	return w.reindexer.ReindexAll(ctx)
}
