// Copyright (c) 2026 Alexander G.
// Author: Alexander G. (Samsonix)
// License: MIT
// Project: EyesOn SIM Management System - Pelephone API Simulator

package simulator

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/reactivex/rxgo/v2"
)

// JobQueue carries accepted job ids to the worker.
type JobQueue struct {
	ch chan rxgo.Item
}

func NewJobQueue(size int) *JobQueue {
	if size <= 0 {
		size = 100
	}
	return &JobQueue{ch: make(chan rxgo.Item, size)}
}

// Push enqueues a job id, blocking while the queue is full.
func (q *JobQueue) Push(ctx context.Context, jobID uint) error {
	select {
	case q.ch <- rxgo.Of(jobID):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observable returns the stream of queued job ids.
func (q *JobQueue) Observable(ctx context.Context) rxgo.Observable {
	return rxgo.FromChannel(q.ch, rxgo.WithContext(ctx))
}

// Worker applies queued jobs after the configured delay.
type Worker struct {
	store     *Store
	queue     *JobQueue
	delay     time.Duration
	processed int64
}

func NewWorker(store *Store, queue *JobQueue, delay time.Duration) *Worker {
	return &Worker{store: store, queue: queue, delay: delay}
}

// Processed returns how many jobs the worker has applied.
func (w *Worker) Processed() int64 {
	return atomic.LoadInt64(&w.processed)
}

// Start consumes the queue until ctx is cancelled. Jobs left PENDING by a
// previous run are queued again first. The returned channel closes on exit.
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	log.Println("[JobWorker] Starting provisioning job worker...")

	pending, err := w.store.PendingJobIDs()
	if err != nil {
		log.Printf("[JobWorker] Failed to load pending jobs: %v", err)
	}

	done := w.queue.Observable(ctx).ForEach(
		func(v interface{}) {
			id, ok := v.(uint)
			if !ok {
				return
			}
			w.process(ctx, id)
		},
		func(err error) {
			log.Printf("[JobWorker] Queue error: %v", err)
		},
		func() {
			log.Println("[JobWorker] Stopped")
		},
		rxgo.WithContext(ctx),
	)

	if len(pending) > 0 {
		log.Printf("[JobWorker] Recovered %d pending jobs", len(pending))
		go func() {
			for _, id := range pending {
				if err := w.queue.Push(ctx, id); err != nil {
					return
				}
			}
		}()
	}
	return done
}

func (w *Worker) process(ctx context.Context, id uint) {
	if w.delay > 0 {
		timer := time.NewTimer(w.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	job, err := w.store.ApplyJob(id)
	if err != nil {
		log.Printf("[JobWorker] Job %d failed to apply: %v", id, err)
		return
	}
	atomic.AddInt64(&w.processed, 1)
	log.Printf("[JobWorker] Job %d -> %s", id, job.Status)
}
