// Package lanequeue serializes work into a fixed set of priority lanes, each
// with its own concurrency cap, preserving FIFO order within a lane.
package lanequeue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relaycore/agentd/internal/observability"
	"github.com/relaycore/agentd/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Lane names. The set is fixed: callers cannot create arbitrary lanes, and
// concurrency is not runtime-tunable.
const (
	LaneFast       = "fast"
	LaneSlow       = "slow"
	LaneBackground = "background"
)

var defaultConcurrency = map[string]int{
	LaneFast:       2,
	LaneSlow:       1,
	LaneBackground: 1,
}

// Task represents an asynchronous unit of work submitted to a lane.
type Task func(ctx context.Context) (interface{}, error)

// TaskOptions configures one enqueue call.
type TaskOptions struct {
	WarnAfterMs int64
	OnWait      func(waitMs int64, queuePos int)
}

type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	generation int
	enqueuedAt time.Time
	options    TaskOptions
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

type laneState struct {
	generation  int
	concurrency int
	queue       []*taskRecord
	running     int
	activeIDs   map[string]bool
	mu          sync.Mutex
}

// EventHandler handles a lane queue event.
type EventHandler func(event Event)

// Event is published on task lifecycle transitions.
type Event struct {
	Type   string // "enqueued" or "completed"
	Lane   string
	TaskID string
	Data   map[string]interface{}
}

// Queue is a lane-based FIFO task scheduler with per-lane concurrency caps.
type Queue struct {
	lanes     map[string]*laneState
	taskIDSeq int
	mu        sync.RWMutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	eventHandlers map[string][]EventHandler
	eventMu       sync.RWMutex
}

// New creates a Queue with the three fixed lanes (fast=2, slow=1, background=1).
func New() *Queue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		lanes:         make(map[string]*laneState),
		ctx:           ctx,
		cancel:        cancel,
		eventHandlers: make(map[string][]EventHandler),
	}
	for lane, concurrency := range defaultConcurrency {
		q.lanes[lane] = &laneState{
			concurrency: concurrency,
			queue:       make([]*taskRecord, 0),
			activeIDs:   make(map[string]bool),
		}
	}
	return q
}

// Enqueue submits a task to lane and blocks until it completes or is rejected.
func (q *Queue) Enqueue(lane string, task Task, options *TaskOptions) (interface{}, error) {
	return q.EnqueueWithContext(context.Background(), lane, task, options)
}

// EnqueueWithContext is Enqueue with caller-provided tracing context.
func (q *Queue) EnqueueWithContext(ctx context.Context, lane string, task Task, options *TaskOptions) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := defaultConcurrency[lane]; !ok {
		return nil, fmt.Errorf("lanequeue: unknown lane %q", lane)
	}

	ctx, span := tracing.StartSpan(ctx, "agentd.lanequeue", "lanequeue.enqueue", attribute.String("lane", lane))
	defer span.End()

	if tracing.GetSessionKey(ctx) == "" {
		ctx = tracing.WithSessionKey(ctx, lane)
	}
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_key", lane).Logger()

	q.mu.Lock()
	q.taskIDSeq++
	taskID := fmt.Sprintf("%s-%d", lane, q.taskIDSeq)
	q.mu.Unlock()

	opts := TaskOptions{}
	if options != nil {
		opts = *options
	}

	ls := q.lanes[lane]
	ls.mu.Lock()
	record := &taskRecord{
		id:         taskID,
		task:       task,
		ctx:        ctx,
		generation: ls.generation,
		enqueuedAt: time.Now(),
		options:    opts,
		result:     make(chan taskResult, 1),
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	logger.Debug().Str("lane", lane).Str("taskId", taskID).Int("queueSize", queueSize).Msg("task enqueued")
	observability.RecordQueueEnqueue(lane, queueSize)

	q.emit(Event{Type: "enqueued", Lane: lane, TaskID: taskID, Data: map[string]interface{}{"queueSize": queueSize}})

	if opts.WarnAfterMs > 0 {
		go q.startWarnTimer(record, lane)
	}

	go q.processLane(lane)

	result := <-record.result
	if result.err != nil {
		span.RecordError(result.err)
		span.SetStatus(codes.Error, result.err.Error())
	}
	return result.value, result.err
}

func (q *Queue) processLane(lane string) {
	ls := q.lanes[lane]
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]

		if record.generation != ls.generation {
			record.result <- taskResult{err: fmt.Errorf("lanequeue: task cancelled by lane reset")}
			close(record.result)
			continue
		}

		ls.running++
		ls.activeIDs[record.id] = true

		q.wg.Add(1)
		go q.executeTask(lane, record)
	}
}

func (q *Queue) executeTask(lane string, record *taskRecord) {
	defer q.wg.Done()

	taskCtx := record.ctx
	if taskCtx == nil {
		taskCtx = context.Background()
	}
	taskCtx, span := tracing.StartSpan(taskCtx, "agentd.lanequeue", "lanequeue.execute_task",
		attribute.String("lane", lane), attribute.String("task_id", record.id))
	defer span.End()

	taskCtx = tracing.WithSessionKey(taskCtx, lane)
	logger := tracing.LoggerFromContext(taskCtx, log.Logger).With().Str("session_key", lane).Logger()

	runCtx, cancel := context.WithCancel(taskCtx)
	stopCancel := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	start := time.Now()
	value, err := record.task(runCtx)
	duration := time.Since(start)

	ls := q.lanes[lane]
	ls.mu.Lock()
	ls.running--
	delete(ls.activeIDs, record.id)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	record.result <- taskResult{value: value, err: err}
	close(record.result)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Str("lane", lane).Str("taskId", record.id).Dur("duration", duration).Err(err).Msg("task failed")
	} else {
		logger.Debug().Str("lane", lane).Str("taskId", record.id).Dur("duration", duration).Msg("task completed")
	}

	observability.RecordQueueCompletion(lane, duration, err == nil, queueSize)
	q.emit(Event{Type: "completed", Lane: lane, TaskID: record.id, Data: map[string]interface{}{
		"duration": duration.Milliseconds(),
		"success":  err == nil,
	}})

	go q.processLane(lane)
}

func (q *Queue) startWarnTimer(record *taskRecord, lane string) {
	timer := time.NewTimer(time.Duration(record.options.WarnAfterMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		ls := q.lanes[lane]
		ls.mu.Lock()
		queuePos := -1
		for i, r := range ls.queue {
			if r.id == record.id {
				queuePos = i
				break
			}
		}
		ls.mu.Unlock()

		if queuePos >= 0 {
			waitMs := time.Since(record.enqueuedAt).Milliseconds()
			log.Warn().Str("lane", lane).Str("taskId", record.id).Int64("waitMs", waitMs).Int("queuePos", queuePos).
				Msg("task waiting longer than expected")
			if record.options.OnWait != nil {
				record.options.OnWait(waitMs, queuePos)
			}
		}
	case <-q.ctx.Done():
	}
}

// Stats returns queued/running/concurrency counts for every lane.
func (q *Queue) Stats() map[string]map[string]int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := make(map[string]map[string]int, len(q.lanes))
	for lane, ls := range q.lanes {
		ls.mu.Lock()
		stats[lane] = map[string]int{
			"queued":      len(ls.queue),
			"running":     ls.running,
			"concurrency": ls.concurrency,
		}
		ls.mu.Unlock()
	}
	return stats
}

// ResetLane bumps a lane's generation, rejecting every task still queued
// (in-flight tasks run to completion). Used on daemon restart/reload.
func (q *Queue) ResetLane(lane string) {
	q.mu.RLock()
	ls, ok := q.lanes[lane]
	q.mu.RUnlock()
	if !ok {
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.generation++
	for _, record := range ls.queue {
		record.result <- taskResult{err: fmt.Errorf("lanequeue: lane reset")}
		close(record.result)
	}
	ls.queue = make([]*taskRecord, 0)
	observability.SetQueueSize(lane, 0)
}

// WaitForActive blocks until every lane has no active task, or timeout elapses.
func (q *Queue) WaitForActive(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		drained := true
		q.mu.RLock()
		for _, ls := range q.lanes {
			ls.mu.Lock()
			if len(ls.activeIDs) > 0 {
				drained = false
			}
			ls.mu.Unlock()
		}
		q.mu.RUnlock()

		if drained {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// Close cancels in-flight tasks' context and waits for goroutines to exit.
func (q *Queue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}

// On registers a handler for an event type ("enqueued" or "completed").
func (q *Queue) On(eventType string, handler EventHandler) {
	q.eventMu.Lock()
	defer q.eventMu.Unlock()
	q.eventHandlers[eventType] = append(q.eventHandlers[eventType], handler)
}

// Off removes every handler registered for an event type.
func (q *Queue) Off(eventType string) {
	q.eventMu.Lock()
	defer q.eventMu.Unlock()
	delete(q.eventHandlers, eventType)
}

func (q *Queue) emit(event Event) {
	q.eventMu.RLock()
	handlers := q.eventHandlers[event.Type]
	q.eventMu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}
