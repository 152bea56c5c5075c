// Package scheduler ticks a configurable interval, advances recurring
// reminders and the heartbeat, fires due one-time reminders, and submits the
// resulting agent turns to the lane queue behind a per-reminder resilient
// executor. State is persisted to disk after every mutation.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaycore/agentd/internal/tracing"
	"github.com/relaycore/agentd/pkg/lanequeue"
	"github.com/relaycore/agentd/pkg/resilience"
	"github.com/rs/zerolog"
)

// AgentRunner is the external collaborator that turns a reminder prompt into
// an assistant reply. It is implemented by the agent loop.
type AgentRunner interface {
	RunReminder(ctx context.Context, reminderID, prompt string) (string, error)
}

// Options configures a Service.
type Options struct {
	StorePath    string
	TickInterval time.Duration // must be >= 1 second
	Queue        *lanequeue.Queue
	Runner       AgentRunner
	Logger       zerolog.Logger
}

// Service is the tick-driven reminder/heartbeat scheduler.
type Service struct {
	storePath string
	tick      time.Duration
	queue     *lanequeue.Queue
	runner    AgentRunner
	logger    zerolog.Logger

	mu    sync.Mutex
	state *state

	running   map[string]bool
	runningMu sync.Mutex

	executors   map[string]*resilience.Executor
	executorsMu sync.Mutex

	metrics   HealthMetrics
	metricsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Service, loading any persisted state from StorePath.
func New(opts Options) (*Service, error) {
	if opts.StorePath == "" {
		return nil, fmt.Errorf("scheduler: store path is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("scheduler: lane queue is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("scheduler: agent runner is required")
	}
	if opts.TickInterval < time.Second {
		opts.TickInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		storePath: opts.StorePath,
		tick:      opts.TickInterval,
		queue:     opts.Queue,
		runner:    opts.Runner,
		logger:    opts.Logger,
		running:   make(map[string]bool),
		executors: make(map[string]*resilience.Executor),
		ctx:       ctx,
		cancel:    cancel,
	}

	loaded, err := s.load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: failed to load state, starting empty")
		loaded = newState()
	}
	s.state = loaded
	return s, nil
}

// Start begins the tick loop in a background goroutine.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runTick()
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit. In-flight reminder runs
// are not cancelled; they complete naturally.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

// runTick executes one pass over the effective recurring set and due
// one-time reminders. Timer drift is tolerated: a late tick still processes
// everything due since the previous tick, since next-run advancement is a
// single deterministic pass keyed by wall-clock "now", not by tick count.
func (s *Service) runTick() {
	now := nowMs()

	s.mu.Lock()
	recurring := s.effectiveRecurringSetLocked()
	dueOneTimes := make([]*OneTime, 0)
	for _, ot := range s.state.OneTimes {
		if ot.Enabled && now >= ot.RunAtMs {
			dueOneTimes = append(dueOneTimes, ot)
		}
	}
	s.mu.Unlock()

	for _, r := range recurring {
		s.processRecurringReminder(r, now)
	}
	for _, ot := range dueOneTimes {
		s.processOneTime(ot)
	}

	t := time.UnixMilli(now)
	s.metricsMu.Lock()
	s.metrics.TicksProcessed++
	s.metrics.LastTickAt = &t
	s.metricsMu.Unlock()
}

// effectiveRecurringSetLocked returns configured+enabled reminders union the
// heartbeat (represented as a synthetic Reminder) when enabled. Caller must
// hold s.mu.
func (s *Service) effectiveRecurringSetLocked() []*Reminder {
	out := make([]*Reminder, 0, len(s.state.Reminders)+1)
	for _, r := range s.state.Reminders {
		if r.Enabled {
			out = append(out, r)
		}
	}
	if s.state.Heartbeat.Enabled {
		out = append(out, &Reminder{
			ID:      HeartbeatID,
			Prompt:  s.state.Heartbeat.Prompt,
			Lane:    lanequeue.LaneBackground,
			Enabled: true,
		})
	}
	return out
}

func (s *Service) processRecurringReminder(r *Reminder, now int64) {
	if s.isRunning(r.ID) {
		s.metricsMu.Lock()
		s.metrics.Skipped++
		s.metricsMu.Unlock()
		return
	}

	s.mu.Lock()
	next, exists := s.state.NextRunByID[r.ID]
	if !exists {
		nr, err := s.computeNextRunLocked(r, now)
		if err != nil {
			s.mu.Unlock()
			s.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("scheduler: failed to compute next run")
			return
		}
		s.state.NextRunByID[r.ID] = nr
		s.persistLocked()
		s.mu.Unlock()
		return
	}
	if now < next {
		s.mu.Unlock()
		return
	}

	nr, err := s.computeNextRunLocked(r, now)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("scheduler: failed to advance next run")
		return
	}
	s.state.NextRunByID[r.ID] = nr
	s.persistLocked()
	s.mu.Unlock()

	s.runReminder(r.ID, r.Prompt, r.Lane)
}

// computeNextRunLocked dispatches to heartbeat or fixed-interval math. Caller
// must hold s.mu.
func (s *Service) computeNextRunLocked(r *Reminder, now int64) (int64, error) {
	if r.ID == HeartbeatID {
		return nextRunForHeartbeat(s.state.Heartbeat, now)
	}
	return nextRunForReminder(r.IntervalMs, now)
}

func (s *Service) processOneTime(ot *OneTime) {
	if s.isRunning(ot.ID) {
		s.metricsMu.Lock()
		s.metrics.Skipped++
		s.metricsMu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.state.OneTimes, ot.ID)
	s.persistLocked()
	s.mu.Unlock()

	s.runReminder(ot.ID, ot.Prompt, ot.Lane)
}

func (s *Service) isRunning(id string) bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	return s.running[id]
}

func (s *Service) markRunning(id string, v bool) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	if v {
		s.running[id] = true
	} else {
		delete(s.running, id)
	}
}

// runReminder wraps the agent turn in a per-reminder resilient executor and
// submits it to the lane queue, recording history and metrics on completion.
func (s *Service) runReminder(id, prompt, lane string) {
	if lane == "" {
		lane = lanequeue.LaneBackground
	}
	s.markRunning(id, true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.markRunning(id, false)

		executor := s.executorFor(id)
		var reply string

		_, err := s.queue.EnqueueWithContext(s.ctx, lane, func(ctx context.Context) (interface{}, error) {
			ctx = tracing.WithSessionKey(ctx, "scheduler:"+id)
			runErr := executor.Do(ctx, func(ctx context.Context) error {
				r, err := s.runner.RunReminder(ctx, id, prompt)
				if err != nil {
					return err
				}
				reply = r
				return nil
			})
			return nil, runErr
		}, nil)

		s.metricsMu.Lock()
		if id == HeartbeatID || s.isConfiguredReminder(id) {
			if err != nil {
				s.metrics.RemindersFailed++
			} else {
				s.metrics.RemindersRun++
			}
		} else {
			s.metrics.OneTimesRun++
		}
		s.metricsMu.Unlock()

		if err != nil {
			s.logger.Error().Err(err).Str("reminder_id", id).Msg("scheduler: reminder run failed")
			return
		}

		s.appendHistory(HistoryEntry{ReminderID: id, Prompt: prompt, Reply: reply, AtMs: nowMs()})
	}()
}

func (s *Service) isConfiguredReminder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.Reminders[id]
	return ok
}

func (s *Service) executorFor(id string) *resilience.Executor {
	s.executorsMu.Lock()
	defer s.executorsMu.Unlock()
	if e, ok := s.executors[id]; ok {
		return e
	}
	e := resilience.New(resilience.Config{
		Name:   "scheduler:" + id,
		Logger: s.logger,
	})
	s.executors[id] = e
	return e
}

func (s *Service) appendHistory(entry HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.History = append(s.state.History, entry)
	if len(s.state.History) > MaxHistoryMessages {
		s.state.History = s.state.History[len(s.state.History)-MaxHistoryMessages:]
	}
	s.persistLocked()
}

// History returns a copy of the rolling assistant history, oldest first.
func (s *Service) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.state.History))
	copy(out, s.state.History)
	return out
}

// SetHeartbeat enables the heartbeat with the given interval and prompt,
// clearing any cron override and any stale nextRunById entry so the next
// tick reinitializes it to now+interval.
func (s *Service) SetHeartbeat(intervalMinutes int, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	s.state.Heartbeat = HeartbeatConfig{Enabled: true, IntervalMinutes: intervalMinutes, Prompt: prompt}
	delete(s.state.NextRunByID, HeartbeatID)
	s.persistLocked()
}

// SetHeartbeatCron enables the heartbeat driven by a cron expression rather
// than a fixed interval.
func (s *Service) SetHeartbeatCron(cronExpr, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Heartbeat = HeartbeatConfig{Enabled: true, CronExpr: cronExpr, Prompt: prompt}
	delete(s.state.NextRunByID, HeartbeatID)
	s.persistLocked()
}

// DisableHeartbeat turns the heartbeat off.
func (s *Service) DisableHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Heartbeat.Enabled = false
	s.persistLocked()
}

// AddReminder registers a new recurring reminder.
func (s *Service) AddReminder(prompt string, intervalMs int64, lane string) (string, error) {
	if intervalMs <= 0 {
		return "", fmt.Errorf("scheduler: interval must be positive")
	}
	if lane == "" {
		lane = lanequeue.LaneBackground
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	now := nowMs()
	s.state.Reminders[id] = &Reminder{
		ID: id, Prompt: prompt, Lane: lane, Enabled: true,
		IntervalMs: intervalMs, CreatedAtMs: now, UpdatedAtMs: now,
	}
	s.persistLocked()
	return id, nil
}

// RemoveReminder deletes a recurring reminder and its scheduling state.
func (s *Service) RemoveReminder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Reminders[id]; !ok {
		return false
	}
	delete(s.state.Reminders, id)
	delete(s.state.NextRunByID, id)
	s.persistLocked()
	return true
}

// ScheduleOneTimeIn schedules a one-time reminder to fire minutes from now.
func (s *Service) ScheduleOneTimeIn(minutes int, prompt string, lane string) string {
	if lane == "" {
		lane = lanequeue.LaneBackground
	}
	return s.ScheduleOneTimeAt(nowMs()+int64(minutes)*60_000, prompt, lane)
}

// ScheduleOneTimeAt schedules a one-time reminder to fire at an absolute
// epoch-millisecond timestamp.
func (s *Service) ScheduleOneTimeAt(atMs int64, prompt string, lane string) string {
	if lane == "" {
		lane = lanequeue.LaneBackground
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.state.OneTimes[id] = &OneTime{
		ID: id, Prompt: prompt, Lane: lane, Enabled: true, RunAtMs: atMs, CreatedAt: nowMs(),
	}
	s.persistLocked()
	return id
}

// CancelOneTime removes a pending one-time reminder. Returns false if it was
// not found (already fired, or never existed).
func (s *Service) CancelOneTime(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.OneTimes[id]; !ok {
		return false
	}
	delete(s.state.OneTimes, id)
	s.persistLocked()
	return true
}

// ListOneTime returns every pending one-time reminder.
func (s *Service) ListOneTime() []*OneTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*OneTime, 0, len(s.state.OneTimes))
	for _, ot := range s.state.OneTimes {
		out = append(out, ot)
	}
	return out
}

// GetHealthMetrics returns a snapshot of scheduler activity counters.
func (s *Service) GetHealthMetrics() HealthMetrics {
	s.metricsMu.Lock()
	m := s.metrics
	s.metricsMu.Unlock()

	s.mu.Lock()
	m.HeartbeatEnabled = s.state.Heartbeat.Enabled
	m.ActiveReminders = len(s.state.Reminders)
	m.PendingOneTimes = len(s.state.OneTimes)
	s.mu.Unlock()
	return m
}

// load reads and validates persisted state, dropping malformed entries
// rather than failing startup.
func (s *Service) load() (*state, error) {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return newState(), nil
		}
		return nil, fmt.Errorf("scheduler: read state: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("scheduler: parse state: %w", err)
	}
	if st.Reminders == nil {
		st.Reminders = make(map[string]*Reminder)
	}
	if st.OneTimes == nil {
		st.OneTimes = make(map[string]*OneTime)
	}
	if st.NextRunByID == nil {
		st.NextRunByID = make(map[string]int64)
	}

	validNext := make(map[string]int64)
	for id, ts := range st.NextRunByID {
		if id == "" || !isFiniteMs(ts) {
			continue
		}
		validNext[id] = ts
	}
	st.NextRunByID = validNext

	for id, ot := range st.OneTimes {
		if id == "" || ot == nil || !isFiniteMs(ot.RunAtMs) {
			delete(st.OneTimes, id)
			continue
		}
		if ot.Lane != lanequeue.LaneFast && ot.Lane != lanequeue.LaneSlow && ot.Lane != lanequeue.LaneBackground {
			ot.Lane = lanequeue.LaneBackground
		}
	}
	for id, r := range st.Reminders {
		if id == "" || r == nil {
			delete(st.Reminders, id)
			continue
		}
		if r.Lane != lanequeue.LaneFast && r.Lane != lanequeue.LaneSlow && r.Lane != lanequeue.LaneBackground {
			r.Lane = lanequeue.LaneBackground
		}
	}
	if st.Heartbeat.IntervalMinutes < 1 {
		st.Heartbeat.IntervalMinutes = 1
	}

	return &st, nil
}

func isFiniteMs(v int64) bool {
	return v > 0
}

// persistLocked writes state to disk via temp-file-then-rename. Caller must
// hold s.mu.
func (s *Service) persistLocked() {
	if err := s.writeState(); err != nil {
		s.logger.Error().Err(err).Msg("scheduler: failed to persist state")
	}
}

func (s *Service) writeState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.storePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := s.storePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmp, s.storePath); err != nil {
		return fmt.Errorf("rename temp state: %w", err)
	}
	return nil
}
