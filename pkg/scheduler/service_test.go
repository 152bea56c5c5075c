package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaycore/agentd/pkg/lanequeue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls int32
	reply string
	err   error
}

func (f *fakeRunner) RunReminder(ctx context.Context, reminderID, prompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.reply, f.err
}

func newTestService(t *testing.T, runner AgentRunner) *Service {
	t.Helper()
	q := lanequeue.New()
	t.Cleanup(func() { q.Close() })

	svc, err := New(Options{
		StorePath:    filepath.Join(t.TempDir(), "scheduler-state.json"),
		TickInterval: time.Second,
		Queue:        q,
		Runner:       runner,
	})
	require.NoError(t, err)
	return svc
}

func TestScheduleOneTimeIn_FiresWhenDue(t *testing.T) {
	runner := &fakeRunner{reply: "ack"}
	svc := newTestService(t, runner)

	id := svc.ScheduleOneTimeAt(nowMs()-1000, "ping", lanequeue.LaneFast)
	require.Len(t, svc.ListOneTime(), 1)

	svc.runTick()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
	assert.Empty(t, svc.ListOneTime())
	assert.Len(t, svc.History(), 1)
	assert.Equal(t, "ping", svc.History()[0].Prompt)
	_ = id
}

func TestCancelOneTime_PreventsFiring(t *testing.T) {
	runner := &fakeRunner{reply: "ack"}
	svc := newTestService(t, runner)

	id := svc.ScheduleOneTimeAt(nowMs()-1000, "ping", "")
	assert.True(t, svc.CancelOneTime(id))
	assert.False(t, svc.CancelOneTime(id))

	svc.runTick()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runner.calls))
}

func TestHeartbeat_InitializesThenAdvances(t *testing.T) {
	runner := &fakeRunner{reply: "thump"}
	svc := newTestService(t, runner)

	svc.SetHeartbeat(1, "be alive")
	svc.runTick()
	assert.Equal(t, int32(0), atomic.LoadInt32(&runner.calls), "first tick only initializes nextRunById")

	svc.mu.Lock()
	svc.state.NextRunByID[HeartbeatID] = nowMs() - 1
	svc.mu.Unlock()

	svc.runTick()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
}

func TestReentrancy_SkipsReminderAlreadyRunning(t *testing.T) {
	runner := &fakeRunner{reply: "ack"}
	svc := newTestService(t, runner)

	svc.markRunning(HeartbeatID, true)
	svc.SetHeartbeat(1, "be alive")
	svc.mu.Lock()
	svc.state.NextRunByID[HeartbeatID] = nowMs() - 1
	svc.mu.Unlock()

	svc.runTick()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runner.calls))
	assert.Equal(t, int64(1), svc.GetHealthMetrics().Skipped)
}

func TestAddReminder_RoundTripsPersistence(t *testing.T) {
	runner := &fakeRunner{reply: "ack"}
	storePath := filepath.Join(t.TempDir(), "scheduler-state.json")
	q := lanequeue.New()
	defer q.Close()

	svc, err := New(Options{StorePath: storePath, TickInterval: time.Second, Queue: q, Runner: runner})
	require.NoError(t, err)
	id, err := svc.AddReminder("daily digest", 60_000, lanequeue.LaneSlow)
	require.NoError(t, err)

	reloaded, err := New(Options{StorePath: storePath, TickInterval: time.Second, Queue: q, Runner: runner})
	require.NoError(t, err)
	reloaded.mu.Lock()
	_, ok := reloaded.state.Reminders[id]
	reloaded.mu.Unlock()
	assert.True(t, ok)
}
