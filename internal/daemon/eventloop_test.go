package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventLoop(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	eventLoop := NewEventLoop(d)
	assert.NotNil(t, eventLoop)
	assert.Equal(t, d, eventLoop.daemon)
}

func TestEventLoopRun(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	eventLoop := NewEventLoop(d)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		eventLoop.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Event loop did not stop in time")
	}
}

func TestEventLoopHandleShutdown(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	eventLoop := NewEventLoop(d)

	// Should not panic
	eventLoop.HandleShutdown()
}
