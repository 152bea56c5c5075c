package daemon

import (
	"context"
	"fmt"

	"github.com/relaycore/agentd/pkg/agentloop"
)

// Router enqueues inbound messages onto the lane queue and replays the
// reply through the agent loop runner.
type Router struct {
	daemon *Daemon
}

// NewRouter creates a new message router.
func NewRouter(d *Daemon) *Router {
	return &Router{
		daemon: d,
	}
}

// RouteMessage enqueues msg on the given lane and returns the agent's reply.
func (r *Router) RouteMessage(ctx context.Context, msg Message, lane string) (string, error) {
	r.daemon.logger.Info().
		Str("session_key", msg.SessionKey).
		Str("source", msg.Source).
		Str("lane", lane).
		Msg("Routing message")

	result, err := r.daemon.queue.EnqueueWithContext(ctx, lane, func(ctx context.Context) (interface{}, error) {
		return r.processMessage(ctx, msg)
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}

	reply, _ := result.(string)
	return reply, nil
}

// processMessage replays msg as an agent loop turn.
func (r *Router) processMessage(ctx context.Context, msg Message) (interface{}, error) {
	r.daemon.logger.Debug().
		Str("session_key", msg.SessionKey).
		Str("content", msg.Content).
		Msg("Processing message")

	result, err := r.daemon.runner.RunWithContext(ctx, agentloop.RunParams{
		UserMessage: msg.Content,
		SessionKey:  msg.SessionKey,
		Config:      agentloop.DefaultConfig(),
	})
	if err != nil {
		return nil, err
	}
	return result.Reply, nil
}

// Message represents an inbound message awaiting routing.
type Message struct {
	SessionKey string
	Source     string // telegram, scheduler, etc.
	Content    string
	Metadata   map[string]interface{}
}
