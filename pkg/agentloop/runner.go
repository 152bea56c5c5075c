package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/relaycore/agentd/internal/observability"
	"github.com/relaycore/agentd/internal/tracing"
	"github.com/relaycore/agentd/pkg/memory"
	"github.com/relaycore/agentd/pkg/resilience"
	"github.com/relaycore/agentd/pkg/session"
	"github.com/relaycore/agentd/pkg/skills"
	"github.com/relaycore/agentd/pkg/toolregistry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxToolLoopTurns bounds step 5's streaming tool loop.
const maxToolLoopTurns = 10

// maxActionPromiseRetries bounds guard 4's override retries.
const maxActionPromiseRetries = 2

// Runner orchestrates the agent tool-call loop (spec §4.4, steps 1-7).
type Runner struct {
	sessionManager *session.Manager
	tools          *toolregistry.Registry
	memoryManager  *memory.Manager
	skillCatalogue *skills.Catalogue
	logger         zerolog.Logger

	streamExecutor *resilience.Executor
	planExecutor   *resilience.Executor

	providerFactory ProviderCreator

	authProfiles []AuthProfile
	authMu       sync.RWMutex

	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	SessionManager  *session.Manager
	Tools           *toolregistry.Registry
	MemoryManager   *memory.Manager // optional; disables memory context + extraction if nil
	SkillCatalogue  *skills.Catalogue // optional; disables skill injection if nil
	Logger          zerolog.Logger
	AuthProfiles    []AuthProfile
	ProviderFactory ProviderCreator
	StreamExecutor  *resilience.Executor // defaults to one scoped to "agent:chat_completion_stream"
	PlanExecutor    *resilience.Executor // defaults to one scoped to "agent:plan_generation"
}

// NewRunner creates a Runner from cfg, filling reasonable defaults.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.SessionManager == nil {
		return nil, fmt.Errorf("agentloop: session manager is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("agentloop: tool registry is required")
	}
	if len(cfg.AuthProfiles) == 0 {
		return nil, fmt.Errorf("agentloop: at least one auth profile is required")
	}

	providerFactory := cfg.ProviderFactory
	if providerFactory == nil {
		providerFactory = &ProviderFactory{}
	}

	streamExecutor := cfg.StreamExecutor
	if streamExecutor == nil {
		streamExecutor = resilience.New(resilience.Config{Name: "agent:chat_completion_stream", Logger: cfg.Logger})
	}
	planExecutor := cfg.PlanExecutor
	if planExecutor == nil {
		planExecutor = resilience.New(resilience.Config{Name: "agent:plan_generation", Logger: cfg.Logger})
	}

	return &Runner{
		sessionManager:  cfg.SessionManager,
		tools:           cfg.Tools,
		memoryManager:   cfg.MemoryManager,
		skillCatalogue:  cfg.SkillCatalogue,
		logger:          cfg.Logger,
		streamExecutor:  streamExecutor,
		planExecutor:    planExecutor,
		providerFactory: providerFactory,
		authProfiles:    cfg.AuthProfiles,
		activeRuns:      make(map[string]context.CancelFunc),
	}, nil
}

// Run executes one agent turn.
func (r *Runner) Run(params RunParams) (RunResult, error) {
	return r.RunWithContext(context.Background(), params)
}

// RunWithContext executes one agent turn against a caller-supplied context.
// Per spec §4.4's error semantics, LLM failures surface as an error the
// caller (the lane queue wrapper) records as a failed task result; this
// method does not itself enqueue onto a lane.
func (r *Runner) RunWithContext(ctx context.Context, params RunParams) (RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithSessionKey(ctx, params.SessionKey)
	ctx, span := tracing.StartSpan(ctx, "agentloop", "agentloop.run", attribute.String("session_key", params.SessionKey))
	defer span.End()

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.runsMu.Lock()
	r.activeRuns[params.SessionKey] = cancel
	r.runsMu.Unlock()
	defer func() {
		r.runsMu.Lock()
		delete(r.activeRuns, params.SessionKey)
		r.runsMu.Unlock()
	}()

	result, err := r.runTurn(execCtx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// Abort cancels a running turn for sessionKey, if any.
func (r *Runner) Abort(sessionKey string) {
	r.runsMu.Lock()
	defer r.runsMu.Unlock()
	if cancel, ok := r.activeRuns[sessionKey]; ok {
		cancel()
		delete(r.activeRuns, sessionKey)
	}
}

// IsRunning reports whether a turn is in flight for sessionKey.
func (r *Runner) IsRunning(sessionKey string) bool {
	r.runsMu.RLock()
	defer r.runsMu.RUnlock()
	_, ok := r.activeRuns[sessionKey]
	return ok
}

func (r *Runner) runTurn(ctx context.Context, params RunParams) (RunResult, error) {
	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("session_key", params.SessionKey).Logger()

	select {
	case <-ctx.Done():
		return RunResult{Aborted: true}, nil
	default:
	}

	entries, err := r.sessionManager.LoadSessionWithContext(ctx, params.SessionKey)
	if err != nil {
		return RunResult{}, fmt.Errorf("agentloop: load session history: %w", err)
	}
	history := entriesToMessages(entries)

	// Step 1 — compaction check, against the base system prompt (the
	// fully assembled prompt, with memory/skill context, is only known
	// after step 4 and would only grow the estimate further).
	tokenCount, tokenMode := estimateTokens(params.Config.SystemPrompt, history, params.UserMessage)
	if tokenCount >= compactionThreshold(params.Config.ContextWindowTokens) {
		if r.memoryManager != nil {
			pairs := entriesToTurnPairs(entries)
			if err := r.memoryManager.FlushBeforeCompaction(ctx, pairs, r.summarizeForCompaction(params)); err != nil {
				logger.Warn().Err(err).Msg("flushBeforeCompaction failed")
			}
		}
		history = truncateHistoryTail(history)
	}

	// Step 2 — deterministic router: a high-confidence intent match skips
	// the LLM entirely.
	if route, ok := routeIntent(params.UserMessage); ok {
		output := r.tools.Execute(ctx, route.Tool, route.Args)
		if err := r.persistTurn(ctx, params, output); err != nil {
			return RunResult{}, err
		}
		r.applyTurnAsync(params.UserMessage, output, time.Now())
		return RunResult{Reply: output, History: append(history, Message{Role: "user", Content: params.UserMessage}, Message{Role: "assistant", Content: output}), TokenMode: tokenMode}, nil
	}

	// Step 3 — skill + plan assembly.
	var selectedSkill skills.Skill
	var hasSkill bool
	if r.skillCatalogue != nil {
		selectedSkill, hasSkill = r.skillCatalogue.Match(params.UserMessage)
	}

	var plan *Plan
	if r.shouldPlan(params.Config.PlanningMode, params.UserMessage) {
		if p, err := r.generatePlan(ctx, params); err != nil {
			logger.Warn().Err(err).Msg("plan generation failed, continuing without a plan")
		} else {
			plan = p
		}
	}

	// Step 4 — system prompt build.
	systemPrompt, err := r.buildSystemPrompt(ctx, params, hasSkill, selectedSkill, plan)
	if err != nil {
		return RunResult{}, fmt.Errorf("agentloop: build system prompt: %w", err)
	}

	messages := append([]Message{}, history...)
	messages = append(messages, Message{Role: "user", Content: params.UserMessage})

	if err := r.sessionManager.AppendMessageWithContext(ctx, params.SessionKey, session.Message{
		Role: "user", Content: params.UserMessage, Timestamp: time.Now(),
	}); err != nil {
		return RunResult{}, fmt.Errorf("agentloop: persist user message: %w", err)
	}

	// Step 5 — streaming tool loop, with auth failover across profiles.
	final, allToolCalls, usage, err := r.runStreamingToolLoop(ctx, systemPrompt, messages, params)
	if err != nil {
		return RunResult{}, err
	}

	// Step 6 — integrity guards.
	reply := r.applyIntegrityGuards(ctx, params, systemPrompt, final, allToolCalls, plan)

	if err := r.sessionManager.AppendMessageWithContext(ctx, params.SessionKey, session.Message{
		Role: "assistant", Content: reply, Timestamp: time.Now(),
		Metadata: map[string]interface{}{"model": params.Config.Model, "usage": usage},
	}); err != nil {
		return RunResult{}, fmt.Errorf("agentloop: persist assistant message: %w", err)
	}

	// Step 7 — turn epilogue: episodic log + async extraction.
	r.applyTurnAsync(params.UserMessage, reply, time.Now())

	return RunResult{
		Reply:     reply,
		History:   append(messages, Message{Role: "assistant", Content: reply, ToolCalls: allToolCalls}),
		Usage:     usage,
		ToolCalls: allToolCalls,
		TokenMode: tokenMode,
	}, nil
}

func (r *Runner) persistTurn(ctx context.Context, params RunParams, reply string) error {
	if err := r.sessionManager.AppendMessageWithContext(ctx, params.SessionKey, session.Message{
		Role: "user", Content: params.UserMessage, Timestamp: time.Now(),
	}); err != nil {
		return fmt.Errorf("agentloop: persist user message: %w", err)
	}
	return r.sessionManager.AppendMessageWithContext(ctx, params.SessionKey, session.Message{
		Role: "assistant", Content: reply, Timestamp: time.Now(),
	})
}

// applyTurnAsync runs per-turn deterministic extraction in the background,
// per step 7 ("fire per-turn deterministic extraction asynchronously").
func (r *Runner) applyTurnAsync(userMessage, assistantReply string, at time.Time) {
	if r.memoryManager == nil {
		return
	}
	go func() {
		if _, err := r.memoryManager.ApplyTurn(context.Background(), memory.TurnPair{
			UserMessage: userMessage, AssistantReply: assistantReply, At: at,
		}); err != nil {
			r.logger.Warn().Err(err).Msg("memory ApplyTurn failed")
		}
	}()
}

func (r *Runner) shouldPlan(mode PlanningMode, userText string) bool {
	switch mode {
	case PlanningAutonomous:
		return true
	case PlanningAuto:
		return mentionsPlanSignal(userText)
	default:
		return false
	}
}

func (r *Runner) generatePlan(ctx context.Context, params RunParams) (*Plan, error) {
	provider, profile, err := r.firstAvailableProvider()
	if err != nil {
		return nil, err
	}

	request := LLMRequest{
		Model: params.Config.Model,
		SystemPrompt: "Return a JSON object exactly matching " +
			`{"goal": string, "steps": [{"description": string, "done": false}] (3 to 6 items), ` +
			`"completion_criteria": [string] (up to 6 items)}. Output only the JSON object.`,
		Messages:    []Message{{Role: "user", Content: params.UserMessage}},
		Temperature: 0,
		MaxTokens:   1024,
	}

	var response *LLMResponse
	err = r.planExecutor.Do(ctx, func(ctx context.Context) error {
		resp, callErr := provider.Call(ctx, request)
		if callErr != nil {
			return callErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation via %s: %w", profile.ID, err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(extractJSONObject(response.Content)), &plan); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(plan.Steps) < 3 || len(plan.Steps) > 6 {
		return nil, fmt.Errorf("plan has %d steps, want 3-6", len(plan.Steps))
	}
	return &plan, nil
}

func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

func (r *Runner) buildSystemPrompt(ctx context.Context, params RunParams, hasSkill bool, skill skills.Skill, plan *Plan) (string, error) {
	var b strings.Builder

	persona := params.Config.SystemPrompt
	if persona == "" {
		persona = "You are a helpful, tool-using assistant."
	}
	b.WriteString(persona)

	now := time.Now()
	fmt.Fprintf(&b, "\n\nCurrent time: %s local, %s UTC.", now.Format(time.RFC1123), now.UTC().Format(time.RFC1123))

	if params.Config.UseMemory && r.memoryManager != nil {
		memoryCtx, err := r.memoryManager.BootstrapContext(now)
		if err != nil {
			r.logger.Warn().Err(err).Msg("bootstrap context failed")
		} else if memoryCtx != "" {
			b.WriteString("\n\n")
			b.WriteString(memoryCtx)
		}
	}

	if r.skillCatalogue != nil {
		if summary := r.skillCatalogue.Summarize(); summary != "" {
			b.WriteString("\n\n=== AVAILABLE SKILLS ===\n")
			b.WriteString(summary)
		}
	}
	if hasSkill {
		b.WriteString("\n\n=== ACTIVE SKILL INSTRUCTIONS ===\n")
		b.WriteString(skill.Body)
	}

	if plan != nil {
		b.WriteString("\n\n=== EXECUTION PLAN ===\n")
		fmt.Fprintf(&b, "Goal: %s\n", plan.Goal)
		for i, step := range plan.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step.Description)
		}
	}

	if hint := toolRoutingHint(params.UserMessage); hint != "" {
		b.WriteString("\n\n")
		b.WriteString(hint)
	}

	return b.String(), nil
}

// toolRoutingHint surfaces a soft nudge toward the tool family the
// deterministic router patterns suggest, without actually invoking it
// (step 2 already handles the high-confidence case before this is reached).
func toolRoutingHint(userText string) string {
	switch {
	case mentionsWalletIntent(userText):
		return "The user's request may need a wallet_address or wallet_balance tool call."
	case mentionsRealtimeIntent(userText):
		return "The user's request may need current information; consider perplexity_search."
	default:
		return ""
	}
}

func (r *Runner) summarizeForCompaction(params RunParams) memory.Summarizer {
	return func(ctx context.Context, pairs []memory.TurnPair) (string, error) {
		provider, _, err := r.firstAvailableProvider()
		if err != nil {
			return "", err
		}
		var transcript strings.Builder
		for _, p := range pairs {
			fmt.Fprintf(&transcript, "User: %s\nAssistant: %s\n", p.UserMessage, p.AssistantReply)
		}
		request := LLMRequest{
			Model: params.Config.Model,
			SystemPrompt: "Summarize this conversation under exactly these three headings: " +
				"Current Goal, Important Facts About User, Progress and Next Steps.",
			Messages:  []Message{{Role: "user", Content: transcript.String()}},
			MaxTokens: 512,
		}
		resp, err := provider.Call(ctx, request)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}
}

func (r *Runner) firstAvailableProvider() (LLMProvider, AuthProfile, error) {
	r.authMu.RLock()
	profiles := append([]AuthProfile{}, r.authProfiles...)
	r.authMu.RUnlock()
	sortProfilesByPriority(profiles)

	for _, profile := range profiles {
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			continue
		}
		provider, err := r.providerFactory.NewProvider(profile)
		if err != nil {
			continue
		}
		return provider, profile, nil
	}
	return nil, AuthProfile{}, fmt.Errorf("agentloop: no available auth profile")
}

func sortProfilesByPriority(profiles []AuthProfile) {
	for i := 0; i < len(profiles)-1; i++ {
		for j := i + 1; j < len(profiles); j++ {
			if profiles[j].Priority < profiles[i].Priority {
				profiles[i], profiles[j] = profiles[j], profiles[i]
			}
		}
	}
}

// runStreamingToolLoop implements step 5: stream the LLM reply, dispatch
// any tool calls via the registry, append results, and loop, with
// priority-ordered auth-profile failover composed around the resilient
// executor per attempt.
func (r *Runner) runStreamingToolLoop(ctx context.Context, systemPrompt string, messages []Message, params RunParams) (string, []ToolCall, TokenUsage, error) {
	currentMessages := append([]Message{}, messages...)
	allToolCalls := []ToolCall{}
	usage := TokenUsage{}

	for turn := 0; turn < maxToolLoopTurns; turn++ {
		select {
		case <-ctx.Done():
			return "", allToolCalls, usage, fmt.Errorf("agentloop: %w", ctx.Err())
		default:
		}

		response, err := r.callWithFailover(ctx, systemPrompt, currentMessages, params)
		if err != nil {
			return "", allToolCalls, usage, fmt.Errorf("LLMUnavailable: %w", err)
		}
		if response.Usage != nil {
			usage.InputTokens += response.Usage.InputTokens
			usage.OutputTokens += response.Usage.OutputTokens
		}

		if len(response.ToolCalls) == 0 {
			return response.Content, allToolCalls, usage, nil
		}

		currentMessages = append(currentMessages, Message{Role: "assistant", Content: response.Content, ToolCalls: response.ToolCalls})
		for _, call := range response.ToolCalls {
			output := r.tools.Execute(ctx, call.Name, call.Parameters)
			currentMessages = append(currentMessages, Message{Role: "tool", Content: output, ToolCallID: call.ID})
		}
		allToolCalls = append(allToolCalls, response.ToolCalls...)
	}

	return "", allToolCalls, usage, fmt.Errorf("agentloop: maximum tool loop turns exceeded")
}

func (r *Runner) callWithFailover(ctx context.Context, systemPrompt string, messages []Message, params RunParams) (*LLMResponse, error) {
	r.authMu.RLock()
	profiles := append([]AuthProfile{}, r.authProfiles...)
	r.authMu.RUnlock()
	sortProfilesByPriority(profiles)

	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("session_key", params.SessionKey).Logger()

	var lastErr error
	for _, profile := range profiles {
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			observability.SetProviderCooldown(profile.Provider, true)
			continue
		}
		observability.SetProviderCooldown(profile.Provider, false)

		provider, err := r.providerFactory.NewProvider(profile)
		if err != nil {
			continue
		}

		request := LLMRequest{
			Model: params.Config.Model, Messages: messages, Tools: r.toolSpecsFor(params.Config.Tools),
			Temperature: params.Config.Temperature, MaxTokens: params.Config.MaxTokens, SystemPrompt: systemPrompt,
		}

		start := time.Now()
		var response *LLMResponse
		err = r.streamExecutor.Do(ctx, func(ctx context.Context) error {
			resp, callErr := provider.Stream(ctx, request, params.OnToken)
			if callErr != nil {
				return callErr
			}
			response = resp
			return nil
		})
		if err == nil {
			r.updateProfileSuccess(profile.ID)
			observability.RecordAgentRun(profile.Provider, time.Since(start), true)
			return response, nil
		}

		lastErr = err
		observability.RecordAgentRun(profile.Provider, time.Since(start), false)
		logger.Warn().Str("profileId", profile.ID).Err(err).Msg("auth profile failed")
		r.updateProfileFailure(profile.ID)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no auth profile available")
	}
	return nil, lastErr
}

// toolSpecsFor restricts the registry's full tool spec list to allowedNames
// when Config.Tools names a subset; an empty list exposes every registered
// tool, matching the teacher's buildTools behavior for an empty tool list.
func (r *Runner) toolSpecsFor(allowedNames []string) []interface{} {
	all := r.tools.Specs()
	if len(allowedNames) == 0 {
		return all
	}
	allowed := make(map[string]bool, len(allowedNames))
	for _, n := range allowedNames {
		allowed[n] = true
	}
	out := make([]interface{}, 0, len(allowedNames))
	for _, spec := range all {
		if m, ok := spec.(map[string]interface{}); ok && allowed[fmt.Sprintf("%v", m["name"])] {
			out = append(out, spec)
		}
	}
	return out
}

func (r *Runner) updateProfileSuccess(profileID string) {
	r.authMu.Lock()
	defer r.authMu.Unlock()
	for i := range r.authProfiles {
		if r.authProfiles[i].ID == profileID {
			r.authProfiles[i].FailureCount = 0
			r.authProfiles[i].CooldownUntil = nil
			observability.SetProviderCooldown(r.authProfiles[i].Provider, false)
			return
		}
	}
}

func (r *Runner) updateProfileFailure(profileID string) {
	r.authMu.Lock()
	defer r.authMu.Unlock()
	for i := range r.authProfiles {
		if r.authProfiles[i].ID == profileID {
			r.authProfiles[i].FailureCount++
			cooldownMs := time.Now().UnixMilli() + int64(60_000*r.authProfiles[i].FailureCount)
			r.authProfiles[i].CooldownUntil = &cooldownMs
			observability.SetProviderCooldown(r.authProfiles[i].Provider, true)
			return
		}
	}
}

// applyIntegrityGuards runs step 6's five guards, in order, over the final
// assistant turn.
func (r *Runner) applyIntegrityGuards(ctx context.Context, params RunParams, systemPrompt, draftReply string, calls []ToolCall, plan *Plan) string {
	exec := func(tool string) string { return r.tools.Execute(ctx, tool, map[string]interface{}{}) }

	reply := applyWalletGuard(params.UserMessage, draftReply, calls, exec)

	if mentionsRealtimeIntent(params.UserMessage) && !calledTool(calls, "perplexity_search") {
		liveResults := r.tools.Execute(ctx, "perplexity_search", map[string]interface{}{"query": params.UserMessage, "max_results": 5})
		if rewritten, err := r.rewriteWithLiveResults(ctx, params, reply, liveResults); err == nil {
			reply = rewritten
		} else {
			r.logger.Warn().Err(err).Msg("realtime-search rewrite failed")
		}
	}

	reply = applyClaimGuards(reply, calls, exec)

	if needsActionPromiseOverride(params.UserMessage, reply, calls) {
		reply = r.retryWithActionPromiseOverride(ctx, params, systemPrompt, reply)
	}

	if footer := renderPlanStatusFooter(plan); footer != "" {
		reply += footer
	}

	return reply
}

func (r *Runner) rewriteWithLiveResults(ctx context.Context, params RunParams, draftReply, liveResults string) (string, error) {
	provider, _, err := r.firstAvailableProvider()
	if err != nil {
		return draftReply, err
	}
	request := LLMRequest{
		Model:        params.Config.Model,
		SystemPrompt: "Rewrite the draft reply using the live search results to produce a final, accurate reply.",
		Messages: []Message{{Role: "user", Content: fmt.Sprintf(
			"User asked: %s\n\nDraft reply: %s\n\nLive results: %s", params.UserMessage, draftReply, liveResults)}},
		MaxTokens: params.Config.MaxTokens,
	}
	resp, err := provider.Call(ctx, request)
	if err != nil {
		return draftReply, err
	}
	return resp.Content, nil
}

// retryWithActionPromiseOverride implements guard 4: push a system-override
// message and retry the streaming tool loop at most maxActionPromiseRetries
// times, until a tool fires or the model replies with an explicit BLOCKED.
func (r *Runner) retryWithActionPromiseOverride(ctx context.Context, params RunParams, systemPrompt, draftReply string) string {
	reply := draftReply
	messages := []Message{
		{Role: "user", Content: params.UserMessage},
		{Role: "assistant", Content: draftReply},
	}
	for attempt := 0; attempt < maxActionPromiseRetries; attempt++ {
		messages = append(messages, Message{Role: "user", Content: actionPromiseOverride})
		final, calls, _, err := r.runStreamingToolLoop(ctx, systemPrompt, messages, params)
		if err != nil {
			break
		}
		reply = final
		if len(calls) > 0 || strings.HasPrefix(strings.TrimSpace(reply), "BLOCKED:") {
			break
		}
		messages = append(messages, Message{Role: "assistant", Content: reply})
	}
	return reply
}

func entriesToMessages(entries []session.Entry) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, Message{Role: e.Message.Role, Content: e.Message.Content, Metadata: e.Message.Metadata})
	}
	return out
}

func entriesToTurnPairs(entries []session.Entry) []memory.TurnPair {
	var pairs []memory.TurnPair
	var pendingUser *session.Entry
	for i := range entries {
		e := entries[i]
		switch e.Message.Role {
		case "user":
			pendingUser = &e
		case "assistant":
			if pendingUser != nil {
				pairs = append(pairs, memory.TurnPair{
					UserMessage: pendingUser.Message.Content, AssistantReply: e.Message.Content, At: e.Message.Timestamp,
				})
				pendingUser = nil
			}
		}
	}
	return pairs
}
