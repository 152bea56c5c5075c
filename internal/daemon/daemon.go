package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/relaycore/agentd/internal/config"
	"github.com/relaycore/agentd/internal/logger"
	"github.com/relaycore/agentd/internal/observability"
	"github.com/relaycore/agentd/internal/telegram"
	"github.com/relaycore/agentd/internal/tracing"
	"github.com/relaycore/agentd/pkg/agentloop"
	"github.com/relaycore/agentd/pkg/browser"
	"github.com/relaycore/agentd/pkg/coretools"
	"github.com/relaycore/agentd/pkg/lanequeue"
	"github.com/relaycore/agentd/pkg/memory"
	"github.com/relaycore/agentd/pkg/sandbox"
	"github.com/relaycore/agentd/pkg/scheduler"
	"github.com/relaycore/agentd/pkg/session"
	"github.com/relaycore/agentd/pkg/skills"
	"github.com/relaycore/agentd/pkg/toolregistry"
)

// Daemon wires the lane queue, memory manager, tool registry, agent loop
// and scheduler into a single long-running service, and dispatches
// Telegram messages into that stack.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	queue          *lanequeue.Queue
	sessionMgr     *session.Manager
	searchEngine   *memory.SearchEngine
	memoryMgr      *memory.Manager
	skillCatalogue *skills.Catalogue
	tools          *toolregistry.Registry
	sandbox        sandbox.Sandbox
	browserContext *browser.BrowserServerContext
	runner         *agentloop.Runner
	scheduler      *scheduler.Service

	archiver *session.Archiver
	cleanup  *session.Cleanup

	telegramBot     *telegram.Bot
	telegramHandler *telegram.Handler
	dedupe          *messageDedupeCache
	telegramPairing *telegramPairingStore

	eventLoop *EventLoop
	router    *Router
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// schedulerRunner adapts agentloop.Runner to scheduler.AgentRunner: a
// reminder firing replays as a synthetic user turn under a fixed session
// key so it shares history and memory with the agent's other turns.
type schedulerRunner struct {
	runner *agentloop.Runner
}

func (s schedulerRunner) RunReminder(ctx context.Context, reminderID, prompt string) (string, error) {
	result, err := s.runner.RunWithContext(ctx, agentloop.RunParams{
		UserMessage: prompt,
		SessionKey:  "scheduler:" + reminderID,
		Config:      agentloop.DefaultConfig(),
	})
	if err != nil {
		return "", err
	}
	return result.Reply, nil
}

// New creates a new daemon instance.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()
	tracingEnabled := true
	if err := tracing.InitOpenTelemetry("agentcored"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		tracingEnabled = false
	} else {
		log.Info().Msg("Tracing initialized successfully")
	}

	d := &Daemon{
		config:         cfg,
		logger:         log,
		ctx:            ctx,
		cancel:         cancel,
		tracingEnabled: tracingEnabled,
	}

	if err := d.initialize(); err != nil {
		cancel()
		if d.tracingEnabled {
			_ = tracing.ShutdownOpenTelemetry(context.Background())
		}
		return nil, fmt.Errorf("failed to initialize daemon: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.router = NewRouter(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

func (d *Daemon) initialize() error {
	if err := os.MkdirAll(d.config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	auditPath := filepath.Join(d.config.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	} else {
		d.logger.Info().Str("path", auditPath).Msg("Audit logger initialized")
	}

	d.queue = lanequeue.New()
	d.logger.Info().Msg("Lane queue initialized")

	sessionMgr, err := session.New(filepath.Join(d.config.DataDir, "sessions"))
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	d.sessionMgr = sessionMgr
	d.archiver = session.NewArchiver(sessionMgr, 30*time.Minute)
	d.cleanup = session.NewCleanup(sessionMgr, 7*24*time.Hour)
	d.logger.Info().Msg("Session manager initialized")

	workspacePath := d.config.WorkspacePath
	if workspacePath == "" {
		workspacePath = filepath.Join(d.config.DataDir, "workspace")
	}
	if err := os.MkdirAll(workspacePath, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	searchEngine, err := memory.NewSearchEngine(memory.Config{
		WorkspacePath: workspacePath,
		DBPath:        filepath.Join(d.config.DataDir, "memory.db"),
		Logger:        d.logger.GetZerolog(),
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("Memory search engine unavailable, continuing without memory_search")
	}
	d.searchEngine = searchEngine

	memoryMgr, err := memory.NewManager(memory.ManagerConfig{
		WorkspacePath: workspacePath,
		Logger:        d.logger.GetZerolog(),
		Search:        searchEngine,
	})
	if err != nil {
		return fmt.Errorf("failed to create memory manager: %w", err)
	}
	d.memoryMgr = memoryMgr
	d.logger.Info().Msg("Memory manager initialized")

	skillsDir := filepath.Join(workspacePath, "skills")
	if catalogue, err := skills.Load(skillsDir); err != nil {
		d.logger.Warn().Err(err).Str("dir", skillsDir).Msg("Skill catalogue unavailable")
	} else {
		d.skillCatalogue = catalogue
		d.logger.Info().Int("count", len(catalogue.All())).Msg("Skill catalogue loaded")
	}

	registry := toolregistry.New()
	d.tools = registry

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Mode = sandbox.ModeTools
	sandboxCfg.Scope = sandbox.ScopeSession
	if len(d.config.Agents) > 0 {
		if runtime := d.config.Agents[0].Sandbox.Runtime; runtime != "" {
			sandboxCfg.Runtime = sandbox.Runtime(runtime)
		}
		if image := d.config.Agents[0].Sandbox.DockerImage; image != "" {
			sandboxCfg.Docker.Image = image
		}
	}
	sandboxCfg.FilesystemAccess.AllowedPaths = append(sandboxCfg.FilesystemAccess.AllowedPaths, workspacePath)

	var sb sandbox.Sandbox
	if sandboxCfg.Runtime == sandbox.RuntimeDocker {
		if err := sandbox.CheckDocker(); err != nil {
			d.logger.Warn().Err(err).Msg("Docker unavailable, falling back to host sandbox")
			sandboxCfg.Runtime = sandbox.RuntimeHost
		}
	}
	if sandboxCfg.Runtime == sandbox.RuntimeDocker {
		dockerSb, err := sandbox.NewDockerSandbox(sandboxCfg)
		if err != nil {
			return fmt.Errorf("failed to create docker sandbox: %w", err)
		}
		sb = dockerSb
	} else {
		hostSb, err := sandbox.NewHostSandbox(sandboxCfg)
		if err != nil {
			return fmt.Errorf("failed to create host sandbox: %w", err)
		}
		sb = hostSb
	}
	if err := sb.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start sandbox: %w", err)
	}
	d.sandbox = sb

	if err := coretools.RegisterCoreTools(registry, coretools.Options{
		WorkspaceRoot: workspacePath,
		Sandbox:       sb,
	}); err != nil {
		return fmt.Errorf("failed to register core tools: %w", err)
	}
	d.logger.Info().Msg("Core tools registered")

	if err := memory.RegisterTools(registry, memoryMgr); err != nil {
		return fmt.Errorf("failed to register memory tools: %w", err)
	}
	d.logger.Info().Msg("Memory tools registered")

	browserConfigPath := filepath.Join(d.config.DataDir, "browser.json")
	browserBaseDir := filepath.Join(d.config.DataDir, "browser")
	browserContext, err := browser.NewBrowserServerContext(browserConfigPath, browserBaseDir)
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	if err := browserContext.Initialize(d.ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Browser context initialization had errors, browser tools may be degraded")
	}
	d.browserContext = browserContext
	if err := browser.RegisterBrowserTools(registry, browserContext); err != nil {
		return fmt.Errorf("failed to register browser tools: %w", err)
	}
	d.logger.Info().Msg("Browser tools registered")

	authProfiles := convertAuthProfiles(d.config.AI.Profiles)

	runner, err := agentloop.NewRunner(agentloop.RunnerConfig{
		SessionManager: sessionMgr,
		Tools:          registry,
		MemoryManager:  memoryMgr,
		SkillCatalogue: d.skillCatalogue,
		Logger:         d.logger.GetZerolog(),
		AuthProfiles:   authProfiles,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent loop runner: %w", err)
	}
	d.runner = runner
	d.logger.Info().Msg("Agent loop runner initialized")

	schedulerSvc, err := scheduler.New(scheduler.Options{
		StorePath:    filepath.Join(d.config.DataDir, "scheduler.json"),
		TickInterval: time.Minute,
		Queue:        d.queue,
		Runner:       schedulerRunner{runner: runner},
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.scheduler = schedulerSvc

	if err := coretools.RegisterGuardTools(registry, coretools.GuardToolsOptions{
		WalletAddress:     d.config.Tools.Wallet.Address,
		WalletBalanceURL:  d.config.Tools.Wallet.BalanceURL,
		WalletBalanceUnit: d.config.Tools.Wallet.BalanceUnit,

		PerplexityEnabled:    d.config.Tools.Web.Perplexity.Enabled,
		PerplexityAPIKey:     d.config.Tools.Web.Perplexity.APIKey,
		PerplexityModel:      d.config.Tools.Web.Perplexity.Model,
		PerplexityMaxResults: d.config.Tools.Web.Perplexity.MaxResults,

		SocialEnabled:  d.config.Tools.Social.Enabled,
		SocialEndpoint: d.config.Tools.Social.Endpoint,
		SocialAPIKey:   d.config.Tools.Social.APIKey,

		Scheduler:  schedulerSvc,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}); err != nil {
		return fmt.Errorf("failed to register guard tools: %w", err)
	}
	d.logger.Info().Msg("Guard tools registered")

	if d.config.Channels.Telegram.Enabled && d.config.Telegram.BotToken != "" {
		bot, err := telegram.New(&d.config.Telegram, d.logger)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		handler := telegram.NewHandler(bot)
		handler.SetOnMessage(d.handleTelegramMessage)
		bot.SetMessageHandler(handler)
		d.telegramBot = bot
		d.telegramHandler = handler
		d.dedupe = newMessageDedupeCache(5 * time.Minute)
		d.telegramPairing = newTelegramPairingStore(d.config.Telegram.Allowlist)
		d.logger.Info().Msg("Telegram bot initialized")
	}

	return nil
}

// handleTelegramMessage enqueues an incoming Telegram message onto the fast
// lane and replies once the agent loop produces an answer.
func (d *Daemon) handleTelegramMessage(msgCtx telegram.MessageContext) error {
	peerID := fmt.Sprintf("%d", msgCtx.ChatID)
	switch d.config.Telegram.DMPolicy {
	case "disabled":
		return nil
	case "allowlist", "pairing":
		if d.telegramPairing != nil && !d.telegramPairing.IsAllowed(peerID) {
			d.logger.Debug().Str("chat_id", peerID).Msg("Rejected message from unpaired chat")
			return nil
		}
	}

	dedupeKey := fmt.Sprintf("%d:%d", msgCtx.ChatID, msgCtx.MessageID)
	if d.dedupe != nil && d.dedupe.IsDuplicate(dedupeKey) {
		return nil
	}
	if d.dedupe != nil {
		d.dedupe.Mark(dedupeKey)
	}

	sessionKey := fmt.Sprintf("telegram:%d", msgCtx.ChatID)

	_, err := d.queue.Enqueue(lanequeue.LaneFast, func(ctx context.Context) (interface{}, error) {
		result, err := d.runner.RunWithContext(ctx, agentloop.RunParams{
			UserMessage: msgCtx.Text,
			SessionKey:  sessionKey,
			Config:      agentloop.DefaultConfig(),
		})
		if err != nil {
			return nil, err
		}
		return result.Reply, d.telegramHandler.SendResponse(msgCtx, result.Reply)
	}, nil)
	return err
}

func convertAuthProfiles(profiles []config.AIProfile) []agentloop.AuthProfile {
	result := make([]agentloop.AuthProfile, 0, len(profiles))
	for _, p := range profiles {
		result = append(result, agentloop.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		})
	}
	return result
}

// Start starts the daemon service.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting agentcored")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	d.scheduler.Start()
	logger.Info().Msg("Scheduler started")

	if d.telegramBot != nil {
		if err := d.telegramBot.Start(); err != nil {
			return fmt.Errorf("failed to start telegram bot: %w", err)
		}
		if d.dedupe != nil {
			d.dedupe.Start()
		}
		logger.Info().Msg("Telegram bot started")
	}

	if err := d.archiver.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start session archiver")
	} else {
		logger.Info().Msg("Session archiver started")
	}

	if err := d.cleanup.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start session cleanup")
	} else {
		logger.Info().Msg("Session cleanup started")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Msg("Daemon started successfully")
	return nil
}

// Stop stops the daemon service gracefully.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping agentcored")

	if d.telegramBot != nil {
		if err := d.telegramBot.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop telegram bot")
		}
		if d.dedupe != nil {
			d.dedupe.Stop()
		}
	}

	d.scheduler.Stop()

	d.eventLoop.HandleShutdown()
	d.cancel()
	d.wg.Wait()

	if err := d.archiver.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop session archiver")
	}
	if err := d.cleanup.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop session cleanup")
	}

	if d.browserContext != nil {
		if err := d.browserContext.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to shut down browser context")
		}
	}

	if d.sandbox != nil {
		if err := d.sandbox.Stop(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop sandbox")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if err := d.sessionMgr.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close session manager")
	}

	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// Status reports whether the daemon is running and for how long.
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
}

func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{Running: d.running}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Wait blocks until the process receives an interrupt or terminate signal,
// then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	_ = d.Stop()
}

func (d *Daemon) GetConfig() *config.Config                        { return d.config }
func (d *Daemon) GetLogger() *logger.Logger                         { return d.logger }
func (d *Daemon) GetQueue() *lanequeue.Queue                        { return d.queue }
func (d *Daemon) GetSessionManager() *session.Manager               { return d.sessionMgr }
func (d *Daemon) GetMemoryManager() *memory.Manager                 { return d.memoryMgr }
func (d *Daemon) GetToolRegistry() *toolregistry.Registry           { return d.tools }
func (d *Daemon) GetAgentRunner() *agentloop.Runner                 { return d.runner }
func (d *Daemon) GetScheduler() *scheduler.Service                  { return d.scheduler }
func (d *Daemon) GetBrowserContext() *browser.BrowserServerContext  { return d.browserContext }
func (d *Daemon) GetRouter() *Router                                { return d.router }
func (d *Daemon) GetTelegramBot() *telegram.Bot                     { return d.telegramBot }
func (d *Daemon) GetArchiver() *session.Archiver                    { return d.archiver }
func (d *Daemon) GetCleanup() *session.Cleanup                      { return d.cleanup }
