// Package session persists per-session conversation turns as JSONL files,
// one file per session key, so the agent loop can reload history across
// process restarts.
package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/relaycore/agentd/internal/observability"
	"github.com/relaycore/agentd/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Message is one conversation turn as persisted to a session file.
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Entry pairs a message with the session key it belongs to, matching the
// on-disk JSONL record shape.
type Entry struct {
	SessionKey string  `json:"sessionKey"`
	Message    Message `json:"message"`
}

// Manager manages conversation persistence using JSONL files, one per
// session key, under a single sessions directory.
type Manager struct {
	sessionsDir string
	writeLocks  map[string]*sync.Mutex
	locksMu     sync.RWMutex
}

// New creates a Manager rooted at sessionsDir, creating the directory if
// it does not already exist. An empty sessionsDir defaults under the
// user's home directory.
func New(sessionsDir string) (*Manager, error) {
	observability.EnsureRegistered()

	if sessionsDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("session: get home directory: %w", err)
		}
		sessionsDir = filepath.Join(homeDir, ".agentd", "sessions")
	}

	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("session: create sessions directory: %w", err)
	}

	m := &Manager{
		sessionsDir: sessionsDir,
		writeLocks:  make(map[string]*sync.Mutex),
	}

	log.Info().Str("dir", sessionsDir).Msg("session manager initialized")
	m.updateActiveSessionsMetric()

	return m, nil
}

func (m *Manager) validateSessionKey(sessionKey string) error {
	if sessionKey == "" {
		return fmt.Errorf("session: key cannot be empty")
	}
	if strings.Contains(sessionKey, "..") {
		return fmt.Errorf("session: key cannot contain '..'")
	}
	if strings.ContainsAny(sessionKey, "/\\") {
		return fmt.Errorf("session: key cannot contain path separators")
	}
	if strings.Contains(sessionKey, "\x00") {
		return fmt.Errorf("session: key cannot contain null bytes")
	}
	return nil
}

func (m *Manager) getSessionPath(sessionKey string) string {
	return filepath.Join(m.sessionsDir, sessionKey+".jsonl")
}

func (m *Manager) updateActiveSessionsMetric() {
	sessions, err := m.ListSessions()
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(sessions))
}

func (m *Manager) getWriteLock(sessionKey string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if lock, exists := m.writeLocks[sessionKey]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	m.writeLocks[sessionKey] = lock
	return lock
}

func (m *Manager) releaseWriteLock(sessionKey string) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	delete(m.writeLocks, sessionKey)
}

// CreateSession creates an empty session file if one does not exist.
func (m *Manager) CreateSession(sessionKey string) error {
	return m.CreateSessionWithContext(context.Background(), sessionKey)
}

// CreateSessionWithContext is CreateSession with tracing propagation.
func (m *Manager) CreateSessionWithContext(ctx context.Context, sessionKey string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(ctx, "agentd.session", "session.create",
		attribute.String("session_key", sessionKey))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_key", sessionKey).Logger()

	if err := m.validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	sessionPath := m.getSessionPath(sessionKey)
	if _, err := os.Stat(sessionPath); err == nil {
		logger.Debug().Msg("session already exists")
		return nil
	}

	file, err := os.OpenFile(sessionPath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session: create file: %w", err)
	}
	file.Close()

	m.updateActiveSessionsMetric()
	logger.Info().Msg("session created")
	return nil
}

// AppendMessage appends message to sessionKey's history, creating the
// session first if needed.
func (m *Manager) AppendMessage(sessionKey string, message Message) error {
	return m.AppendMessageWithContext(context.Background(), sessionKey, message)
}

// AppendMessageWithContext is AppendMessage with tracing propagation.
func (m *Manager) AppendMessageWithContext(ctx context.Context, sessionKey string, message Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(ctx, "agentd.session", "session.append_message",
		attribute.String("session_key", sessionKey),
		attribute.String("role", message.Role))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_key", sessionKey).Logger()
	start := time.Now()
	defer func() { observability.RecordSessionSave(time.Since(start)) }()

	if err := m.validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if message.Role == "" {
		return fmt.Errorf("session: message role cannot be empty")
	}
	if message.Content == "" {
		return fmt.Errorf("session: message content cannot be empty")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	lock := m.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := m.getSessionPath(sessionKey)
	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		if err := m.CreateSessionWithContext(ctx, sessionKey); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	file, err := os.OpenFile(sessionPath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session: open file: %w", err)
	}
	defer file.Close()

	entry := Entry{SessionKey: sessionKey, Message: message}
	data, err := json.Marshal(entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session: marshal message: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session: write message: %w", err)
	}
	if err := file.Sync(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("session: sync file: %w", err)
	}

	logger.Debug().Str("role", message.Role).Msg("message appended")
	return nil
}

// LoadSession loads every message recorded for sessionKey, in order.
func (m *Manager) LoadSession(sessionKey string) ([]Entry, error) {
	return m.LoadSessionWithContext(context.Background(), sessionKey)
}

// LoadSessionWithContext is LoadSession with tracing propagation.
func (m *Manager) LoadSessionWithContext(ctx context.Context, sessionKey string) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(ctx, "agentd.session", "session.load",
		attribute.String("session_key", sessionKey))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_key", sessionKey).Logger()
	start := time.Now()
	defer func() { observability.RecordSessionLoad(time.Since(start)) }()

	if err := m.validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sessionPath := m.getSessionPath(sessionKey)
	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		return []Entry{}, nil
	}

	file, err := os.Open(sessionPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("session: open file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Warn().Int("line", lineNum).Err(err).Msg("skipping unparseable line")
			continue
		}
		if entry.Message.Role == "" || entry.Message.Content == "" {
			logger.Warn().Int("line", lineNum).Msg("skipping invalid entry")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("session: read file: %w", err)
	}

	logger.Debug().Int("messages", len(entries)).Msg("session loaded")
	return entries, nil
}

// DeleteSession removes a session's history file.
func (m *Manager) DeleteSession(sessionKey string) error {
	if err := m.validateSessionKey(sessionKey); err != nil {
		return err
	}

	lock := m.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := m.getSessionPath(sessionKey)
	if err := os.Remove(sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: delete file: %w", err)
	}

	m.releaseWriteLock(sessionKey)
	m.updateActiveSessionsMetric()
	return nil
}

// ListSessions returns every session key with a history file on disk.
func (m *Manager) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("session: read sessions directory: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".jsonl"))
	}
	return sessions, nil
}

// RepairSession rewrites a session file dropping any corrupted lines.
func (m *Manager) RepairSession(sessionKey string) error {
	if err := m.validateSessionKey(sessionKey); err != nil {
		return err
	}

	entries, err := m.LoadSession(sessionKey)
	if err != nil {
		return err
	}

	lock := m.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := m.getSessionPath(sessionKey)
	tempPath := sessionPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("session: marshal entry: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("session: write entry: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("session: sync file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, sessionPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("session: replace file: %w", err)
	}

	log.Info().Str("sessionKey", sessionKey).Int("entries", len(entries)).Msg("session repaired")
	return nil
}

// ReplaceSession atomically overwrites sessionKey's file with entries,
// used to prune a session down to its most recent N messages.
func (m *Manager) ReplaceSession(sessionKey string, entries []Entry) error {
	if err := m.validateSessionKey(sessionKey); err != nil {
		return err
	}

	lock := m.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := m.getSessionPath(sessionKey)
	tempPath := sessionPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("session: marshal entry: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("session: write entry: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("session: sync file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, sessionPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("session: replace file: %w", err)
	}
	return nil
}

// GetSessionInfo returns size, last-modified time, and message count for a
// session, used by Archiver to decide which sessions are idle.
func (m *Manager) GetSessionInfo(sessionKey string) (map[string]interface{}, error) {
	if err := m.validateSessionKey(sessionKey); err != nil {
		return nil, err
	}

	sessionPath := m.getSessionPath(sessionKey)
	info, err := os.Stat(sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session: does not exist")
		}
		return nil, fmt.Errorf("session: stat file: %w", err)
	}

	entries, err := m.LoadSession(sessionKey)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"sessionKey":   sessionKey,
		"size":         info.Size(),
		"lastModified": info.ModTime(),
		"messageCount": len(entries),
	}, nil
}

// Close releases in-memory write locks.
func (m *Manager) Close() error {
	m.locksMu.Lock()
	m.writeLocks = make(map[string]*sync.Mutex)
	m.locksMu.Unlock()
	return nil
}
