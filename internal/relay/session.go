package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oselz/agent-relay/internal/backend"
)

// ErrSessionClosed rejects operations on a closed session controller.
var ErrSessionClosed = errors.New("relay: session closed")

// Options configure an agent session. Zero values defer to the agent's own
// defaults.
type Options struct {
	Model        string
	SystemPrompt string
	AllowedTools []string
	Env          map[string]string
	WorkingDir   string
}

// Session owns one logical agent conversation. It serializes turns (at most
// one in flight), tracks the agent-assigned session id across turns, and
// announces that id on the wire the first time it becomes known so the
// client can persist it for a later resume.
type Session struct {
	turns  *TurnController
	emit   Emitter
	opts   Options
	logger *slog.Logger

	mu           sync.Mutex
	sdkSessionID string
	announced    bool
	pending      *Turn
	closed       bool
}

// NewSession creates a controller for a fresh agent session. The agent id is
// unknown until the first turn reports it.
func NewSession(runner backend.Runner, emit Emitter, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		turns:  NewTurnController(runner, emit, logger),
		emit:   emit,
		opts:   opts,
		logger: logger,
	}
}

// ResumeSession creates a controller bound to an existing agent session and
// acknowledges the resume on the wire.
func ResumeSession(runner backend.Runner, emit Emitter, sdkSessionID string, opts Options, logger *slog.Logger) *Session {
	s := NewSession(runner, emit, opts, logger)
	s.sdkSessionID = sdkSessionID
	s.announced = true
	emit(SessionResumed{SDKSessionID: sdkSessionID})
	return s
}

// SDKSessionID returns the agent-assigned session id, or "" when no turn has
// reported one yet.
func (s *Session) SDKSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sdkSessionID
}

// SendMessage starts one turn for the prompt. Failures surface as typed wire
// messages as well as the returned error; the session stays usable for a
// later attempt. A second send while a turn is pending is rejected.
func (s *Session) SendMessage(ctx context.Context, prompt string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.emit(Error{Err: ErrSessionClosed.Error()})
		return ErrSessionClosed
	}
	if s.pending != nil {
		select {
		case <-s.pending.Done():
			s.pending = nil
		default:
			s.mu.Unlock()
			s.emit(Error{Err: ErrTurnActive.Error()})
			return ErrTurnActive
		}
	}
	req := backend.TurnRequest{
		Prompt:       prompt,
		SDKSessionID: s.sdkSessionID,
		Model:        s.opts.Model,
		SystemPrompt: s.opts.SystemPrompt,
		AllowedTools: s.opts.AllowedTools,
		Env:          s.opts.Env,
		WorkingDir:   s.opts.WorkingDir,
	}
	s.mu.Unlock()

	turn, err := s.turns.Start(ctx, req, s.captureSessionID)
	if err != nil {
		s.emit(Error{Err: err.Error()})
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		turn.Cancel()
		<-turn.Done()
		return ErrSessionClosed
	}
	s.pending = turn
	s.mu.Unlock()
	return nil
}

// Wait blocks until the in-flight turn, if any, has emitted its terminal
// message. It reports the turn's outcome.
func (s *Session) Wait() error {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return nil
	}
	<-pending.Done()
	return pending.Err()
}

// Pending reports whether a turn is currently in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	select {
	case <-s.pending.Done():
		return false
	default:
		return true
	}
}

// Close cancels any pending turn and waits for its terminal message before
// returning. It reports whether a turn was actually cancelled. Safe to call
// more than once.
func (s *Session) Close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return false
	}
	select {
	case <-pending.Done():
		return false
	default:
	}
	pending.Cancel()
	<-pending.Done()
	return true
}

// captureSessionID records the agent-reported session id. The transition
// from unknown to known is announced once as session_created.
func (s *Session) captureSessionID(id string) {
	s.mu.Lock()
	s.sdkSessionID = id
	announce := !s.announced
	if announce {
		s.announced = true
	}
	s.mu.Unlock()

	if announce {
		s.logger.Info("Agent session established", "sdk_session_id", id)
		s.emit(SessionCreated{SDKSessionID: id})
	}
}
