package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/oselz/agent-relay/internal/backend"
)

// ConnState tracks the lifecycle of one client connection.
type ConnState int

const (
	// StateIdle means no session controller is bound yet.
	StateIdle ConnState = iota
	// StateActive means exactly one session controller is bound.
	StateActive
	// StateClosed is terminal; the transport is gone.
	StateClosed
)

// Registry owns the mapping from live connection ids to their Conn. It is
// the only holder of cross-connection state; each entry is mutated solely by
// the handler goroutine of that connection.
type Registry struct {
	runner   backend.Runner
	defaults Options
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewRegistry creates a registry with the given session option defaults.
func NewRegistry(runner backend.Runner, defaults Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		runner:   runner,
		defaults: defaults,
		logger:   logger,
		conns:    make(map[string]*Conn),
	}
}

// Connect registers a new client connection. Messages produced on behalf of
// this connection flow through emit in production order. The returned Conn
// must be released with Disconnect.
func (r *Registry) Connect(ctx context.Context, emit Emitter) *Conn {
	connCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		id:       uuid.NewString(),
		runner:   r.runner,
		defaults: r.defaults,
		emit:     emit,
		logger:   r.logger,
		ctx:      connCtx,
		cancel:   cancel,
	}
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
	r.logger.Info("Connection registered", "conn_id", c.id)
	return c
}

// Disconnect removes a connection and releases its agent resources. This is
// the unconditional cleanup path for transport loss: nothing is reported to
// the client, any pending turn is cancelled synchronously.
func (r *Registry) Disconnect(c *Conn) {
	r.mu.Lock()
	delete(r.conns, c.id)
	r.mu.Unlock()
	c.shutdown()
	r.logger.Info("Connection released", "conn_id", c.id)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Conn binds one live client connection to at most one session controller
// and dispatches its inbound commands. Turns run on their own goroutine so
// the transport's read loop stays responsive to stop commands.
type Conn struct {
	id       string
	runner   backend.Runner
	defaults Options
	emit     Emitter
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	state   ConnState
	session *Session
}

// ID returns the connection's identity within the registry.
func (c *Conn) ID() string { return c.id }

// State returns the connection's lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleCommand dispatches one inbound payload. Malformed payloads produce a
// single error message and no state transition. This method never blocks on
// agent I/O.
func (c *Conn) HandleCommand(raw []byte) {
	cmd, err := ParseCommand(raw)
	if err != nil {
		c.emit(Error{Err: err.Error()})
		return
	}
	switch cmd.Type {
	case CmdCreateSession:
		c.createSession(cmd)
	case CmdResumeSession:
		c.resumeSession(cmd)
	case CmdSendMessage:
		c.sendMessage(cmd)
	case CmdStop:
		c.stop()
	}
}

// options merges client-supplied overrides over the process defaults.
func (c *Conn) options(cmd *Command) Options {
	opts := c.defaults
	if cmd.Options != nil {
		if cmd.Options.Model != "" {
			opts.Model = cmd.Options.Model
		}
		if cmd.Options.SystemPrompt != "" {
			opts.SystemPrompt = cmd.Options.SystemPrompt
		}
		if len(cmd.Options.AllowedTools) > 0 {
			opts.AllowedTools = cmd.Options.AllowedTools
		}
	}
	return opts
}

// bind replaces the bound controller, closing the previous one first. At
// most one controller exists per connection.
func (c *Conn) bind(s *Session) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		s.Close()
		return false
	}
	prev := c.session
	c.session = s
	c.state = StateActive
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return true
}

func (c *Conn) createSession(cmd *Command) {
	s := NewSession(c.runner, c.emit, c.options(cmd), c.logger)
	if c.bind(s) {
		c.logger.Info("Session created", "conn_id", c.id)
	}
}

func (c *Conn) resumeSession(cmd *Command) {
	s := ResumeSession(c.runner, c.emit, cmd.SDKSessionID, c.options(cmd), c.logger)
	if c.bind(s) {
		c.logger.Info("Session resumed", "conn_id", c.id, "sdk_session_id", cmd.SDKSessionID)
	}
}

// sendMessage forwards a prompt to the bound controller, creating a session
// first when none is bound yet. The auto-create path is a documented
// convenience fallback for clients that skip create_session.
func (c *Conn) sendMessage(cmd *Command) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	s := c.session
	c.mu.Unlock()

	if s == nil {
		c.createSession(cmd)
		c.mu.Lock()
		s = c.session
		c.mu.Unlock()
		if s == nil {
			return
		}
	}

	if err := s.SendMessage(c.ctx, cmd.Prompt); err != nil {
		// SendMessage already emitted the typed error message.
		c.logger.Warn("Send rejected", "conn_id", c.id, "error", err)
	}
}

// stop closes the bound controller and returns the connection to idle. The
// cancelled turn's own terminal covers the wire acknowledgement; when there
// was nothing to cancel, an end marker is emitted directly so the client
// still clears its processing indicator.
func (c *Conn) stop() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	s := c.session
	c.session = nil
	c.state = StateIdle
	c.mu.Unlock()

	cancelled := false
	if s != nil {
		cancelled = s.Close()
	}
	if !cancelled {
		c.emit(End{StopReason: StopUserStopped})
	}
	c.logger.Info("Session stopped", "conn_id", c.id, "turn_cancelled", cancelled)
}

// shutdown releases the connection unconditionally; it is idempotent and
// never emits to the (already gone) transport.
func (c *Conn) shutdown() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	s := c.session
	c.session = nil
	c.mu.Unlock()

	c.cancel()
	if s != nil {
		s.Close()
	}
}
