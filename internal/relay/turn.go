package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oselz/agent-relay/internal/backend"
)

// Stop reasons carried by end messages.
const (
	StopEndTurn     = "end_turn"
	StopUserStopped = "user_stopped"
)

var (
	// ErrTurnActive rejects a second turn while one is still in flight.
	ErrTurnActive = errors.New("relay: a turn is already in progress")

	errAgentResult = errors.New("agent reported an error")
)

// Emitter delivers client messages. The relay calls it from at most one
// goroutine at a time per connection; implementations bridge to the wire.
type Emitter func(Message)

// Turn is a handle to an in-flight turn.
type Turn struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Cancel requests cooperative cancellation. The turn still emits exactly one
// terminal message before Done is closed.
func (t *Turn) Cancel() { t.cancel() }

// Done is closed once the turn has emitted its terminal message.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Err reports how the turn ended: nil for natural completion or
// cancellation, the underlying failure otherwise. Valid after Done closes.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Turn) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// TurnController drives a single request/response turn at a time against the
// agent, forwarding the event stream through the Transformer in arrival
// order. Exactly one terminal message (end or error) is emitted per turn.
type TurnController struct {
	runner backend.Runner
	emit   Emitter
	logger *slog.Logger

	mu     sync.Mutex
	active bool
}

// NewTurnController creates a controller bound to one emitter.
func NewTurnController(runner backend.Runner, emit Emitter, logger *slog.Logger) *TurnController {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnController{runner: runner, emit: emit, logger: logger}
}

// Start begins a turn. The start marker is emitted synchronously, before any
// agent I/O. Starting while a turn is pending fails with ErrTurnActive.
// onSessionID, when non-nil, is invoked for every agent-reported session id.
func (c *TurnController) Start(ctx context.Context, req backend.TurnRequest, onSessionID func(string)) (*Turn, error) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil, ErrTurnActive
	}
	c.active = true
	c.mu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	t := &Turn{cancel: cancel, done: make(chan struct{})}

	c.emit(Start{SessionID: req.SDKSessionID})

	go func() {
		defer func() {
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			cancel()
			close(t.done)
		}()
		c.run(turnCtx, req, t, onSessionID)
	}()

	return t, nil
}

// run consumes the agent stream until it ends, fails, or the turn context is
// cancelled. Cancellation is checked between events so it takes effect
// without waiting out the stream.
func (c *TurnController) run(ctx context.Context, req backend.TurnRequest, t *Turn, onSessionID func(string)) {
	for ev, err := range c.runner.Stream(ctx, req) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			c.logger.Warn("Agent stream failed", "error", err)
			c.emit(Error{Err: err.Error()})
			t.setErr(err)
			return
		}
		if ev.SessionID != "" && onSessionID != nil {
			onSessionID(ev.SessionID)
		}
		for _, m := range Transform(ev) {
			c.emit(m)
		}
		if ev.Type == "result" && ev.IsError {
			// The transformer already emitted the error messages; they are
			// this turn's terminal.
			t.setErr(fmt.Errorf("%w: %s", errAgentResult, resultErrText(ev)))
			return
		}
	}

	if ctx.Err() != nil {
		c.emit(End{StopReason: StopUserStopped})
		return
	}
	c.emit(End{StopReason: StopEndTurn})
}

func resultErrText(ev *backend.Event) string {
	if len(ev.Errors) > 0 {
		return strings.Join(ev.Errors, "; ")
	}
	if ev.Result != "" {
		return ev.Result
	}
	return ev.Subtype
}
