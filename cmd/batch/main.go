// Agent Relay batch - stdin/stdout line transport for the relay.
//
// Reads one JSON request per line from stdin, runs each as a turn on a
// single long-lived agent session, and writes the resulting wire messages
// as JSON lines to stdout. Logs go to stderr so stdout stays machine
// readable.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oselz/agent-relay/internal/backend"
	"github.com/oselz/agent-relay/internal/config"
	"github.com/oselz/agent-relay/internal/relay"
)

const maxLineBytes = 1024 * 1024

// request is one line of batch input.
type request struct {
	Prompt string `json:"prompt"`
}

func main() {
	resume := flag.String("resume", "", "agent session id to resume")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := backend.NewCLIRunner(cfg.Claude.Bin, logger)
	opts := relay.Options{
		Model:        cfg.Claude.Model,
		SystemPrompt: cfg.Claude.SystemPrompt,
		AllowedTools: cfg.Claude.AllowedTools,
		WorkingDir:   cfg.Claude.WorkDir,
	}

	var mu sync.Mutex
	out := json.NewEncoder(os.Stdout)
	emit := func(m relay.Message) {
		payload, err := relay.Encode(m)
		if err != nil {
			logger.Error("Failed to encode message", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := out.Encode(json.RawMessage(payload)); err != nil {
			logger.Error("Failed to write output", "error", err)
		}
	}

	var sess *relay.Session
	if *resume != "" {
		sess = relay.ResumeSession(runner, emit, *resume, opts, logger)
	} else {
		sess = relay.NewSession(runner, emit, opts, logger)
	}
	defer sess.Close()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			// Bare text lines are treated as prompts.
			req = request{Prompt: line}
		}
		if req.Prompt == "" {
			emit(relay.Error{Err: "missing required field 'prompt'"})
			continue
		}

		if err := sess.SendMessage(ctx, req.Prompt); err != nil {
			logger.Warn("Turn rejected", "error", err)
			continue
		}
		if err := sess.Wait(); err != nil {
			logger.Warn("Turn ended with error", "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("Failed to read input", "error", err)
		os.Exit(1)
	}

	if id := sess.SDKSessionID(); id != "" {
		logger.Info("Batch run complete", "sdk_session_id", id)
	}
}
