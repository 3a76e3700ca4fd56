package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// scannerBufSize bounds a single stream-json line (1 MB).
const scannerBufSize = 1 << 20

const defaultCommand = "claude"

// CLIRunner runs the agent CLI in non-interactive streaming mode, one
// subprocess per turn. Cancellation kills the process via the command
// context.
type CLIRunner struct {
	bin    string
	logger *slog.Logger
}

// NewCLIRunner creates a runner for the given agent binary. An empty bin
// falls back to "claude" resolved from PATH.
func NewCLIRunner(bin string, logger *slog.Logger) *CLIRunner {
	if bin == "" {
		bin = defaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIRunner{bin: bin, logger: logger}
}

// buildArgs assembles the CLI arguments for one turn.
func buildArgs(req TurnRequest) []string {
	args := []string{"-p", req.Prompt, "--output-format", "stream-json", "--verbose"}
	if req.SDKSessionID != "" {
		args = append(args, "--resume", req.SDKSessionID)
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	return args
}

// Stream spawns the CLI and yields each decoded event line in arrival order.
// A cancelled context ends the sequence silently; every other failure is
// yielded as the final element.
func (r *CLIRunner) Stream(ctx context.Context, req TurnRequest) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		cmd := exec.CommandContext(ctx, r.bin, buildArgs(req)...)
		if req.WorkingDir != "" {
			cmd.Dir = req.WorkingDir
		}
		if len(req.Env) > 0 {
			env := os.Environ()
			for k, v := range req.Env {
				env = append(env, k+"="+v)
			}
			cmd.Env = env
		}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(nil, fmt.Errorf("stdout pipe: %w", err))
			return
		}
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Start(); err != nil {
			yield(nil, fmt.Errorf("start %s: %w", r.bin, err))
			return
		}
		r.logger.Debug("Agent turn started", "bin", r.bin, "resume", req.SDKSessionID != "")

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			ev, err := Decode(line)
			if err != nil {
				r.logger.Debug("Skipping undecodable agent output line", "error", err)
				continue
			}
			if !yield(ev, nil) {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
				return
			}
		}
		scanErr := scanner.Err()
		waitErr := cmd.Wait()

		if ctx.Err() != nil {
			// Cancelled mid-turn; the caller decides how to surface it.
			return
		}
		if scanErr != nil {
			yield(nil, fmt.Errorf("read agent stream: %w", scanErr))
			return
		}
		if waitErr != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				yield(nil, fmt.Errorf("agent exited: %w: %s", waitErr, msg))
				return
			}
			yield(nil, fmt.Errorf("agent exited: %w", waitErr))
		}
	}
}
