// Package llm shells out to an external agent binary to satisfy spec.md's
// opaque `llm(prompt) -> text` collaborator. Nothing in this package knows
// about any particular provider or SDK: the configured command reads a
// prompt on stdin and writes its answer on stdout, exactly the contract
// internal/hooks already uses for on_save/on_edit scripts.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrEmptyCommand is returned when Invoker is built with a blank command.
var ErrEmptyCommand = errors.New("llm: command is empty")

// Invoker runs config.LLMCommand as a subprocess for every Invoke call,
// piping the prompt over stdin and reading the full response from stdout.
type Invoker struct {
	argv    []string
	timeout time.Duration
	retries int
}

// New splits command the same way a shell would split a simple argv (no
// quoting support beyond whitespace, matching the documented default
// "claude --print") and returns an Invoker ready to call.
func New(command string, timeout time.Duration) (*Invoker, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Invoker{argv: argv, timeout: timeout, retries: 2}, nil
}

// Invoke runs the configured command, feeding prompt on stdin and returning
// trimmed stdout. Every failed run (any non-zero exit, or the per-run
// timeout) is retried up to v.retries more times with a constant 500ms
// backoff, whatever its stderr says; retrying stops once ctx is done.
func (v *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	var out string
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), uint64(v.retries))
	err := backoff.Retry(func() error {
		o, err := v.invokeOnce(ctx, prompt)
		if err == nil {
			out = o
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return "", err
	}
	return out, nil
}

func (v *Invoker) invokeOnce(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// #nosec G204 -- argv[0] comes from the operator's own config file.
	cmd := exec.CommandContext(runCtx, v.argv[0], v.argv[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return "", fmt.Errorf("llm: %s timed out after %s", v.argv[0], v.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("llm: %s failed: %s", v.argv[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}
