package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// Transport is one execution context's communication channel. A transport is
// single-use: Start, one Send, Recv until a terminal message, Close.
type Transport interface {
	Start(ctx context.Context) error
	Send(req *Request) error
	// Recv blocks for the next message from the context. It returns an
	// error when the context dies or the transport is closed.
	Recv() (*Response, error)
	// Close tears the context down. Safe to call more than once; only the
	// first call acts.
	Close() error
}

// Factory creates a fresh transport per execution context.
type Factory func() Transport

// ProcessTransport runs an execution context as a child process speaking
// line-delimited JSON over stdin/stdout. The child is this same binary
// re-executed in worker mode, so there is nothing extra to install.
type ProcessTransport struct {
	path string
	args []string

	cmd   *exec.Cmd
	stdin io.WriteCloser
	dec   *json.Decoder

	closeOnce sync.Once
	closeErr  error
}

// SelfFactory returns a Factory that re-executes the current binary with the
// given arguments (typically ["worker"]).
func SelfFactory(args ...string) (Factory, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve own executable: %w", err)
	}
	return func() Transport {
		return NewProcessTransport(exe, args...)
	}, nil
}

// NewProcessTransport creates a transport spawning path with args.
func NewProcessTransport(path string, args ...string) *ProcessTransport {
	return &ProcessTransport{path: path, args: args}
}

// Start spawns the worker process. Spawn failures are retried briefly since
// fork/exec can fail transiently under memory pressure, which is exactly the
// condition this system operates in.
func (t *ProcessTransport) Start(ctx context.Context) error {
	return retry.Do(
		func() error { return t.spawn() },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
	)
}

func (t *ProcessTransport) spawn() error {
	cmd := exec.Command(t.path, t.args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn worker: %w", err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.dec = json.NewDecoder(stdout)
	return nil
}

func (t *ProcessTransport) Send(req *Request) error {
	if t.stdin == nil {
		return fmt.Errorf("transport not started")
	}
	if err := json.NewEncoder(t.stdin).Encode(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Type, err)
	}
	return nil
}

func (t *ProcessTransport) Recv() (*Response, error) {
	if t.dec == nil {
		return nil, fmt.Errorf("transport not started")
	}
	var resp Response
	if err := t.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("recv: %w", err)
	}
	return &resp, nil
}

// Close kills the worker process and reaps it. Exactly-once semantics are
// enforced here so every caller exit path can call Close unconditionally.
func (t *ProcessTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd != nil && t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
			t.closeErr = t.cmd.Wait()
		}
	})
	return t.closeErr
}
