// Package stdio runs the agent CLI as a child process and speaks
// Content-Length framed JSON-RPC over its stdin/stdout. The process can run
// locally or on a remote host over SSH with credentials resolved from a
// secret resource.
package stdio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/framing"
	"github.com/viant/agentrpc/transport"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	cssh "golang.org/x/crypto/ssh"
)

// defaultArgs are always appended after user supplied arguments.
var defaultArgs = []string{"--headless", "--no-auto-update", "--stdio"}

const closeGracePeriod = 5 * time.Second

// ExitListener receives the child's exit code and its buffered diagnostic
// output once the process is gone.
type ExitListener func(code int, output string)

// Transport spawns and owns the agent child process.
type Transport struct {
	command   string
	args      []string
	env       map[string]string
	host      string
	secret    secret.Resource
	sshConfig *cssh.ClientConfig

	client   runner.Runner
	decoder  *framing.Decoder
	messages chan transport.Inbound
	onExit   ExitListener
	logger   agentrpc.Logger

	framingOptions []framing.Option

	sendMu    sync.Mutex
	mu        sync.Mutex
	open      bool
	closed    bool
	exited    chan struct{}
	streamEnd sync.Once
	cancelRun context.CancelFunc
}

// New creates a transport for the supplied CLI command; the process is not
// spawned until Open.
func New(command string, options ...Option) *Transport {
	t := &Transport{
		command:  command,
		messages: make(chan transport.Inbound, 64),
		exited:   make(chan struct{}),
		logger:   agentrpc.DefaultLogger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Open spawns the child and starts decoding its stdout.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return nil
	}
	if t.closed {
		return agentrpc.NewStateError("transport already closed")
	}
	if err := t.ensureSSHConfig(ctx); err != nil {
		return err
	}
	if t.client == nil {
		var options = []runner.Option{
			runner.AsPipeline(),
		}
		if t.sshConfig != nil {
			t.client = ssh.New(t.host, t.sshConfig, options...)
		} else {
			t.client = local.New(options...)
		}
	}
	t.decoder = framing.NewDecoder(t.emit, t.framingOptions...)
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancelRun = cancel
	go t.runCommand(runCtx, t.commandLine())
	t.open = true
	return nil
}

func (t *Transport) commandLine() string {
	parts := append([]string{t.command}, t.args...)
	parts = append(parts, defaultArgs...)
	return strings.Join(parts, " ")
}

func (t *Transport) runCommand(ctx context.Context, cmd string) {
	output, code, err := t.client.Run(ctx, cmd, runner.WithEnvironment(t.env), runner.WithListener(t.stdoutListener()))
	if err != nil {
		t.logger.Errorf("agent process failed: %v", err)
	}
	close(t.exited)
	if t.onExit != nil {
		t.onExit(code, output)
	}
	t.closeStream()
}

// stdoutListener feeds raw stdout chunks into the framing decoder; chunk
// boundaries are arbitrary, the decoder reassembles frames.
func (t *Transport) stdoutListener() runner.Listener {
	return func(stdout string, hasMore bool) {
		if stdout == "" {
			return
		}
		t.decoder.Write([]byte(stdout))
	}
}

// emit runs on the child's output goroutine, which is also the only goroutine
// allowed to close the messages channel; Close only requests termination and
// waits.
func (t *Transport) emit(frame framing.Frame) {
	if frame.Err != nil {
		t.messages <- transport.Inbound{Err: frame.Err}
		if _, fatal := frame.Err.(*framing.FrameError); fatal {
			// decoder latched; the byte stream is unusable
			go func() {
				_ = t.Close()
			}()
		}
		return
	}
	t.messages <- transport.Inbound{Data: frame.Data}
}

// Messages returns the inbound stream.
func (t *Transport) Messages() <-chan transport.Inbound {
	return t.messages
}

// Send frames and writes one envelope to the child's stdin. Writes are
// serialized so frames never interleave.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if !t.open || t.closed {
		t.mu.Unlock()
		return agentrpc.NewStateError("transport is not open")
	}
	client := t.client
	t.mu.Unlock()

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if _, err := client.Send(ctx, framing.Encode(data)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// IsOpen reports whether the child is believed to be running.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open && !t.closed
}

// Close shuts the child down: it closes stdin, waits up to five seconds for
// the process to exit, then cancels it hard. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	client := t.client
	cancel := t.cancelRun
	wasOpen := t.open
	t.mu.Unlock()

	if !wasOpen {
		t.closeStream()
		return nil
	}
	var err error
	if client != nil {
		err = client.Close()
	}
	select {
	case <-t.exited:
	case <-time.After(closeGracePeriod):
		if cancel != nil {
			cancel()
		}
		// runCommand observes the cancellation, records the exit and
		// closes the stream
	}
	return err
}

func (t *Transport) closeStream() {
	t.streamEnd.Do(func() {
		close(t.messages)
	})
}

func (t *Transport) ensureSSHConfig(ctx context.Context) error {
	if t.sshConfig != nil || t.host == "" {
		return nil
	}
	if t.secret != "" {
		secrets := secret.New()
		cred, err := secrets.GetCredentials(ctx, string(t.secret))
		if err != nil {
			return err
		}
		t.sshConfig, err = cred.SSH.Config(ctx)
		return err
	}
	return fmt.Errorf("sshConfig is required but not provided for host: %s", t.host)
}
