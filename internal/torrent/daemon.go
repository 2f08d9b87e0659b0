package torrent

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const (
	connectAttempts     = 5
	connectInitialDelay = 500 * time.Millisecond
)

// Daemon supervises the connection to the torrent daemon, optionally
// launching a managed child process when the daemon is not already running.
type Daemon struct {
	backend    Backend
	command    string
	args       []string
	log        *slog.Logger
	retryDelay time.Duration

	proc *exec.Cmd
}

// NewDaemon wraps a backend. command may be empty, in which case the daemon
// is expected to be running already.
func NewDaemon(backend Backend, command string, args []string, log *slog.Logger) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	return &Daemon{
		backend:    backend,
		command:    command,
		args:       args,
		log:        log.With("component", "torrent-daemon"),
		retryDelay: connectInitialDelay,
	}
}

// Backend returns the wrapped backend.
func (d *Daemon) Backend() Backend { return d.backend }

// Connect verifies the daemon answers. If it does not and a managed command
// is configured, the command is spawned and the connection retried with
// exponential backoff. After the retry budget is spent the error satisfies
// errors.Is(err, ErrDaemonUnreachable).
func (d *Daemon) Connect(ctx context.Context) error {
	if _, err := d.backend.List(ctx); err == nil {
		return nil
	}

	if d.command != "" && d.proc == nil {
		d.log.Info("starting managed daemon", "command", d.command)
		cmd := exec.Command(d.command, d.args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("%w: starting %s: %v", ErrDaemonUnreachable, d.command, err)
		}
		d.proc = cmd
		// collect the child when it exits so it never zombies
		go func() { _ = cmd.Wait() }()
	}

	delay := d.retryDelay
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if _, err := d.backend.List(ctx); err == nil {
			d.log.Info("daemon reachable", "attempts", attempt)
			return nil
		} else {
			lastErr = err
			d.log.Debug("daemon not ready", "attempt", attempt, "error", err)
		}
		delay *= 2
	}
	return fmt.Errorf("%w: gave up after %d attempts: %v", ErrDaemonUnreachable, connectAttempts, lastErr)
}

// Stop terminates a managed daemon process, if one was launched.
func (d *Daemon) Stop() {
	if d.proc == nil || d.proc.Process == nil {
		return
	}
	d.log.Info("stopping managed daemon")
	_ = d.proc.Process.Kill()
	d.proc = nil
}
