// Package launcher binds the service listener and runs the worker pool.
// Development mode runs a single worker restarted on source changes;
// production mode runs a fixed pool sharing one inherited listener.
// Supervision stays with the operating system: workers are not health-gated
// or restarted on crash.
package launcher

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// listenerFdEnv marks a spawned worker; the listener arrives as fd 3.
const listenerFdEnv = "ELYCTL_LISTENER_FD"

// Options configure a launch.
type Options struct {
	// Addr is the host:port to bind, e.g. "0.0.0.0:8000".
	Addr string

	// Workers is the pool size. Development mode forces 1.
	Workers int

	// Reload enables the development file watcher.
	Reload bool

	// WatchDir is the tree watched for changes when Reload is set.
	// Defaults to the current directory.
	WatchDir string

	// WorkerArgs are the arguments used to re-exec this binary as a worker.
	WorkerArgs []string
}

// Launcher owns the shared listener and the worker processes.
type Launcher struct {
	opts Options
	log  *zap.Logger
}

// New creates a Launcher.
func New(opts Options, log *zap.Logger) *Launcher {
	if opts.WatchDir == "" {
		opts.WatchDir = "."
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Reload {
		opts.Workers = 1
	}
	return &Launcher{opts: opts, log: log}
}

// Run binds the listener and keeps workers running until ctx is canceled
// or every worker has exited on its own.
func (l *Launcher) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.opts.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", l.opts.Addr, err)
	}
	defer ln.Close()

	lf, err := ln.(*net.TCPListener).File()
	if err != nil {
		return fmt.Errorf("exporting listener: %w", err)
	}
	defer lf.Close()

	l.log.Info("listening",
		zap.String("addr", l.opts.Addr),
		zap.Int("workers", l.opts.Workers),
		zap.Bool("reload", l.opts.Reload),
	)

	if l.opts.Reload {
		return l.runWithReload(ctx, lf)
	}
	return l.runPool(ctx, lf)
}

// runPool starts the fixed worker pool and waits for it.
func (l *Launcher) runPool(ctx context.Context, lf *os.File) error {
	procs := make([]*exec.Cmd, 0, l.opts.Workers)
	done := make(chan error, l.opts.Workers)
	for i := 0; i < l.opts.Workers; i++ {
		cmd, err := l.spawn(lf, i)
		if err != nil {
			l.stopAll(procs)
			return err
		}
		procs = append(procs, cmd)
		go func(c *exec.Cmd) { done <- c.Wait() }(cmd)
	}

	remaining := len(procs)
	for {
		select {
		case <-ctx.Done():
			l.stopAll(procs)
			for remaining > 0 {
				<-done
				remaining--
			}
			return nil
		case err := <-done:
			remaining--
			if err != nil {
				l.log.Warn("worker exited", zap.Error(err))
			}
			if remaining == 0 {
				return err
			}
		}
	}
}

// workerCommand builds the command that re-execs this binary as one worker
// inheriting the listener as fd 3.
func (l *Launcher) workerCommand(lf *os.File) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	cmd := exec.Command(self, l.opts.WorkerArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{lf}
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=3", listenerFdEnv))
	return cmd, nil
}

func (l *Launcher) spawn(lf *os.File, index int) (*exec.Cmd, error) {
	cmd, err := l.workerCommand(lf)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker %d: %w", index, err)
	}
	l.log.Info("worker started", zap.Int("index", index), zap.Int("pid", cmd.Process.Pid))
	return cmd, nil
}

func (l *Launcher) stopAll(procs []*exec.Cmd) {
	for _, cmd := range procs {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}
}

func (l *Launcher) stopAndWait(cmd *exec.Cmd, wait <-chan error) {
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case <-wait:
	case <-time.After(10 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-wait
	}
}

// InheritedListener recovers the listener passed down by the launcher.
// The second return is false when the process was not started as a worker.
func InheritedListener() (net.Listener, bool, error) {
	if os.Getenv(listenerFdEnv) == "" {
		return nil, false, nil
	}
	f := os.NewFile(3, "listener")
	if f == nil {
		return nil, false, fmt.Errorf("listener fd 3 not present")
	}
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, false, fmt.Errorf("recovering inherited listener: %w", err)
	}
	return ln, true, nil
}
