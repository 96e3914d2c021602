package process

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/log"
)

// Launcher is the host facility the supervisor spawns workers through.
// A returned handle is non-nil iff the error is nil.
type Launcher interface {
	SpawnGroup(name string, args []string) (Handle, error)
	SpawnSidecar(name string, args []string) (Handle, error)
}

// ExitedEarlyError reports a worker which died during the startup grace period.
type ExitedEarlyError struct {
	Name string
	Err  error
}

func (e *ExitedEarlyError) Error() string {
	return fmt.Sprintf("worker %q exited during startup: %v", e.Name, e.Err)
}

func (e *ExitedEarlyError) Unwrap() error { return e.Err }

const DefaultWaitDelay = 2 * time.Second

type (
	// Exec spawns workers as OS processes.
	Exec struct {
		resolver  *Resolver
		logger    *log.Logger
		grace     time.Duration
		waitDelay time.Duration
		dir       string
	}
	ExecOption func(*Exec)

	started struct {
		proc   *os.Process
		exited <-chan void
	}
)

func WithResolver(r *Resolver) ExecOption {
	return func(e *Exec) { e.resolver = r }
}

func WithLogger(l *log.Logger) ExecOption {
	return func(e *Exec) { e.logger = l }
}

// WithStartupGrace makes spawns fail when the worker exits within d.
func WithStartupGrace(d time.Duration) ExecOption {
	return func(e *Exec) { e.grace = d }
}

// WithDir sets the working directory of spawned workers.
func WithDir(dir string) ExecOption {
	return func(e *Exec) { e.dir = dir }
}

func NewExec(opts ...ExecOption) *Exec {
	e := &Exec{
		resolver:  NewResolver(),
		logger:    log.DefaultLogger,
		waitDelay: DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exec) Resolver() *Resolver { return e.resolver }

func (e *Exec) SpawnGroup(name string, args []string) (Handle, error) {
	cmd := exec.Command(name, args...)
	setGroup(cmd)

	s, err := e.start(name, cmd, killGroup)
	if err != nil {
		return nil, err
	}
	return &GroupHandle{
		pgid:   s.proc.Pid,
		kill:   killGroup,
		exited: s.exited,
	}, nil
}

func (e *Exec) SpawnSidecar(name string, args []string) (Handle, error) {
	path, err := e.resolver.Resolve(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrResolve)
	}
	cmd := exec.Command(path, args...)

	s, err := e.start(name, cmd, nil)
	if err != nil {
		return nil, err
	}
	return &SingleHandle{
		pid:    s.proc.Pid,
		kill:   func(int) error { return s.proc.Kill() },
		exited: s.exited,
	}, nil
}

// start runs cmd, forwards its output into the logger and reaps it when it exits.
// cleanup, when set, kills whatever survived a failed startup check.
func (e *Exec) start(name string, cmd *exec.Cmd, cleanup func(pid int) error) (started, error) {
	logger := e.logger.With().Str("worker", name).Logger()
	stdout := log.NewLineWriter(ptr(logger.With().Str("stream", "stdout").Logger()), log.InfoLevel)
	stderr := log.NewLineWriter(ptr(logger.With().Str("stream", "stderr").Logger()), log.WarnLevel)

	cmd.Dir = e.dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.waitDelay

	if err := cmd.Start(); err != nil {
		return started{}, err
	}
	logger.Info().
		Int("pid", cmd.Process.Pid).
		Strs("args", cmd.Args[1:]).
		Msg("worker started")

	var (
		exited  = make(chan void)
		waitErr error
	)
	go func() {
		defer close(exited)
		waitErr = cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		logger.Info().
			Int("pid", cmd.Process.Pid).
			AnErr("status", waitErr).
			Msg("worker exited")
	}()

	if e.grace > 0 {
		select {
		case <-exited:
			if cleanup != nil {
				// leftovers of the group must not outlive a failed attempt
				_ = cleanup(cmd.Process.Pid)
			}
			err := waitErr
			if err == nil {
				err = errors.New("exit status 0")
			}
			return started{}, &ExitedEarlyError{Name: name, Err: err}
		case <-time.After(e.grace):
		}
	}

	return started{proc: cmd.Process, exited: exited}, nil
}

func ptr[T any](v T) *T { return &v }

var _ Launcher = new(Exec)
