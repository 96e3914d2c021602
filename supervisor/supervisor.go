// Package supervisor keeps at most one worker process alive per application.
//
// A Supervisor is constructed by the composition root and shared by every
// caller which may start or stop the worker: application setup, exit
// handlers and manual restarts. All state transitions are serialized by a
// single mutex which stays held for the whole Start call, backoff sleeps
// included, so a Shutdown requested during a retry loop waits for the loop
// and then terminates whatever it installed.
package supervisor

import (
	"sync"
	"time"

	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/log"
	"git.tatikoma.dev/corpix/keeper/process"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 800 * time.Millisecond
)

type (
	Config struct {
		// Name is the executable path (grouped) or logical sidecar name.
		Name     string
		Args     []string
		// Attempts and Backoff fall back to DefaultAttempts and DefaultBackoff
		// when not positive.
		Attempts int
		Backoff  time.Duration
	}

	Supervisor struct {
		mu       sync.Mutex
		launcher process.Launcher
		cfg      Config
		logger   log.Logger
		sleep    func(time.Duration)
		poisoned bool
		state    *state
	}

	// state is nil until the first Start.
	state struct {
		handle process.Handle
		mode   process.Mode
	}

	Option func(*Supervisor)
)

// WorkerArgs is the fixed argument vector selecting the worker serve mode.
func WorkerArgs(deployment string) []string {
	return []string{"-m", "serve", "-d", deployment}
}

func WithLogger(l log.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithSleep replaces the function used to wait between spawn attempts.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Supervisor) { s.sleep = fn }
}

func New(launcher process.Launcher, cfg Config, opts ...Option) *Supervisor {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	s := &Supervisor{
		launcher: launcher,
		cfg:      cfg,
		logger:   log.With().Str("component", "supervisor").Logger(),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("worker", cfg.Name).Logger()
	return s
}

// Start makes sure a worker is running.
// It is a no-op while a worker is tracked, the mode of the running worker
// is kept in that case.
func (s *Supervisor) Start(mode process.Mode) error {
	return s.guard(func() error { return s.start(mode) })
}

// Shutdown terminates the tracked worker, if any.
// The worker reference is dropped even when the kill fails.
func (s *Supervisor) Shutdown() error {
	return s.guard(s.shutdown)
}

// Restart terminates the tracked worker and starts a new one in mode.
// A failed termination is logged and does not prevent the start.
func (s *Supervisor) Restart(mode process.Mode) error {
	return s.guard(func() error {
		if err := s.shutdown(); err != nil {
			s.logger.Error().Err(err).Msg("restart proceeds after failed termination")
		}
		return s.start(mode)
	})
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == nil:
		return StateUninitialized
	case s.state.handle == nil:
		return StateStopped
	default:
		return StateRunning
	}
}

// Mode returns the mode of the current or most recent launch.
// ok is false before the first Start.
func (s *Supervisor) Mode() (mode process.Mode, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return mode, false
	}
	return s.state.mode, true
}

// Pid returns the id of the tracked worker or 0.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil || s.state.handle == nil {
		return 0
	}
	return s.state.handle.Pid()
}

// guard runs fn under the lock.
// A panic inside fn poisons the supervisor, later calls fail with ErrPoisoned.
func (s *Supervisor) guard(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return ErrPoisoned
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			s.logger.Error().Interface("panic", r).Msg("supervisor poisoned")
			panic(r)
		}
	}()

	return fn()
}

func (s *Supervisor) start(mode process.Mode) error {
	if !mode.Valid() {
		return &SpawnError{Err: errors.Errorf("unsupported launch mode %s", mode)}
	}
	if s.state == nil {
		s.state = &state{mode: mode}
	}
	if s.state.handle != nil {
		s.logger.Debug().
			Int("pid", s.state.handle.Pid()).
			Stringer("mode", s.state.mode).
			Msg("worker already running")
		return nil
	}

	s.state.mode = mode
	h, err := s.spawn(mode)
	if err != nil {
		return err
	}
	s.state.handle = h
	return nil
}

func (s *Supervisor) spawn(mode process.Mode) (process.Handle, error) {
	var spawn func(name string, args []string) (process.Handle, error)
	switch mode {
	case process.ModeGrouped:
		spawn = s.launcher.SpawnGroup
	case process.ModeSidecar:
		spawn = s.launcher.SpawnSidecar
	default:
		return nil, &SpawnError{Err: errors.Errorf("unsupported launch mode %s", mode)}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if attempt > 1 {
			s.sleep(s.cfg.Backoff)
		}

		h, err := spawn(s.cfg.Name, s.cfg.Args)
		if err == nil && h == nil {
			err = errors.New("launcher returned no handle")
		}
		if err == nil {
			s.logger.Info().
				Int("pid", h.Pid()).
				Stringer("mode", mode).
				Int("attempt", attempt).
				Msg("worker spawned")
			return h, nil
		}
		if h != nil {
			s.reapOrphan(h)
		}

		lastErr = err
		s.logger.Warn().
			Err(err).
			Stringer("mode", mode).
			Int("attempt", attempt).
			Int("attempts", s.cfg.Attempts).
			Msg("worker spawn attempt failed")
	}

	return nil, &SpawnError{Attempts: s.cfg.Attempts, Err: lastErr}
}

// reapOrphan kills a process the launcher started but reported as failed.
func (s *Supervisor) reapOrphan(h process.Handle) {
	s.logger.Warn().
		Int("pid", h.Pid()).
		Str("handle", string(h.Tag())).
		Msg("launcher returned a handle along with an error, killing orphan")
	if err := kill(h); err != nil {
		s.logger.Error().Err(err).Int("pid", h.Pid()).Msg("failed to kill orphan worker")
	}
}

func (s *Supervisor) shutdown() error {
	var h process.Handle
	if s.state != nil {
		h, s.state.handle = s.state.handle, nil
	}
	if h == nil {
		s.logger.Debug().Msg("no worker to shutdown")
		return nil
	}

	err := kill(h)
	if err != nil {
		return &TerminationError{
			Pid: h.Pid(),
			Tag: h.Tag(),
			Err: err,
		}
	}
	s.logger.Info().
		Int("pid", h.Pid()).
		Str("handle", string(h.Tag())).
		Msg("worker terminated")
	return nil
}

func kill(h process.Handle) error {
	switch h := h.(type) {
	case *process.GroupHandle:
		return h.KillGroup()
	case *process.SingleHandle:
		return h.Kill()
	default:
		return errors.Errorf("unsupported process handle %T", h)
	}
}
