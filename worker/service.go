// Package worker runs the supervised worker as an application service.
package worker

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"git.tatikoma.dev/corpix/keeper/config"
	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/log"
	"git.tatikoma.dev/corpix/keeper/process"
	"git.tatikoma.dev/corpix/keeper/supervisor"
	"git.tatikoma.dev/corpix/keeper/watcher"
)

type (
	// Supervisor is the part of *supervisor.Supervisor the service drives.
	Supervisor interface {
		Start(process.Mode) error
		Restart(process.Mode) error
		Shutdown() error
	}

	Service struct {
		cfg      config.Worker
		sup      Supervisor
		resolver *process.Resolver
		watcher  *watcher.Watcher
		restart  chan void
	}

	void = struct{}
)

func New(cfg config.Worker, sup Supervisor, resolver *process.Resolver, w *watcher.Watcher) *Service {
	return &Service{
		cfg:      cfg,
		sup:      sup,
		resolver: resolver,
		watcher:  w,
		restart:  make(chan void, 1),
	}
}

func (s *Service) Name() string  { return "worker" }
func (s *Service) Enabled() bool { return true }

// Run starts the worker and reports readiness once it accepts connections.
// A worker which cannot be spawned never becomes ready, a worker which
// cannot be restarted fails the service.
func (s *Service) Run(ctx context.Context, ready *sync.WaitGroup) error {
	logger := log.Ctx(ctx)

	err := s.sup.Start(s.cfg.Mode)
	if err != nil {
		return err
	}
	if err := s.probe(ctx); err != nil {
		if ctx.Err() != nil {
			// stopped while waiting
			return nil
		}
		return err
	}
	ready.Done()

	if s.cfg.Watch && s.watcher != nil {
		unwatch, err := s.watch(ctx)
		if err != nil {
			return err
		}
		defer errors.LogCallErrCtx(ctx, unwatch, "failed to unwatch worker binary")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.restart:
			logger.Warn().Stringer("mode", s.cfg.Mode).Msg("restarting worker")
			// no worker is left behind a failed restart, the app must not stay ready
			if err := s.sup.Restart(s.cfg.Mode); err != nil {
				return errors.Wrap(err, "failed to restart worker")
			}
			if err := s.probe(ctx); err != nil && ctx.Err() == nil {
				return errors.Wrap(err, "restarted worker is not ready")
			}
		}
	}
}

// Signal schedules a worker restart, a pending restart absorbs repeated requests.
func (s *Service) Signal(os.Signal) {
	s.Restart()
}

func (s *Service) Restart() {
	select {
	case s.restart <- void{}:
	default:
	}
}

// Close terminates the worker. A termination error is reported but
// the worker is not tracked anymore either way.
func (s *Service) Close() error {
	return s.sup.Shutdown()
}

func (s *Service) probe(ctx context.Context) error {
	if s.cfg.ReadyAddr == "" {
		return nil
	}
	return Probe(ctx, s.cfg.ReadyAddr, s.cfg.ReadyTimeout, DefaultProbeInterval)
}

// Binary returns the executable the configured mode launches.
func (s *Service) Binary() (string, error) {
	switch s.cfg.Mode {
	case process.ModeGrouped:
		return exec.LookPath(s.cfg.Name)
	default:
		return s.resolver.Resolve(s.cfg.Name)
	}
}

func (s *Service) watch(ctx context.Context) (func() error, error) {
	binary, err := s.Binary()
	if err != nil {
		return nil, err
	}

	cb := watcher.WithDebounce(s.cfg.Debounce)(func(ev *watcher.Event) {
		log.Ctx(ctx).Info().
			Str("binary", ev.Name).
			Str("op", ev.Op.String()).
			Msg("worker binary changed")
		s.Restart()
	})
	watch, err := s.watcher.Watch(binary, cb, watcher.WithModifyFilter())
	if err != nil {
		return nil, err
	}
	return func() error { return s.watcher.Unwatch(watch) }, nil
}

var _ Supervisor = new(supervisor.Supervisor)
