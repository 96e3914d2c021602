package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v2"

	"git.tatikoma.dev/corpix/keeper/dump"
	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/log"
)

type (
	void = struct{}

	Context  = cli.Context
	Command  = cli.Command
	Commands = []*Command

	Config interface {
		FromFile(path string) error
	}

	Application[C Config] interface {
		Configure(path string) (C, error)
		Signals(...SignalGroup) Signals
		Flags() Flags
		Commands() Commands
		Services() Services
		Notify(Signal)
		Ready() <-chan void
		Watchdog(*cli.Context) error
		Init(*Runtime)
		PreRun(*cli.Context) error
		Run(*cli.Context) error
		Exec(args []string) error
		Error(error)
		Close() error
	}

	App[C Config] struct {
		Config C
		self   Application[C]
		*Runtime
		ready       chan void
		readyOnce   sync.Once
		readyWg     sync.WaitGroup
		stop        chan void
		stopOnce    sync.Once
		stopTimeout time.Duration
	}

	Service interface {
		Name() string
		Enabled() bool
		// Run must call Done on the wait group once the service is ready
		// and block until ctx is done.
		Run(context.Context, *sync.WaitGroup) error
		Signal(os.Signal)
		Close() error
	}
	Services = []Service
)

const (
	DefaultStopTimeout = 10 * time.Second
)

var ErrStopTimeout = errors.New("timed out waiting all components to stop")

func (a *App[C]) Configure(path string) (C, error) {
	log.Ctx(a.Runtime.Group).
		Info().
		Str("config", path).
		Msg("loading config")

	var c C
	typ := reflect.TypeOf((*C)(nil)).Elem()
	if typ.Kind() == reflect.Pointer {
		c = reflect.New(typ.Elem()).Interface().(C)
	}
	err := c.FromFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "failed to load config from %q", path)
	}
	a.Config = c
	return c, nil
}

func (*App[C]) Signals(sgids ...SignalGroup) Signals {
	if len(sgids) == 0 {
		sgids = SignalGroups
	}

	var sigs Signals
	for _, sgid := range sgids {
		sigs = append(sigs, signalsOf(sgid)...)
	}
	return sigs
}

func (*App[C]) Flags() Flags {
	return Flags{
		&PathFlag{
			Name:    FlagConfig,
			Aliases: []string{"c"},
			Usage:   "configuration file path",
			Value:   "config.json",
		},
		&BoolFlag{
			Name:  FlagVerbose,
			Usage: "set info log level",
			Value: false,
		},
		&BoolFlag{
			Name:     FlagDebug,
			Usage:    "set debug log level and dump loaded config",
			Value:    false,
			Category: "debug",
		},
	}
}

func (*App[C]) Commands() Commands {
	return nil
}

func (a *App[C]) Services() Services {
	return nil
}

func (a *App[C]) Notify(sig Signal) {
	for _, service := range a.self.Services() {
		service.Signal(sig)
	}
}

func (a *App[C]) Ready() <-chan void {
	return a.ready
}

// Stop requests an orderly exit, same as a stop signal.
// It is the hook for exit-requested events of a hosting shell.
func (a *App[C]) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *App[C]) Init(r *Runtime) {
	r.Cli.Flags = a.self.Flags()
	r.Cli.Commands = a.self.Commands()
	r.Cli.Before = a.self.PreRun
	r.Cli.Action = a.self.Run
}

// Watchdog blocks until a stop is requested or a service fails.
// Services are drained before it returns, so workers they own are gone by then.
func (a *App[C]) Watchdog(ctx *cli.Context) error {
	sigs := a.self.Signals()
	sgids := GroupSignals(a.self)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sigs...)
	defer signal.Stop(sigCh)

	exit := make(chan error, 1)
	go func() {
		exit <- a.Runtime.Group.Wait(context.Background())
	}()

watchdog:
	for {
		select {
		case err := <-exit:
			log.Error().
				Err(err).
				Msg("service group has been shutdown, exiting")
			return err
		case <-a.stop:
			log.Warn().Msg("stop requested")
			break watchdog
		case sig := <-sigCh:
			log.Info().
				Str("signal", sig.String()).
				Msg("received signal")
			switch sgids[sig] {
			case SignalGroupNotify:
				a.self.Notify(sig)
			case SignalGroupStop:
				break watchdog
			default:
				log.Warn().
					Str("signal", sig.String()).
					Msg("unsupported signal, ignoring")
			}
		}
	}

	log.Warn().
		Str("timeout", a.stopTimeout.String()).
		Msg("shutting down...")
	sdNotify(daemon.SdNotifyStopping)
	a.Runtime.Group.Cancel(nil)

	select {
	case err := <-exit:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case sig := <-sigCh:
		return errors.Errorf("received signal %v while stopping, forcing exit", sig)
	case <-time.After(a.stopTimeout):
		log.Error().
			Int("tasks", a.Runtime.Group.Len()).
			Msg("tasks still running after stop timeout")
		return ErrStopTimeout
	}

	log.Warn().Msg("exiting")
	return nil
}

func (a *App[C]) PreRun(ctx *cli.Context) error {
	var err error

	if ctx.Bool(FlagVerbose) {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	debug := ctx.Bool(FlagDebug)
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	config := ctx.Path(FlagConfig)
	if config != "" {
		a.Config, err = a.self.Configure(config)
		if err != nil {
			return err
		}
		if debug {
			dump.Fprint(os.Stderr, a.Config)
		}
	}

	return nil
}

func (a *App[C]) runService(srv Service) error {
	ctx := log.Ctx(a.Group).
		With().
		Str("service", srv.Name()).
		Logger().
		WithContext(a.Group)

	log.Ctx(ctx).Info().Msg("running...")
	defer log.Ctx(ctx).Warn().Msg("stopped")

	defer errors.LogCallErrCtx(ctx, srv.Close, "failed to close service")
	return srv.Run(ctx, &a.readyWg)
}

func (a *App[C]) Run(ctx *cli.Context) error {
	a.Group.RunNamed("watcher", func(ctx context.Context) error {
		return a.Watcher.Run(ctx)
	})

	for _, srv := range a.self.Services() {
		if !srv.Enabled() {
			continue
		}

		a.readyWg.Add(1)
		a.Group.RunNamed(srv.Name(), func(ctx context.Context) error {
			return a.runService(srv)
		})
	}
	go a.waitReady()

	return a.self.Watchdog(ctx)
}

func (a *App[C]) waitReady() {
	a.readyWg.Wait()
	a.readyOnce.Do(func() {
		close(a.ready)
		log.Info().Msg("ready")
		sdNotify(daemon.SdNotifyReady)
	})
}

func (a *App[C]) Exec(args []string) error {
	return a.Runtime.Run(args)
}

func (a *App[C]) Error(err error) {
	Error(err)
}

func (a *App[C]) Close() error {
	return a.Runtime.Close()
}

func newAppWithRuntime[C Config](r *Runtime) *App[C] {
	return &App[C]{
		Runtime:     r,
		ready:       make(chan void),
		stop:        make(chan void),
		stopTimeout: DefaultStopTimeout,
	}
}

// New creates an App with the provided runtime.
// It is expected that caller invoke Init on self.
func New[C Config](r *Runtime, self Application[C]) *App[C] {
	a := newAppWithRuntime[C](r)
	a.self = self
	return a
}

func Error(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
