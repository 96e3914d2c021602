package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"git.tatikoma.dev/corpix/keeper/app"
	"git.tatikoma.dev/corpix/keeper/config"
	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/log"
	"git.tatikoma.dev/corpix/keeper/process"
	"git.tatikoma.dev/corpix/keeper/supervisor"
	"git.tatikoma.dev/corpix/keeper/worker"
)

var Version = "dev"

const (
	FlagMode       = "mode"
	FlagWorker     = "worker"
	FlagDeployment = "deployment"
)

type Keeper struct {
	*app.App[*config.Config]
	launcher *process.Exec
	sup      *supervisor.Supervisor
	worker   *worker.Service
	logFile  io.Closer
}

func (k *Keeper) Flags() app.Flags {
	return append(k.App.Flags(),
		&app.StringFlag{
			Name:    FlagMode,
			Usage:   "worker launch mode (sidecar, grouped)",
			EnvVars: []string{"KEEPER_MODE"},
		},
		&app.StringFlag{
			Name:    FlagWorker,
			Usage:   "worker sidecar name or executable path",
			EnvVars: []string{"KEEPER_WORKER"},
		},
		&app.StringFlag{
			Name:    FlagDeployment,
			Usage:   "deployment identifier passed to the worker",
			EnvVars: []string{"KEEPER_DEPLOYMENT"},
		},
	)
}

func (k *Keeper) Commands() app.Commands {
	return app.Commands{
		{
			Name:  "resolve",
			Usage: "print the worker binary path",
			Action: func(ctx *cli.Context) error {
				path, err := k.worker.Binary()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(ctx.App.Writer, path)
				return err
			},
		},
		{
			Name:  "version",
			Usage: "print version",
			Action: func(ctx *cli.Context) error {
				_, err := fmt.Fprintln(ctx.App.Writer, Version)
				return err
			},
		},
	}
}

func (k *Keeper) PreRun(ctx *cli.Context) error {
	err := k.App.PreRun(ctx)
	if err != nil {
		return err
	}
	if k.Config == nil {
		k.Config = config.Default()
	}
	cfg := k.Config

	if mode := ctx.String(FlagMode); mode != "" {
		cfg.Worker.Mode, err = process.ParseMode(mode)
		if err != nil {
			return err
		}
	}
	if name := ctx.String(FlagWorker); name != "" {
		cfg.Worker.Name = name
	}
	if deployment := ctx.String(FlagDeployment); deployment != "" {
		cfg.Worker.Deployment = deployment
	}
	err = cfg.Validate()
	if err != nil {
		return err
	}

	if cfg.Log.File != "" {
		k.logFile, err = log.OutputFile(cfg.Log.File)
		if err != nil {
			return errors.Wrapf(err, "failed to open log file %q", cfg.Log.File)
		}
	}
	if cfg.Log.Level != "" && !ctx.Bool(app.FlagVerbose) && !ctx.Bool(app.FlagDebug) {
		level, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	k.launcher = process.NewExec(
		process.WithResolver(process.NewResolver(cfg.Worker.Search...)),
		process.WithStartupGrace(cfg.Worker.Grace),
		process.WithDir(cfg.Worker.Dir),
	)
	k.sup = supervisor.New(k.launcher, cfg.Supervisor())
	k.worker = worker.New(cfg.Worker, k.sup, k.launcher.Resolver(), k.Watcher)

	log.Info().
		Str("worker", cfg.Worker.Name).
		Stringer("mode", cfg.Worker.Mode).
		Str("deployment", cfg.Worker.Deployment).
		Msg("configured")
	return nil
}

func (k *Keeper) Services() app.Services {
	return app.Services{k.worker}
}

func (k *Keeper) Close() error {
	if k.logFile != nil {
		errors.LogCallErr(k.logFile.Close, "failed to close log file")
	}
	return k.App.Close()
}

func main() {
	r, err := app.NewRuntime(context.Background())
	if err != nil {
		app.Error(err)
	}
	r.Cli.Name = "keeper"
	r.Cli.Usage = "supervise the desktop worker process"
	r.Cli.Version = Version

	k := &Keeper{}
	k.App = app.New[*config.Config](r, k)
	k.Init(r)

	err = k.Exec(os.Args)
	errors.LogCallErr(k.Close, "failed to close")
	if err != nil {
		k.Error(err)
	}
}
