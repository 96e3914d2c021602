package app

import (
	"context"

	"github.com/urfave/cli/v2"

	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/group"
	"git.tatikoma.dev/corpix/keeper/watcher"
)

type (
	Runtime struct {
		Group   *group.Group
		Cli     *cli.App
		Watcher *watcher.Watcher
	}
)

func NewRuntime(ctx context.Context) (*Runtime, error) {
	w, err := watcher.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	r := &Runtime{
		Cli:     cli.NewApp(),
		Group:   group.New(ctx),
		Watcher: w,
	}

	return r, nil
}

func (r *Runtime) Run(args []string) error {
	return r.Cli.RunContext(r.Group, args)
}

func (r *Runtime) Close() error {
	return r.Watcher.Close()
}
