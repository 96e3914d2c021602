package errors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ErrSpawn     = "failed to spawn worker"
	ErrTerminate = "failed to terminate worker"
	ErrResolve   = "failed to resolve sidecar"
)

var (
	Is     = errors.Is
	As     = errors.As
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Cause  = errors.Cause
	Errorf = fmt.Errorf
	New    = errors.New
)

func Log(err error, fmt string, args ...any) {
	if err != nil {
		log.Error().Err(err).Msgf(fmt, args...)
	}
}

func LogCtx(ctx context.Context, err error, fmt string, args ...any) {
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf(fmt, args...)
	}
}

func LogCallErr(fn func() error, fmt string, args ...any) {
	Log(fn(), fmt, args...)
}

func LogCallErrCtx(ctx context.Context, fn func() error, fmt string, args ...any) {
	LogCtx(ctx, fn(), fmt, args...)
}

func Chain(err error, cause error) error {
	return Errorf("%w: %w", err, cause)
}
