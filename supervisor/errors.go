package supervisor

import (
	"fmt"

	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/process"
)

var ErrPoisoned = errors.New("supervisor is poisoned by a panic of a previous call")

type (
	// SpawnError is returned by Start after all spawn attempts failed.
	SpawnError struct {
		Attempts int
		Err      error
	}

	// TerminationError is returned by Shutdown when the kill call failed.
	// The worker is not tracked anymore at that point.
	TerminationError struct {
		Pid int
		Tag process.Tag
		Err error
	}
)

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s", errors.ErrSpawn, e.Attempts, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *TerminationError) Error() string {
	return fmt.Sprintf("%s (pid %d, %s handle): %s", errors.ErrTerminate, e.Pid, e.Tag, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }
