package group

import (
	"fmt"

	"git.tatikoma.dev/corpix/keeper/errors"
)

type (
	Task struct {
		name string
		fn   Job
	}

	Job func(ctx Context) error

	Error struct {
		Err  error
		task *Task
	}
)

func (t *Task) Name() string { return t.name }

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Error() string {
	return fmt.Sprintf("task %q failed: %s", e.task.name, e.Err)
}
